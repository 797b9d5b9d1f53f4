package authoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Manager tracks in-flight authoring sessions. Sessions are in-memory
// only: cancelling one discards everything with no partial template
// persisted. The workspace id travels with each session explicitly so
// concurrent sessions across workspaces never share state.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	detector FieldDetector
}

func NewManager(detector FieldDetector) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		detector: detector,
	}
}

func (m *Manager) Detector() FieldDetector { return m.detector }

func (m *Manager) Create(workspaceID string) *Session {
	session := &Session{
		ID:          "authoring-" + uuid.New().String(),
		WorkspaceID: workspaceID,
		state:       StateUpload,
		touched:     time.Now(),
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	klog.V(4).Infof("authoring session %s created for workspace %s", session.ID, workspaceID)
	return session
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("authoring session %q not found", id)
	}
	session.touch()
	return session, nil
}

// ExpireIdle drops sessions untouched for longer than maxAge and
// returns how many were removed. In-flight scans count as active
// because the triggering request touched the session.
func (m *Manager) ExpireIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for id, session := range m.sessions {
		if session.IdleSince().Before(cutoff) {
			delete(m.sessions, id)
			expired++
		}
	}
	if expired > 0 {
		klog.V(2).Infof("expired %d idle authoring sessions", expired)
	}
	return expired
}

// Drop removes a session, either after a successful save or on user
// cancellation. In-progress work is discarded, not rolled back.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
