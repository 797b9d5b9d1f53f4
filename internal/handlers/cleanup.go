package handlers

import (
	"time"

	"DF-FIDELITY/internal/authoring"

	"k8s.io/klog/v2"
)

// SessionCleanupService periodically expires authoring sessions that
// were abandoned without being saved or cancelled. Page masters for a
// multi-page scan are large; leaking them indefinitely is not an
// option.
type SessionCleanupService struct {
	manager *authoring.Manager
	maxAge  time.Duration
	ticker  *time.Ticker
	done    chan bool
}

func NewSessionCleanupService(manager *authoring.Manager, maxAge time.Duration) *SessionCleanupService {
	return &SessionCleanupService{
		manager: manager,
		maxAge:  maxAge,
		done:    make(chan bool),
	}
}

func (s *SessionCleanupService) Start() {
	s.ticker = time.NewTicker(15 * time.Minute)
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.ticker.C:
				s.manager.ExpireIdle(s.maxAge)
			}
		}
	}()
	klog.Info("session cleanup service started")
}

func (s *SessionCleanupService) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.done <- true
	klog.Info("session cleanup service stopped")
}
