// Package authoring drives the template capture workflow as an explicit
// state machine: UPLOAD -> PREVIEW -> SCANNING -> REFINE -> saved.
// States are a closed enum with exhaustive transition checks rather
// than independent boolean flags, so impossible combinations cannot be
// represented.
package authoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"DF-FIDELITY/internal/ai"
	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/raster"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

type State string

const (
	StateUpload   State = "UPLOAD"
	StatePreview  State = "PREVIEW"
	StateScanning State = "SCANNING"
	StateRefine   State = "REFINE"
)

// FieldDetector is the slice of the detection gateway the pipeline
// needs.
type FieldDetector interface {
	DetectFields(ctx context.Context, imageData []byte, mimeType string) (*ai.DetectionResult, error)
}

// manualFieldStyle makes manually added fields easy to spot against
// auto-detected ones.
var manualFieldStyle = models.FieldStyle{Color: "#2563eb", FontWeight: "bold"}

// Session is one in-progress template capture. All mutation goes
// through its methods; nothing is persisted until Save.
type Session struct {
	ID          string
	WorkspaceID string

	mu        sync.Mutex
	state     State
	name      string
	lastError string
	pages     []raster.Page
	pageIndex int
	fields     []models.TemplateField
	source     []byte
	sourceMime string
	touched    time.Time
}

// Source returns the original upload, kept verbatim as the fidelity
// master.
func (s *Session) Source() ([]byte, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source, s.sourceMime
}

func (s *Session) touch() {
	s.mu.Lock()
	s.touched = time.Now()
	s.mu.Unlock()
}

// IdleSince reports when the session was last accessed.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Snapshot returns the session's current fields and page images for
// read-only use by handlers.
func (s *Session) Snapshot() (State, string, []models.TemplateField, []raster.Page, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make([]models.TemplateField, len(s.fields))
	copy(fields, s.fields)
	pages := make([]raster.Page, len(s.pages))
	copy(pages, s.pages)
	return s.state, s.name, fields, pages, s.pageIndex
}

// Upload rasterizes the initial source file. Exactly one pending source
// at a time: once pages exist, additional sources go through AddPages.
func (s *Session) Upload(source []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUpload {
		return fmt.Errorf("cannot upload a source in state %s", s.state)
	}

	pages, err := raster.Rasterize(source, mimeType)
	if err != nil {
		// Terminal for this attempt; the session stays in UPLOAD.
		s.lastError = err.Error()
		return err
	}

	s.pages = pages
	s.pageIndex = 0
	s.source = source
	s.sourceMime = mimeType
	s.state = StatePreview
	s.lastError = ""
	klog.V(4).Infof("session %s: source rasterized into %d pages", s.ID, len(pages))
	return nil
}

// AddPages appends pages from an additional source without discarding
// fields already captured on existing pages.
func (s *Session) AddPages(source []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreview && s.state != StateRefine {
		return fmt.Errorf("cannot add pages in state %s", s.state)
	}

	pages, err := raster.Rasterize(source, mimeType)
	if err != nil {
		s.lastError = err.Error()
		return err
	}

	s.pages = append(s.pages, pages...)
	s.lastError = ""
	return nil
}

// SelectPage switches the page shown in PREVIEW/REFINE. Fields pinned
// to other pages are untouched.
func (s *Session) SelectPage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreview && s.state != StateRefine {
		return fmt.Errorf("cannot switch pages in state %s", s.state)
	}
	if index < 0 || index >= len(s.pages) {
		return fmt.Errorf("page index %d out of range (%d pages)", index, len(s.pages))
	}
	s.pageIndex = index
	return nil
}

// Analyze sends the current page's analysis copy through the detection
// gateway. The session sits in SCANNING for the duration; no edits are
// permitted until it settles. On failure it returns to PREVIEW with the
// error surfaced and the rasterized master retained.
func (s *Session) Analyze(ctx context.Context, detector FieldDetector) error {
	s.mu.Lock()
	if s.state != StatePreview && s.state != StateRefine {
		s.mu.Unlock()
		return fmt.Errorf("cannot analyze in state %s", s.state)
	}
	page := s.pages[s.pageIndex]
	pageIndex := s.pageIndex
	s.state = StateScanning
	s.lastError = ""
	s.mu.Unlock()

	result, err := detector.DetectFields(ctx, page.AnalysisJPEG, "image/jpeg")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StatePreview
		s.lastError = err.Error()
		return err
	}

	for _, field := range result.Fields {
		field.PageIndex = pageIndex
		s.fields = append(s.fields, s.dedupeName(field))
	}
	if s.name == "" {
		s.name = result.SuggestedTitle
	}
	s.state = StateRefine
	klog.V(4).Infof("session %s: detection merged %d fields on page %d", s.ID, len(result.Fields), pageIndex)
	return nil
}

// BeginRefine enters REFINE without a detection pass, for manual field
// definition.
func (s *Session) BeginRefine() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreview {
		return fmt.Errorf("cannot begin refinement in state %s", s.state)
	}
	s.state = StateRefine
	return nil
}

// AddField appends a manually defined field on the current page. Manual
// fields default to a visibly distinct style.
func (s *Session) AddField(field models.TemplateField) (models.TemplateField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRefine {
		return models.TemplateField{}, fmt.Errorf("cannot edit fields in state %s", s.state)
	}
	if err := field.Validate(); err != nil {
		return models.TemplateField{}, err
	}
	if s.nameTaken(field.Name, "") {
		return models.TemplateField{}, errs.NewValidationError("duplicate field name", field.Name)
	}

	if field.ID == "" {
		field.ID = "field-manual-" + uuid.New().String()[:8]
	}
	if field.Style == nil {
		style := manualFieldStyle
		field.Style = &style
	}
	if field.Category == "" {
		field.Category = models.FieldCategoryDynamic
	}
	if field.Type == "" {
		field.Type = models.FieldTypeText
	}
	field.PageIndex = s.pageIndex
	s.fields = append(s.fields, field)
	return field, nil
}

// UpdateField replaces the field with the same ID: rename, retype,
// numeric reposition, restyle.
func (s *Session) UpdateField(field models.TemplateField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRefine {
		return fmt.Errorf("cannot edit fields in state %s", s.state)
	}
	if err := field.Validate(); err != nil {
		return err
	}
	if s.nameTaken(field.Name, field.ID) {
		return errs.NewValidationError("duplicate field name", field.Name)
	}

	for i := range s.fields {
		if s.fields[i].ID == field.ID {
			field.PageIndex = s.fields[i].PageIndex
			s.fields[i] = field
			return nil
		}
	}
	return fmt.Errorf("no field with id %q", field.ID)
}

func (s *Session) RemoveField(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRefine {
		return fmt.Errorf("cannot edit fields in state %s", s.state)
	}
	for i := range s.fields {
		if s.fields[i].ID == id {
			s.fields = append(s.fields[:i], s.fields[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no field with id %q", id)
}

func (s *Session) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateScanning {
		return fmt.Errorf("cannot edit while scanning")
	}
	s.name = name
	return nil
}

// SaveInput collects the metadata Save needs beyond the session state.
type SaveInput struct {
	Description string
	Category    string
	SubCategory string
	Tags        []string
	Content     string
	Author      string
}

// Save validates the data-model invariants and materializes the session
// as a version-1 template with a single history entry. The caller owns
// persistence of the returned template and page images.
func (s *Session) Save(in SaveInput) (*models.DocumentTemplate, []raster.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRefine {
		return nil, nil, fmt.Errorf("cannot save in state %s", s.state)
	}
	if strings.TrimSpace(s.name) == "" {
		return nil, nil, errs.NewValidationError("template name is empty")
	}

	author := in.Author
	if author == "" {
		author = "System"
	}
	now := time.Now().UTC()

	tmpl := &models.DocumentTemplate{
		ID:          "tmpl-" + uuid.New().String(),
		WorkspaceID: s.WorkspaceID,
		Name:        s.name,
		Description: in.Description,
		Category:    in.Category,
		SubCategory: in.SubCategory,
		Tags:        in.Tags,
		Content:     in.Content,
		Fields:      append([]models.TemplateField(nil), s.fields...),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
		History: []models.VersionHistoryEntry{{
			ID:      "v1-" + uuid.New().String()[:8],
			Version: "1.0.0",
			Date:    now,
			Author:  author,
			Changes: "initial creation",
		}},
	}
	if tmpl.Tags == nil {
		tmpl.Tags = []string{}
	}
	if err := tmpl.Validate(); err != nil {
		return nil, nil, err
	}

	pages := make([]raster.Page, len(s.pages))
	copy(pages, s.pages)
	return tmpl, pages, nil
}

func (s *Session) nameTaken(name, exceptID string) bool {
	for _, f := range s.fields {
		if f.Name == name && f.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Session) dedupeName(field models.TemplateField) models.TemplateField {
	if !s.nameTaken(field.Name, field.ID) {
		return field
	}
	base := field.Name
	for i := 2; ; i++ {
		field.Name = fmt.Sprintf("%s_%d", base, i)
		if !s.nameTaken(field.Name, field.ID) {
			return field
		}
	}
}
