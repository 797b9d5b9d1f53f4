package generator

import (
	"context"
	"sort"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/render"
)

// FormFiller is the slice of the detection gateway used for AI-assisted
// fill.
type FormFiller interface {
	FillForm(ctx context.Context, templateName string, fieldNames []string, instruction string) map[string]string
}

// Session binds a value map to a template for single-document
// generation. The template is snapshotted at session start: concurrent
// edits to the stored template are deliberately not observed.
type Session struct {
	template models.DocumentTemplate
	fields   map[string]models.TemplateField
	values   map[string]string
	renderer *render.Renderer
}

func NewSession(tmpl *models.DocumentTemplate, renderer *render.Renderer) (*Session, error) {
	index, err := tmpl.FieldIndex()
	if err != nil {
		return nil, err
	}

	snapshot := *tmpl
	snapshot.Fields = append([]models.TemplateField(nil), tmpl.Fields...)

	values := make(map[string]string, len(snapshot.Fields))
	for _, f := range snapshot.Fields {
		values[f.Name] = f.DefaultValue
	}

	return &Session{
		template: snapshot,
		fields:   index,
		values:   values,
		renderer: renderer,
	}, nil
}

func (s *Session) Template() *models.DocumentTemplate { return &s.template }

func (s *Session) SetValue(fieldName, value string) error {
	if _, ok := s.fields[fieldName]; !ok {
		return errs.NewValidationError("unknown field", fieldName)
	}
	s.values[fieldName] = value
	return nil
}

func (s *Session) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// AIFill proposes values from a free-text instruction, scoped to the
// DYNAMIC field names only. The result is merged into the existing
// value map, never replacing it wholesale; a gateway failure yields an
// empty merge and the user keeps manual control.
func (s *Session) AIFill(ctx context.Context, filler FormFiller, instruction string) {
	suggested := filler.FillForm(ctx, s.template.Name, s.template.DynamicFieldNames(), instruction)
	for name, value := range suggested {
		if _, ok := s.fields[name]; ok && value != "" {
			s.values[name] = value
		}
	}
}

// MissingRequired lists required fields without a value, in a stable
// order for user-facing messages.
func (s *Session) MissingRequired() []string {
	var missing []string
	for _, f := range s.template.Fields {
		if f.Required && s.values[f.Name] == "" {
			missing = append(missing, f.Name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Preview renders the interactive overlay: empty fields show bracketed
// placeholders and the focused field is highlighted. No validation
// happens here; required-field checks belong to export time.
func (s *Session) Preview(masterPNG []byte, pageIndex int, focusedField string) ([]byte, error) {
	return s.renderer.Overlay(masterPNG, s.template.Fields, s.values, render.Options{
		PageIndex:    pageIndex,
		FocusedField: focusedField,
	})
}

// Export produces the final overlay artifact. It is blocked with an
// itemized list of missing required field names until all are
// satisfied, and placeholder styling is suppressed so empty optional
// fields never appear in the output.
func (s *Session) Export(masterPNG []byte, pageIndex int) ([]byte, error) {
	if missing := s.MissingRequired(); len(missing) > 0 {
		return nil, errs.NewValidationError("missing required fields", missing...)
	}
	return s.renderer.Overlay(masterPNG, s.template.Fields, s.values, render.Options{
		PageIndex: pageIndex,
		Export:    true,
	})
}

// ExportDoc produces the text-substitution artifact for templates with
// a text body, wrapped in the Word-compatible HTML envelope.
func (s *Session) ExportDoc() (string, error) {
	if missing := s.MissingRequired(); len(missing) > 0 {
		return "", errs.NewValidationError("missing required fields", missing...)
	}
	content := render.ReplaceContent(s.template.Content, s.template.Fields, s.values)
	return render.BuildDocHTML(content), nil
}
