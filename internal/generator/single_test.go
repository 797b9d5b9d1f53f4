package generator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/models"
	"DF-FIDELITY/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func masterFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func templateFixture() *models.DocumentTemplate {
	return &models.DocumentTemplate{
		ID:   "tmpl-1",
		Name: "Invoice",
		Fields: []models.TemplateField{
			{
				ID: "f1", Name: "Client Name", Type: models.FieldTypeText,
				Category: models.FieldCategoryDynamic, Required: true,
				Rect: &models.BoundingBox{YMin: 100, XMin: 100, YMax: 200, XMax: 900},
			},
			{
				ID: "f2", Name: "Date", Type: models.FieldTypeDate,
				Category: models.FieldCategoryDynamic, Required: true,
				Rect: &models.BoundingBox{YMin: 300, XMin: 100, YMax: 400, XMax: 500},
			},
			{
				ID: "f3", Name: "Notes", Type: models.FieldTypeText,
				Category: models.FieldCategoryDynamic, Required: false,
				DefaultValue: "n/a",
				Rect:         &models.BoundingBox{YMin: 500, XMin: 100, YMax: 600, XMax: 900},
			},
		},
	}
}

func TestNewSessionInitializesDefaults(t *testing.T) {
	session, err := NewSession(templateFixture(), render.NewRenderer())
	require.NoError(t, err)

	values := session.Values()
	assert.Equal(t, "", values["Client Name"])
	assert.Equal(t, "n/a", values["Notes"], "defaults are pre-applied")
}

func TestNewSessionRejectsDuplicateFieldNames(t *testing.T) {
	tmpl := templateFixture()
	tmpl.Fields = append(tmpl.Fields, tmpl.Fields[0])

	_, err := NewSession(tmpl, render.NewRenderer())
	require.Error(t, err)
}

func TestSessionSnapshotsTemplate(t *testing.T) {
	tmpl := templateFixture()
	session, err := NewSession(tmpl, render.NewRenderer())
	require.NoError(t, err)

	tmpl.Fields[0].Name = "Renamed After Start"
	assert.Equal(t, "Client Name", session.Template().Fields[0].Name, "concurrent edits are not observed")
}

func TestSetValueUnknownField(t *testing.T) {
	session, err := NewSession(templateFixture(), render.NewRenderer())
	require.NoError(t, err)

	err = session.SetValue("No Such Field", "x")
	var validationErr *errs.ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestMissingRequired(t *testing.T) {
	session, err := NewSession(templateFixture(), render.NewRenderer())
	require.NoError(t, err)

	require.NoError(t, session.SetValue("Client Name", "ACME"))
	assert.Equal(t, []string{"Date"}, session.MissingRequired())

	require.NoError(t, session.SetValue("Date", "2026-01-15"))
	assert.Empty(t, session.MissingRequired())
}

func TestExportBlockedUntilRequiredFilled(t *testing.T) {
	session, err := NewSession(templateFixture(), render.NewRenderer())
	require.NoError(t, err)
	master := masterFixture(t)

	_, err = session.Export(master, 0)
	var validationErr *errs.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.ElementsMatch(t, []string{"Client Name", "Date"}, validationErr.Fields)

	// Preview is never blocked.
	_, err = session.Preview(master, 0, "")
	require.NoError(t, err)

	require.NoError(t, session.SetValue("Client Name", "ACME"))
	require.NoError(t, session.SetValue("Date", "2026-01-15"))
	_, err = session.Export(master, 0)
	require.NoError(t, err)
}

func TestAIFillMergesOnlyKnownNonEmpty(t *testing.T) {
	session, err := NewSession(templateFixture(), render.NewRenderer())
	require.NoError(t, err)
	require.NoError(t, session.SetValue("Client Name", "Manual Entry"))

	filler := fillerFunc(func(ctx context.Context, templateName string, fieldNames []string, instruction string) map[string]string {
		return map[string]string{
			"Date":        "2026-02-01",
			"Client Name": "",          // empty suggestions never clobber
			"Invented":    "discarded", // unknown fields are dropped
		}
	})
	session.AIFill(context.Background(), filler, "fill from the order email")

	values := session.Values()
	assert.Equal(t, "Manual Entry", values["Client Name"])
	assert.Equal(t, "2026-02-01", values["Date"])
	_, exists := values["Invented"]
	assert.False(t, exists)
}

type fillerFunc func(ctx context.Context, templateName string, fieldNames []string, instruction string) map[string]string

func (f fillerFunc) FillForm(ctx context.Context, templateName string, fieldNames []string, instruction string) map[string]string {
	return f(ctx, templateName, fieldNames, instruction)
}

func TestExportDoc(t *testing.T) {
	tmpl := templateFixture()
	tmpl.Content = "<p>Dear {{Client Name}}, due {{Date}}. Notes: {{Notes}}</p>"

	session, err := NewSession(tmpl, render.NewRenderer())
	require.NoError(t, err)
	require.NoError(t, session.SetValue("Client Name", "ACME"))
	require.NoError(t, session.SetValue("Date", "2026-01-15"))

	doc, err := session.ExportDoc()
	require.NoError(t, err)
	assert.True(t, strings.Contains(doc, "Dear ACME, due 2026-01-15. Notes: n/a"))
	assert.True(t, strings.Contains(doc, "schemas-microsoft-com:office:word"))
}
