package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"DF-FIDELITY/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func masterFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fieldFixture(name string) models.TemplateField {
	return models.TemplateField{
		ID:       "field-" + name,
		Name:     name,
		Type:     models.FieldTypeText,
		Category: models.FieldCategoryDynamic,
		Required: true,
		Rect:     &models.BoundingBox{YMin: 300, XMin: 100, YMax: 360, XMax: 900},
	}
}

func TestOverlayIsDeterministic(t *testing.T) {
	renderer := NewRenderer()
	master := masterFixture(t, 800, 600)
	fields := []models.TemplateField{fieldFixture("Client Name")}
	values := map[string]string{"Client Name": "ACME Corp"}

	first, err := renderer.Overlay(master, fields, values, Options{})
	require.NoError(t, err)
	second, err := renderer.Overlay(master, fields, values, Options{})
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must produce byte-identical output")
}

func TestOverlayDrawsValueText(t *testing.T) {
	renderer := NewRenderer()
	master := masterFixture(t, 800, 600)
	fields := []models.TemplateField{fieldFixture("Client Name")}

	blank, err := renderer.Overlay(master, nil, nil, Options{})
	require.NoError(t, err)
	filled, err := renderer.Overlay(master, fields, map[string]string{"Client Name": "ACME Corp"}, Options{})
	require.NoError(t, err)

	assert.NotEqual(t, blank, filled, "a filled field must alter pixels")
}

func TestOverlayExportSuppressesPlaceholders(t *testing.T) {
	renderer := NewRenderer()
	master := masterFixture(t, 800, 600)
	fields := []models.TemplateField{fieldFixture("Client Name")}

	blank, err := renderer.Overlay(master, nil, nil, Options{Export: true})
	require.NoError(t, err)
	exported, err := renderer.Overlay(master, fields, nil, Options{Export: true})
	require.NoError(t, err)
	previewed, err := renderer.Overlay(master, fields, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, blank, exported, "empty fields must leave no trace in an export")
	assert.NotEqual(t, blank, previewed, "previews show the bracketed placeholder")
}

func TestOverlaySkipsOtherPages(t *testing.T) {
	renderer := NewRenderer()
	master := masterFixture(t, 800, 600)

	field := fieldFixture("Client Name")
	field.PageIndex = 1

	blank, err := renderer.Overlay(master, nil, nil, Options{PageIndex: 0})
	require.NoError(t, err)
	rendered, err := renderer.Overlay(master, []models.TemplateField{field}, map[string]string{"Client Name": "ACME"}, Options{PageIndex: 0})
	require.NoError(t, err)

	assert.Equal(t, blank, rendered, "fields pinned to another page must not render")
}

func TestOverlayFocusHighlight(t *testing.T) {
	renderer := NewRenderer()
	master := masterFixture(t, 800, 600)
	fields := []models.TemplateField{fieldFixture("Client Name")}
	values := map[string]string{"Client Name": "ACME"}

	plain, err := renderer.Overlay(master, fields, values, Options{})
	require.NoError(t, err)
	focused, err := renderer.Overlay(master, fields, values, Options{FocusedField: "Client Name"})
	require.NoError(t, err)

	assert.NotEqual(t, plain, focused)
}

func TestOverlayRejectsCorruptMaster(t *testing.T) {
	renderer := NewRenderer()

	_, err := renderer.Overlay([]byte("not a png"), nil, nil, Options{})
	require.Error(t, err)
}

func TestOverlayRejectsInvalidRect(t *testing.T) {
	renderer := NewRenderer()
	master := masterFixture(t, 400, 300)

	field := fieldFixture("Bad")
	field.Rect = &models.BoundingBox{YMin: 500, XMin: 500, YMax: 100, XMax: 600}

	_, err := renderer.Overlay(master, []models.TemplateField{field}, nil, Options{})
	require.Error(t, err)
}

func TestResolveStyleDefaults(t *testing.T) {
	resolved := resolveStyle(nil, 1000)
	assert.Equal(t, 18.0, resolved.sizePx)
	assert.Equal(t, "left", resolved.align)
	assert.Equal(t, variantBold, resolved.variant)
}

func TestResolveStyleOverrides(t *testing.T) {
	resolved := resolveStyle(&models.FieldStyle{
		Color:      "#ff0000",
		FontSize:   "2vw",
		FontWeight: "400",
		TextAlign:  "center",
	}, 1000)

	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, resolved.color)
	assert.Equal(t, 20.0, resolved.sizePx)
	assert.Equal(t, "center", resolved.align)
	assert.Equal(t, variantRegular, resolved.variant)
}

func TestIsBoldWeight(t *testing.T) {
	assert.True(t, isBoldWeight(""))
	assert.True(t, isBoldWeight("bold"))
	assert.True(t, isBoldWeight("700"))
	assert.False(t, isBoldWeight("normal"))
	assert.False(t, isBoldWeight("400"))
}

func TestParseFontSize(t *testing.T) {
	px, ok := parseFontSize("1.8vw", 1000)
	require.True(t, ok)
	assert.InDelta(t, 18.0, px, 0.001)

	px, ok = parseFontSize("20px", 2000)
	require.True(t, ok)
	assert.InDelta(t, 40.0, px, 0.001)

	_, ok = parseFontSize("big", 1000)
	assert.False(t, ok)
	_, ok = parseFontSize("-3px", 1000)
	assert.False(t, ok)
}

func TestParseHexColor(t *testing.T) {
	c, ok := parseHexColor("#0f172a")
	require.True(t, ok)
	assert.Equal(t, color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}, c)

	c, ok = parseHexColor("f00")
	require.True(t, ok)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, c)

	_, ok = parseHexColor("#12")
	assert.False(t, ok)
	_, ok = parseHexColor("#zzzzzz")
	assert.False(t, ok)
}
