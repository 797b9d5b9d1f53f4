// Package render composites field values over a template's master image
// and substitutes placeholders in text-mode content. Rendering is
// deterministic: an identical template and value map always produce
// byte-identical output.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"DF-FIDELITY/internal/errs"
	"DF-FIDELITY/internal/geometry"
	"DF-FIDELITY/internal/models"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Options controls one overlay pass.
type Options struct {
	// PageIndex selects which page's fields to composite.
	PageIndex int
	// Export suppresses the bracketed placeholder for empty fields so
	// they never appear in a final artifact.
	Export bool
	// FocusedField, when set, highlights that field's rectangle for
	// interactive preview.
	FocusedField string
}

var (
	defaultTextColor     = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
	placeholderTextColor = color.RGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0x80}
	focusHighlight       = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0x30}
)

// Renderer draws overlays. It is safe for concurrent use; the face
// cache is guarded internally.
type Renderer struct {
	faces *faceCache
}

func NewRenderer() *Renderer {
	return &Renderer{faces: newFaceCache()}
}

// Overlay renders the filled artifact: the master image as base layer
// with one absolutely positioned text node per field rectangle. Empty
// values render as a bracketed placeholder in a muted style unless the
// pass is export-targeted.
func (r *Renderer) Overlay(masterPNG []byte, fields []models.TemplateField, values map[string]string, opts Options) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(masterPNG))
	if err != nil {
		return nil, errs.NewRenderError("master image is unreadable", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, field := range fields {
		if field.Rect == nil || field.PageIndex != opts.PageIndex {
			continue
		}
		if err := field.Rect.Validate(); err != nil {
			return nil, errs.NewRenderError(fmt.Sprintf("field %q has an invalid rectangle", field.Name), err)
		}
		if err := r.drawField(canvas, field, values[field.Name], opts); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, errs.NewRenderError("failed to encode overlay", err)
	}
	return out.Bytes(), nil
}

func (r *Renderer) drawField(canvas *image.RGBA, field models.TemplateField, value string, opts Options) error {
	imgW := canvas.Bounds().Dx()
	imgH := canvas.Bounds().Dy()
	rect := geometry.PixelRect(*field.Rect, imgW, imgH)

	if opts.FocusedField != "" && opts.FocusedField == field.Name {
		draw.Draw(canvas, rect, image.NewUniform(focusHighlight), image.Point{}, draw.Over)
	}

	text := value
	placeholder := false
	if text == "" {
		if opts.Export {
			return nil
		}
		text = "[" + field.Name + "]"
		placeholder = true
	}

	style := resolveStyle(field.Style, imgW)
	col := style.color
	variant := style.variant
	if placeholder {
		col = placeholderTextColor
		variant = variantItalic
	}

	face, err := r.faces.face(variant, style.sizePx)
	if err != nil {
		return errs.NewRenderError("failed to load overlay font", err)
	}

	clip, ok := canvas.SubImage(rect).(*image.RGBA)
	if !ok {
		return nil // rect fully outside the canvas
	}

	drawer := &font.Drawer{
		Dst:  clip,
		Src:  image.NewUniform(col),
		Face: face,
	}

	metrics := face.Metrics()
	x := textOrigin(drawer, text, rect, style.align)
	// Baseline vertically centers the glyph box inside the field rect.
	y := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2

	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)
	return nil
}

func textOrigin(d *font.Drawer, text string, rect image.Rectangle, align string) int {
	const pad = 2
	width := d.MeasureString(text).Ceil()
	switch align {
	case "center":
		return rect.Min.X + (rect.Dx()-width)/2
	case "right":
		return rect.Max.X - width - pad
	default:
		return rect.Min.X + pad
	}
}

type resolvedStyle struct {
	color   color.Color
	sizePx  float64
	align   string
	variant faceVariant
}

// resolveStyle applies the renderer defaults: bold, left-aligned,
// near-black text of a relative size scaled to the image width.
func resolveStyle(style *models.FieldStyle, imgW int) resolvedStyle {
	resolved := resolvedStyle{
		color:   defaultTextColor,
		sizePx:  float64(imgW) * 0.018,
		align:   "left",
		variant: variantBold,
	}
	if style == nil {
		return resolved
	}

	if c, ok := parseHexColor(style.Color); ok {
		resolved.color = c
	}
	if px, ok := parseFontSize(style.FontSize, imgW); ok {
		resolved.sizePx = px
	}
	if style.TextAlign == "center" || style.TextAlign == "right" {
		resolved.align = style.TextAlign
	}
	if !isBoldWeight(style.FontWeight) {
		resolved.variant = variantRegular
	}
	return resolved
}

func isBoldWeight(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	switch w {
	case "", "bold", "bolder":
		return true
	}
	if n, err := strconv.Atoi(w); err == nil {
		return n >= 600
	}
	return false
}

// parseFontSize understands the size vocabularies the detection service
// emits. Units are interpreted relative to the master width: vw is a
// percentage of it, px assumes the original 1000px reference render,
// and pt assumes an A4-width (595pt) master page.
func parseFontSize(s string, imgW int) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	for _, unit := range []struct {
		suffix string
		scale  float64
	}{
		{"vw", float64(imgW) / 100},
		{"pt", float64(imgW) / 595},
		{"px", float64(imgW) / 1000},
	} {
		if v, ok := strings.CutSuffix(s, unit.suffix); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || n <= 0 {
				return 0, false
			}
			return n * unit.scale, true
		}
	}
	return 0, false
}

func parseHexColor(s string) (color.Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return nil, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, true
}
