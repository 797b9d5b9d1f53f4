package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type faceVariant int

const (
	variantRegular faceVariant = iota
	variantBold
	variantItalic
)

type faceKey struct {
	variant faceVariant
	sizePx  int
}

// faceCache memoizes opentype faces per variant and quantized pixel
// size. Field styles carry arbitrary font families, but the overlay
// uses the bundled Go fonts so output never depends on host fonts.
type faceCache struct {
	mu    sync.Mutex
	fonts map[faceVariant]*opentype.Font
	faces map[faceKey]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{
		fonts: make(map[faceVariant]*opentype.Font),
		faces: make(map[faceKey]font.Face),
	}
}

func (c *faceCache) face(variant faceVariant, sizePx float64) (font.Face, error) {
	size := int(sizePx)
	if size < 6 {
		size = 6
	}
	key := faceKey{variant: variant, sizePx: size}

	c.mu.Lock()
	defer c.mu.Unlock()

	if face, ok := c.faces[key]; ok {
		return face, nil
	}

	parsed, ok := c.fonts[variant]
	if !ok {
		var err error
		parsed, err = opentype.Parse(fontData(variant))
		if err != nil {
			return nil, fmt.Errorf("failed to parse overlay font: %w", err)
		}
		c.fonts[variant] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build overlay face: %w", err)
	}

	c.faces[key] = face
	return face, nil
}

func fontData(variant faceVariant) []byte {
	switch variant {
	case variantBold:
		return gobold.TTF
	case variantItalic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}
