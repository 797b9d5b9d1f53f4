// Package geometry maps normalized detection coordinates to render
// rectangles. The detection space is a fixed 1000x1000 grid, so the
// same field definition renders correctly at any display size or print
// DPI as long as the master image and the overlay share a container.
package geometry

import (
	"image"

	"DF-FIDELITY/internal/models"
)

// RenderRect positions a field relative to its container, in percent.
type RenderRect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToRenderRect converts a normalized box to container-relative
// percentages. Each percentage is value/10 since the detection space is
// 0-1000 and percentages are 0-100.
func ToRenderRect(box models.BoundingBox) RenderRect {
	return RenderRect{
		Top:    float64(box.YMin) / 10,
		Left:   float64(box.XMin) / 10,
		Width:  float64(box.XMax-box.XMin) / 10,
		Height: float64(box.YMax-box.YMin) / 10,
	}
}

// PixelRect projects a normalized box onto an image of the given pixel
// dimensions. Rounding truncates toward zero on the origin and rounds
// the far edge up from the same projection, so adjacent boxes never
// overlap by more than a pixel.
func PixelRect(box models.BoundingBox, width, height int) image.Rectangle {
	x0 := box.XMin * width / 1000
	y0 := box.YMin * height / 1000
	x1 := box.XMax * width / 1000
	y1 := box.YMax * height / 1000
	return image.Rect(x0, y0, x1, y1)
}
