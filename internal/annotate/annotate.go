// Package annotate draws recognition results onto video frames: a box
// per detected face with a name or Unknown label, and the session
// counters in the corner.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/classeye/classeye/internal/vision"
)

// UnknownLabel is rendered for faces the matcher could not attribute.
const UnknownLabel = "Unknown"

const (
	lineWidth   = 2
	stripHeight = 18
	textPad     = 4
)

var (
	matchedColor = color.RGBA{R: 0, G: 180, B: 60, A: 255}
	unknownColor = color.RGBA{R: 210, G: 40, B: 40, A: 255}
	bannerColor  = color.RGBA{R: 16, G: 16, B: 16, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Overlay is one face to draw.
type Overlay struct {
	Box     vision.Box
	Label   string
	Matched bool
}

// FaceLabel formats the label for a matched face.
func FaceLabel(name string, confidence float64) string {
	return fmt.Sprintf("%s (%.0f%%)", name, confidence*100)
}

// Banner formats the session counter overlay.
func Banner(rosterSize, marked int) string {
	return fmt.Sprintf("Students: %d | Marked: %d", rosterSize, marked)
}

// Render draws the overlays and banner onto a copy of the frame. The
// source image is never modified.
func Render(src image.Image, overlays []Overlay, banner string) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	width, height := bounds.Dx(), bounds.Dy()
	for _, o := range overlays {
		c := unknownColor
		if o.Matched {
			c = matchedColor
		}
		box := o.Box.Clamp(width, height)
		drawBox(dst, box, c)

		// Name strip along the bottom edge of the box.
		stripTop := box.Y2 - stripHeight
		if stripTop < box.Y1 {
			stripTop = box.Y1
		}
		fillRect(dst, box.X1, stripTop, box.X2, box.Y2, c)
		drawText(dst, o.Label, box.X1+textPad, box.Y2-textPad)
	}

	if banner != "" {
		w := measureText(banner) + 2*textPad
		fillRect(dst, 8, 8, 8+w, 8+stripHeight, bannerColor)
		drawText(dst, banner, 8+textPad, 8+stripHeight-textPad)
	}

	return dst
}

// drawBox draws the four edges of a rectangle.
func drawBox(dst *image.RGBA, b vision.Box, c color.RGBA) {
	for w := range lineWidth {
		drawHLine(dst, b.X1, b.X2, b.Y1+w, c)
		drawHLine(dst, b.X1, b.X2, b.Y2-w, c)
		drawVLine(dst, b.Y1, b.Y2, b.X1+w, c)
		drawVLine(dst, b.Y1, b.Y2, b.X2-w, c)
	}
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < 0 || y >= bounds.Dy() {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= 0 && x < bounds.Dx() {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < 0 || x >= bounds.Dx() {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= 0 && y < bounds.Dy() {
			dst.Set(x, y, c)
		}
	}
}

// fillRect fills a rectangle, clipped to the image.
func fillRect(dst *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	bounds := dst.Bounds()
	for y := y1; y < y2; y++ {
		if y < 0 || y >= bounds.Dy() {
			continue
		}
		for x := x1; x < x2; x++ {
			if x >= 0 && x < bounds.Dx() {
				dst.Set(x, y, c)
			}
		}
	}
}

// drawText renders a label with its baseline at (x, y).
func drawText(dst *image.RGBA, s string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// measureText returns the pixel width of a label.
func measureText(s string) int {
	d := &font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}
