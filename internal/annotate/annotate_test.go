package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/classeye/classeye/internal/vision"
)

func solidFrame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, color.RGBA{R: 50, G: 50, B: 50, A: 255})
		}
	}
	return img
}

func TestFaceLabel(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       string
	}{
		{"Jana Novakova", 0.87, "Jana Novakova (87%)"},
		{"Bob", 1.0, "Bob (100%)"},
		{"Eva", 0.555, "Eva (56%)"},
	}

	for _, tt := range tests {
		if got := FaceLabel(tt.name, tt.confidence); got != tt.want {
			t.Errorf("FaceLabel(%q, %v) = %q, want %q", tt.name, tt.confidence, got, tt.want)
		}
	}
}

func TestBanner(t *testing.T) {
	if got := Banner(12, 5); got != "Students: 12 | Marked: 5" {
		t.Errorf("unexpected banner %q", got)
	}
}

func TestRender_DoesNotModifySource(t *testing.T) {
	src := solidFrame(120, 90)
	before := src.RGBAAt(30, 20)

	Render(src, []Overlay{{
		Box:     vision.Box{X1: 20, Y1: 10, X2: 80, Y2: 70},
		Label:   "Alice (90%)",
		Matched: true,
	}}, "Students: 1 | Marked: 0")

	if src.RGBAAt(30, 20) != before {
		t.Error("source frame was modified")
	}
}

func TestRender_DrawsMatchedBoxGreen(t *testing.T) {
	src := solidFrame(120, 90)

	out := Render(src, []Overlay{{
		Box:     vision.Box{X1: 20, Y1: 10, X2: 80, Y2: 70},
		Label:   "Alice (90%)",
		Matched: true,
	}}, "")

	// Top edge of the box carries the matched color.
	if got := out.RGBAAt(40, 10); got != matchedColor {
		t.Errorf("expected matched color on box edge, got %v", got)
	}
}

func TestRender_DrawsUnknownBoxRed(t *testing.T) {
	src := solidFrame(120, 90)

	out := Render(src, []Overlay{{
		Box:   vision.Box{X1: 20, Y1: 10, X2: 80, Y2: 70},
		Label: UnknownLabel,
	}}, "")

	if got := out.RGBAAt(40, 10); got != unknownColor {
		t.Errorf("expected unknown color on box edge, got %v", got)
	}
}

func TestRender_BoxOutsideFrame(t *testing.T) {
	src := solidFrame(60, 40)

	// Must not panic on boxes that exceed the frame.
	out := Render(src, []Overlay{{
		Box:   vision.Box{X1: -20, Y1: -10, X2: 200, Y2: 300},
		Label: UnknownLabel,
	}}, "Students: 0 | Marked: 0")

	if out.Bounds() != src.Bounds() {
		t.Error("annotated frame changed dimensions")
	}
}

func TestRender_BannerDrawn(t *testing.T) {
	src := solidFrame(200, 80)

	out := Render(src, nil, "Students: 9 | Marked: 3")

	// The banner background covers the top-left corner area.
	if got := out.RGBAAt(12, 12); got != bannerColor {
		t.Errorf("expected banner background, got %v", got)
	}
}

func TestRender_NoOverlaysCopiesFrame(t *testing.T) {
	src := solidFrame(60, 40)

	out := Render(src, nil, "")

	if out.RGBAAt(30, 20) != src.RGBAAt(30, 20) {
		t.Error("plain copy changed pixel values")
	}
}
