// Package vision talks to the external face detection/embedding
// service and carries the pixel-space geometry shared by the
// recognition pipeline and the annotator.
package vision

import "context"

// Box is a face bounding box in pixel coordinates: left, top, right,
// bottom.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Scale multiplies all coordinates by f. Used to map boxes detected
// on a downscaled frame back to source resolution.
func (b Box) Scale(f float64) Box {
	return Box{
		X1: int(float64(b.X1) * f),
		Y1: int(float64(b.Y1) * f),
		X2: int(float64(b.X2) * f),
		Y2: int(float64(b.Y2) * f),
	}
}

// Clamp limits the box to a width x height frame.
func (b Box) Clamp(width, height int) Box {
	if b.X1 < 0 {
		b.X1 = 0
	}
	if b.Y1 < 0 {
		b.Y1 = 0
	}
	if b.X2 > width {
		b.X2 = width
	}
	if b.Y2 > height {
		b.Y2 = height
	}
	return b
}

// Width returns the box width, never negative.
func (b Box) Width() int {
	if b.X2 < b.X1 {
		return 0
	}
	return b.X2 - b.X1
}

// Height returns the box height, never negative.
func (b Box) Height() int {
	if b.Y2 < b.Y1 {
		return 0
	}
	return b.Y2 - b.Y1
}

// Face is one detected face: where it is in the submitted image and
// the embedding computed from it.
type Face struct {
	Box       Box
	Embedding []float32
	Score     float64
}

// Detector detects faces in an encoded image and computes their
// embeddings.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Face, error)
}
