// Package capture acquires live video frames for the recognition
// pipeline. Sources deliver decoded frames over a channel and close
// it when the stream ends, so consumers see device loss as a normal
// end-of-stream.
package capture

import (
	"context"
	"image"
	"time"
)

// Frame is one decoded video frame.
type Frame struct {
	Seq   uint64
	Time  time.Time
	Image image.Image
}

// Stats describes a source's progress.
type Stats struct {
	FramesRead    uint64
	FramesDropped uint64
	StartedAt     time.Time
}

// Source is a single video stream. Start acquires the underlying
// device and must be called exactly once; a Start error means the
// resource could not be acquired at all. Frames returns the delivery
// channel, closed when the stream ends for any reason. Stop releases
// the device and is safe to call more than once.
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Stop() error
	Stats() Stats
}
