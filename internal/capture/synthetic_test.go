package capture

import (
	"context"
	"testing"
	"time"
)

func TestSynthetic_ProducesRequestedFrames(t *testing.T) {
	src := NewSynthetic(64, 48, 60, 5)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	var frames []Frame
	for f := range src.Frames() {
		frames = append(frames, f)
	}

	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Seq != uint64(i+1) {
			t.Errorf("frame %d has seq %d", i, f.Seq)
		}
		if f.Image.Bounds().Dx() != 64 || f.Image.Bounds().Dy() != 48 {
			t.Errorf("frame %d has bounds %v", i, f.Image.Bounds())
		}
	}
}

func TestSynthetic_FramesDiffer(t *testing.T) {
	src := NewSynthetic(64, 48, 60, 2)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	first := <-src.Frames()
	second := <-src.Frames()

	if first.Image == second.Image {
		t.Error("frames must not share pixel buffers")
	}
}

func TestSynthetic_StopEndsStream(t *testing.T) {
	src := NewSynthetic(32, 32, 60, 0)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-src.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-src.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel not closed after stop")
		}
	}
}
