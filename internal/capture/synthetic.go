package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// Synthetic generates frames locally. Used for development without a
// camera and as the stream backend in tests.
type Synthetic struct {
	width  int
	height int
	fps    int
	total  int // <= 0 means unlimited

	frames chan Frame
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	started time.Time
	read    atomic.Uint64
}

// NewSynthetic creates a generated source. total limits how many
// frames are produced before the stream ends; zero or negative keeps
// producing until Stop.
func NewSynthetic(width, height, fps, total int) *Synthetic {
	if fps <= 0 {
		fps = 15
	}
	return &Synthetic{
		width:  width,
		height: height,
		fps:    fps,
		total:  total,
		frames: make(chan Frame, 4),
	}
}

// Start begins frame production.
func (s *Synthetic) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = time.Now()

	s.wg.Add(1)
	go s.produce(ctx)
	return nil
}

func (s *Synthetic) produce(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.frames)

	ticker := time.NewTicker(time.Second / time.Duration(s.fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		seq++
		frame := Frame{
			Seq:   seq,
			Time:  time.Now(),
			Image: s.render(seq),
		}
		select {
		case s.frames <- frame:
			s.read.Add(1)
		case <-ctx.Done():
			return
		}

		if s.total > 0 && seq >= uint64(s.total) {
			return
		}
	}
}

// render draws a gradient with a square that moves with the sequence
// number, so consecutive frames differ.
func (s *Synthetic) render(seq uint64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(s.width, 1)),
				G: uint8(y * 255 / max(s.height, 1)),
				B: 96,
				A: 255,
			})
		}
	}
	size := max(s.width/8, 4)
	offset := int(seq) * 3 % max(s.width-size, 1)
	for y := 0; y < size && y < s.height; y++ {
		for x := offset; x < offset+size && x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

// Frames returns the frame delivery channel.
func (s *Synthetic) Frames() <-chan Frame {
	return s.frames
}

// Stop ends production. Idempotent.
func (s *Synthetic) Stop() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
	return nil
}

// Stats returns stream counters.
func (s *Synthetic) Stats() Stats {
	return Stats{
		FramesRead: s.read.Load(),
		StartedAt:  s.started,
	}
}
