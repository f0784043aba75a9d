// Package pipeline runs the per-session recognition loop: frames in,
// attendance records and an annotated MJPEG-ready frame sequence out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/classeye/classeye/internal/annotate"
	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/capture"
	"github.com/classeye/classeye/internal/match"
	"github.com/classeye/classeye/internal/roster"
	"github.com/classeye/classeye/internal/vision"
)

// State of a pipeline. The per-frame states cycle while the loop
// runs; Stopped is terminal.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateDetecting
	StateMatching
	StateAnnotating
	StatePublishing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateDetecting:
		return "detecting"
	case StateMatching:
		return "matching"
	case StateAnnotating:
		return "annotating"
	case StatePublishing:
		return "publishing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config carries the pipeline tunables.
type Config struct {
	FrameSkip    int
	Downscale    float64
	JPEGQuality  int
	BufferFrames int
}

// OutputFrame is one annotated, encoded frame ready for the stream,
// together with the detections drawn on it.
type OutputFrame struct {
	Seq   uint64
	Time  time.Time
	JPEG  []byte
	Faces []annotate.Overlay
}

// Pipeline drives one class session: it pulls frames from the capture
// source, runs decimated detection and matching against the roster
// cache, marks attendance through the debouncer, and emits annotated
// frames. The output channel is closed exactly once, when the
// pipeline stops; it is never restarted.
type Pipeline struct {
	classID  string
	source   capture.Source
	detector vision.Detector
	cache    *roster.Cache
	matcher  *match.Matcher
	sink     attendance.Sink
	pub      attendance.Publisher
	cfg      Config
	log      *slog.Logger

	out   chan OutputFrame
	state atomic.Int32
}

// New assembles a pipeline for one session. Run must be called
// exactly once.
func New(classID string, source capture.Source, detector vision.Detector, cache *roster.Cache,
	matcher *match.Matcher, sink attendance.Sink, pub attendance.Publisher, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.FrameSkip < 1 {
		cfg.FrameSkip = 1
	}
	if cfg.BufferFrames < 1 {
		cfg.BufferFrames = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		classID:  classID,
		source:   source,
		detector: detector,
		cache:    cache,
		matcher:  matcher,
		sink:     sink,
		pub:      pub,
		cfg:      cfg,
		log:      log.With("class", classID),
		out:      make(chan OutputFrame, cfg.BufferFrames),
	}
}

// Frames returns the output sequence. It is closed when the pipeline
// stops and must be consumed by a single reader; production pauses
// while nobody reads.
func (p *Pipeline) Frames() <-chan OutputFrame {
	return p.out
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Run executes the session loop until the capture stream ends or the
// context is cancelled. A capture source that cannot be acquired is
// fatal to the session: the pipeline transitions straight to Stopped,
// emits zero frames, and returns a ResourceUnavailable error. All
// later failures are per-frame and non-fatal.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.state.Store(int32(StateStopped))
	defer close(p.out)

	p.state.Store(int32(StateCapturing))
	if err := p.source.Start(ctx); err != nil {
		wrapped := fmt.Errorf("%w: %v", attendance.ErrResourceUnavailable, err)
		p.log.Error("failed to acquire capture source", "err", wrapped)
		return wrapped
	}
	defer p.source.Stop()

	p.log.Info("session pipeline started",
		"frame_skip", p.cfg.FrameSkip, "downscale", p.cfg.Downscale)

	var seq uint64
	var sticky []annotate.Overlay

	for {
		p.state.Store(int32(StateCapturing))

		var frame capture.Frame
		var ok bool
		select {
		case <-ctx.Done():
			p.log.Info("session pipeline stopped", "frames", seq)
			return nil
		case frame, ok = <-p.source.Frames():
			if !ok {
				p.log.Info("capture stream ended", "frames", seq)
				return nil
			}
		}

		seq++
		if seq%uint64(p.cfg.FrameSkip) == 0 {
			detections, err := p.detectAndMatch(ctx, frame)
			if err != nil {
				// Keep the previous detections on screen and move on.
				p.log.Warn("frame skipped", "seq", seq, "err", err)
			} else {
				sticky = detections
			}
		}

		p.state.Store(int32(StateAnnotating))
		size, marked := p.cache.Counts()
		annotated := annotate.Render(frame.Image, sticky, annotate.Banner(size, marked))

		p.state.Store(int32(StatePublishing))
		encoded, err := vision.EncodeJPEG(annotated, p.cfg.JPEGQuality)
		if err != nil {
			p.log.Warn("frame encode failed", "seq", seq, "err", err)
			continue
		}

		out := OutputFrame{Seq: seq, Time: frame.Time, JPEG: encoded, Faces: sticky}
		select {
		case p.out <- out:
		case <-ctx.Done():
			p.log.Info("session pipeline stopped", "frames", seq)
			return nil
		}
	}
}

// detectAndMatch runs the expensive path for one frame: downscale,
// detect, match every face against a roster snapshot, and dispatch
// attendance side effects for fresh marks. The roster lock is only
// taken inside Snapshot and TryMark; detection and the sink/publisher
// calls run outside it.
func (p *Pipeline) detectAndMatch(ctx context.Context, frame capture.Frame) ([]annotate.Overlay, error) {
	p.state.Store(int32(StateDetecting))

	small := vision.Downscale(frame.Image, p.cfg.Downscale)
	encoded, err := vision.EncodeJPEG(small, p.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", attendance.ErrDetection, err)
	}

	faces, err := p.detector.Detect(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attendance.ErrDetection, err)
	}

	p.state.Store(int32(StateMatching))

	snapshot := p.cache.Snapshot()
	bounds := frame.Image.Bounds()
	rescale := 1.0
	if p.cfg.Downscale > 0 && p.cfg.Downscale < 1 {
		rescale = 1 / p.cfg.Downscale
	}

	overlays := make([]annotate.Overlay, 0, len(faces))
	for _, face := range faces {
		box := face.Box.Scale(rescale).Clamp(bounds.Dx(), bounds.Dy())

		res := p.matcher.Match(toFloat64(face.Embedding), snapshot)
		if !res.Matched {
			overlays = append(overlays, annotate.Overlay{Box: box, Label: annotate.UnknownLabel})
			continue
		}

		overlays = append(overlays, annotate.Overlay{
			Box:     box,
			Label:   annotate.FaceLabel(res.Name, res.Confidence),
			Matched: true,
		})

		if p.cache.TryMark(res.StudentID) {
			p.dispatch(ctx, res, frame.Time)
		}
	}
	return overlays, nil
}

// dispatch persists and broadcasts one fresh mark, synchronously and
// in order, so the record exists before the next frame is processed.
// Failures are logged and never interrupt the stream.
func (p *Pipeline) dispatch(ctx context.Context, res match.Result, at time.Time) {
	rec := attendance.NewAutomatic(p.classID, res.StudentID, res.Name, res.Confidence, at)

	if err := p.sink.Record(ctx, rec); err != nil {
		p.log.Error("attendance mark lost",
			"student", res.StudentID, "err", fmt.Errorf("%w: %v", attendance.ErrPersistence, err))
	} else {
		p.log.Info("attendance marked",
			"student", res.StudentID, "name", res.Name, "confidence", res.Confidence)
	}

	p.pub.Publish(attendance.TopicNewAttendance, attendance.Event{
		Name:       res.Name,
		ID:         res.StudentID,
		Time:       rec.Time,
		Confidence: res.Confidence,
	})
}

func toFloat64(e []float32) []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}
