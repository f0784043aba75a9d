package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "image/jpeg"
)

// Netcam reads an MJPEG stream (multipart/x-mixed-replace) from a
// network camera over HTTP.
type Netcam struct {
	url    string
	client *http.Client

	frames chan Frame
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	started   time.Time
	seq       atomic.Uint64
	read      atomic.Uint64
	dropped   atomic.Uint64
	startedOK bool
}

// NewNetcam creates a source for the camera at url. The stream is not
// opened until Start.
func NewNetcam(url string) *Netcam {
	return &Netcam{
		url: url,
		// No overall timeout: the response body is an endless stream.
		client: &http.Client{},
		frames: make(chan Frame, 4),
	}
}

// Start opens the camera stream. Fails when the URL is unreachable,
// answers with a non-200 status, or does not serve an MJPEG multipart
// stream.
func (n *Netcam) Start(ctx context.Context) error {
	if n.url == "" {
		return errors.New("camera URL not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open camera stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("camera does not serve an MJPEG stream (content type %q)", resp.Header.Get("Content-Type"))
	}

	n.started = time.Now()
	n.startedOK = true
	reader := multipart.NewReader(resp.Body, params["boundary"])

	n.wg.Add(1)
	go n.readLoop(ctx, resp.Body, reader)

	return nil
}

// readLoop decodes stream parts into frames until the camera
// disconnects or the context is cancelled, then closes the frame
// channel.
func (n *Netcam) readLoop(ctx context.Context, body io.Closer, reader *multipart.Reader) {
	defer n.wg.Done()
	defer close(n.frames)
	defer body.Close()

	for {
		part, err := reader.NextPart()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				slog.Warn("camera stream ended", "url", n.url, "err", err)
			}
			return
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("camera stream read failed", "url", n.url, "err", err)
			}
			return
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			// A torn part; keep reading.
			continue
		}

		frame := Frame{
			Seq:   n.seq.Add(1),
			Time:  time.Now(),
			Image: img,
		}
		select {
		case n.frames <- frame:
			n.read.Add(1)
		case <-ctx.Done():
			return
		default:
			// Consumer is behind; stale frames are worthless.
			n.dropped.Add(1)
		}
	}
}

// Frames returns the frame delivery channel.
func (n *Netcam) Frames() <-chan Frame {
	return n.frames
}

// Stop releases the camera connection. Idempotent.
func (n *Netcam) Stop() error {
	n.once.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		if n.startedOK {
			n.wg.Wait()
		}
	})
	return nil
}

// Stats returns stream counters.
func (n *Netcam) Stats() Stats {
	return Stats{
		FramesRead:    n.read.Load(),
		FramesDropped: n.dropped.Load(),
		StartedAt:     n.started,
	}
}
