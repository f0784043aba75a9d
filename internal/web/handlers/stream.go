package handlers

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/pipeline"
)

// mjpegBoundary separates frames in the multipart video stream.
const mjpegBoundary = "frame"

// VideoHandler serves the annotated MJPEG stream for a class. Opening
// the stream starts recognition; closing it stops the session and
// releases the camera.
type VideoHandler struct {
	sessions *pipeline.Manager
	log      *slog.Logger
}

// NewVideoHandler creates a video handler.
func NewVideoHandler(sessions *pipeline.Manager, log *slog.Logger) *VideoHandler {
	if log == nil {
		log = slog.Default()
	}
	return &VideoHandler{sessions: sessions, log: log}
}

// Stream handles GET /video/{classID}. The response is a
// multipart/x-mixed-replace JPEG sequence that browsers render as
// live video in a plain img tag.
func (h *VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	if classID == "" {
		respondError(w, http.StatusBadRequest, "missing class ID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess, created, err := h.sessions.Start(r.Context(), classID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "starting session failed")
		return
	}

	// One viewer per session. The frame channel has a single consumer;
	// a second viewer would receive every other frame.
	if !sess.TryClaim() {
		respondError(w, http.StatusConflict, "class stream already has a viewer")
		return
	}
	defer func() {
		sess.Release()
		// The stream owns the session lifecycle. No viewer means no
		// recognition and a released camera.
		sess.Stop()
	}()

	h.log.Info("video stream opened",
		"class", sanitizeForLog(classID), "session", sess.ID, "created", created)
	defer h.log.Info("video stream closed", "class", sanitizeForLog(classID), "session", sess.ID)

	// The first frame proves the camera opened. A session whose
	// capture fails closes the channel without producing any, and the
	// client still deserves a real status code at that point.
	var first pipeline.OutputFrame
	select {
	case <-r.Context().Done():
		return
	case frame, ok := <-sess.Frames():
		if !ok {
			h.log.Error("video stream never started",
				"class", sanitizeForLog(classID), "err", sess.Err())
			respondError(w, http.StatusServiceUnavailable, "camera unavailable")
			return
		}
		first = frame
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(mjpegBoundary); err != nil {
		respondError(w, http.StatusInternalServerError, "stream setup failed")
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-cache")

	if err := writeFrame(mw, flusher, first.JPEG); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-sess.Frames():
			if !ok {
				if err := sess.Err(); err != nil {
					h.log.Error("video stream source failed",
						"class", sanitizeForLog(classID), "err", err)
				}
				return
			}
			if err := writeFrame(mw, flusher, frame.JPEG); err != nil {
				return
			}
		}
	}
}

// writeFrame emits one JPEG as a multipart section. An error means the
// client went away.
func writeFrame(mw *multipart.Writer, flusher http.Flusher, jpeg []byte) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":   {"image/jpeg"},
		"Content-Length": {strconv.Itoa(len(jpeg))},
	})
	if err != nil {
		return err
	}
	if _, err := part.Write(jpeg); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
