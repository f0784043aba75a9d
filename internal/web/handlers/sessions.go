package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/pipeline"
)

// SessionsHandler drives recognition sessions through the API. The
// video stream endpoint is the usual entry point; these routes exist
// for dashboards and scripts that manage sessions directly.
type SessionsHandler struct {
	sessions *pipeline.Manager
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(sessions *pipeline.Manager) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// List returns every live session.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": h.sessions.List(),
	})
}

// Get returns the live session of one class.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	sess, ok := h.sessions.Get(classID)
	if !ok {
		respondError(w, http.StatusNotFound, "no live session for class")
		return
	}
	respondJSON(w, http.StatusOK, sess.Status())
}

// Start begins recognition for a class without attaching a viewer.
// The pipeline pauses once its frame buffer fills until a viewer
// connects, so this is a warm-up, not a headless run.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	sess, created, err := h.sessions.Start(r.Context(), classID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "starting session failed")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, sess.Status())
}

// Stop ends the live session of a class and waits for the camera to
// be released.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	if err := h.sessions.Stop(classID); err != nil {
		if errors.Is(err, pipeline.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "no live session for class")
			return
		}
		respondError(w, http.StatusInternalServerError, "stopping session failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Reload refreshes the roster of a live session. Mark state resets,
// so students already recorded today may be announced again.
func (h *SessionsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	n, err := h.sessions.Reload(r.Context(), classID)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "no live session for class")
			return
		}
		respondError(w, http.StatusInternalServerError, "roster reload failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "reloaded",
		"students": n,
	})
}
