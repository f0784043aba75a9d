package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/storage"
)

// RosterHandler serves the class catalogue and per-class rosters.
type RosterHandler struct {
	classes  storage.ClassStore
	students storage.StudentReader
	log      *slog.Logger
}

// NewRosterHandler creates a roster handler.
func NewRosterHandler(classes storage.ClassStore, students storage.StudentReader, log *slog.Logger) *RosterHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RosterHandler{classes: classes, students: students, log: log}
}

// rosterEntry is a student as the API exposes them. The face embedding
// stays server-side; clients only learn whether one is enrolled.
type rosterEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RollNo   string `json:"roll_no,omitempty"`
	Enrolled bool   `json:"enrolled"`
	Model    string `json:"model,omitempty"`
}

// Classes lists the class catalogue.
func (h *RosterHandler) Classes(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classes.List(r.Context())
	if err != nil {
		h.log.Error("listing classes failed", "err", err)
		respondError(w, http.StatusInternalServerError, "listing classes failed")
		return
	}
	if classes == nil {
		classes = []storage.Class{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(classes),
		"classes": classes,
	})
}

// Roster lists the students of a class. A class unknown to the
// catalogue still resolves; the catalogue is advisory and enrollment
// lives on the students themselves.
func (h *RosterHandler) Roster(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	students, err := h.students.ListByClass(r.Context(), classID)
	if err != nil {
		h.log.Error("listing roster failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "listing roster failed")
		return
	}

	entries := make([]rosterEntry, 0, len(students))
	enrolled := 0
	for _, s := range students {
		if s.HasEmbedding() {
			enrolled++
		}
		entries = append(entries, rosterEntry{
			ID:       s.ID,
			Name:     s.Name,
			RollNo:   s.RollNo,
			Enrolled: s.HasEmbedding(),
			Model:    s.Model,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"count":    len(entries),
		"enrolled": enrolled,
		"students": entries,
	})
}
