package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/insights"
	"github.com/classeye/classeye/internal/storage"
)

// InsightsHandler produces the natural-language attendance summary for
// a class and date.
type InsightsHandler struct {
	service    *insights.Service
	attendance storage.AttendanceStore
	students   storage.StudentReader
	classes    storage.ClassStore
	log        *slog.Logger
	now        func() time.Time
}

// NewInsightsHandler creates an insights handler.
func NewInsightsHandler(service *insights.Service, att storage.AttendanceStore,
	students storage.StudentReader, classes storage.ClassStore, log *slog.Logger) *InsightsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &InsightsHandler{
		service:    service,
		attendance: att,
		students:   students,
		classes:    classes,
		log:        log,
		now:        time.Now,
	}
}

// Get summarizes one class day. The summary always resolves; when no
// language model is reachable a deterministic fallback text is used.
func (h *InsightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	date, err := dateParam(r, h.now)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	roster, err := h.students.ListByClass(r.Context(), classID)
	if err != nil {
		h.log.Error("listing roster failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "building insights failed")
		return
	}
	records, err := h.attendance.ListByClassDate(r.Context(), classID, date)
	if err != nil {
		h.log.Error("listing attendance failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "building insights failed")
		return
	}

	present, absent := splitRoster(roster, records)
	stats := attendance.ComputeStats(classID, date, len(roster), len(present))

	className := classID
	if class, err := h.classes.Get(r.Context(), classID); err == nil && class != nil {
		className = class.Name
	}

	summary := h.service.Generate(r.Context(), insights.Request{
		ClassID:   classID,
		ClassName: className,
		Date:      date,
		Stats:     stats,
		Present:   present,
		Absent:    absent,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"date":     date,
		"stats":    stats,
		"summary":  summary,
	})
}

// splitRoster partitions roster names into present and absent using
// the day's records. A manual absence counts as absent even though a
// record exists for the student.
func splitRoster(roster []storage.Student, records []attendance.Record) (present, absent []string) {
	presentIDs := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.Status == attendance.StatusPresent {
			presentIDs[rec.StudentID] = struct{}{}
		}
	}
	for _, s := range roster {
		if _, ok := presentIDs[s.ID]; ok {
			present = append(present, s.Name)
		} else {
			absent = append(absent, s.Name)
		}
	}
	return present, absent
}
