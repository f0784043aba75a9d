package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/pipeline"
	"github.com/classeye/classeye/internal/storage"
)

// AttendanceHandler serves the attendance register: listing a day,
// manual present and absent overrides, and unmarking.
type AttendanceHandler struct {
	store    storage.AttendanceStore
	students storage.StudentReader
	sessions *pipeline.Manager
	events   attendance.Publisher
	log      *slog.Logger
	now      func() time.Time
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(store storage.AttendanceStore, students storage.StudentReader,
	sessions *pipeline.Manager, events attendance.Publisher, log *slog.Logger) *AttendanceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AttendanceHandler{
		store:    store,
		students: students,
		sessions: sessions,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

type markRequest struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date,omitempty"`
	MarkedBy  string `json:"marked_by,omitempty"`
}

type absentRequest struct {
	StudentID string `json:"student_id"`
	Date      string `json:"date,omitempty"`
	Reason    string `json:"reason,omitempty"`
	MarkedBy  string `json:"marked_by,omitempty"`
}

// List returns the records of a class for one date, today by default.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	date, err := dateParam(r, h.now)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	records, err := h.store.ListByClassDate(r.Context(), classID, date)
	if err != nil {
		h.log.Error("listing attendance failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "listing attendance failed")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"date":     date,
		"count":    len(records),
		"records":  records,
	})
}

// Mark records a student present by hand. A manual mark outranks the
// camera: a later automatic sighting never overwrites it.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	var body markRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	student, ok := h.lookupStudent(w, r, classID, body.StudentID)
	if !ok {
		return
	}
	date, ok := h.resolveDate(w, body.Date)
	if !ok {
		return
	}

	now := h.now()
	rec := attendance.Record{
		ClassID:    classID,
		Date:       date,
		StudentID:  student.ID,
		Name:       student.Name,
		Time:       now.Format(attendance.TimeFormat),
		Status:     attendance.StatusPresent,
		Confidence: 1,
		Source:     attendance.SourceManual,
		MarkedBy:   markedBy(body.MarkedBy),
	}
	if err := h.store.Record(r.Context(), rec); err != nil {
		h.log.Error("manual mark failed",
			"class", sanitizeForLog(classID), "student", sanitizeForLog(student.ID), "err", err)
		respondError(w, http.StatusInternalServerError, "recording attendance failed")
		return
	}

	// For today's register, the live session must not announce the
	// student a second time when the camera spots them.
	if date == now.Format(attendance.DateFormat) {
		h.sessions.MarkExternal(classID, student.ID)
		h.events.Publish(attendance.TopicNewAttendance, attendance.Event{
			Name:       student.Name,
			ID:         student.ID,
			Time:       rec.Time,
			Confidence: rec.Confidence,
		})
	}

	respondJSON(w, http.StatusCreated, rec)
}

// Absent records a manual absence, optionally with a reason. The
// override sticks even if the camera later sees the student.
func (h *AttendanceHandler) Absent(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	var body absentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	student, ok := h.lookupStudent(w, r, classID, body.StudentID)
	if !ok {
		return
	}
	date, ok := h.resolveDate(w, body.Date)
	if !ok {
		return
	}

	now := h.now()
	rec := attendance.Record{
		ClassID:   classID,
		Date:      date,
		StudentID: student.ID,
		Name:      student.Name,
		Time:      now.Format(attendance.TimeFormat),
		Status:    attendance.StatusAbsent,
		Source:    attendance.SourceManual,
		Reason:    body.Reason,
		MarkedBy:  markedBy(body.MarkedBy),
	}
	if err := h.store.Record(r.Context(), rec); err != nil {
		h.log.Error("manual absence failed",
			"class", sanitizeForLog(classID), "student", sanitizeForLog(student.ID), "err", err)
		respondError(w, http.StatusInternalServerError, "recording attendance failed")
		return
	}

	// Silence the camera for the excused student for the rest of the
	// session. The storage conflict rule keeps the override either way.
	if date == now.Format(attendance.DateFormat) {
		h.sessions.MarkExternal(classID, student.ID)
	}

	respondJSON(w, http.StatusCreated, rec)
}

// Unmark deletes a record. The live session keeps the student in its
// marked set until the next roster reload, so the camera does not
// instantly restore what the teacher just removed.
func (h *AttendanceHandler) Unmark(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	studentID := chi.URLParam(r, "studentID")
	date, err := dateParam(r, h.now)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	if err := h.store.Delete(r.Context(), classID, date, studentID); err != nil {
		h.log.Error("unmark failed",
			"class", sanitizeForLog(classID), "student", sanitizeForLog(studentID), "err", err)
		respondError(w, http.StatusInternalServerError, "deleting attendance failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// lookupStudent resolves a student and verifies class membership,
// writing the error response itself on failure.
func (h *AttendanceHandler) lookupStudent(w http.ResponseWriter, r *http.Request, classID, studentID string) (*storage.Student, bool) {
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "student_id is required")
		return nil, false
	}
	student, err := h.students.Get(r.Context(), studentID)
	if err != nil {
		h.log.Error("student lookup failed", "student", sanitizeForLog(studentID), "err", err)
		respondError(w, http.StatusInternalServerError, "looking up student failed")
		return nil, false
	}
	if student == nil || student.ClassID != classID {
		respondError(w, http.StatusNotFound, "student not enrolled in class")
		return nil, false
	}
	return student, true
}

// resolveDate validates an optional request date, defaulting to today.
func (h *AttendanceHandler) resolveDate(w http.ResponseWriter, date string) (string, bool) {
	if date == "" {
		return h.now().Format(attendance.DateFormat), true
	}
	if _, err := time.Parse(attendance.DateFormat, date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func markedBy(v string) string {
	if v == "" {
		return "teacher"
	}
	return v
}
