package handlers

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/storage"
)

// StatsHandler serves per-class attendance aggregates and exports.
type StatsHandler struct {
	attendance storage.AttendanceStore
	students   storage.StudentReader
	log        *slog.Logger
	now        func() time.Time
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(att storage.AttendanceStore, students storage.StudentReader, log *slog.Logger) *StatsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StatsHandler{
		attendance: att,
		students:   students,
		log:        log,
		now:        time.Now,
	}
}

// Get returns the attendance summary of a class for one date.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	date, err := dateParam(r, h.now)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	roster, err := h.students.ListByClass(r.Context(), classID)
	if err != nil {
		h.log.Error("listing roster failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "computing stats failed")
		return
	}
	present, err := h.attendance.CountPresent(r.Context(), classID, date)
	if err != nil {
		h.log.Error("counting attendance failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "computing stats failed")
		return
	}

	respondJSON(w, http.StatusOK, attendance.ComputeStats(classID, date, len(roster), present))
}

// reportRow is one student's presence totals over the report range.
type reportRow struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	RollNo     string  `json:"roll_no,omitempty"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// Report aggregates per-student presence over a date range, as JSON
// or as a CSV download with format=csv. A class day is any date in
// the range carrying at least one record, so weekends and holidays
// never count as absences.
func (h *StatsHandler) Report(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	from, to, err := h.rangeParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	roster, err := h.students.ListByClass(r.Context(), classID)
	if err != nil {
		h.log.Error("listing roster failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "building report failed")
		return
	}
	records, err := h.attendance.Range(r.Context(), classID, from, to)
	if err != nil {
		h.log.Error("reading report range failed", "class", sanitizeForLog(classID), "err", err)
		respondError(w, http.StatusInternalServerError, "building report failed")
		return
	}

	days, rows := buildReport(roster, records)

	if r.URL.Query().Get("format") == "csv" {
		h.writeCSV(w, classID, from, to, rows)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"from":     from,
		"to":       to,
		"days":     days,
		"count":    len(rows),
		"students": rows,
	})
}

// buildReport counts, per roster student, the class days they were
// present. Rows keep roster order; students who left the roster drop
// out of the report even if old records remain.
func buildReport(roster []storage.Student, records []attendance.Record) (int, []reportRow) {
	classDays := make(map[string]bool)
	presentDays := make(map[string]map[string]bool)
	for _, rec := range records {
		classDays[rec.Date] = true
		if rec.Status != attendance.StatusPresent {
			continue
		}
		if presentDays[rec.StudentID] == nil {
			presentDays[rec.StudentID] = make(map[string]bool)
		}
		presentDays[rec.StudentID][rec.Date] = true
	}

	days := len(classDays)
	rows := make([]reportRow, 0, len(roster))
	for _, s := range roster {
		present := len(presentDays[s.ID])
		row := reportRow{
			StudentID: s.ID,
			Name:      s.Name,
			RollNo:    s.RollNo,
			Present:   present,
			Absent:    days - present,
		}
		if days > 0 {
			row.Percentage = float64(present) / float64(days) * 100
		}
		rows = append(rows, row)
	}
	return days, rows
}

// rangeParams reads from/to query parameters, both defaulting to today.
func (h *StatsHandler) rangeParams(r *http.Request) (string, string, error) {
	today := h.now().Format(attendance.DateFormat)
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = today
	}
	if to == "" {
		to = today
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(attendance.DateFormat, d); err != nil {
			return "", "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", d)
		}
	}
	if from > to {
		return "", "", fmt.Errorf("from %s is after to %s", from, to)
	}
	return from, to, nil
}

func (h *StatsHandler) writeCSV(w http.ResponseWriter, classID, from, to string, rows []reportRow) {
	filename := fmt.Sprintf("attendance_%s_%s_%s.csv", classID, from, to)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"student_id", "name", "roll_no", "present", "absent", "percentage"})
	for _, row := range rows {
		_ = cw.Write([]string{
			row.StudentID,
			row.Name,
			row.RollNo,
			strconv.Itoa(row.Present),
			strconv.Itoa(row.Absent),
			strconv.FormatFloat(row.Percentage, 'f', 2, 64),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Error("writing csv report failed", "class", sanitizeForLog(classID), "err", err)
	}
}
