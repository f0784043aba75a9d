// Package attendance defines the attendance domain: the record written
// for a recognized student, the durable sink and live publisher the
// pipeline dispatches to, and the error taxonomy of the engine.
package attendance

import (
	"context"
	"time"
)

// Record source tags.
const (
	SourceAutomatic = "automatic"
	SourceManual    = "manual"
)

// Record statuses.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// Wire formats for dates and times inside records. Records carry both
// as strings so the storage key (date) and the display value (time)
// stay stable across time zones of consumers.
const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04:05"
)

// Record is one student's attendance for one class on one day.
// The storage key is (Date, ClassID, StudentID); writing the same key
// twice overwrites, which is how a manual override replaces an
// automatic mark.
type Record struct {
	ClassID    string  `json:"class_id"`
	Date       string  `json:"date"`
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Time       string  `json:"time"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Reason     string  `json:"reason,omitempty"`
	MarkedBy   string  `json:"marked_by,omitempty"`
}

// NewAutomatic builds the record the recognition pipeline writes when
// a face match passes the debouncer.
func NewAutomatic(classID, studentID, name string, confidence float64, now time.Time) Record {
	return Record{
		ClassID:    classID,
		Date:       now.Format(DateFormat),
		StudentID:  studentID,
		Name:       name,
		Time:       now.Format(TimeFormat),
		Status:     StatusPresent,
		Confidence: confidence,
		Source:     SourceAutomatic,
	}
}

// Sink is durable storage for attendance records. Record is
// idempotent by (Date, ClassID, StudentID); Delete supports the
// manual "mark absent" path.
type Sink interface {
	Record(ctx context.Context, rec Record) error
	Delete(ctx context.Context, classID, date, studentID string) error
}

// Topic published for every new attendance mark.
const TopicNewAttendance = "new_attendance"

// Event is the payload broadcast to live subscribers when a student
// is marked present.
type Event struct {
	Name       string  `json:"name"`
	ID         string  `json:"id"`
	Time       string  `json:"time"`
	Confidence float64 `json:"confidence"`
}

// Publisher fans an event out to currently connected subscribers.
// Best effort: no delivery guarantee, no persistence, no replay.
type Publisher interface {
	Publish(topic string, event Event)
}

// Stats summarizes one class on one date.
type Stats struct {
	ClassID       string  `json:"class_id"`
	Date          string  `json:"date"`
	TotalStudents int     `json:"total_students"`
	Present       int     `json:"present"`
	Absent        int     `json:"absent"`
	Percentage    float64 `json:"percentage"`
}

// ComputeStats derives the aggregate for a class from the roster size
// and the number of present records.
func ComputeStats(classID, date string, totalStudents, present int) Stats {
	s := Stats{
		ClassID:       classID,
		Date:          date,
		TotalStudents: totalStudents,
		Present:       present,
	}
	if s.Present > s.TotalStudents {
		// Manual marks can outlive roster shrinkage; clamp so the
		// percentage stays meaningful.
		s.TotalStudents = s.Present
	}
	s.Absent = s.TotalStudents - s.Present
	if s.TotalStudents > 0 {
		s.Percentage = float64(s.Present) / float64(s.TotalStudents) * 100
	}
	return s
}
