package storage

import (
	"context"

	"github.com/classeye/classeye/internal/attendance"
)

// StudentReader provides read-only access to enrolled students.
type StudentReader interface {
	// Get retrieves a student by ID, returns nil if not found.
	Get(ctx context.Context, id string) (*Student, error)
	// ListByClass returns every student of a class, embeddings included,
	// ordered by ID.
	ListByClass(ctx context.Context, classID string) ([]Student, error)
	// All returns every student across classes.
	All(ctx context.Context) ([]Student, error)
	// Count returns the total number of students.
	Count(ctx context.Context) (int, error)
}

// StudentStore provides full access to enrolled students.
type StudentStore interface {
	StudentReader

	// Upsert inserts or fully replaces a student, embedding included.
	Upsert(ctx context.Context, s Student) error
	// UpsertProfile inserts or updates name, roll number and class
	// without touching a stored embedding. Used by the SIS import so a
	// nightly sync never destroys enrollment data.
	UpsertProfile(ctx context.Context, s Student) error
	// Delete removes a student.
	Delete(ctx context.Context, id string) error
}

// AttendanceStore persists attendance records. Record and Delete
// satisfy the pipeline's sink contract.
type AttendanceStore interface {
	Record(ctx context.Context, rec attendance.Record) error
	Delete(ctx context.Context, classID, date, studentID string) error

	// ListByClassDate returns the records of one class on one date,
	// ordered by marking time.
	ListByClassDate(ctx context.Context, classID, date string) ([]attendance.Record, error)
	// Range returns the records of one class between two dates,
	// boundaries included.
	Range(ctx context.Context, classID, from, to string) ([]attendance.Record, error)
	// CountPresent returns how many students are marked present for a
	// class on a date.
	CountPresent(ctx context.Context, classID, date string) (int, error)
}

// ClassStore manages the class catalogue.
type ClassStore interface {
	Get(ctx context.Context, id string) (*Class, error)
	List(ctx context.Context) ([]Class, error)
	Upsert(ctx context.Context, c Class) error
}
