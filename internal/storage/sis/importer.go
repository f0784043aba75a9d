package sis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/classeye/classeye/internal/storage"
)

// EnrollmentSource lists SIS enrollments. Implemented by Pool.
type EnrollmentSource interface {
	Students(ctx context.Context) ([]Student, error)
	StudentsByClass(ctx context.Context, classCode string) ([]Student, error)
}

// ImportStats summarizes one sync run.
type ImportStats struct {
	Classes  int
	Students int
	Failed   int
}

// Importer copies enrollments from the school information system into
// attendance storage. Profiles only; stored face embeddings survive
// every sync.
type Importer struct {
	src      EnrollmentSource
	students storage.StudentStore
	classes  storage.ClassStore
	log      *slog.Logger
}

// NewImporter wires a sync run.
func NewImporter(src EnrollmentSource, students storage.StudentStore, classes storage.ClassStore, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{src: src, students: students, classes: classes, log: log}
}

// Run performs one full sync. Row-level failures are logged and
// counted; only a failed enrollment query aborts the run.
func (i *Importer) Run(ctx context.Context) (ImportStats, error) {
	enrollments, err := i.src.Students(ctx)
	if err != nil {
		return ImportStats{}, fmt.Errorf("reading enrollments: %w", err)
	}
	return i.apply(ctx, enrollments), nil
}

// RunClass syncs a single class. An unknown class code is an error so
// a typo on the command line does not pass as an empty sync.
func (i *Importer) RunClass(ctx context.Context, classCode string) (ImportStats, error) {
	enrollments, err := i.src.StudentsByClass(ctx, classCode)
	if err != nil {
		return ImportStats{}, fmt.Errorf("reading enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return ImportStats{}, fmt.Errorf("class %s has no active enrollments", classCode)
	}
	return i.apply(ctx, enrollments), nil
}

func (i *Importer) apply(ctx context.Context, enrollments []Student) ImportStats {
	var stats ImportStats

	seenClasses := make(map[string]bool)
	for _, e := range enrollments {
		if !seenClasses[e.ClassCode] {
			seenClasses[e.ClassCode] = true
			err := i.classes.Upsert(ctx, storage.Class{ID: e.ClassCode, Name: e.ClassName})
			if err != nil {
				i.log.Error("class sync failed", "class", e.ClassCode, "err", err)
				stats.Failed++
			} else {
				stats.Classes++
			}
		}

		err := i.students.UpsertProfile(ctx, storage.Student{
			ID:      e.ID,
			ClassID: e.ClassCode,
			Name:    e.FullName,
			RollNo:  e.RollNo,
		})
		if err != nil {
			i.log.Error("student sync failed", "student", e.ID, "err", err)
			stats.Failed++
			continue
		}
		stats.Students++
	}

	i.log.Info("roster sync finished",
		"classes", stats.Classes, "students", stats.Students, "failed", stats.Failed)
	return stats
}
