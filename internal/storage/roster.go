package storage

import (
	"context"
	"fmt"

	"github.com/classeye/classeye/internal/roster"
)

// RosterSource feeds per-session roster caches from the student
// store. Students without embeddings are passed through untouched;
// the cache skips what it cannot match.
type RosterSource struct {
	students StudentReader
}

// NewRosterSource adapts a student reader to the roster loader.
func NewRosterSource(students StudentReader) *RosterSource {
	return &RosterSource{students: students}
}

// Query returns the class roster keyed by student ID.
func (s *RosterSource) Query(ctx context.Context, classID string) (map[string]roster.SourceRecord, error) {
	list, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("listing class %s: %w", classID, err)
	}

	out := make(map[string]roster.SourceRecord, len(list))
	for _, st := range list {
		out[st.ID] = roster.SourceRecord{
			Name:      st.Name,
			RollNo:    st.RollNo,
			Embedding: st.Embedding,
		}
	}
	return out, nil
}
