// Package storage defines the persistence model and the repository
// contracts implemented by the postgres, sis and mock backends.
package storage

import (
	"time"
)

// Student is an enrolled student with an optional face embedding.
// Students imported from the school information system start without
// one; the embedding arrives later through enrollment.
type Student struct {
	ID        string
	ClassID   string
	Name      string
	RollNo    string
	Embedding []float32
	Dim       int
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasEmbedding reports whether the student can be matched on camera.
func (s Student) HasEmbedding() bool {
	return len(s.Embedding) > 0
}

// Class is a teaching group with its own camera and roster. Unlike
// Student it is safe to serialize as-is; it carries no biometric data.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Room      string    `json:"room,omitempty"`
	Teacher   string    `json:"teacher,omitempty"`
	Schedule  string    `json:"schedule,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
