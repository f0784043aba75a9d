// Package match decides which roster identity, if any, a face
// embedding belongs to.
package match

import (
	"gonum.org/v1/gonum/floats"

	"github.com/classeye/classeye/internal/roster"
)

// Result is one identity decision. When Matched is false the identity
// fields are zero and Confidence is 0.
type Result struct {
	Matched    bool
	StudentID  string
	Name       string
	Distance   float64
	Confidence float64
}

// Matcher gates nearest-neighbor decisions with a fixed distance
// tolerance.
type Matcher struct {
	tolerance float64
}

// New creates a matcher. tolerance is the maximum Euclidean distance
// still considered the same identity.
func New(tolerance float64) *Matcher {
	return &Matcher{tolerance: tolerance}
}

// Tolerance returns the configured distance threshold.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Match compares the query embedding against every entry and selects
// the nearest one. The tolerance is applied to that nearest entry
// only: when the argmin entry is too far, the result is Unknown even
// if another entry would pass the gate on its own. An empty roster
// yields Unknown without any distance computation.
func (m *Matcher) Match(query []float64, entries []roster.Entry) Result {
	if len(entries) == 0 {
		return Result{}
	}

	bestIdx := -1
	bestDist := 0.0
	for i, e := range entries {
		if len(e.Embedding) != len(query) {
			continue
		}
		d := floats.Distance(query, e.Embedding, 2)
		if bestIdx < 0 || d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	if bestIdx < 0 {
		return Result{}
	}

	if bestDist > m.tolerance {
		return Result{Distance: bestDist}
	}

	conf := 1 - bestDist
	if conf < 0 {
		conf = 0
	}
	best := entries[bestIdx]
	return Result{
		Matched:    true,
		StudentID:  best.StudentID,
		Name:       best.Name,
		Distance:   bestDist,
		Confidence: conf,
	}
}
