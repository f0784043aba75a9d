package match

import (
	"math"
	"testing"

	"github.com/classeye/classeye/internal/roster"
)

// axis builds an embedding at the given distance from the origin
// along the first axis, so Euclidean distances in tests are exact.
func axis(dist float64) []float64 {
	return []float64{dist, 0, 0, 0}
}

func TestMatch_EmptyRoster(t *testing.T) {
	m := New(0.45)

	res := m.Match(axis(0), nil)

	if res.Matched {
		t.Error("empty roster must never match")
	}
	if res.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", res.Confidence)
	}
}

func TestMatch_NearestWithinTolerance(t *testing.T) {
	m := New(0.45)
	entries := []roster.Entry{
		{StudentID: "s1", Name: "Alice", Embedding: axis(0.3)},
		{StudentID: "s2", Name: "Bob", Embedding: axis(0.4)},
	}

	res := m.Match(axis(0), entries)

	if !res.Matched {
		t.Fatal("expected a match")
	}
	if res.StudentID != "s1" {
		t.Errorf("expected argmin entry s1, got %s", res.StudentID)
	}
	if math.Abs(res.Distance-0.3) > 1e-9 {
		t.Errorf("expected distance 0.3, got %f", res.Distance)
	}
	if math.Abs(res.Confidence-0.7) > 1e-9 {
		t.Errorf("expected confidence 0.7, got %f", res.Confidence)
	}
}

func TestMatch_GateAppliesToArgminOnly(t *testing.T) {
	// The nearest entry fails the tolerance, so the result is Unknown.
	// The decision never falls back to a farther entry; with a single
	// distance metric the farther entry cannot pass a gate the argmin
	// failed, and this pins the argmin-then-gate order.
	m := New(0.45)
	entries := []roster.Entry{
		{StudentID: "s1", Name: "Alice", Embedding: axis(0.5)},
		{StudentID: "s2", Name: "Bob", Embedding: axis(0.6)},
	}

	res := m.Match(axis(0), entries)

	if res.Matched {
		t.Fatalf("expected Unknown, matched %s", res.StudentID)
	}
	if res.StudentID != "" {
		t.Errorf("unknown result must not carry an identity, got %s", res.StudentID)
	}
	if res.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", res.Confidence)
	}
}

func TestMatch_ArgminWinsAmongPassing(t *testing.T) {
	m := New(0.45)
	entries := []roster.Entry{
		{StudentID: "s1", Name: "Alice", Embedding: axis(0.40)},
		{StudentID: "s2", Name: "Bob", Embedding: axis(0.20)},
		{StudentID: "s3", Name: "Carol", Embedding: axis(0.44)},
	}

	res := m.Match(axis(0), entries)

	if !res.Matched || res.StudentID != "s2" {
		t.Errorf("expected nearest entry s2, got matched=%v id=%s", res.Matched, res.StudentID)
	}
}

func TestMatch_ExactTolerance(t *testing.T) {
	// A distance exactly at the tolerance still matches.
	m := New(0.45)
	entries := []roster.Entry{
		{StudentID: "s1", Name: "Alice", Embedding: axis(0.45)},
	}

	res := m.Match(axis(0), entries)

	if !res.Matched {
		t.Error("distance equal to the tolerance should match")
	}
}

func TestMatch_SkipsMismatchedDimensions(t *testing.T) {
	m := New(0.45)
	entries := []roster.Entry{
		{StudentID: "s1", Name: "Alice", Embedding: []float64{0.1, 0.2}},
		{StudentID: "s2", Name: "Bob", Embedding: axis(0.3)},
	}

	res := m.Match(axis(0), entries)

	if !res.Matched || res.StudentID != "s2" {
		t.Errorf("expected s2 after skipping mismatched entry, got matched=%v id=%s", res.Matched, res.StudentID)
	}
}

func TestMatch_ConfidenceFloor(t *testing.T) {
	// Generous tolerance with a far entry: confidence is floored at 0,
	// never negative.
	m := New(2.0)
	entries := []roster.Entry{
		{StudentID: "s1", Name: "Alice", Embedding: axis(1.5)},
	}

	res := m.Match(axis(0), entries)

	if !res.Matched {
		t.Fatal("expected a match")
	}
	if res.Confidence != 0 {
		t.Errorf("expected floored confidence 0, got %f", res.Confidence)
	}
}
