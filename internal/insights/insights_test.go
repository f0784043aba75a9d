package insights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/classeye/classeye/internal/attendance"
)

type stubProvider struct {
	name string
	text string
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Summarize(ctx context.Context, req Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRequest() Request {
	return Request{
		ClassID:   "math-101",
		ClassName: "Mathematics",
		Date:      "2026-03-09",
		Stats:     attendance.Stats{TotalStudents: 10, Present: 7, Absent: 3, Percentage: 70},
		Present:   []string{"Alice Johnson", "Bob Odhiambo"},
		Absent:    []string{"Chen Wei", "Dana Ruiz", "Emeka Obi"},
	}
}

func TestService_UsesFirstWorkingProvider(t *testing.T) {
	svc := NewService(quietLogger(),
		&stubProvider{name: "broken", err: errors.New("quota exceeded")},
		&stubProvider{name: "working", text: "  All good today.  "},
	)

	got := svc.Generate(context.Background(), sampleRequest())
	if got.Provider != "working" {
		t.Errorf("expected the second provider, got %q", got.Provider)
	}
	if got.Text != "All good today." {
		t.Errorf("expected trimmed text, got %q", got.Text)
	}
}

func TestService_FallsBackWhenAllProvidersFail(t *testing.T) {
	svc := NewService(quietLogger(),
		&stubProvider{name: "broken", err: errors.New("quota exceeded")},
	)

	got := svc.Generate(context.Background(), sampleRequest())
	if got.Provider != "fallback" {
		t.Errorf("expected the fallback, got %q", got.Provider)
	}
	if got.Text == "" {
		t.Error("fallback must always produce text")
	}
}

func TestService_NoProvidersMeansFallback(t *testing.T) {
	got := NewService(quietLogger()).Generate(context.Background(), sampleRequest())
	if got.Provider != "fallback" {
		t.Errorf("expected the fallback, got %q", got.Provider)
	}
}

func TestFallback_Summarize(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		contains []string
	}{
		{
			name:     "regular day",
			req:      sampleRequest(),
			contains: []string{"Mathematics", "2026-03-09", "7 of 10", "70.0%", "Chen Wei", "below the usual threshold"},
		},
		{
			name: "full house",
			req: Request{
				ClassID: "math-101", Date: "2026-03-09",
				Stats: attendance.Stats{TotalStudents: 5, Present: 5, Absent: 0, Percentage: 100},
			},
			contains: []string{"5 of 5", "Everyone is here"},
		},
		{
			name: "empty class",
			req: Request{
				ClassID: "math-101", Date: "2026-03-09",
				Stats: attendance.Stats{},
			},
			contains: []string{"No students are enrolled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Fallback{}.Summarize(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("fallback must not fail: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("summary missing %q: %s", want, text)
				}
			}
		})
	}
}

func TestFallback_TruncatesLongAbsenceList(t *testing.T) {
	req := Request{
		ClassID: "math-101", Date: "2026-03-09",
		Stats:  attendance.Stats{TotalStudents: 10, Present: 3, Absent: 7, Percentage: 30},
		Absent: []string{"A", "B", "C", "D", "E", "F", "G"},
	}

	text, err := Fallback{}.Summarize(context.Background(), req)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(text, "and 2 more") {
		t.Errorf("expected a truncated list, got %s", text)
	}
	if strings.Contains(text, "F, G") {
		t.Errorf("expected at most 5 names, got %s", text)
	}
}

func TestBuildUserMessage(t *testing.T) {
	msg := buildUserMessage(sampleRequest())

	for _, want := range []string{
		"Class: Mathematics",
		"Date: 2026-03-09",
		"Enrolled: 10",
		"Present: 7",
		"Absent: 3",
		"Attendance rate: 70.0%",
		"Alice Johnson, Bob Odhiambo",
		"Chen Wei, Dana Ruiz, Emeka Obi",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildUserMessage_FallsBackToClassID(t *testing.T) {
	msg := buildUserMessage(Request{ClassID: "math-101", Date: "2026-03-09"})
	if !strings.Contains(msg, "Class: math-101") {
		t.Errorf("expected the class ID when no name is set:\n%s", msg)
	}
}
