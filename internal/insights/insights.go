// Package insights generates natural-language attendance summaries
// for teachers, with AI backends and a deterministic fallback.
package insights

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/classeye/classeye/internal/attendance"
)

//go:embed prompts/attendance_summary.txt
var summaryPrompt string

// Request carries everything a provider needs to summarize one class
// day.
type Request struct {
	ClassID   string
	ClassName string
	Date      string
	Stats     attendance.Stats
	Present   []string
	Absent    []string
}

// Summary is a generated insight with its origin.
type Summary struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

// Provider defines the interface for insight backends.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, req Request) (string, error)
}

// Service tries AI providers in order and falls back to a
// deterministic summary, so the endpoint never fails.
type Service struct {
	providers []Provider
	log       *slog.Logger
}

// NewService builds an insight service over the given providers.
func NewService(log *slog.Logger, providers ...Provider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{providers: providers, log: log}
}

// Generate produces a summary for one class day.
func (s *Service) Generate(ctx context.Context, req Request) Summary {
	for _, p := range s.providers {
		text, err := p.Summarize(ctx, req)
		if err != nil {
			s.log.Warn("insight provider failed", "provider", p.Name(), "err", err)
			continue
		}
		return Summary{Text: strings.TrimSpace(text), Provider: p.Name()}
	}

	f := Fallback{}
	text, _ := f.Summarize(ctx, req)
	return Summary{Text: text, Provider: f.Name()}
}

// buildUserMessage renders the attendance data block shared by every
// AI provider.
func buildUserMessage(req Request) string {
	var b strings.Builder

	name := req.ClassName
	if name == "" {
		name = req.ClassID
	}
	fmt.Fprintf(&b, "Class: %s\nDate: %s\n", name, req.Date)
	fmt.Fprintf(&b, "Enrolled: %d\nPresent: %d\nAbsent: %d\nAttendance rate: %.1f%%\n",
		req.Stats.TotalStudents, req.Stats.Present, req.Stats.Absent, req.Stats.Percentage)

	if len(req.Present) > 0 {
		fmt.Fprintf(&b, "Present students: %s\n", strings.Join(req.Present, ", "))
	}
	if len(req.Absent) > 0 {
		fmt.Fprintf(&b, "Absent students: %s\n", strings.Join(req.Absent, ", "))
	}
	return b.String()
}
