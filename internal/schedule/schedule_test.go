package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/classeye/classeye/internal/storage/sis"
)

type countingSyncer struct {
	runs atomic.Int32
}

func (c *countingSyncer) Run(ctx context.Context) (sis.ImportStats, error) {
	c.runs.Add(1)
	return sis.ImportStats{}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_AddRosterSync(t *testing.T) {
	s := New(quietLogger())

	if err := s.AddRosterSync("0 2 * * *", &countingSyncer{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 registered job, got %d", s.Len())
	}
}

func TestScheduler_AcceptsDailyTime(t *testing.T) {
	s := New(quietLogger())

	if err := s.AddRosterSync("02:00", &countingSyncer{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 registered job, got %d", s.Len())
	}
}

func TestScheduler_RejectsInvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"garbage cron", "definitely not cron"},
		{"impossible time", "25:99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(quietLogger())
			if err := s.AddRosterSync(tt.spec, &countingSyncer{}); err == nil {
				t.Errorf("expected an error for spec %q", tt.spec)
			}
		})
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(quietLogger())
	if err := s.AddRosterSync("0 2 * * *", &countingSyncer{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	s.Start()
	s.Stop()
	// Stopping twice must not panic.
	s.Stop()
}
