package insights

import (
	"context"
	"fmt"
	"strings"
)

// Fallback produces a deterministic summary from the raw numbers. It
// never fails, so insights stay available without any AI backend.
type Fallback struct{}

func (Fallback) Name() string {
	return "fallback"
}

// Summarize renders the attendance data as plain sentences.
func (Fallback) Summarize(ctx context.Context, req Request) (string, error) {
	name := req.ClassName
	if name == "" {
		name = req.ClassID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Attendance for %s on %s: %d of %d students present (%.1f%%).",
		name, req.Date, req.Stats.Present, req.Stats.TotalStudents, req.Stats.Percentage)

	switch {
	case req.Stats.TotalStudents == 0:
		b.WriteString(" No students are enrolled in this class.")
	case req.Stats.Absent == 0:
		b.WriteString(" Everyone is here today.")
	default:
		fmt.Fprintf(&b, " %d absent", req.Stats.Absent)
		if names := listNames(req.Absent, 5); names != "" {
			fmt.Fprintf(&b, ": %s", names)
		}
		b.WriteString(".")
	}

	if req.Stats.TotalStudents > 0 && req.Stats.Percentage < 75 {
		b.WriteString(" Turnout is below the usual threshold; a follow-up may be worthwhile.")
	}
	return b.String(), nil
}

func listNames(names []string, limit int) string {
	if len(names) == 0 {
		return ""
	}
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:limit], ", "), len(names)-limit)
}
