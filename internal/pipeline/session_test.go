package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/capture"
	"github.com/classeye/classeye/internal/roster"
)

func testDeps(newSource func(string) capture.Source, rosterSrc roster.Source) Deps {
	return Deps{
		NewSource:    newSource,
		Detector:     &scriptedDetector{},
		Roster:       rosterSrc,
		Sink:         &memorySink{},
		Publisher:    &memoryPublisher{},
		EmbeddingDim: 4,
		Tolerance:    0.45,
		Cooldown:     3 * time.Second,
		Pipeline:     defaultConfig(),
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func syntheticFactory(string) capture.Source {
	return capture.NewSynthetic(64, 48, 30, 0)
}

func oneStudent() *stubRoster {
	return &stubRoster{students: map[string]roster.SourceRecord{
		"s1": {Name: "Alice Johnson", RollNo: "R-01", Embedding: []float32{1, 0, 0, 0}},
	}}
}

func TestManager_OneLiveSessionPerClass(t *testing.T) {
	m := NewManager(testDeps(syntheticFactory, oneStudent()))
	defer m.StopAll()

	first, created, err := m.Start(context.Background(), "math-101")
	if err != nil || !created {
		t.Fatalf("first start: created=%v err=%v", created, err)
	}
	second, created, err := m.Start(context.Background(), "math-101")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if created {
		t.Error("second start must join the live session, not create one")
	}
	if first != second {
		t.Errorf("expected the same session, got %s and %s", first.ID, second.ID)
	}
	if got := len(m.List()); got != 1 {
		t.Errorf("expected 1 live session, got %d", got)
	}
}

func TestManager_ClassesAreIndependent(t *testing.T) {
	m := NewManager(testDeps(syntheticFactory, oneStudent()))
	defer m.StopAll()

	a, _, err := m.Start(context.Background(), "math-101")
	if err != nil {
		t.Fatalf("start math-101: %v", err)
	}
	b, _, err := m.Start(context.Background(), "phys-202")
	if err != nil {
		t.Fatalf("start phys-202: %v", err)
	}
	if a.ID == b.ID {
		t.Error("sessions for different classes must have distinct IDs")
	}
	if got := len(m.List()); got != 2 {
		t.Errorf("expected 2 live sessions, got %d", got)
	}
}

func TestManager_StopRemovesSession(t *testing.T) {
	m := NewManager(testDeps(syntheticFactory, oneStudent()))

	if _, _, err := m.Start(context.Background(), "math-101"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop("math-101"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := m.Get("math-101"); ok {
		t.Error("stopped session should be gone from the registry")
	}
	if err := m.Stop("math-101"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_SessionSelfRemovesWhenStreamEnds(t *testing.T) {
	finite := func(string) capture.Source {
		return &scriptedSource{frames: testFrames(1, time.Now(), time.Second)}
	}
	m := NewManager(testDeps(finite, oneStudent()))

	if _, _, err := m.Start(context.Background(), "math-101"); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := m.Get("math-101"); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session did not remove itself after the stream ended")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManager_CaptureFailureEndsSession(t *testing.T) {
	broken := func(string) capture.Source {
		return &scriptedSource{startErr: errors.New("connection refused")}
	}
	m := NewManager(testDeps(broken, oneStudent()))

	sess, created, err := m.Start(context.Background(), "math-101")
	if err != nil || !created {
		t.Fatalf("start: created=%v err=%v", created, err)
	}

	// Stop waits for the pipeline goroutine even when it already died.
	sess.Stop()

	if !errors.Is(sess.Err(), attendance.ErrResourceUnavailable) {
		t.Errorf("expected ErrResourceUnavailable, got %v", sess.Err())
	}
	var n int
	for range sess.Frames() {
		n++
	}
	if n != 0 {
		t.Errorf("expected zero output frames, got %d", n)
	}
	if st := sess.Status(); st.State != "stopped" || st.Error == "" {
		t.Errorf("expected stopped status with error, got %+v", st)
	}
}

func TestManager_RosterFailureStillStartsSession(t *testing.T) {
	src := &stubRoster{err: errors.New("database down")}
	m := NewManager(testDeps(syntheticFactory, src))
	defer m.StopAll()

	sess, created, err := m.Start(context.Background(), "math-101")
	if err != nil || !created {
		t.Fatalf("start must survive a roster failure: created=%v err=%v", created, err)
	}
	if st := sess.Status(); st.RosterSize != 0 {
		t.Errorf("expected an empty roster, got %d", st.RosterSize)
	}
}

func TestManager_Reload(t *testing.T) {
	src := oneStudent()
	m := NewManager(testDeps(syntheticFactory, src))
	defer m.StopAll()

	sess, _, err := m.Start(context.Background(), "math-101")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := sess.Status(); st.RosterSize != 1 {
		t.Fatalf("expected 1 student before reload, got %d", st.RosterSize)
	}

	src.set(map[string]roster.SourceRecord{
		"s1": {Name: "Alice Johnson", RollNo: "R-01", Embedding: []float32{1, 0, 0, 0}},
		"s2": {Name: "Bob Odhiambo", RollNo: "R-02", Embedding: []float32{0, 1, 0, 0}},
	})
	n, err := m.Reload(context.Background(), "math-101")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 students after reload, got %d", n)
	}
	if st := sess.Status(); st.RosterSize != 2 {
		t.Errorf("expected status to reflect the reload, got %d", st.RosterSize)
	}
}

func TestManager_ReloadWithoutSession(t *testing.T) {
	m := NewManager(testDeps(syntheticFactory, oneStudent()))
	if _, err := m.Reload(context.Background(), "ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_StopAll(t *testing.T) {
	m := NewManager(testDeps(syntheticFactory, oneStudent()))

	for _, class := range []string{"math-101", "phys-202", "chem-303"} {
		if _, _, err := m.Start(context.Background(), class); err != nil {
			t.Fatalf("start %s: %v", class, err)
		}
	}
	m.StopAll()
	if got := len(m.List()); got != 0 {
		t.Errorf("expected no live sessions after StopAll, got %d", got)
	}
}

func TestSession_StatusIdentity(t *testing.T) {
	m := NewManager(testDeps(syntheticFactory, oneStudent()))
	defer m.StopAll()

	sess, _, err := m.Start(context.Background(), "math-101")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := sess.Status()
	if _, err := uuid.Parse(st.SessionID); err != nil {
		t.Errorf("session ID %q is not a UUID: %v", st.SessionID, err)
	}
	if st.ClassID != "math-101" {
		t.Errorf("unexpected class %q", st.ClassID)
	}
	if st.StartedAt.IsZero() {
		t.Error("StartedAt must be set")
	}
}
