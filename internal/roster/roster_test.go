package roster

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/classeye/classeye/internal/attendance"
)

const testDim = 4

type fakeSource struct {
	mu      sync.Mutex
	records map[string]SourceRecord
	err     error
	calls   int
}

func (f *fakeSource) Query(ctx context.Context, classID string) (map[string]SourceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]SourceRecord, len(f.records))
	for k, v := range f.records {
		out[k] = v
	}
	return out, nil
}

func embedding(fill float32) []float32 {
	e := make([]float32, testDim)
	for i := range e {
		e[i] = fill
	}
	return e
}

func TestLoad_SkipsMalformedEmbeddings(t *testing.T) {
	src := &fakeSource{records: map[string]SourceRecord{
		"s1": {Name: "Alice", RollNo: "1", Embedding: embedding(0.1)},
		"s2": {Name: "Bob", RollNo: "2", Embedding: nil},
		"s3": {Name: "Carol", RollNo: "3", Embedding: []float32{0.1, 0.2}},
		"s4": {Name: "Dan", RollNo: "4", Embedding: []float32{0.1, float32(math.NaN()), 0.3, 0.4}},
		"s5": {Name: "Eva", RollNo: "5", Embedding: embedding(0.5)},
	}}
	c := New("math-101", testDim, 3*time.Second)

	n, err := c.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 valid entries, got %d", n)
	}

	snap := c.Snapshot()
	if len(snap) != n {
		t.Fatalf("snapshot length %d does not match loaded count %d", len(snap), n)
	}
	// Deterministic order by student id
	if snap[0].StudentID != "s1" || snap[1].StudentID != "s5" {
		t.Errorf("expected entries [s1 s5], got [%s %s]", snap[0].StudentID, snap[1].StudentID)
	}
	for _, e := range snap {
		if len(e.Embedding) != testDim {
			t.Errorf("entry %s has embedding dim %d, want %d", e.StudentID, len(e.Embedding), testDim)
		}
		if e.Name == "" {
			t.Errorf("entry %s lost its metadata", e.StudentID)
		}
	}
}

func TestLoad_ResetsMarkState(t *testing.T) {
	src := &fakeSource{records: map[string]SourceRecord{
		"s1": {Name: "Alice", Embedding: embedding(0.1)},
	}}
	c := New("math-101", testDim, 3*time.Second)

	if _, err := c.Load(context.Background(), src); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.TryMark("s1") {
		t.Fatal("first mark should be accepted")
	}
	if size, marked := c.Counts(); size != 1 || marked != 1 {
		t.Fatalf("expected counts (1,1), got (%d,%d)", size, marked)
	}

	// Reload starts a new epoch: marked set and last-seen map are
	// cleared together with the entries.
	if _, err := c.Load(context.Background(), src); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c.IsMarked("s1") {
		t.Error("mark state must not survive a reload")
	}
	if len(c.lastSeen) != 0 {
		t.Error("last-seen map must be cleared on reload")
	}
	if !c.TryMark("s1") {
		t.Error("mark should be accepted again in the new epoch")
	}
}

func TestLoad_FailureLeavesCacheEmpty(t *testing.T) {
	src := &fakeSource{records: map[string]SourceRecord{
		"s1": {Name: "Alice", Embedding: embedding(0.1)},
	}}
	c := New("math-101", testDim, 3*time.Second)

	if _, err := c.Load(context.Background(), src); err != nil {
		t.Fatalf("load: %v", err)
	}
	c.TryMark("s1")

	src.mu.Lock()
	src.err = errors.New("connection refused")
	src.mu.Unlock()

	n, err := c.Load(context.Background(), src)
	if !errors.Is(err, attendance.ErrRosterLoad) {
		t.Fatalf("expected ErrRosterLoad, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 entries after failed load, got %d", n)
	}
	if snap := c.Snapshot(); len(snap) != 0 {
		t.Errorf("failed load must leave the cache empty, got %d entries", len(snap))
	}
	if c.IsMarked("s1") {
		t.Error("failed load must still clear the mark state")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	src := &fakeSource{records: map[string]SourceRecord{
		"s1": {Name: "Alice", Embedding: embedding(0.1)},
	}}
	c := New("math-101", testDim, 3*time.Second)
	if _, err := c.Load(context.Background(), src); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := c.Snapshot()
	snap[0].Name = "mutated"

	if got := c.Snapshot()[0].Name; got != "Alice" {
		t.Errorf("cache observed snapshot mutation, name is %q", got)
	}
}

func TestTryMark_OncePerEpoch(t *testing.T) {
	c := New("math-101", testDim, 3*time.Second)

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	if !c.TryMark("s1") {
		t.Fatal("first mark should be accepted")
	}

	// Later calls are rejected regardless of elapsed time.
	for _, dt := range []time.Duration{0, time.Second, time.Hour, 24 * time.Hour} {
		now := base.Add(dt)
		c.now = func() time.Time { return now }
		if c.TryMark("s1") {
			t.Errorf("mark at +%v should be rejected within the same epoch", dt)
		}
	}
}

func TestTryMark_CooldownBoundary(t *testing.T) {
	c := New("math-101", testDim, 3*time.Second)

	seed := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	// Simulate mark state injected between reload boundaries: the
	// student was seen recently but is absent from the marked set.
	c.mu.Lock()
	c.lastSeen["s1"] = seed
	c.mu.Unlock()

	c.now = func() time.Time { return seed.Add(2900 * time.Millisecond) }
	if c.TryMark("s1") {
		t.Error("mark 2.9s after last sighting should be rejected by the cooldown")
	}

	c.now = func() time.Time { return seed.Add(3100 * time.Millisecond) }
	if !c.TryMark("s1") {
		t.Error("mark 3.1s after last sighting should be accepted")
	}
}

func TestTryMark_DistinctStudents(t *testing.T) {
	c := New("math-101", testDim, 3*time.Second)

	if !c.TryMark("s1") || !c.TryMark("s2") {
		t.Error("marks for distinct students must not interfere")
	}
	if _, marked := c.Counts(); marked != 2 {
		t.Errorf("expected 2 marked, got %d", marked)
	}
}

func TestTryMark_ConcurrentWithReload(t *testing.T) {
	records := make(map[string]SourceRecord)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		records[id] = SourceRecord{Name: id, Embedding: embedding(0.1)}
	}
	src := &fakeSource{records: records}
	c := New("math-101", testDim, time.Millisecond)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c.TryMark(id)
				c.Snapshot()
				c.Counts()
			}
		}()
	}

	for range 50 {
		if _, err := c.Load(context.Background(), src); err != nil {
			t.Errorf("reload during marking: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	// The final reload left a fresh epoch over a fully-populated
	// roster; stragglers may have marked since, but the entry list
	// must be complete, never half-cleared.
	if snap := c.Snapshot(); len(snap) != 4 {
		t.Errorf("expected 4 entries after final reload, got %d", len(snap))
	}
}
