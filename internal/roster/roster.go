// Package roster holds the per-session recognition state: the known
// identities of one class and the dedup bookkeeping that turns face
// matches into at-most-one attendance mark per student per session.
package roster

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/classeye/classeye/internal/attendance"
)

// SourceRecord is one identity row as the backing store returns it,
// before validation.
type SourceRecord struct {
	Name      string
	RollNo    string
	Embedding []float32
}

// Source is a read-only provider of identity/embedding data for one
// class. Consumed only by Cache.Load.
type Source interface {
	Query(ctx context.Context, classID string) (map[string]SourceRecord, error)
}

// Entry is one validated identity eligible for recognition. Immutable
// once loaded; the embedding is pre-converted to float64 for the
// distance math.
type Entry struct {
	StudentID string
	Name      string
	RollNo    string
	Embedding []float64
}

// Cache is the shared mutable state of one class session: the entry
// list, the marked set, and the last-seen map, guarded by a single
// mutex. Reload replaces all of them as one unit, so concurrent
// matchers never observe a half-cleared roster. The lock is only ever
// held around in-memory reads and writes.
type Cache struct {
	classID  string
	dim      int
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	entries  []Entry
	marked   map[string]struct{}
	lastSeen map[string]time.Time
}

// New creates an empty cache for a class. dim is the expected
// embedding dimension; rows that do not match it are skipped on load.
func New(classID string, dim int, cooldown time.Duration) *Cache {
	return &Cache{
		classID:  classID,
		dim:      dim,
		cooldown: cooldown,
		now:      time.Now,
		marked:   make(map[string]struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

// ClassID returns the class this cache serves.
func (c *Cache) ClassID() string {
	return c.classID
}

// Load queries the source and atomically replaces entries, the marked
// set, and the last-seen map. A failed query leaves the cache empty
// rather than stale and returns a wrapped error the caller may log;
// matching then reports Unknown until the next reload. Returns the
// number of entries loaded.
func (c *Cache) Load(ctx context.Context, src Source) (int, error) {
	records, err := src.Query(ctx, c.classID)
	if err != nil {
		c.replace(nil)
		return 0, fmt.Errorf("%w: class %s: %v", attendance.ErrRosterLoad, c.classID, err)
	}

	entries := make([]Entry, 0, len(records))
	for id, rec := range records {
		emb, ok := validEmbedding(rec.Embedding, c.dim)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			StudentID: id,
			Name:      rec.Name,
			RollNo:    rec.RollNo,
			Embedding: emb,
		})
	}
	// Source maps iterate in random order; keep the roster stable so
	// argmin ties resolve the same way every frame.
	sort.Slice(entries, func(i, j int) bool { return entries[i].StudentID < entries[j].StudentID })

	c.replace(entries)
	return len(entries), nil
}

// replace swaps in a new entry list and resets the mark state. This
// is the single critical section reload shares with TryMark and
// Snapshot.
func (c *Cache) replace(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.marked = make(map[string]struct{})
	c.lastSeen = make(map[string]time.Time)
}

// validEmbedding converts a stored vector, rejecting empty vectors,
// dimension mismatches, and NaN/Inf components.
func validEmbedding(raw []float32, dim int) ([]float64, bool) {
	if len(raw) == 0 || len(raw) != dim {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Snapshot returns the current entry list under a brief lock. Entries
// are immutable, so callers may match against the returned slice
// without holding the lock while a concurrent reload swaps in a new
// list.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// TryMark reports whether a recognition of the student should produce
// a new attendance event. At most one mark per student per reload
// epoch; a cooldown guards against re-entry when mark state was
// injected externally between reload boundaries.
func (c *Cache) TryMark(studentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.marked[studentID]; ok {
		return false
	}
	now := c.now()
	if seen, ok := c.lastSeen[studentID]; ok && now.Sub(seen) < c.cooldown {
		return false
	}
	c.lastSeen[studentID] = now
	c.marked[studentID] = struct{}{}
	return true
}

// Counts returns the roster size and the number of students marked in
// the current epoch, for the live overlay.
func (c *Cache) Counts() (size, marked int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), len(c.marked)
}

// IsMarked reports whether the student was already marked this epoch.
func (c *Cache) IsMarked(studentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.marked[studentID]
	return ok
}
