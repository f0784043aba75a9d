package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/capture"
	"github.com/classeye/classeye/internal/match"
	"github.com/classeye/classeye/internal/roster"
	"github.com/classeye/classeye/internal/vision"
)

// ErrSessionNotFound is returned for operations on a class with no
// live session.
var ErrSessionNotFound = errors.New("no live session for class")

// Session is one live recognition run for a class. It owns the
// roster cache and the pipeline goroutine and is discarded once
// stopped; a restart means a new session with a fresh ID.
type Session struct {
	ID        string
	ClassID   string
	StartedAt time.Time

	cache     *roster.Cache
	pipeline  *Pipeline
	rosterSrc roster.Source
	cancel    context.CancelFunc
	done      chan struct{}
	claimed   atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// TryClaim takes the single viewer slot for the session's frame
// stream. The output channel has one consumer; a second concurrent
// viewer would steal frames from the first.
func (s *Session) TryClaim() bool {
	return s.claimed.CompareAndSwap(false, true)
}

// Release frees the viewer slot taken by TryClaim.
func (s *Session) Release() {
	s.claimed.Store(false)
}

// MarkExternal records a student as marked without going through the
// camera, so a manual mark suppresses the duplicate the pipeline would
// otherwise publish when the student's face shows up. Returns false
// when the student is already marked or is not on the roster.
func (s *Session) MarkExternal(studentID string) bool {
	return s.cache.TryMark(studentID)
}

// Frames exposes the session's annotated frame sequence. Closed when
// the session stops.
func (s *Session) Frames() <-chan OutputFrame {
	return s.pipeline.Frames()
}

// Reload re-reads the roster from the source. Mark state resets even
// when the load fails; marking resumes from a clean slate either way.
func (s *Session) Reload(ctx context.Context) (int, error) {
	return s.cache.Load(ctx, s.rosterSrc)
}

// Stop cancels the pipeline and blocks until the capture resource is
// released and the output channel is closed. Safe to call more than
// once.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
}

// Err reports the terminal pipeline error, if any. Nil while the
// session is live.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Status is a point-in-time view of a session for the API.
type Status struct {
	SessionID  string    `json:"session_id"`
	ClassID    string    `json:"class_id"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	RosterSize int       `json:"roster_size"`
	Marked     int       `json:"marked"`
	FramesRead uint64    `json:"frames_read"`
	Error      string    `json:"error,omitempty"`
}

// Status snapshots the session.
func (s *Session) Status() Status {
	size, marked := s.cache.Counts()
	st := Status{
		SessionID:  s.ID,
		ClassID:    s.ClassID,
		State:      s.pipeline.State().String(),
		StartedAt:  s.StartedAt,
		RosterSize: size,
		Marked:     marked,
		FramesRead: s.pipeline.source.Stats().FramesRead,
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Deps wires the manager to the rest of the system.
type Deps struct {
	// NewSource builds the capture source for a class, typically a
	// network camera resolved from configuration.
	NewSource func(classID string) capture.Source
	Detector  vision.Detector
	Roster    roster.Source
	Sink      attendance.Sink
	Publisher attendance.Publisher

	EmbeddingDim int
	Tolerance    float64
	Cooldown     time.Duration
	Pipeline     Config

	Log *slog.Logger
}

// Manager tracks live sessions, at most one per class. Sessions
// remove themselves when their pipeline ends, so a crashed camera
// does not leave a zombie entry behind.
type Manager struct {
	deps Deps
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds an empty session registry.
func NewManager(deps Deps) *Manager {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		deps:     deps,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Start begins a session for the class, or returns the live one.
// The boolean reports whether a new session was created. The roster
// load happens before the first frame; a failed load is logged and
// the session streams with an empty roster until a reload succeeds.
func (m *Manager) Start(ctx context.Context, classID string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[classID]; ok {
		return existing, false, nil
	}

	cache := roster.New(classID, m.deps.EmbeddingDim, m.deps.Cooldown)
	if n, err := cache.Load(ctx, m.deps.Roster); err != nil {
		m.log.Error("roster load failed, starting with empty roster", "class", classID, "err", err)
	} else {
		m.log.Info("roster loaded", "class", classID, "students", n)
	}

	// The session must outlive the request that started it.
	runCtx, cancel := context.WithCancel(context.Background())

	sess := &Session{
		ID:        uuid.New().String(),
		ClassID:   classID,
		StartedAt: time.Now(),
		cache:     cache,
		rosterSrc: m.deps.Roster,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	sess.pipeline = New(classID, m.deps.NewSource(classID), m.deps.Detector, cache,
		match.New(m.deps.Tolerance), m.deps.Sink, m.deps.Publisher, m.deps.Pipeline, m.log)

	m.sessions[classID] = sess
	m.log.Info("session started", "class", classID, "session", sess.ID)

	go func() {
		defer close(sess.done)
		if err := sess.pipeline.Run(runCtx); err != nil {
			sess.setErr(err)
		}
		m.remove(classID, sess)
		m.log.Info("session ended", "class", classID, "session", sess.ID)
	}()

	return sess, true, nil
}

// Get returns the live session for a class.
func (m *Manager) Get(classID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[classID]
	return s, ok
}

// Stop ends the live session for a class and waits for it to wind
// down. Returns ErrSessionNotFound when there is none.
func (m *Manager) Stop(classID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[classID]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Stop()
	return nil
}

// Reload refreshes the roster of the live session for a class.
func (m *Manager) Reload(ctx context.Context, classID string) (int, error) {
	m.mu.Lock()
	sess, ok := m.sessions[classID]
	m.mu.Unlock()
	if !ok {
		return 0, ErrSessionNotFound
	}
	return sess.Reload(ctx)
}

// MarkExternal forwards a manual mark to the live session for a class,
// if any. Without a session there is nothing to suppress and the mark
// lives in storage alone.
func (m *Manager) MarkExternal(classID, studentID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[classID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return sess.MarkExternal(studentID)
}

// List snapshots all live sessions.
func (m *Manager) List() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	return out
}

// StopAll winds down every live session, used on server shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}

func (m *Manager) remove(classID string, sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.sessions[classID]; ok && current == sess {
		delete(m.sessions, classID)
	}
}
