package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/capture"
	"github.com/classeye/classeye/internal/pipeline"
	"github.com/classeye/classeye/internal/roster"
	"github.com/classeye/classeye/internal/storage"
	"github.com/classeye/classeye/internal/storage/mock"
	"github.com/classeye/classeye/internal/vision"
)

// testDate matches the clock returned by fixedClock.
const testDate = "2026-03-09"

// fixedClock returns a deterministic now function for date assertions.
func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)
	}
}

// quietLogger discards log output in tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// noFaceDetector never detects anything. Session tests here exercise
// lifecycle and transport, not recognition.
type noFaceDetector struct{}

func (noFaceDetector) Detect(ctx context.Context, imageData []byte) ([]vision.Face, error) {
	return nil, nil
}

// staticRoster serves a fixed roster for every class.
type staticRoster struct {
	students map[string]roster.SourceRecord
}

func (s staticRoster) Query(ctx context.Context, classID string) (map[string]roster.SourceRecord, error) {
	return s.students, nil
}

// newTestManager builds a session manager over endless synthetic
// cameras and stops every session when the test ends.
func newTestManager(t *testing.T, sink attendance.Sink, pub attendance.Publisher) *pipeline.Manager {
	t.Helper()
	m := pipeline.NewManager(pipeline.Deps{
		NewSource: func(classID string) capture.Source {
			return capture.NewSynthetic(64, 48, 30, 0)
		},
		Detector: noFaceDetector{},
		Roster: staticRoster{students: map[string]roster.SourceRecord{
			"s1": {Name: "Alice Benes", RollNo: "7", Embedding: []float32{1, 0, 0, 0}},
		}},
		Sink:         sink,
		Publisher:    pub,
		EmbeddingDim: 4,
		Tolerance:    0.45,
		Cooldown:     3 * time.Second,
		Pipeline: pipeline.Config{
			FrameSkip:    2,
			Downscale:    0.25,
			JPEGQuality:  80,
			BufferFrames: 4,
		},
		Log: quietLogger(),
	})
	t.Cleanup(m.StopAll)
	return m
}

// seededStudents returns a student store with two math students (one
// without an embedding) and one from another class.
func seededStudents() *mock.StudentStore {
	store := mock.NewStudentStore()
	store.AddStudent(storage.Student{
		ID: "s1", ClassID: "math-101", Name: "Alice Benes", RollNo: "7",
		Embedding: []float32{1, 0, 0, 0}, Dim: 4, Model: "small",
	})
	store.AddStudent(storage.Student{
		ID: "s2", ClassID: "math-101", Name: "Bao Tran", RollNo: "12",
	})
	store.AddStudent(storage.Student{
		ID: "s3", ClassID: "bio-2", Name: "Carla Dvorak", RollNo: "3",
		Embedding: []float32{0, 1, 0, 0}, Dim: 4, Model: "small",
	})
	return store
}
