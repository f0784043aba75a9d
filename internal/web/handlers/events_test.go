package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/classeye/classeye/internal/attendance"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	first := b.AddListener()
	second := b.AddListener()

	b.Publish(attendance.TopicNewAttendance, attendance.Event{Name: "Alice Benes", ID: "s1"})

	for name, ch := range map[string]chan BroadcastEvent{"first": first, "second": second} {
		select {
		case got := <-ch:
			if got.Type != attendance.TopicNewAttendance || got.Data.ID != "s1" {
				t.Errorf("%s listener got unexpected event %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s listener never received the event", name)
		}
	}
}

func TestBroadcaster_SlowListenerLosesEventsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventChannelBuffer+10; i++ {
			b.Publish(attendance.TopicNewAttendance, attendance.Event{ID: "s1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a full listener")
	}
	if got := len(ch); got != eventChannelBuffer {
		t.Errorf("expected buffer capped at %d queued events, got %d", eventChannelBuffer, got)
	}
}

func TestBroadcaster_RemoveListenerClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener()
	b.RemoveListener(ch)

	if _, ok := <-ch; ok {
		t.Error("expected removed listener channel to be closed")
	}
	if got := b.ListenerCount(); got != 0 {
		t.Errorf("expected no listeners, got %d", got)
	}

	// Publishing with no listeners is a no-op.
	b.Publish(attendance.TopicNewAttendance, attendance.Event{ID: "s1"})
}

func TestEventsHandler_Stream(t *testing.T) {
	b := NewBroadcaster()
	h := NewEventsHandler(b)
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting to SSE endpoint: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if event := readSSEEvent(t, reader); event != "connected" {
		t.Fatalf("expected connected handshake, got %q", event)
	}

	// The handshake proves the listener is registered; publishing now
	// must reach this subscriber.
	b.Publish(attendance.TopicNewAttendance, attendance.Event{
		Name: "Alice Benes", ID: "s1", Time: "09:00:00", Confidence: 0.93,
	})

	if event := readSSEEvent(t, reader); event != attendance.TopicNewAttendance {
		t.Errorf("expected %s event, got %q", attendance.TopicNewAttendance, event)
	}
}

func TestEventsHandler_DisconnectRemovesListener(t *testing.T) {
	b := NewBroadcaster()
	h := NewEventsHandler(b)
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting to SSE endpoint: %v", err)
	}
	readSSEEvent(t, bufio.NewReader(resp.Body))

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(5 * time.Second)
	for b.ListenerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("listener was not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// readSSEEvent consumes one SSE event and returns its type. The data
// payload must parse as JSON.
func readSSEEvent(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	var eventType string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var payload any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
				t.Fatalf("SSE data is not valid JSON: %v", err)
			}
		case line == "" && eventType != "":
			return eventType
		}
	}
}
