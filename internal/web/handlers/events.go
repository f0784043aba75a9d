package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/classeye/classeye/internal/attendance"
)

// eventChannelBuffer sizes each subscriber's channel. A subscriber
// that falls further behind than this loses events.
const eventChannelBuffer = 32

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 30 * time.Second

// BroadcastEvent is the envelope delivered to each SSE subscriber.
type BroadcastEvent struct {
	Type string           `json:"type"`
	Data attendance.Event `json:"data"`
}

// Broadcaster fans attendance events out to connected SSE clients.
// Delivery is best effort: a slow subscriber loses events rather than
// stalling the recognition loop that publishes them.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan BroadcastEvent
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

var _ attendance.Publisher = (*Broadcaster)(nil)

// Publish sends an attendance event to all listeners.
func (b *Broadcaster) Publish(topic string, event attendance.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e := BroadcastEvent{Type: topic, Data: event}
	for _, listener := range b.listeners {
		select {
		case listener <- e:
		default:
			// Listener buffer full, skip.
		}
	}
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan BroadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan BroadcastEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *Broadcaster) RemoveListener(ch chan BroadcastEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// ListenerCount reports the number of connected subscribers.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// EventsHandler streams attendance events to dashboards via SSE.
type EventsHandler struct {
	broadcaster *Broadcaster
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(b *Broadcaster) *EventsHandler {
	return &EventsHandler{broadcaster: b}
}

// Stream subscribes the client to the live event feed until it
// disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := h.broadcaster.AddListener()
	defer h.broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "connected", map[string]string{"status": "ok"})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		case <-heartbeat.C:
			// SSE comment line, ignored by EventSource clients.
			_, _ = io.WriteString(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
