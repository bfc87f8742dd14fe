package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/otel"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// Event is published on /stream whenever a record changes.
type Event struct {
	Seq    uint64    `json:"seq"`              // assigned by the hub, also the SSE id
	Type   string    `json:"type"`             // project_update, task_update, team_update, pillar_update, review_update
	Action string    `json:"action,omitempty"` // create, update, delete, start, complete
	ID     any       `json:"id,omitempty"`
	At     time.Time `json:"at"`

	data []byte // encoded once at publish
}

// EventHub fans change events out to /stream subscribers. A subscriber that falls
// behind by more than its buffer loses events rather than stalling publishers.
type EventHub struct {
	seq  atomic.Uint64
	mu   sync.RWMutex
	subs map[chan Event]*subscriber
}

type subscriber struct {
	dropped atomic.Uint64
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]*subscriber)}
}

// Subscribe registers a buffered channel of events; release it with Unsubscribe.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, models.DefaultSSEChannelBuffer)
	h.mu.Lock()
	h.subs[ch] = &subscriber{}
	h.mu.Unlock()
	otel.AddSSEConnection()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	sub, ok := h.subs[ch]
	if ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	otel.RemoveSSEConnection()
	if n := sub.dropped.Load(); n > 0 {
		slog.Warn("stream subscriber dropped events", "dropped", n)
	}
}

// Publish stamps ev with the next sequence number and delivers it to every subscriber.
// An event that cannot be encoded is logged and not delivered.
func (h *EventHub) Publish(ev Event) {
	ev.Seq = h.seq.Add(1)
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("stream event not encoded", "type", ev.Type, "action", ev.Action, "err", err)
		return
	}
	ev.data = data
	otel.RecordSSEEvent(context.Background())

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, sub := range h.subs {
		select {
		case ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Handler serves /stream as text/event-stream. Each event is one "id:"/"data:" frame.
func (h *EventHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.Subscribe()
		defer h.Unsubscribe(ch)

		_, _ = fmt.Fprintf(w, "retry: 3000\ndata: {\"type\":\"connected\",\"seq\":%d}\n\n", h.seq.Load())
		flusher.Flush()

		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.Seq, ev.data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
