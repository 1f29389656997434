package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"evregistry/core/events"
	"evregistry/core/types"
	"evregistry/observability"
)

const (
	wsWriteTimeout = 10 * time.Second

	// Per-subscriber buffer. Slow consumers drop events rather than
	// stalling the registry's write path.
	subscriberBuffer = 64
)

// EventHub fans registry events out to websocket subscribers. It implements
// events.Emitter so it can be wired directly as the registry's sink.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan *types.Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan *types.Event]struct{})}
}

// Emit renders the event and delivers it to every subscriber. Delivery is
// best effort: a full subscriber channel drops the event for that subscriber.
func (h *EventHub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	recorder, ok := evt.(events.Recorder)
	if !ok {
		return
	}
	rendered := recorder.Event()
	if rendered == nil {
		return
	}
	observability.Events().RecordPublished(rendered.Type)

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub <- rendered.Clone():
		default:
			observability.Events().RecordDropped(rendered.Type)
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away; it closes the channel.
func (h *EventHub) Subscribe() (<-chan *types.Event, func()) {
	ch := make(chan *types.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.hub == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
