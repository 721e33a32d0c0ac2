package linkserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/navkit-dev/navkit/observability"
)

// clientBuffer bounds the per-client event backlog.
const clientBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// StreamBridge fans observability events out to connected stream clients.
// It implements observability.Observer, so it can sit in the engine's
// observer fan-out next to a logger.
//
// Each client gets a buffered channel. When a slow client's buffer fills,
// the oldest buffered event is dropped to make room; emitters never block.
type StreamBridge struct {
	mu      sync.RWMutex
	nextID  int
	clients map[int]chan observability.Event
}

// NewStreamBridge creates an empty bridge.
func NewStreamBridge() *StreamBridge {
	return &StreamBridge{clients: make(map[int]chan observability.Event)}
}

// OnEvent implements observability.Observer.
func (b *StreamBridge) OnEvent(_ context.Context, event observability.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.clients {
		select {
		case ch <- event:
			continue
		default:
		}
		// Buffer full: evict the oldest event, then retry once. The
		// reader may have drained concurrently, so the retry can still
		// lose the race; dropping the new event then is acceptable.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// Clients returns the number of connected stream clients.
func (b *StreamBridge) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *StreamBridge) subscribe() (int, <-chan observability.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan observability.Event, clientBuffer)
	b.clients[id] = ch
	return id, ch
}

func (b *StreamBridge) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, id)
}

type eventPayload struct {
	Type   string         `json:"type"`
	Level  string         `json:"level"`
	Time   time.Time      `json:"time"`
	Scope  string         `json:"scope"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer conn.Close()

	id, events := s.bridge.subscribe()
	defer s.bridge.unsubscribe(id)
	s.logger.Info("event stream client connected", "client", id)

	// Drain the client side so pings and close frames are processed; any
	// read error means the client went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			payload := eventPayload{
				Type:   string(event.Type),
				Level:  event.Level.String(),
				Time:   event.Time,
				Scope:  event.Scope,
				Fields: event.Fields,
			}
			if err := conn.WriteJSON(payload); err != nil {
				s.logger.Info("event stream client disconnected", "client", id, "error", err.Error())
				return
			}
		case <-done:
			s.logger.Info("event stream client disconnected", "client", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}
