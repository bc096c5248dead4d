package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait        = 10 * time.Second
	clientBufferSize = 64
)

// Hub pushes events to connected websocket dashboards. The audit trail
// is written synchronously elsewhere; hub delivery is best-effort and
// dashboard consumers de-duplicate by (campaign_id, type, timestamp).
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	send chan Event
}

// NewHub creates a websocket hub and subscribes it to the emitter.
func NewHub(emitter *Emitter, log zerolog.Logger) *Hub {
	h := &Hub{
		log:     log.With().Str("component", "event_hub").Logger(),
		clients: make(map[*hubClient]struct{}),
	}
	emitter.Subscribe(h.broadcast)
	return h
}

// broadcast fans an event out to every connected client. Clients whose
// buffer is full miss the event rather than stalling the emitter.
func (h *Hub) broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.log.Warn().
				Uint64("seq", event.Sequence).
				Msg("Client buffer full, event skipped")
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &hubClient{send: make(chan Event, clientBufferSize)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Int("clients", count).Msg("Dashboard client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		h.log.Info().Msg("Dashboard client disconnected")
	}()

	// Reads are discarded; the stream is push-only
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

// ClientCount returns the number of connected dashboard clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
