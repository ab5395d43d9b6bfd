package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// SnapshotBus is the subset of egress.Bus the WebSocket handler needs:
// register a subscriber (receiving the current snapshot first), and
// unregister on disconnect.
type SnapshotBus interface {
	Subscribe(snapshot map[string]any) (<-chan []byte, func())
}

// StoreSnapshotter is the subset of store.Store the WebSocket handler
// needs to hand a new subscriber its initial state.
type StoreSnapshotter interface {
	Snapshot() map[string]any
}

// WSHandler upgrades a connection and relays broadcast envelopes to the
// subscriber, implementing the downstream subscriber protocol. Inbound
// subscriber traffic is read and discarded — liveness only.
type WSHandler struct {
	bus      SnapshotBus
	store    StoreSnapshotter
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(bus SnapshotBus, store StoreSnapshotter, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		bus:   bus,
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, cancel := h.bus.Subscribe(h.store.Snapshot())
	defer cancel()

	done := make(chan struct{})
	go h.discardInbound(conn, done)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// discardInbound reads and discards subscriber-to-server traffic
// (liveness only), closing done when the connection drops.
func (h *WSHandler) discardInbound(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
