package api

import (
	"net/http"
	"time"
)

// ConnectionStatus reports whether the ingestion task currently holds a
// live upstream connection. Replay mode has no such notion and always
// reports connected, since the replay driver has no reconnect loop to
// surface failures from.
type ConnectionStatus interface {
	IsConnected() bool
}

// HealthResponse is the /healthz response body.
type HealthResponse struct {
	Status         string `json:"status"`
	Mode           string `json:"mode"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Connected      bool   `json:"connected"`
	Subscribers    int    `json:"subscribers"`
	CurrentLap     int    `json:"current_lap"`
	TotalLaps      int    `json:"total_laps"`
}

// HealthHandler reports process liveness plus a thin summary of engine
// state: upstream connectivity, subscriber count, and the current lap
// counter.
type HealthHandler struct {
	mode        string
	startTime   time.Time
	conn        ConnectionStatus
	store       SnapshotSource
	subscribers SubscriberCounter
}

// SnapshotSource is the subset of store.Store the health handler needs.
type SnapshotSource interface {
	LapCount() (current, total int)
}

// SubscriberCounter is the subset of egress.Bus the health handler needs.
type SubscriberCounter interface {
	SubscriberCount() int
}

func NewHealthHandler(mode string, startTime time.Time, conn ConnectionStatus, store SnapshotSource, subscribers SubscriberCounter) *HealthHandler {
	return &HealthHandler{mode: mode, startTime: startTime, conn: conn, store: store, subscribers: subscribers}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connected := true
	if h.conn != nil {
		connected = h.conn.IsConnected()
	}
	current, total := h.store.LapCount()

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Mode:          h.mode,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Connected:     connected,
		Subscribers:   h.subscribers.SubscriberCount(),
		CurrentLap:    current,
		TotalLaps:     total,
	})
}
