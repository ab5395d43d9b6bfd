package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeConn struct{ connected bool }

func (f fakeConn) IsConnected() bool { return f.connected }

type fakeSnapshotSource struct{ current, total int }

func (f fakeSnapshotSource) LapCount() (int, int) { return f.current, f.total }

type fakeSubscriberCounter struct{ n int }

func (f fakeSubscriberCounter) SubscriberCount() int { return f.n }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name          string
		conn          ConnectionStatus
		wantConnected bool
	}{
		{"live_connected", fakeConn{connected: true}, true},
		{"live_disconnected", fakeConn{connected: false}, false},
		{"replay_nil_conn_reports_connected", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("LIVE", time.Now().Add(-time.Minute), tt.conn,
				fakeSnapshotSource{current: 12, total: 58}, fakeSubscriberCounter{n: 3})

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Connected != tt.wantConnected {
				t.Errorf("Connected = %v, want %v", resp.Connected, tt.wantConnected)
			}
			if resp.CurrentLap != 12 || resp.TotalLaps != 58 {
				t.Errorf("CurrentLap/TotalLaps = %d/%d, want 12/58", resp.CurrentLap, resp.TotalLaps)
			}
			if resp.Subscribers != 3 {
				t.Errorf("Subscribers = %d, want 3", resp.Subscribers)
			}
			if resp.UptimeSeconds < 0 {
				t.Errorf("UptimeSeconds = %d, want >= 0", resp.UptimeSeconds)
			}
		})
	}
}
