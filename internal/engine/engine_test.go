package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestShutdownWritesFinalStateAndClosesSubscribers(t *testing.T) {
	e := New(8, zerolog.Nop())

	ch, cancel := e.Bus.Subscribe(e.Store.Snapshot())
	defer cancel()
	<-ch // drain initial snapshot

	e.Dispatcher.HandleText(`{"M":[{"A":["WeatherData",{"AirTemp":"25.0"}]}]}`, time.Now().UTC())
	<-ch // drain the WeatherData broadcast

	dir := t.TempDir()
	path := filepath.Join(dir, "final_structured_state.json")

	if err := e.Shutdown(context.Background(), path); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read final state: %v", err)
	}
	var snap map[string]any
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal final state: %v", err)
	}
	weather, ok := snap["WeatherData"].(map[string]any)
	if !ok || weather["AirTemp"] != "25.0" {
		t.Errorf("WeatherData = %#v, want AirTemp 25.0", snap["WeatherData"])
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected subscriber channel to be closed after Shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel never closed")
	}
}
