// Package derivation synthesizes higher-level domain events — completed
// laps, pit stops, and a corrected lap counter — from raw TimingData
// deltas. Each detector is a pure function of (priorState, delta,
// arrivalTime), so none of them need a live socket to test.
package derivation

import (
	"math"
	"strconv"
)

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asIndexedObject normalizes a field that the upstream sends either as an
// ordered list or as a sparse numerically-keyed map — e.g. TimingData's
// Sectors and TimingAppData's Stints — into a map keyed by
// string index, so callers can look up "0", "1", "2" regardless of which
// shape arrived.
func asIndexedObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		out := make(map[string]any, len(t))
		for i, item := range t {
			out[strconv.Itoa(i)] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func asBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func asString(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// valueField reads m[key].Value as a string, the common shape for
// upstream sub-objects like LastLapTime, Sectors.N, and Speeds.*.
func valueField(m map[string]any, key string) (string, bool) {
	sub, ok := asObject(m[key])
	if !ok {
		return "", false
	}
	return asString(sub, "Value")
}

// numberOfLaps reads the driver entry's NumberOfLaps as an int, tolerant
// of the upstream's float64-via-JSON representation.
func numberOfLaps(driver map[string]any) (int, bool) {
	switch v := driver["NumberOfLaps"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// round2 rounds to 2 decimal places, the pit-duration precision used
// downstream.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// parseDriverID converts a driver-id map key ("44") to its numeric form.
func parseDriverID(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, false
	}
	return n, true
}
