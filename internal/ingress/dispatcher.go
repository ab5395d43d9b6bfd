package ingress

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/circuit"
	"github.com/KingSajxxd/f1-relay/internal/codec"
	"github.com/KingSajxxd/f1-relay/internal/derivation"
	"github.com/KingSajxxd/f1-relay/internal/egress"
	"github.com/KingSajxxd/f1-relay/internal/metrics"
	"github.com/KingSajxxd/f1-relay/internal/store"
)

// broadcastFeeds get applied to the store and broadcast as a plain
// {type: feedName, data: payload} envelope.
var broadcastFeeds = map[string]bool{
	"RaceControlMessages": true,
	"TeamRadio":           true,
	"SessionStatus":       true,
	"WeatherData":         true,
	"TimingAppData":       true,
}

// Dispatcher wires Codec, Store, Derivation, and Egress together to
// implement the Ingress component's frame/feed dispatch table.
type Dispatcher struct {
	store *store.Store
	bus   *egress.Bus
	log   zerolog.Logger

	mu         sync.Mutex
	sessionKey string
	meetingKey string
}

// New creates a Dispatcher over the given Store and Bus.
func New(s *store.Store, bus *egress.Bus, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: s, bus: bus, log: log}
}

// recoverFrame catches any panic raised while applying a single frame —
// a malformed upstream payload hitting an unanticipated shape — so the
// ingestion task survives it and continues with the next frame.
func (d *Dispatcher) recoverFrame(kind string) {
	if r := recover(); r != nil {
		d.log.Error().Interface("panic", r).Str("frame_kind", kind).Msg("recovered from panic while applying frame")
	}
}

// broadcast wraps Bus.Broadcast with the per-type counter.
func (d *Dispatcher) broadcast(eventType string, data any) {
	d.bus.Broadcast(eventType, data)
	metrics.BroadcastsTotal.WithLabelValues(eventType).Inc()
}

// HandleText parses a text frame and dispatches it as a snapshot or
// incremental update. arrival is the UTC time the frame was received,
// used for all lap/pit timestamp derivations.
func (d *Dispatcher) HandleText(raw string, arrival time.Time) {
	defer d.recoverFrame("text")
	metrics.FramesReceivedTotal.WithLabelValues("text").Inc()

	var frame map[string]any
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		d.log.Debug().Err(err).Msg("ignoring non-JSON text frame")
		return
	}

	switch kind, payload := ClassifyFrame(frame); kind {
	case FrameSnapshot:
		d.handleSnapshot(payload, arrival)
	case FrameIncremental:
		d.handleIncremental(payload, arrival)
	default:
		// Handshake acks and other control frames carry neither R nor M
		// and are ignored.
	}
}

// HandleBinary decodes a binary frame with the Codec and routes it to
// CarData by default — binary-frame routing upstream is not
// self-describing, so this is a fixed convention rather than a
// dynamically-resolved target.
func (d *Dispatcher) HandleBinary(raw []byte, arrival time.Time) {
	defer d.recoverFrame("binary")
	metrics.FramesReceivedTotal.WithLabelValues("binary").Inc()

	decoded, ok := codec.Decode(raw)
	if !ok {
		metrics.DecodeFailuresTotal.WithLabelValues("CarData").Inc()
		d.log.Debug().Msg("dropping undecodable binary frame")
		return
	}
	d.store.Apply("CarData", decoded)
	d.broadcast("CarData", decoded)
}

func (d *Dispatcher) handleSnapshot(payload any, arrival time.Time) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return
	}

	for feedName, raw := range obj {
		name, effective := feedName, raw
		if stripped, compressed := codec.StripSuffix(feedName); compressed {
			decoded, ok := codec.Decode(raw)
			if !ok {
				metrics.DecodeFailuresTotal.WithLabelValues(stripped).Inc()
				continue
			}
			name, effective = stripped, decoded
		}

		if name == "LapCount" {
			continue
		}
		if name == "SessionInfo" {
			d.applySessionInfo(effective, arrival)
			continue
		}
		d.store.Apply(name, effective)
	}

	// The full state goes out bare, matching the initial frame a new
	// subscriber receives — not wrapped in a {type, data} envelope.
	d.bus.BroadcastSnapshot(d.store.Snapshot())
	metrics.BroadcastsTotal.WithLabelValues("Snapshot").Inc()
}

func (d *Dispatcher) handleIncremental(payload any, arrival time.Time) {
	updates, ok := payload.([]any)
	if !ok {
		return
	}
	for _, raw := range updates {
		upd, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		a, ok := upd["A"].([]any)
		if !ok || len(a) < 2 {
			continue
		}
		feedName, ok := a[0].(string)
		if !ok {
			continue
		}
		d.dispatchFeed(feedName, a[1], arrival)
	}
}

func (d *Dispatcher) dispatchFeed(feedName string, payload any, arrival time.Time) {
	switch {
	case feedName == "TimingData":
		d.handleTimingData(payload, arrival)

	case feedName == "SessionInfo":
		d.applySessionInfo(payload, arrival)
		d.broadcast("SessionInfo", payload)

	case feedName == "LapCount":
		// Discarded: the upstream LapCount feed is known-bad.

	case broadcastFeeds[feedName]:
		d.store.Apply(feedName, payload)
		d.broadcast(feedName, payload)
		if feedName == "TeamRadio" {
			for _, capture := range store.FlattenTeamRadioCaptures(payload) {
				d.broadcast("NewTeamRadio", capture)
			}
		}

	default:
		d.store.Apply(feedName, payload)
	}
}

func (d *Dispatcher) handleTimingData(payload any, arrival time.Time) {
	deltaObj, ok := payload.(map[string]any)
	if !ok {
		d.log.Warn().Msg("dropping non-object TimingData delta")
		return
	}
	d.store.Apply("TimingData", deltaObj)

	deltaLines := linesOf(deltaObj)
	mergedLines := d.store.TimingDataLines()

	current := derivation.LapCounter(mergedLines)
	d.store.SetLapCountCurrent(current)
	_, total := d.store.LapCount()
	d.broadcast("LapCount", map[string]any{"CurrentLap": current, "TotalLaps": total})

	d.mu.Lock()
	sessionKey, meetingKey := d.sessionKey, d.meetingKey
	d.mu.Unlock()

	for _, rec := range derivation.DetectLaps(deltaLines, mergedLines, arrival, sessionKey, meetingKey) {
		d.store.AppendLap(rec)
		d.broadcast("NewLap", rec)
		metrics.LapsDerivedTotal.Inc()
	}

	priorPits := d.store.DriversInPits()
	newPits, pitRecs := derivation.DetectPits(deltaLines, mergedLines, priorPits, arrival, sessionKey, meetingKey)
	d.store.SetDriversInPits(newPits)
	for _, rec := range pitRecs {
		d.store.AppendPit(rec)
		d.broadcast("NewPitStop", rec)
		metrics.PitStopsDerivedTotal.Inc()
	}

	d.broadcast("TimingData", deltaObj)
}

func (d *Dispatcher) applySessionInfo(payload any, _ time.Time) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return
	}
	d.store.Apply("SessionInfo", obj)

	d.mu.Lock()
	if key, ok := obj["Key"]; ok {
		d.sessionKey = toKeyString(key)
	}
	if meeting, ok := obj["Meeting"].(map[string]any); ok {
		if key, ok := meeting["Key"]; ok {
			d.meetingKey = toKeyString(key)
		}
	}
	d.mu.Unlock()

	if short, ok := circuitShortName(obj); ok {
		d.store.SetLapCountTotal(circuit.Lookup(short))
	}
}

func circuitShortName(sessionInfo map[string]any) (string, bool) {
	meeting, ok := sessionInfo["Meeting"].(map[string]any)
	if !ok {
		return "", false
	}
	c, ok := meeting["Circuit"].(map[string]any)
	if !ok {
		return "", false
	}
	name, ok := c["ShortName"].(string)
	return name, ok
}

func linesOf(timingData map[string]any) map[string]any {
	lines, _ := timingData["Lines"].(map[string]any)
	if lines == nil {
		return map[string]any{}
	}
	return lines
}

func toKeyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
