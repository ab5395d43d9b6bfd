// Package store holds the engine's single authoritative in-memory
// projection of the upstream feed: one slot per feed name, each governed
// by the merge/append/replace/derived policy declared for that feed.
//
// Concurrency: all mutations are serialized behind a single mutex (the
// ingestion task is the sole writer); readers (the request-serving task)
// take Snapshot for a deep-cloned, lock-free view.
package store

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/merge"
)

// Store is the engine's state projection. Zero value is not usable; use New.
type Store struct {
	mu  sync.Mutex
	log zerolog.Logger

	slots         map[string]any
	lapHistory    []LapRecord
	pitHistory    []PitRecord
	driversInPits map[string]PitEntry

	lapCountCurrent int
	lapCountTotal   int
}

// New creates an empty Store with every feed slot initialized to its
// zero shape.
func New(log zerolog.Logger) *Store {
	return &Store{
		log: log,
		slots: map[string]any{
			"DriverList":          map[string]any{},
			"TimingData":          map[string]any{"Lines": map[string]any{}},
			"TimingAppData":       map[string]any{"Lines": map[string]any{}},
			"TimingStats":         map[string]any{"Lines": map[string]any{}},
			"TopThree":            map[string]any{},
			"SessionInfo":         map[string]any{},
			"WeatherData":         map[string]any{},
			"TrackStatus":         map[string]any{},
			"SessionStatus":       map[string]any{},
			"CarData":             map[string]any{"Entries": []any{}},
			"Position":            map[string]any{"Position": []any{}},
			"RaceControlMessages": []any{},
			"TeamRadio":           []any{},
		},
		driversInPits:   make(map[string]PitEntry),
		lapCountCurrent: 1,
	}
}

// Apply dispatches payload onto feed according to its declared policy.
// Returns true if the payload was applied (at least partially).
func (s *Store) Apply(feed string, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, known := PolicyFor(feed)
	if !known {
		// Unrecognized feed: apply silently as a wholesale replace.
		s.slots[feed] = payload
		return true
	}

	switch policy {
	case PolicyMerge:
		obj, ok := payload.(map[string]any)
		if !ok {
			s.log.Warn().Str("feed", feed).Msg("dropping non-object payload for merge-policy slot")
			return false
		}
		existing, _ := s.slots[feed].(map[string]any)
		s.slots[feed] = merge.Deep(existing, obj)
		return true

	case PolicyReplace:
		s.slots[feed] = payload
		return true

	case PolicyAppend:
		return s.applyAppend(feed, payload)

	case PolicyDerived:
		// LapCount frames from upstream are discarded — only the
		// derivation engine may set LapCount, via SetLapCountCurrent and
		// SetLapCountTotal.
		s.log.Debug().Str("feed", feed).Msg("discarding upstream-derived feed payload")
		return false
	}
	return false
}

func (s *Store) applyAppend(feed string, payload any) bool {
	switch feed {
	case "RaceControlMessages":
		messages := flattenRaceControlMessages(payload)
		applied := false
		list, _ := s.slots[feed].([]any)
		for _, m := range messages {
			if !hasRaceControlFields(m) {
				continue
			}
			list = append(list, m)
			applied = true
		}
		s.slots[feed] = list
		return applied

	case "TeamRadio":
		captures := flattenTeamRadioCaptures(payload)
		list, _ := s.slots[feed].([]any)
		list = append(list, captures...)
		s.slots[feed] = list
		return len(captures) > 0

	default:
		list, _ := s.slots[feed].([]any)
		s.slots[feed] = append(list, payload)
		return true
	}
}

// flattenRaceControlMessages normalizes the several shapes the upstream
// sends RaceControlMessages in — {Messages: [...]}, {Messages: {...}}, a
// bare list, or a bare object — into a flat slice of individual messages.
// A bare top-level object is one message; the value under "Messages" is a
// container (list, or sparse numerically-keyed map) holding many.
func flattenRaceControlMessages(payload any) []any {
	if obj, ok := payload.(map[string]any); ok {
		if inner, ok := obj["Messages"]; ok {
			return messagesOf(inner)
		}
		return []any{obj}
	}
	if list, ok := payload.([]any); ok {
		return list
	}
	return nil
}

// messagesOf flattens a "Messages" container: a list as-is, or a sparse
// numerically-keyed map ({"0": ..., "1": ...}) in index order.
func messagesOf(inner any) []any {
	switch v := inner.(type) {
	case []any:
		return v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, aerr := strconv.Atoi(keys[i])
			b, berr := strconv.Atoi(keys[j])
			if aerr == nil && berr == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		out := make([]any, 0, len(v))
		for _, k := range keys {
			out = append(out, v[k])
		}
		return out
	default:
		return nil
	}
}

func hasRaceControlFields(m any) bool {
	obj, ok := m.(map[string]any)
	if !ok {
		return false
	}
	_, hasUtc := obj["Utc"]
	_, hasCategory := obj["Category"]
	_, hasMessage := obj["Message"]
	return hasUtc && hasCategory && hasMessage
}

// flattenTeamRadioCaptures normalizes {Captures: [...]} / bare list / bare
// object into a flat slice, appended as-is with no field validation.
func flattenTeamRadioCaptures(payload any) []any {
	return FlattenTeamRadioCaptures(payload)
}

// FlattenTeamRadioCaptures is exported so Ingress can derive the same
// per-capture list for its one-broadcast-per-capture NewTeamRadio rule
// without duplicating the flattening logic.
func FlattenTeamRadioCaptures(payload any) []any {
	if obj, ok := payload.(map[string]any); ok {
		if inner, ok := obj["Captures"]; ok {
			return FlattenTeamRadioCaptures(inner)
		}
		return []any{obj}
	}
	if list, ok := payload.([]any); ok {
		return list
	}
	return nil
}

// TimingDataLines returns a deep clone of the current TimingData.Lines
// map, for the derivation engine to read post-apply merged driver state.
func (s *Store) TimingDataLines() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timingDataLinesLocked()
}

func (s *Store) timingDataLinesLocked() map[string]any {
	td, _ := s.slots["TimingData"].(map[string]any)
	lines, _ := td["Lines"].(map[string]any)
	if lines == nil {
		return map[string]any{}
	}
	return merge.Clone(lines).(map[string]any)
}

// SetLapCountTotal records the most recent circuit-lookup-derived total,
// independent of CurrentLap recomputation.
func (s *Store) SetLapCountTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapCountTotal = total
}

// SetLapCountCurrent records the recomputed CurrentLap.
func (s *Store) SetLapCountCurrent(current int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapCountCurrent = current
}

// LapCount returns the current derived {CurrentLap, TotalLaps} pair.
func (s *Store) LapCount() (current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lapCountCurrent, s.lapCountTotal
}

// DriversInPits returns a copy of the current pit-entry tracking map.
func (s *Store) DriversInPits() map[string]PitEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PitEntry, len(s.driversInPits))
	for k, v := range s.driversInPits {
		out[k] = v
	}
	return out
}

// SetDriversInPits replaces the pit-entry tracking map wholesale. The
// derivation engine computes the next map from the current one and
// hands it back via this setter, keeping Derivation itself pure.
func (s *Store) SetDriversInPits(m map[string]PitEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driversInPits = m
}

// AppendLap unconditionally appends a completed lap record to the derived
// history.
func (s *Store) AppendLap(rec LapRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapHistory = append(s.lapHistory, rec)
}

// AppendPit unconditionally appends a completed pit-stop record to the
// derived history.
func (s *Store) AppendPit(rec PitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitHistory = append(s.pitHistory, rec)
}

// Snapshot returns a deep-cloned, JSON-serializable view of the entire
// store, safe to hand to a new subscriber or serialize to disk.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.slots)+3)
	for k, v := range s.slots {
		out[k] = merge.Clone(v)
	}
	out["LapCount"] = map[string]any{"CurrentLap": s.lapCountCurrent, "TotalLaps": s.lapCountTotal}
	out["LapHistory"] = cloneLapHistory(s.lapHistory)
	out["PitHistory"] = clonePitHistory(s.pitHistory)
	out["DriversInPits"] = clonePitEntries(s.driversInPits)
	return out
}

func cloneLapHistory(in []LapRecord) []LapRecord {
	out := make([]LapRecord, len(in))
	copy(out, in)
	return out
}

func clonePitHistory(in []PitRecord) []PitRecord {
	out := make([]PitRecord, len(in))
	copy(out, in)
	return out
}

func clonePitEntries(in map[string]PitEntry) map[string]PitEntry {
	out := make(map[string]PitEntry, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WriteFinalState serializes Snapshot to path, pretty-printed, for the
// graceful-shutdown persistence step.
func (s *Store) WriteFinalState(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
