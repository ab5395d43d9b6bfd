package store

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore() *Store {
	return New(zerolog.Nop())
}

func TestApplyMergePolicy(t *testing.T) {
	s := newTestStore()
	s.Apply("TimingData", map[string]any{"Lines": map[string]any{"44": map[string]any{"NumberOfLaps": float64(1)}}})
	s.Apply("TimingData", map[string]any{"Lines": map[string]any{"44": map[string]any{"InPit": true}}})

	lines := s.TimingDataLines()
	driver := lines["44"].(map[string]any)
	if driver["NumberOfLaps"] != float64(1) {
		t.Errorf("expected NumberOfLaps to survive the second merge, got %+v", driver)
	}
	if driver["InPit"] != true {
		t.Errorf("expected InPit to be merged in, got %+v", driver)
	}
}

func TestApplyMergeDropsNonObjectPayload(t *testing.T) {
	s := newTestStore()
	applied := s.Apply("TimingData", "not-an-object")
	if applied {
		t.Error("expected non-object payload on a merge slot to be dropped")
	}
}

func TestApplyReplacePolicy(t *testing.T) {
	s := newTestStore()
	s.Apply("SessionInfo", map[string]any{"Meeting": map[string]any{"Circuit": map[string]any{"ShortName": "Monaco"}}})
	s.Apply("SessionInfo", map[string]any{"Meeting": map[string]any{"Circuit": map[string]any{"ShortName": "Silverstone"}}})

	snap := s.Snapshot()
	info := snap["SessionInfo"].(map[string]any)
	meeting := info["Meeting"].(map[string]any)
	circuit := meeting["Circuit"].(map[string]any)
	if circuit["ShortName"] != "Silverstone" {
		t.Errorf("replace policy should store latest wholesale, got %+v", circuit)
	}
}

func TestApplyRaceControlMessagesFlattenAndValidate(t *testing.T) {
	s := newTestStore()
	s.Apply("RaceControlMessages", map[string]any{
		"Messages": map[string]any{
			"0": map[string]any{"Utc": "t1", "Category": "Flag", "Message": "GREEN"},
			"1": map[string]any{"Category": "Flag"}, // missing Utc/Message — must be dropped
		},
	})
	s.Apply("RaceControlMessages", []any{
		map[string]any{"Utc": "t2", "Category": "Flag", "Message": "YELLOW"},
	})

	snap := s.Snapshot()
	list := snap["RaceControlMessages"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 valid messages appended in arrival order, got %d: %+v", len(list), list)
	}
	first := list[0].(map[string]any)
	if first["Message"] != "GREEN" {
		t.Errorf("expected arrival order preserved, first = %+v", first)
	}
}

func TestApplyTeamRadioAppendsAsIs(t *testing.T) {
	s := newTestStore()
	s.Apply("TeamRadio", map[string]any{"Captures": []any{map[string]any{"Utc": "t1", "Path": "a.mp3"}}})
	s.Apply("TeamRadio", map[string]any{"Utc": "t2", "Path": "b.mp3"})

	snap := s.Snapshot()
	list := snap["TeamRadio"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 captures appended, got %d", len(list))
	}
}

func TestApplyLapCountDiscarded(t *testing.T) {
	s := newTestStore()
	s.SetLapCountCurrent(1)
	s.SetLapCountTotal(52)

	applied := s.Apply("LapCount", map[string]any{"CurrentLap": float64(999), "TotalLaps": float64(7)})
	if applied {
		t.Error("upstream LapCount frames must never be applied")
	}

	current, total := s.LapCount()
	if current != 1 || total != 52 {
		t.Errorf("LapCount changed by upstream frame: got (%d, %d), want (1, 52)", current, total)
	}
}

func TestDriversInPitsRoundTrip(t *testing.T) {
	s := newTestStore()
	if len(s.DriversInPits()) != 0 {
		t.Fatal("expected empty DriversInPits initially")
	}
	s.SetDriversInPits(map[string]PitEntry{"16": {LapNumber: 3}})
	got := s.DriversInPits()
	if len(got) != 1 || got["16"].LapNumber != 3 {
		t.Errorf("DriversInPits = %+v", got)
	}
}

func TestSnapshotIsDeepCloned(t *testing.T) {
	s := newTestStore()
	s.Apply("DriverList", map[string]any{"44": map[string]any{"FullName": "Lando Norris"}})

	snap := s.Snapshot()
	driverList := snap["DriverList"].(map[string]any)
	driverList["44"].(map[string]any)["FullName"] = "mutated"

	snap2 := s.Snapshot()
	if snap2["DriverList"].(map[string]any)["44"].(map[string]any)["FullName"] != "Lando Norris" {
		t.Error("mutating a returned snapshot leaked into the store's internal state")
	}
}
