package derivation

import (
	"time"

	"github.com/KingSajxxd/f1-relay/internal/store"
)

// DetectPits processes InPit/PitOut transitions carried in a TimingData
// delta against the current DriversInPits tracking map. It returns the
// updated tracking map and any pit-stop records completed by this delta;
// it never mutates its inputs.
func DetectPits(deltaLines, mergedLines map[string]any, priorPits map[string]store.PitEntry, arrival time.Time, sessionKey, meetingKey string) (map[string]store.PitEntry, []store.PitRecord) {
	pits := make(map[string]store.PitEntry, len(priorPits))
	for k, v := range priorPits {
		pits[k] = v
	}

	var records []store.PitRecord

	for id, rawDelta := range deltaLines {
		delta, ok := asObject(rawDelta)
		if !ok {
			continue
		}

		if asBool(delta, "InPit") {
			if _, tracked := pits[id]; !tracked {
				lapNumber := 0
				if merged, ok := asObject(mergedLines[id]); ok {
					if n, ok := numberOfLaps(merged); ok {
						lapNumber = n
					}
				}
				pits[id] = store.PitEntry{EntryTime: arrival, LapNumber: lapNumber + 1}
			}
			// A driver already tracked stays tracked at the first entry
			// time — a repeated InPit=true is a no-op.
		}

		if asBool(delta, "PitOut") {
			if entry, tracked := pits[id]; tracked {
				duration := round2(arrival.Sub(entry.EntryTime).Seconds())
				rec := store.PitRecord{
					LapNumber:   entry.LapNumber,
					PitDuration: duration,
					Date:        arrival,
					SessionKey:  sessionKey,
					MeetingKey:  meetingKey,
				}
				if n, ok := parseDriverID(id); ok {
					rec.DriverNumber = n
				}
				records = append(records, rec)
				delete(pits, id)
			}
		}
	}

	return pits, records
}
