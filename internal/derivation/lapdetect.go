package derivation

import (
	"time"

	"github.com/KingSajxxd/f1-relay/internal/clock"
	"github.com/KingSajxxd/f1-relay/internal/store"
)

// DetectLaps scans the drivers touched by a TimingData delta for a
// non-empty LastLapTime.Value, and for each, builds a completed lap
// record read from the post-apply merged view (mergedLines — the store's
// current TimingData.Lines, which already reflects this delta). A driver
// is skipped if NumberOfLaps is absent from the merged view or the lap
// time fails to parse.
func DetectLaps(deltaLines, mergedLines map[string]any, arrival time.Time, sessionKey, meetingKey string) []store.LapRecord {
	var records []store.LapRecord

	for id, rawDelta := range deltaLines {
		delta, ok := asObject(rawDelta)
		if !ok {
			continue
		}
		lastLap, ok := valueField(delta, "LastLapTime")
		if !ok || lastLap == "" {
			continue
		}
		duration, ok := clock.ParseLapTime(lastLap)
		if !ok {
			continue
		}

		merged, ok := asObject(mergedLines[id])
		if !ok {
			continue
		}
		lapNumber, ok := numberOfLaps(merged)
		if !ok {
			continue
		}

		rec := store.LapRecord{
			LapNumber:   lapNumber,
			LapDuration: duration,
			DateStart:   arrival.Add(-time.Duration(duration * float64(time.Second))),
			PitOut:      asBool(merged, "PitOut"),
			SessionKey:  sessionKey,
			MeetingKey:  meetingKey,
		}
		if n, ok := parseDriverID(id); ok {
			rec.DriverNumber = n
		}
		rec.Sector1Duration = sectorDuration(merged, "0")
		rec.Sector2Duration = sectorDuration(merged, "1")
		rec.Sector3Duration = sectorDuration(merged, "2")
		if s, ok := speedValue(merged, "I1"); ok {
			rec.SpeedI1 = s
		}
		if s, ok := speedValue(merged, "I2"); ok {
			rec.SpeedI2 = s
		}
		if s, ok := speedValue(merged, "ST"); ok {
			rec.SpeedST = s
		}

		records = append(records, rec)
	}

	return records
}

func sectorDuration(driver map[string]any, index string) *float64 {
	sectors, ok := asIndexedObject(driver["Sectors"])
	if !ok {
		return nil
	}
	sector, ok := asObject(sectors[index])
	if !ok {
		return nil
	}
	raw, ok := asString(sector, "Value")
	if !ok {
		return nil
	}
	seconds, ok := clock.ParseLapTime(raw)
	if !ok {
		return nil
	}
	return &seconds
}

func speedValue(driver map[string]any, key string) (string, bool) {
	speeds, ok := asObject(driver["Speeds"])
	if !ok {
		return "", false
	}
	entry, ok := asObject(speeds[key])
	if !ok {
		return "", false
	}
	return asString(entry, "Value")
}
