// Package clock provides the time seam used throughout the engine: wall
// clock access, ISO-8601 parsing/formatting, and the feed's lap-time
// string grammar. No component in this repository holds a Clock:
// derivation receives the arrival instant as an argument, and transport
// stamps frames with time.Now().UTC().
package clock

import "time"

// Clock abstracts wall-clock access; Real reads the wall clock and Fixed
// returns a set instant.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock, backed by time.Now.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a test Clock that always returns the same instant.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// FormatISO8601 renders t in RFC 3339 with millisecond precision, UTC.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseISO8601 parses an ISO-8601 / RFC 3339 timestamp, tolerating the
// upstream's various fractional-second precisions and a missing "Z".
func ParseISO8601(s string) (time.Time, bool) {
	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
