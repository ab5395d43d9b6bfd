package clock

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLapTime converts a lap/sector time string to seconds. Upstream uses
// two forms: "M:S.f" (minutes:seconds.fraction) and a plain "S.f" when the
// duration is under a minute. Returns false for anything else; callers
// treat an unparseable time as "no completed lap" rather than an error.
func ParseLapTime(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if minutes, rest, ok := strings.Cut(s, ":"); ok {
		m, err := strconv.ParseFloat(minutes, 64)
		if err != nil {
			return 0, false
		}
		secs, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return 0, false
		}
		return m*60 + secs, true
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return secs, true
}

// FormatLapTime renders seconds back to the "M:S.f" grammar when minutes
// is nonzero, otherwise "S.f", preserving the precision implied by the
// input's fractional digits. prec is the number of digits after the
// decimal point (the round-trip property tests use 3).
func FormatLapTime(seconds float64, prec int) string {
	if seconds >= 60 {
		m := int64(seconds) / 60
		rem := seconds - float64(m*60)
		return fmt.Sprintf("%d:%s", m, formatSecondsPadded(rem, prec))
	}
	return formatSeconds(seconds, prec)
}

func formatSeconds(seconds float64, prec int) string {
	return strconv.FormatFloat(seconds, 'f', prec, 64)
}

// formatSecondsPadded zero-pads the integer part to two digits, as used
// for the seconds component after the "M:" prefix (e.g. "2:00.000", not
// "2:0.000").
func formatSecondsPadded(seconds float64, prec int) string {
	s := formatSeconds(seconds, prec)
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) < 2 {
		intPart = strings.Repeat("0", 2-len(intPart)) + intPart
	}
	if frac == "" {
		return intPart
	}
	return intPart + "." + frac
}
