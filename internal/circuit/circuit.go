// Package circuit holds the static circuit-short-name → total-laps lookup
// used to correct the upstream's unreliable LapCount.TotalLaps field.
package circuit

// totalLaps maps a circuit's SessionInfo.Meeting.Circuit.ShortName to the
// race's scheduled lap count.
var totalLaps = map[string]int{
	"Monte Carlo":       78,
	"Silverstone":       52,
	"Spa-Francorchamps": 44,
	"Monza":             53,
	"Bahrain":           57,
	"Jeddah":            50,
	"Albert Park":       58,
	"Imola":             63,
	"Miami":             57,
	"Catalunya":         66,
	"Gilles-Villeneuve": 70,
	"Red Bull Ring":     71,
	"Hungaroring":       70,
	"Zandvoort":         72,
	"Marina Bay":        62,
	"Suzuka":            53,
	"COTA":              56,
	"Mexico City":       71,
	"Interlagos":        71,
	"Las Vegas":         50,
	"Losail":            57,
	"Yas Marina":        58,
	"Shanghai":          56,
	"Baku":              51,
}

// Lookup returns the scheduled lap count for a circuit short name, or 0 if
// the circuit is unknown.
func Lookup(shortName string) int {
	return totalLaps[shortName]
}
