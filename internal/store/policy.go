package store

// Policy is the update discipline declared per feed slot.
type Policy int

const (
	// PolicyMerge recursively deep-merges an object payload into the slot.
	PolicyMerge Policy = iota
	// PolicyAppend flattens and appends entries onto an ordered list slot.
	PolicyAppend
	// PolicyReplace assigns the payload wholesale.
	PolicyReplace
	// PolicyDerived slots are never written by Store.Apply; only the
	// derivation engine sets them directly (LapCount).
	PolicyDerived
)

// policies is the feed-name → update-policy table.
var policies = map[string]Policy{
	"DriverList":          PolicyMerge,
	"TimingData":          PolicyMerge,
	"TimingAppData":       PolicyMerge,
	"TimingStats":         PolicyMerge,
	"TopThree":            PolicyMerge,
	"SessionInfo":         PolicyReplace,
	"WeatherData":         PolicyReplace,
	"TrackStatus":         PolicyReplace,
	"SessionStatus":       PolicyReplace,
	"CarData":             PolicyReplace,
	"Position":            PolicyReplace,
	"RaceControlMessages": PolicyAppend,
	"TeamRadio":           PolicyAppend,
	"LapCount":            PolicyDerived,
}

// PolicyFor returns the declared policy for a feed, and whether the feed
// is known at all. Unknown feeds are treated as a silent wholesale
// replace by the caller, but callers should check ok to distinguish
// "known replace slot" from "unrecognized feed name".
func PolicyFor(feed string) (Policy, bool) {
	p, ok := policies[feed]
	return p, ok
}
