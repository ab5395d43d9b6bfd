package store

import "time"

// LapRecord is a completed lap, derived from a TimingData delta.
type LapRecord struct {
	DriverNumber    int       `json:"driver_number"`
	LapNumber       int       `json:"lap_number"`
	LapDuration     float64   `json:"lap_duration"`
	Sector1Duration *float64  `json:"sector1_duration,omitempty"`
	Sector2Duration *float64  `json:"sector2_duration,omitempty"`
	Sector3Duration *float64  `json:"sector3_duration,omitempty"`
	SpeedI1         string    `json:"speed_i1,omitempty"`
	SpeedI2         string    `json:"speed_i2,omitempty"`
	SpeedST         string    `json:"speed_st,omitempty"`
	PitOut          bool      `json:"pit_out"`
	DateStart       time.Time `json:"date_start"`
	SessionKey      string    `json:"session_key,omitempty"`
	MeetingKey      string    `json:"meeting_key,omitempty"`
}

// PitRecord is a completed pit stop, derived from InPit/PitOut transitions
// in a TimingData delta.
type PitRecord struct {
	DriverNumber int       `json:"driver_number"`
	LapNumber    int       `json:"lap_number"`
	PitDuration  float64   `json:"pit_duration"`
	Date         time.Time `json:"date"`
	SessionKey   string    `json:"session_key,omitempty"`
	MeetingKey   string    `json:"meeting_key,omitempty"`
}

// PitEntry is the ephemeral bookkeeping kept while a driver is in the pit
// lane, between an InPit=true event and its matching PitOut=true event.
type PitEntry struct {
	EntryTime time.Time `json:"entry_time"`
	LapNumber int       `json:"lap_number"`
}
