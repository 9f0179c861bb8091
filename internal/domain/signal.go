package domain

import "time"

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionFlat  Direction = "FLAT"
)

// Signal is a single directional trading decision for one symbol.
// Produced once per cycle and consumed exactly once; never persisted.
type Signal struct {
	Direction   Direction
	TargetPrice float64 // optional, 0 when the source gives no price target
	Confidence  float64
	GeneratedAt time.Time
	Source      string
}

// FlatSignal is what a failed or missing signal source degrades to.
func FlatSignal(source string) *Signal {
	return &Signal{
		Direction:   DirectionFlat,
		GeneratedAt: time.Now(),
		Source:      source,
	}
}
