package domain

import (
	"math"
	"time"
)

// Instrument holds broker metadata for a tradable symbol.
// Loaded once at startup and never mutated afterwards.
type Instrument struct {
	Symbol      string  `yaml:"symbol" json:"symbol"`
	Point       float64 `yaml:"point" json:"point"`                 // price increment of one pip
	PipValue    float64 `yaml:"pip_value" json:"pip_value"`         // monetary value of one pip per full lot
	MinStopPips float64 `yaml:"min_stop_pips" json:"min_stop_pips"` // broker minimum stop distance
	MinLot      float64 `yaml:"min_lot" json:"min_lot"`
	LotStep     float64 `yaml:"lot_step" json:"lot_step"`
}

// RoundLot rounds a volume down to the instrument's lot step.
func (i Instrument) RoundLot(v float64) float64 {
	if i.LotStep <= 0 {
		return v
	}
	steps := math.Floor(v/i.LotStep + 1e-6)
	return steps * i.LotStep
}

// PipsToPrice converts a pip distance into a price distance.
func (i Instrument) PipsToPrice(pips float64) float64 {
	return pips * i.Point
}

type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
