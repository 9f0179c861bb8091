package domain

import "time"

type PositionState string

const (
	StatePendingEntry    PositionState = "PENDING_ENTRY"
	StateOpen            PositionState = "OPEN"
	StatePartiallyClosed PositionState = "PARTIALLY_CLOSED"
	StateClosed          PositionState = "CLOSED"
	StateFailed          PositionState = "FAILED"
)

// LadderLevel is one take-profit rung of an open position.
// Once Triggered is set the level is never re-submitted.
type LadderLevel struct {
	TriggerPrice float64 `json:"trigger_price"`
	Fraction     float64 `json:"fraction"` // fraction of the ORIGINAL volume to close
	Triggered    bool    `json:"triggered"`
}

// Position is one live trade supervised by the lifecycle manager.
// Exclusively owned by the manager; mutated only through Evaluate/Tick.
type Position struct {
	Ticket          string        `json:"ticket"`
	Symbol          string        `json:"symbol"`
	Direction       Direction     `json:"direction"`
	EntryPrice      float64       `json:"entry_price"`
	StopLoss        float64       `json:"stop_loss"`
	OriginalVolume  float64       `json:"original_volume"`
	RemainingVolume float64       `json:"remaining_volume"`
	Levels          []LadderLevel `json:"levels"`
	State           PositionState `json:"state"`
	Frozen          bool          `json:"frozen"` // set after an invariant violation; no further closes
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Terminal reports whether the position has left the active registry.
func (p *Position) Terminal() bool {
	return p.State == StateClosed || p.State == StateFailed
}

// AllLevelsTriggered reports whether every ladder rung has fired.
func (p *Position) AllLevelsTriggered() bool {
	for _, l := range p.Levels {
		if !l.Triggered {
			return false
		}
	}
	return true
}

// PositionHistory is a closed position as persisted for the record.
type PositionHistory struct {
	ID             int64
	Ticket         string
	Symbol         string
	Direction      Direction
	OriginalVolume float64
	ClosedVolume   float64
	EntryPrice     float64
	Reason         string
	ClosedAt       time.Time
}
