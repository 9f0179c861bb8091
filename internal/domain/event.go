package domain

import "time"

type EventType string

const (
	EventPositionOpened         EventType = "POSITION_OPENED"
	EventEntryRejected          EventType = "ENTRY_REJECTED"
	EventLevelTriggered         EventType = "LEVEL_TRIGGERED"
	EventPartialCloseFailed     EventType = "PARTIAL_CLOSE_FAILED"
	EventPositionClosed         EventType = "POSITION_CLOSED"
	EventSkippedDuplicateSignal EventType = "SKIPPED_DUPLICATE_SIGNAL"
	EventInvariantViolation     EventType = "INVARIANT_VIOLATION"
)

// Closure reasons carried on EventPositionClosed.
const (
	ReasonLadderComplete = "LadderComplete"
	ReasonStoppedOut     = "StoppedOut"
	ReasonReconciled     = "Reconciled"
)

// PositionEvent is a structured record of one state transition or error,
// emitted for the logging collaborator and the web status surface.
type PositionEvent struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Symbol    string        `json:"symbol"`
	Ticket    string        `json:"ticket,omitempty"`
	State     PositionState `json:"state,omitempty"`
	Direction Direction     `json:"direction,omitempty"`
	Volume    float64       `json:"volume,omitempty"`
	Price     float64       `json:"price,omitempty"`
	Level     int           `json:"level,omitempty"` // 1-based ladder level index
	Reason    string        `json:"reason,omitempty"`
	Time      time.Time     `json:"time"`
}
