package domain

import (
	"errors"
	"fmt"
)

// ErrPositionNotFound is returned by the broker when a ticket no longer
// references an open position (stopped out or closed manually).
var ErrPositionNotFound = errors.New("position not found")

// ErrInvalidRiskInput rejects sizing requests with non-positive equity or
// stop distance, or a risk fraction outside (0, 1].
var ErrInvalidRiskInput = errors.New("invalid risk input")

// ErrInvalidLadderConfig rejects exit ladders whose multiples are not
// strictly increasing or whose fractions sum above 1.
var ErrInvalidLadderConfig = errors.New("invalid ladder config")

// ConfigError is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// RejectionError is a permanent broker refusal (business rule, e.g. volume
// below the broker minimum). Never retried within the same cycle.
type RejectionError struct {
	Op     string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// TransientError wraps a timeout or connection failure that may succeed on
// a bounded retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// InvariantError marks a position whose bookkeeping no longer adds up.
// The position is frozen for manual reconciliation, never silently corrected.
type InvariantError struct {
	Ticket string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation on %s: %s", e.Ticket, e.Detail)
}
