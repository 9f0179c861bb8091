package usecase

import (
	"fmt"

	"github.com/vitos/forex_trade_ladder/internal/domain"
)

// lotTolerance absorbs lot-step rounding when summing close fractions.
const lotTolerance = 1e-6

// LadderStep is one configured take-profit rung: a price distance expressed
// as a multiple of the stop distance, and the fraction of the ORIGINAL
// volume to close when it is reached. Fractions of the original volume
// avoid compounding rounding error across rungs.
type LadderStep struct {
	Multiple float64 `yaml:"multiple"`
	Fraction float64 `yaml:"fraction"`
}

// ExitLadder is an immutable, validated take-profit ladder shared read-only
// across all symbols.
type ExitLadder struct {
	steps []LadderStep
}

func NewExitLadder(steps []LadderStep) (*ExitLadder, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no levels", domain.ErrInvalidLadderConfig)
	}

	sum := 0.0
	prev := 0.0
	for i, s := range steps {
		if s.Multiple <= prev {
			return nil, fmt.Errorf("%w: multiples must be strictly increasing, level %d has %.2f after %.2f",
				domain.ErrInvalidLadderConfig, i+1, s.Multiple, prev)
		}
		if s.Fraction <= 0 {
			return nil, fmt.Errorf("%w: level %d fraction %.4f must be positive",
				domain.ErrInvalidLadderConfig, i+1, s.Fraction)
		}
		prev = s.Multiple
		sum += s.Fraction
	}
	if sum > 1+lotTolerance {
		return nil, fmt.Errorf("%w: fractions sum to %.4f", domain.ErrInvalidLadderConfig, sum)
	}

	out := make([]LadderStep, len(steps))
	copy(out, steps)
	return &ExitLadder{steps: out}, nil
}

// Steps returns a copy of the configured rungs.
func (l *ExitLadder) Steps() []LadderStep {
	out := make([]LadderStep, len(l.steps))
	copy(out, l.steps)
	return out
}

// Levels materializes the ladder for one position: level i triggers at
// entry + sign(direction) * stopDistance * multiple_i.
func (l *ExitLadder) Levels(entry, stopDistance float64, dir domain.Direction) []domain.LadderLevel {
	sign := 1.0
	if dir == domain.DirectionShort {
		sign = -1.0
	}

	levels := make([]domain.LadderLevel, len(l.steps))
	for i, s := range l.steps {
		levels[i] = domain.LadderLevel{
			TriggerPrice: entry + sign*stopDistance*s.Multiple,
			Fraction:     s.Fraction,
		}
	}
	return levels
}
