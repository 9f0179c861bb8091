package usecase

import (
	"fmt"

	"github.com/vitos/forex_trade_ladder/internal/domain"
)

// RiskSizer converts account equity and a risk fraction into a lot size.
type RiskSizer struct{}

func NewRiskSizer() *RiskSizer {
	return &RiskSizer{}
}

// Size computes the lot size that puts equity*riskFraction at risk over a
// stop distance of stopPips, rounded down to the instrument's lot step and
// floored at its minimum lot. Pure function, no side effects.
func (s *RiskSizer) Size(equity, riskFraction, stopPips float64, inst domain.Instrument) (float64, error) {
	if equity <= 0 {
		return 0, fmt.Errorf("%w: equity %.2f", domain.ErrInvalidRiskInput, equity)
	}
	if riskFraction <= 0 || riskFraction > 1 {
		return 0, fmt.Errorf("%w: risk fraction %.4f", domain.ErrInvalidRiskInput, riskFraction)
	}
	if stopPips <= 0 {
		return 0, fmt.Errorf("%w: stop distance %.1f pips", domain.ErrInvalidRiskInput, stopPips)
	}
	if inst.PipValue <= 0 {
		return 0, fmt.Errorf("%w: instrument %s has pip value %.4f", domain.ErrInvalidRiskInput, inst.Symbol, inst.PipValue)
	}

	riskCapital := equity * riskFraction
	stopValuePerLot := stopPips * inst.PipValue

	lots := inst.RoundLot(riskCapital / stopValuePerLot)
	if lots < inst.MinLot {
		lots = inst.MinLot
	}
	return lots, nil
}
