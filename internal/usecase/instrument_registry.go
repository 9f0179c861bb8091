package usecase

import (
	"github.com/vitos/forex_trade_ladder/internal/domain"
)

// InstrumentRegistry is the static symbol metadata table, built once from
// config. Lookups are read-only so no locking is needed.
type InstrumentRegistry struct {
	bySymbol map[string]domain.Instrument
	order    []string
}

func NewInstrumentRegistry(instruments []domain.Instrument) (*InstrumentRegistry, error) {
	r := &InstrumentRegistry{bySymbol: make(map[string]domain.Instrument)}
	for _, inst := range instruments {
		if inst.Symbol == "" {
			return nil, &domain.ConfigError{Field: "instruments", Reason: "symbol is empty"}
		}
		if _, dup := r.bySymbol[inst.Symbol]; dup {
			return nil, &domain.ConfigError{Field: "instruments", Reason: "duplicate symbol " + inst.Symbol}
		}
		if inst.Point <= 0 || inst.PipValue <= 0 {
			return nil, &domain.ConfigError{Field: "instruments", Reason: inst.Symbol + " needs positive point and pip value"}
		}
		if inst.MinLot <= 0 || inst.LotStep <= 0 {
			return nil, &domain.ConfigError{Field: "instruments", Reason: inst.Symbol + " needs positive min lot and lot step"}
		}
		r.bySymbol[inst.Symbol] = inst
		r.order = append(r.order, inst.Symbol)
	}
	if len(r.order) == 0 {
		return nil, &domain.ConfigError{Field: "instruments", Reason: "no instruments configured"}
	}
	return r, nil
}

func (r *InstrumentRegistry) Get(symbol string) (domain.Instrument, bool) {
	inst, ok := r.bySymbol[symbol]
	return inst, ok
}

// Symbols returns the configured symbols in load order.
func (r *InstrumentRegistry) Symbols() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
