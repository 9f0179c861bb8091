package domain

import "context"

// OrderRequest is a market entry submitted to the broker.
type OrderRequest struct {
	ClientID  string // idempotency key, one per submission attempt
	Symbol    string
	Direction Direction
	Volume    float64
	StopLoss  float64 // 0 means no stop attached
}

// OrderResult is the broker's confirmation of a filled market order.
type OrderResult struct {
	Ticket    string
	FillPrice float64
	Volume    float64
}

// BrokerPosition is the broker's own view of an open trade, used for
// reconciliation against the manager's registry.
type BrokerPosition struct {
	Ticket     string
	Symbol     string
	Direction  Direction
	Volume     float64
	EntryPrice float64
	StopLoss   float64
}

// Broker defines the order gateway the engine depends on. Calls may fail
// transiently (TransientError) or permanently (RejectionError); the caller
// distinguishes the two.
type Broker interface {
	GetTick(ctx context.Context, symbol string) (*Tick, error)
	GetAccountEquity(ctx context.Context) (float64, error)
	SubmitMarketOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	SubmitPartialClose(ctx context.Context, ticket, symbol string, volume float64) error
	GetOpenPosition(ctx context.Context, ticket string) (*BrokerPosition, error)
	ListOpenPositions(ctx context.Context) ([]*BrokerPosition, error)
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// SignalSource yields one directional decision per symbol per cycle.
// A failed source degrades to FLAT at the scheduler boundary.
type SignalSource interface {
	GetSignal(ctx context.Context, symbol string, candles []Candle) (*Signal, error)
}

// PositionRepository checkpoints lifecycle state so the active registry can
// be rebuilt after a restart, and keeps the closed-trade record.
type PositionRepository interface {
	SavePosition(ctx context.Context, pos *Position) error
	DeletePosition(ctx context.Context, ticket string) error
	ListPositions(ctx context.Context) ([]*Position, error)

	SavePositionHistory(ctx context.Context, h *PositionHistory) error
	ListPositionHistory(ctx context.Context, limit int) ([]*PositionHistory, error)
}
