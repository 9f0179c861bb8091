package tests

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/forex_trade_ladder/internal/domain"
)

// MockBridge is an in-memory stand-in for the MT5 bridge. Prices are set by
// the scenario; orders fill at the current price.
type MockBridge struct {
	mu sync.Mutex

	Equity      float64
	Prices      map[string]float64
	RejectEntry bool
	FailPartial bool
	Candles     []domain.Candle

	SubmitCalls  int
	PartialCalls int

	nextTicket int
	open       map[string]*domain.BrokerPosition
}

func NewMockBridge() *MockBridge {
	return &MockBridge{
		Equity: 10000,
		Prices: make(map[string]float64),
		open:   make(map[string]*domain.BrokerPosition),
	}
}

func (m *MockBridge) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prices[symbol] = price
}

// RemovePosition simulates a broker-side stop out or manual close.
func (m *MockBridge) RemovePosition(ticket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, ticket)
}

func (m *MockBridge) OpenTickets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for t := range m.open {
		out = append(out, t)
	}
	return out
}

func (m *MockBridge) GetTick(ctx context.Context, symbol string) (*domain.Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Prices[symbol]
	if !ok {
		return nil, &domain.TransientError{Op: "GetTick", Err: fmt.Errorf("no price for %s", symbol)}
	}
	return &domain.Tick{Symbol: symbol, Bid: p, Ask: p, Time: time.Now()}, nil
}

func (m *MockBridge) GetAccountEquity(ctx context.Context) (float64, error) {
	return m.Equity, nil
}

func (m *MockBridge) SubmitMarketOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmitCalls++
	if m.RejectEntry {
		return nil, &domain.RejectionError{Op: "SubmitMarketOrder", Reason: "trade disabled"}
	}
	m.nextTicket++
	ticket := fmt.Sprintf("T%d", m.nextTicket)
	price := m.Prices[req.Symbol]
	m.open[ticket] = &domain.BrokerPosition{
		Ticket:     ticket,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Volume:     req.Volume,
		EntryPrice: price,
		StopLoss:   req.StopLoss,
	}
	return &domain.OrderResult{Ticket: ticket, FillPrice: price, Volume: req.Volume}, nil
}

func (m *MockBridge) SubmitPartialClose(ctx context.Context, ticket, symbol string, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PartialCalls++
	if m.FailPartial {
		return &domain.TransientError{Op: "SubmitPartialClose", Err: fmt.Errorf("bridge timeout")}
	}
	pos, ok := m.open[ticket]
	if !ok {
		return domain.ErrPositionNotFound
	}
	pos.Volume -= volume
	if pos.Volume <= 1e-9 {
		delete(m.open, ticket)
	}
	return nil
}

func (m *MockBridge) GetOpenPosition(ctx context.Context, ticket string) (*domain.BrokerPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.open[ticket]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	cp := *pos
	return &cp, nil
}

func (m *MockBridge) ListOpenPositions(ctx context.Context) ([]*domain.BrokerPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BrokerPosition
	for _, pos := range m.open {
		cp := *pos
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockBridge) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	return m.Candles, nil
}

// ScriptedSignals returns a fixed direction per symbol.
type ScriptedSignals struct {
	mu      sync.Mutex
	Signals map[string]domain.Direction
}

func NewScriptedSignals() *ScriptedSignals {
	return &ScriptedSignals{Signals: make(map[string]domain.Direction)}
}

func (s *ScriptedSignals) Set(symbol string, dir domain.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Signals[symbol] = dir
}

func (s *ScriptedSignals) GetSignal(ctx context.Context, symbol string, candles []domain.Candle) (*domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.Signals[symbol]
	if !ok {
		dir = domain.DirectionFlat
	}
	return &domain.Signal{Direction: dir, GeneratedAt: time.Now(), Source: "scripted"}, nil
}
