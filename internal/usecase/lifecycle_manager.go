package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"github.com/vitos/forex_trade_ladder/internal/metrics"
	"go.uber.org/zap"
)

// RiskParameters is the shared read-only sizing configuration.
type RiskParameters struct {
	RiskFraction float64
	StopPips     float64
	Ladder       *ExitLadder
}

// LifecycleManager owns the active-position registry and drives each
// position through OPEN -> (PARTIALLY_CLOSED)* -> CLOSED. Entries are sized
// by account risk, partial closes follow the exit ladder, and the only
// closure mechanisms are the ladder and the broker-side stop loss: a FLAT
// or opposite signal never force-closes an open position.
type LifecycleManager struct {
	broker    domain.Broker
	repo      domain.PositionRepository
	registry  *InstrumentRegistry
	sizer     *RiskSizer
	risk      RiskParameters
	logger    *zap.Logger
	retryWait time.Duration

	// mu guards the registry map and every field of a published Position;
	// readers like ActivePositions only ever hold mu, so all mutation of a
	// registered position must happen under the write lock.
	mu        sync.RWMutex
	positions map[string]*domain.Position // keyed by symbol

	symMu map[string]*sync.Mutex // serializes broker traffic per symbol
}

func NewLifecycleManager(
	broker domain.Broker,
	repo domain.PositionRepository,
	registry *InstrumentRegistry,
	risk RiskParameters,
	logger *zap.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		broker:    broker,
		repo:      repo,
		registry:  registry,
		sizer:     NewRiskSizer(),
		risk:      risk,
		logger:    logger,
		retryWait: 500 * time.Millisecond,
		positions: make(map[string]*domain.Position),
		symMu:     make(map[string]*sync.Mutex),
	}
}

// lockSymbol serializes all gateway interactions for one symbol so that at
// most one submission is in flight per (symbol, position) at a time.
func (m *LifecycleManager) lockSymbol(symbol string) func() {
	m.mu.Lock()
	l, ok := m.symMu[symbol]
	if !ok {
		l = &sync.Mutex{}
		m.symMu[symbol] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// withRetry runs one gateway call with at most one retry after a short fixed
// backoff. Only transient failures are retried; rejections surface at once.
func (m *LifecycleManager) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !domain.IsTransient(err) {
		return err
	}
	m.logger.Warn("gateway call failed, retrying once",
		zap.String("op", op), zap.Error(err))
	select {
	case <-time.After(m.retryWait):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn()
}

// Restore rebuilds the active registry from checkpointed snapshots,
// reconciled against the broker's open-position list. Snapshots whose
// ticket the broker no longer knows are recorded as closed.
func (m *LifecycleManager) Restore(ctx context.Context) error {
	snapshots, err := m.repo.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	open, err := m.broker.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	byTicket := make(map[string]*domain.BrokerPosition, len(open))
	for _, bp := range open {
		byTicket[bp.Ticket] = bp
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range snapshots {
		bp, ok := byTicket[pos.Ticket]
		if !ok {
			m.logger.Info("snapshot position no longer open at broker",
				zap.String("symbol", pos.Symbol), zap.String("ticket", pos.Ticket))
			m.recordClosure(ctx, pos, domain.ReasonReconciled)
			continue
		}
		// Broker volume wins: a stop or manual close may have shrunk it.
		pos.RemainingVolume = bp.Volume
		m.positions[pos.Symbol] = pos
		m.logger.Info("restored position",
			zap.String("symbol", pos.Symbol),
			zap.String("ticket", pos.Ticket),
			zap.Float64("remaining", pos.RemainingVolume))
	}
	metrics.SetOpenPositions(len(m.positions))
	return nil
}

// Evaluate consumes one signal for one symbol. While a position is open for
// that symbol the signal is observed but produces no order; the engine never
// pyramids. Gateway failures surface as events, not errors, so a bad cycle
// for one symbol never aborts the caller.
func (m *LifecycleManager) Evaluate(ctx context.Context, symbol string, sig *domain.Signal, inst domain.Instrument) (*domain.PositionEvent, error) {
	if sig == nil {
		return nil, nil
	}
	metrics.IncDecision(string(sig.Direction))

	unlock := m.lockSymbol(symbol)
	defer unlock()

	if pos := m.position(symbol); pos != nil {
		if sig.Direction == domain.DirectionFlat {
			return nil, nil
		}
		ev := m.newEvent(domain.EventSkippedDuplicateSignal, pos)
		ev.Reason = fmt.Sprintf("signal %s while position open", sig.Direction)
		m.logEvent(ev)
		return ev, nil
	}

	if sig.Direction == domain.DirectionFlat {
		return nil, nil
	}

	stopPips := m.risk.StopPips
	if stopPips < inst.MinStopPips {
		stopPips = inst.MinStopPips
	}

	var equity float64
	err := m.withRetry(ctx, "GetAccountEquity", func() error {
		var e error
		equity, e = m.broker.GetAccountEquity(ctx)
		return e
	})
	if err != nil {
		return m.entryFailed(symbol, sig.Direction, "account equity unavailable: "+err.Error()), nil
	}
	metrics.SetEquity(equity)

	lots, err := m.sizer.Size(equity, m.risk.RiskFraction, stopPips, inst)
	if err != nil {
		return nil, err
	}

	var tick *domain.Tick
	err = m.withRetry(ctx, "GetTick", func() error {
		var e error
		tick, e = m.broker.GetTick(ctx, symbol)
		return e
	})
	if err != nil {
		return m.entryFailed(symbol, sig.Direction, "tick unavailable: "+err.Error()), nil
	}

	stopDistance := inst.PipsToPrice(stopPips)
	var stopLoss float64
	if sig.Direction == domain.DirectionLong {
		stopLoss = tick.Ask - stopDistance
	} else {
		stopLoss = tick.Bid + stopDistance
	}

	req := &domain.OrderRequest{
		ClientID:  uuid.NewString(),
		Symbol:    symbol,
		Direction: sig.Direction,
		Volume:    lots,
		StopLoss:  stopLoss,
	}

	var res *domain.OrderResult
	err = m.withRetry(ctx, "SubmitMarketOrder", func() error {
		var e error
		res, e = m.broker.SubmitMarketOrder(ctx, req)
		return e
	})
	if err != nil {
		metrics.IncOrder(string(sig.Direction), "rejected")
		return m.entryFailed(symbol, sig.Direction, err.Error()), nil
	}
	metrics.IncOrder(string(sig.Direction), "filled")

	// Re-anchor stop and ladder on the confirmed fill price.
	if sig.Direction == domain.DirectionLong {
		stopLoss = res.FillPrice - stopDistance
	} else {
		stopLoss = res.FillPrice + stopDistance
	}

	now := time.Now()
	pos := &domain.Position{
		Ticket:          res.Ticket,
		Symbol:          symbol,
		Direction:       sig.Direction,
		EntryPrice:      res.FillPrice,
		StopLoss:        stopLoss,
		OriginalVolume:  res.Volume,
		RemainingVolume: res.Volume,
		Levels:          m.risk.Ladder.Levels(res.FillPrice, stopDistance, sig.Direction),
		State:           domain.StateOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.mu.Lock()
	m.positions[symbol] = pos
	metrics.SetOpenPositions(len(m.positions))
	m.mu.Unlock()

	if err := m.repo.SavePosition(ctx, pos); err != nil {
		m.logger.Error("failed to checkpoint position",
			zap.String("ticket", pos.Ticket), zap.Error(err))
	}

	ev := m.newEvent(domain.EventPositionOpened, pos)
	ev.Price = res.FillPrice
	ev.Volume = res.Volume
	m.logEvent(ev)
	return ev, nil
}

// Tick is the idempotent monitoring step, invoked once per scheduler cycle
// per symbol. It fetches the current quote, fires any untriggered ladder
// levels the price has crossed, and finalizes the position when remaining
// volume reaches zero or the broker no longer knows the ticket. Returns nil
// when there is no open position or nothing triggered.
func (m *LifecycleManager) Tick(ctx context.Context, symbol string) (*domain.PositionEvent, error) {
	unlock := m.lockSymbol(symbol)
	defer unlock()

	pos := m.position(symbol)
	if pos == nil || pos.Frozen {
		return nil, nil
	}

	inst, ok := m.registry.Get(symbol)
	if !ok {
		return nil, fmt.Errorf("tick: unknown symbol %s", symbol)
	}

	err := m.withRetry(ctx, "GetOpenPosition", func() error {
		_, e := m.broker.GetOpenPosition(ctx, pos.Ticket)
		return e
	})
	if errors.Is(err, domain.ErrPositionNotFound) {
		// Stopped out or closed manually: terminal regardless of
		// untriggered levels.
		return m.closePosition(ctx, pos, domain.ReasonStoppedOut), nil
	}
	if err != nil {
		m.logger.Warn("position lookup failed, will retry next cycle",
			zap.String("symbol", symbol), zap.String("ticket", pos.Ticket), zap.Error(err))
		return nil, nil
	}

	var tick *domain.Tick
	err = m.withRetry(ctx, "GetTick", func() error {
		var e error
		tick, e = m.broker.GetTick(ctx, symbol)
		return e
	})
	if err != nil {
		m.logger.Warn("tick unavailable, will retry next cycle",
			zap.String("symbol", symbol), zap.Error(err))
		return nil, nil
	}

	// Longs are measured on bid, shorts on ask.
	refPrice := tick.Bid
	if pos.Direction == domain.DirectionShort {
		refPrice = tick.Ask
	}

	var last *domain.PositionEvent
	for i := range pos.Levels {
		lvl := &pos.Levels[i]
		if lvl.Triggered {
			continue
		}
		hit := (pos.Direction == domain.DirectionLong && refPrice >= lvl.TriggerPrice) ||
			(pos.Direction == domain.DirectionShort && refPrice <= lvl.TriggerPrice)
		if !hit {
			continue
		}

		closeVol := inst.RoundLot(lvl.Fraction * pos.OriginalVolume)
		// Min-lot positions round a one-third rung down to zero; close the
		// broker minimum instead of starving the level.
		if closeVol < inst.MinLot {
			closeVol = inst.MinLot
		}
		if closeVol > pos.RemainingVolume {
			closeVol = pos.RemainingVolume
		}
		// Final rung, or a remainder too small to close on its own,
		// takes the whole rest of the position.
		if i == len(pos.Levels)-1 || pos.RemainingVolume-closeVol < inst.MinLot {
			closeVol = pos.RemainingVolume
		}

		if closeVol <= 0 || pos.RemainingVolume-closeVol < -lotTolerance {
			// Levels still pending with no volume left to close them:
			// bookkeeping no longer adds up.
			m.freeze(ctx, pos, fmt.Sprintf("close volume %.2f against remaining %.2f", closeVol, pos.RemainingVolume))
			ev := m.newEvent(domain.EventInvariantViolation, pos)
			ev.Level = i + 1
			ev.Reason = "no closable volume for pending level"
			m.logEvent(ev)
			return ev, nil
		}

		err = m.withRetry(ctx, "SubmitPartialClose", func() error {
			return m.broker.SubmitPartialClose(ctx, pos.Ticket, symbol, closeVol)
		})
		if err != nil {
			// Level stays untriggered so the next cycle retries it;
			// volume is only decremented on confirmed success.
			ev := m.newEvent(domain.EventPartialCloseFailed, pos)
			ev.Level = i + 1
			ev.Volume = closeVol
			ev.Reason = err.Error()
			m.logEvent(ev)
			return ev, nil
		}

		remaining := inst.RoundLot(pos.RemainingVolume - closeVol)
		if remaining < lotTolerance {
			remaining = 0
		}
		m.mu.Lock()
		lvl.Triggered = true
		pos.RemainingVolume = remaining
		pos.State = domain.StatePartiallyClosed
		pos.UpdatedAt = time.Now()
		m.mu.Unlock()
		metrics.IncLevelTrigger(symbol)

		if pos.RemainingVolume == 0 || pos.AllLevelsTriggered() {
			return m.closePosition(ctx, pos, domain.ReasonLadderComplete), nil
		}

		if err := m.repo.SavePosition(ctx, pos); err != nil {
			m.logger.Error("failed to checkpoint position",
				zap.String("ticket", pos.Ticket), zap.Error(err))
		}

		ev := m.newEvent(domain.EventLevelTriggered, pos)
		ev.Level = i + 1
		ev.Volume = closeVol
		ev.Price = lvl.TriggerPrice
		m.logEvent(ev)
		last = ev
	}

	return last, nil
}

// ActivePositions returns a read-only snapshot of the registry.
func (m *LifecycleManager) ActivePositions() []domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		cp := *pos
		cp.Levels = make([]domain.LadderLevel, len(pos.Levels))
		copy(cp.Levels, pos.Levels)
		out = append(out, cp)
	}
	return out
}

func (m *LifecycleManager) position(symbol string) *domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[symbol]
}

func (m *LifecycleManager) entryFailed(symbol string, dir domain.Direction, reason string) *domain.PositionEvent {
	ev := &domain.PositionEvent{
		ID:        uuid.NewString(),
		Type:      domain.EventEntryRejected,
		Symbol:    symbol,
		State:     domain.StateFailed,
		Direction: dir,
		Reason:    reason,
		Time:      time.Now(),
	}
	m.logEvent(ev)
	return ev
}

func (m *LifecycleManager) closePosition(ctx context.Context, pos *domain.Position, reason string) *domain.PositionEvent {
	m.mu.Lock()
	pos.State = domain.StateClosed
	pos.UpdatedAt = time.Now()
	delete(m.positions, pos.Symbol)
	metrics.SetOpenPositions(len(m.positions))
	m.mu.Unlock()

	m.recordClosure(ctx, pos, reason)
	metrics.IncExit(reason)

	ev := m.newEvent(domain.EventPositionClosed, pos)
	ev.Reason = reason
	ev.Volume = pos.OriginalVolume - pos.RemainingVolume
	m.logEvent(ev)
	return ev
}

// recordClosure persists the closed-trade record and drops the checkpoint.
func (m *LifecycleManager) recordClosure(ctx context.Context, pos *domain.Position, reason string) {
	if err := m.repo.DeletePosition(ctx, pos.Ticket); err != nil {
		m.logger.Error("failed to delete position checkpoint",
			zap.String("ticket", pos.Ticket), zap.Error(err))
	}
	h := &domain.PositionHistory{
		Ticket:         pos.Ticket,
		Symbol:         pos.Symbol,
		Direction:      pos.Direction,
		OriginalVolume: pos.OriginalVolume,
		ClosedVolume:   pos.OriginalVolume - pos.RemainingVolume,
		EntryPrice:     pos.EntryPrice,
		Reason:         reason,
		ClosedAt:       time.Now(),
	}
	if err := m.repo.SavePositionHistory(ctx, h); err != nil {
		m.logger.Error("failed to save position history",
			zap.String("ticket", pos.Ticket), zap.Error(err))
	}
}

func (m *LifecycleManager) freeze(ctx context.Context, pos *domain.Position, detail string) {
	m.mu.Lock()
	pos.Frozen = true
	pos.UpdatedAt = time.Now()
	m.mu.Unlock()
	if err := m.repo.SavePosition(ctx, pos); err != nil {
		m.logger.Error("failed to checkpoint frozen position",
			zap.String("ticket", pos.Ticket), zap.Error(err))
	}
	m.logger.Error("position frozen for manual reconciliation",
		zap.String("symbol", pos.Symbol),
		zap.String("ticket", pos.Ticket),
		zap.String("detail", detail))
}

func (m *LifecycleManager) newEvent(t domain.EventType, pos *domain.Position) *domain.PositionEvent {
	return &domain.PositionEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Symbol:    pos.Symbol,
		Ticket:    pos.Ticket,
		State:     pos.State,
		Direction: pos.Direction,
		Time:      time.Now(),
	}
}

func (m *LifecycleManager) logEvent(ev *domain.PositionEvent) {
	m.logger.Info("position event",
		zap.String("type", string(ev.Type)),
		zap.String("symbol", ev.Symbol),
		zap.String("ticket", ev.Ticket),
		zap.String("state", string(ev.State)),
		zap.Int("level", ev.Level),
		zap.Float64("volume", math.Round(ev.Volume*100)/100),
		zap.String("reason", ev.Reason))
}
