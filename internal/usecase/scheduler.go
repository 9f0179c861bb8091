package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/forex_trade_ladder/internal/domain"
	"github.com/vitos/forex_trade_ladder/internal/metrics"
	"go.uber.org/zap"
)

// Scheduler fans signal evaluation and position monitoring out across the
// instrument set on a fixed interval. Each symbol is processed at most once
// per cycle, cycles never overlap, and a failure on one symbol never stalls
// the rest.
type Scheduler struct {
	registry *InstrumentRegistry
	signals  domain.SignalSource
	manager  *LifecycleManager
	broker   domain.Broker
	logger   *zap.Logger

	interval    time.Duration
	workers     int
	timeframe   string
	candleLimit int
}

func NewScheduler(
	registry *InstrumentRegistry,
	signals domain.SignalSource,
	manager *LifecycleManager,
	broker domain.Broker,
	interval time.Duration,
	workers int,
	logger *zap.Logger,
) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		registry:    registry,
		signals:     signals,
		manager:     manager,
		broker:      broker,
		logger:      logger,
		interval:    interval,
		workers:     workers,
		timeframe:   "H1",
		candleLimit: 500,
	}
}

// Run drives cycles until ctx is cancelled. The in-flight cycle always
// finishes before Run returns, so no partial close is left half-submitted.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("workers", s.workers),
		zap.Strings("symbols", s.registry.Symbols()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunCycle(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle processes every instrument once. Symbols run on a bounded worker
// pool; per-symbol order mutations stay serialized inside the manager.
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for _, symbol := range s.registry.Symbols() {
		inst, ok := s.registry.Get(symbol)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(inst domain.Instrument) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.processSymbol(ctx, inst)
		}(inst)
	}
	wg.Wait()

	s.logger.Debug("cycle complete", zap.Duration("duration", time.Since(start)))
}

// processSymbol is the per-symbol isolation boundary: errors are logged with
// the symbol and panics are recovered so subsequent symbols still run.
func (s *Scheduler) processSymbol(ctx context.Context, inst domain.Instrument) {
	symbol := inst.Symbol
	defer func() {
		if r := recover(); r != nil {
			metrics.IncCycleError(symbol)
			s.logger.Error("panic while processing symbol",
				zap.String("symbol", symbol), zap.Any("panic", r))
		}
	}()

	sig := s.obtainSignal(ctx, symbol)

	if _, err := s.manager.Evaluate(ctx, symbol, sig, inst); err != nil {
		metrics.IncCycleError(symbol)
		s.logger.Error("evaluate failed", zap.String("symbol", symbol), zap.Error(err))
	}

	if _, err := s.manager.Tick(ctx, symbol); err != nil {
		metrics.IncCycleError(symbol)
		s.logger.Error("tick failed", zap.String("symbol", symbol), zap.Error(err))
	}
}

// obtainSignal fails closed: any trouble fetching candles or querying the
// source yields FLAT for this cycle.
func (s *Scheduler) obtainSignal(ctx context.Context, symbol string) *domain.Signal {
	candles, err := s.broker.GetCandles(ctx, symbol, s.timeframe, s.candleLimit)
	if err != nil {
		s.logger.Warn("candle fetch failed, treating signal as flat",
			zap.String("symbol", symbol), zap.Error(err))
		return domain.FlatSignal("none")
	}

	sig, err := s.signals.GetSignal(ctx, symbol, candles)
	if err != nil || sig == nil {
		s.logger.Warn("signal source failed, treating signal as flat",
			zap.String("symbol", symbol), zap.Error(err))
		return domain.FlatSignal("none")
	}
	return sig
}
