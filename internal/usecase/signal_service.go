package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/forex_trade_ladder/internal/domain"
	"go.uber.org/zap"
)

// IndicatorSignalSource derives a direction from an EMA trend filter plus an
// RSI exhaustion check: long when the short EMA is above the long EMA or RSI
// is oversold, short when the short EMA is below or RSI is overbought. The
// long condition wins when both fire.
type IndicatorSignalSource struct {
	emaShort  int
	emaLong   int
	rsiPeriod int
	rsiLow    float64
	rsiHigh   float64
	logger    *zap.Logger
}

func NewIndicatorSignalSource(logger *zap.Logger) *IndicatorSignalSource {
	return &IndicatorSignalSource{
		emaShort:  50,
		emaLong:   200,
		rsiPeriod: 14,
		rsiLow:    40,
		rsiHigh:   60,
		logger:    logger,
	}
}

func (s *IndicatorSignalSource) GetSignal(ctx context.Context, symbol string, candles []domain.Candle) (*domain.Signal, error) {
	if len(candles) < s.emaLong {
		return nil, fmt.Errorf("indicator signal %s: need %d candles, have %d", symbol, s.emaLong, len(candles))
	}

	last := len(candles) - 1
	emaShort := EMA(candles, s.emaShort)[last]
	emaLong := EMA(candles, s.emaLong)[last]
	rsi := RSI(candles, s.rsiPeriod)[last]

	dir := domain.DirectionFlat
	if emaShort > emaLong || rsi < s.rsiLow {
		dir = domain.DirectionLong
	} else if emaShort < emaLong || rsi > s.rsiHigh {
		dir = domain.DirectionShort
	}

	s.logger.Debug("indicator signal",
		zap.String("symbol", symbol),
		zap.String("direction", string(dir)),
		zap.Float64("ema_short", emaShort),
		zap.Float64("ema_long", emaLong),
		zap.Float64("rsi", rsi))

	return &domain.Signal{
		Direction:   dir,
		GeneratedAt: time.Now(),
		Source:      "indicator",
	}, nil
}
