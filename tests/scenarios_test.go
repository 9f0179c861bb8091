package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/forex_trade_ladder/internal/domain"
	"github.com/vitos/forex_trade_ladder/internal/infrastructure/storage"
	"github.com/vitos/forex_trade_ladder/internal/usecase"
	"go.uber.org/zap"
)

// TestScenarioHelper wraps common setup for end-to-end scenario tests: a real
// manager and scheduler over an in-memory store and a mock bridge.
type TestScenarioHelper struct {
	t       *testing.T
	ctx     context.Context
	store   *storage.SQLiteStore
	bridge  *MockBridge
	signals *ScriptedSignals
	manager *usecase.LifecycleManager
	sched   *usecase.Scheduler
}

var scenarioInstruments = []domain.Instrument{
	{Symbol: "EURUSD", Point: 0.0001, PipValue: 10, MinLot: 0.01, LotStep: 0.01},
	{Symbol: "GBPUSD", Point: 0.0001, PipValue: 10, MinLot: 0.01, LotStep: 0.01},
}

func NewTestScenarioHelper(t *testing.T) *TestScenarioHelper {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bridge := NewMockBridge()
	bridge.SetPrice("EURUSD", 1.1000)
	bridge.SetPrice("GBPUSD", 1.2500)
	signals := NewScriptedSignals()

	h := &TestScenarioHelper{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		bridge:  bridge,
		signals: signals,
	}
	h.manager, h.sched = h.buildEngine()
	return h
}

// buildEngine wires a fresh manager and scheduler over the helper's store and
// bridge. Called again by restart scenarios.
func (h *TestScenarioHelper) buildEngine() (*usecase.LifecycleManager, *usecase.Scheduler) {
	ladder, err := usecase.NewExitLadder([]usecase.LadderStep{
		{Multiple: 1, Fraction: 1.0 / 3},
		{Multiple: 2, Fraction: 1.0 / 3},
		{Multiple: 3, Fraction: 1.0 / 3},
	})
	require.NoError(h.t, err)

	registry, err := usecase.NewInstrumentRegistry(scenarioInstruments)
	require.NoError(h.t, err)

	risk := usecase.RiskParameters{RiskFraction: 0.02, StopPips: 80, Ladder: ladder}
	manager := usecase.NewLifecycleManager(h.bridge, h.store, registry, risk, zap.NewNop())
	sched := usecase.NewScheduler(registry, h.signals, manager, h.bridge, time.Minute, 2, zap.NewNop())
	return manager, sched
}

func (h *TestScenarioHelper) Cycle() {
	h.sched.RunCycle(h.ctx)
}

func (h *TestScenarioHelper) Position(symbol string) *domain.Position {
	for _, pos := range h.manager.ActivePositions() {
		if pos.Symbol == symbol {
			cp := pos
			return &cp
		}
	}
	return nil
}

func TestScenario_FullLadderLifecycle(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.signals.Set("EURUSD", domain.DirectionLong)

	h.Cycle()
	pos := h.Position("EURUSD")
	require.NotNil(t, pos)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.Equal(t, 0.25, pos.OriginalVolume)

	// Walk the price through each rung over successive cycles.
	h.bridge.SetPrice("EURUSD", 1.1085)
	h.Cycle()
	pos = h.Position("EURUSD")
	require.NotNil(t, pos)
	assert.Equal(t, domain.StatePartiallyClosed, pos.State)

	h.bridge.SetPrice("EURUSD", 1.1165)
	h.Cycle()
	pos = h.Position("EURUSD")
	require.NotNil(t, pos)
	assert.True(t, pos.Levels[1].Triggered)

	h.bridge.SetPrice("EURUSD", 1.1245)
	h.Cycle()
	assert.Nil(t, h.Position("EURUSD"))
	assert.Empty(t, h.bridge.OpenTickets())

	// The closed trade landed in history with its reason.
	history, err := h.store.ListPositionHistory(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonLadderComplete, history[0].Reason)
	assert.Equal(t, 0.25, history[0].ClosedVolume)

	// No checkpoint left behind.
	checkpoints, err := h.store.ListPositions(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, checkpoints)
}

func TestScenario_RestartMidLadder(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.signals.Set("EURUSD", domain.DirectionLong)

	h.Cycle()
	h.bridge.SetPrice("EURUSD", 1.1085)
	h.Cycle()
	pos := h.Position("EURUSD")
	require.NotNil(t, pos)
	require.True(t, pos.Levels[0].Triggered)
	remaining := pos.RemainingVolume

	// "Restart": a fresh engine over the same store and bridge.
	h.manager, h.sched = h.buildEngine()
	require.NoError(t, h.manager.Restore(h.ctx))

	restored := h.Position("EURUSD")
	require.NotNil(t, restored)
	assert.Equal(t, pos.Ticket, restored.Ticket)
	assert.InDelta(t, remaining, restored.RemainingVolume, 1e-9)
	assert.True(t, restored.Levels[0].Triggered)
	assert.False(t, restored.Levels[1].Triggered)

	// The ladder picks up where it left off.
	h.bridge.SetPrice("EURUSD", 1.1165)
	h.Cycle()
	h.bridge.SetPrice("EURUSD", 1.1245)
	h.Cycle()
	assert.Nil(t, h.Position("EURUSD"))
}

func TestScenario_RestartAfterStopOut(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.signals.Set("EURUSD", domain.DirectionLong)
	h.Cycle()
	pos := h.Position("EURUSD")
	require.NotNil(t, pos)

	// Broker stops the trade out while the engine is down.
	h.bridge.RemovePosition(pos.Ticket)
	h.manager, h.sched = h.buildEngine()
	require.NoError(t, h.manager.Restore(h.ctx))

	assert.Nil(t, h.Position("EURUSD"))
	history, err := h.store.ListPositionHistory(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonReconciled, history[0].Reason)
}

func TestScenario_StopOutMidLadder(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.signals.Set("EURUSD", domain.DirectionLong)

	h.Cycle()
	h.bridge.SetPrice("EURUSD", 1.1085)
	h.Cycle()
	pos := h.Position("EURUSD")
	require.NotNil(t, pos)

	// Price collapses through the stop; the broker closes the remainder.
	h.bridge.RemovePosition(pos.Ticket)
	h.bridge.SetPrice("EURUSD", 1.0900)
	h.Cycle()

	assert.Nil(t, h.Position("EURUSD"))
	history, err := h.store.ListPositionHistory(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonStoppedOut, history[0].Reason)
	// Only the first rung was banked before the stop.
	assert.InDelta(t, 0.08, history[0].ClosedVolume, 1e-9)
}

func TestScenario_RejectionDoesNotBlockOtherSymbols(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.signals.Set("EURUSD", domain.DirectionLong)
	h.signals.Set("GBPUSD", domain.DirectionShort)
	h.bridge.RejectEntry = true

	h.Cycle()
	assert.Nil(t, h.Position("EURUSD"))
	assert.Nil(t, h.Position("GBPUSD"))

	// Bridge recovers; the next cycle trades both.
	h.bridge.RejectEntry = false
	h.Cycle()
	assert.NotNil(t, h.Position("EURUSD"))
	assert.NotNil(t, h.Position("GBPUSD"))
}

func TestScenario_ShortLadderWalksDown(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.signals.Set("GBPUSD", domain.DirectionShort)

	h.Cycle()
	pos := h.Position("GBPUSD")
	require.NotNil(t, pos)
	assert.Equal(t, domain.DirectionShort, pos.Direction)
	assert.InDelta(t, 1.2420, pos.Levels[0].TriggerPrice, 1e-9)

	h.bridge.SetPrice("GBPUSD", 1.2415)
	h.Cycle()
	pos = h.Position("GBPUSD")
	require.NotNil(t, pos)
	assert.True(t, pos.Levels[0].Triggered)

	h.bridge.SetPrice("GBPUSD", 1.2335)
	h.Cycle()
	h.bridge.SetPrice("GBPUSD", 1.2255)
	h.Cycle()
	assert.Nil(t, h.Position("GBPUSD"))
}
