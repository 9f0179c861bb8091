// Package metrics exposes the Prometheus series the engine updates during
// operation, served at /metrics by the web server:
//   - ladder_orders_total{side,result}    – entry orders by outcome
//   - ladder_decisions_total{signal}      – signals observed per cycle
//   - ladder_exit_reasons_total{reason}   – closures by reason
//   - ladder_level_triggers_total{symbol} – partial closes executed
//   - ladder_cycle_errors_total{symbol}   – per-symbol cycle failures
//   - ladder_equity                       – last equity snapshot (gauge)
//   - ladder_open_positions               – active registry size (gauge)
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_orders_total",
			Help: "Entry orders submitted, by side and result",
		},
		[]string{"side", "result"}, // result: filled|rejected
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_decisions_total",
			Help: "Signals observed, by direction",
		},
		[]string{"signal"},
	)

	exitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_exit_reasons_total",
			Help: "Position closures by reason",
		},
		[]string{"reason"},
	)

	levelTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_level_triggers_total",
			Help: "Partial closes executed, by symbol",
		},
		[]string{"symbol"},
	)

	cycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_cycle_errors_total",
			Help: "Per-symbol failures caught at the scheduler boundary",
		},
		[]string{"symbol"},
	)

	equityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladder_equity",
			Help: "Last account equity snapshot",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ladder_open_positions",
			Help: "Positions currently in the active registry",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersTotal, decisionsTotal, exitReasons, levelTriggers, cycleErrors)
	prometheus.MustRegister(equityGauge, openPositions)
}

func IncOrder(side, result string)  { ordersTotal.WithLabelValues(side, result).Inc() }
func IncDecision(signal string)     { decisionsTotal.WithLabelValues(signal).Inc() }
func IncExit(reason string)         { exitReasons.WithLabelValues(reason).Inc() }
func IncLevelTrigger(symbol string) { levelTriggers.WithLabelValues(symbol).Inc() }
func IncCycleError(symbol string)   { cycleErrors.WithLabelValues(symbol).Inc() }
func SetEquity(v float64)           { equityGauge.Set(v) }
func SetOpenPositions(n int)        { openPositions.Set(float64(n)) }
