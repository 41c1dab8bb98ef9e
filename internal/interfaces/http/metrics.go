package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry holds the Prometheus collectors exposed at /metrics.
// Stage names mirror the per-symbol pipeline stages an orchestrator cycle
// runs through: sync, analysis, predict, decision, risk, exec.
type MetricsRegistry struct {
	registry       *prometheus.Registry
	StageDuration  *prometheus.HistogramVec
	StageErrors    *prometheus.CounterVec
	DecisionsTotal *prometheus.CounterVec
	RiskBlocks     *prometheus.CounterVec
	ExecResults    *prometheus.CounterVec
	ActiveCycles   prometheus.Gauge
	DrawdownPct    *prometheus.GaugeVec
}

// NewMetricsRegistry builds and registers every collector against a private
// Prometheus registry (rather than the global DefaultRegisterer), so a
// second instance — e.g. in a test — never panics on a duplicate
// registration.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeengine_stage_duration_seconds",
				Help:    "Duration of each per-symbol cycle stage in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage", "symbol", "result"},
		),
		StageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeengine_stage_errors_total",
				Help: "Total errors by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeengine_decisions_total",
				Help: "Total DecisionCoreAgent votes by symbol and action",
			},
			[]string{"symbol", "action"},
		),
		RiskBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeengine_risk_blocks_total",
				Help: "Total orders blocked by RiskAuditAgent by reason",
			},
			[]string{"symbol", "reason"},
		),
		ExecResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeengine_execution_results_total",
				Help: "Total order submissions by symbol and status",
			},
			[]string{"symbol", "status"},
		),
		ActiveCycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradeengine_active_cycles",
				Help: "Number of symbol cycles currently in flight",
			},
		),
		DrawdownPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradeengine_drawdown_pct",
				Help: "Reconciler's current drawdown fraction",
			},
			[]string{"symbol"},
		),
	}

	m.registry.MustRegister(
		m.StageDuration,
		m.StageErrors,
		m.DecisionsTotal,
		m.RiskBlocks,
		m.ExecResults,
		m.ActiveCycles,
		m.DrawdownPct,
	)

	return m
}

// StageTimer tracks one stage's execution time within a cycle.
type StageTimer struct {
	metrics *MetricsRegistry
	stage   string
	symbol  string
	start   time.Time
}

// StartStage begins timing a named stage for a symbol's cycle.
func (m *MetricsRegistry) StartStage(stage, symbol string) *StageTimer {
	return &StageTimer{metrics: m, stage: stage, symbol: symbol, start: time.Now()}
}

// Stop records the stage's duration under the given result label
// ("ok", "error", "degraded").
func (st *StageTimer) Stop(result string) {
	st.metrics.StageDuration.WithLabelValues(st.stage, st.symbol, result).Observe(time.Since(st.start).Seconds())
}

// RecordStageError increments the error counter for a stage/kind pair.
func (m *MetricsRegistry) RecordStageError(stage, kind string) {
	m.StageErrors.WithLabelValues(stage, kind).Inc()
}

// RecordDecision increments the decision counter for a symbol/action pair.
func (m *MetricsRegistry) RecordDecision(symbol, action string) {
	m.DecisionsTotal.WithLabelValues(symbol, action).Inc()
}

// RecordRiskBlock increments the block counter for a symbol/reason pair.
func (m *MetricsRegistry) RecordRiskBlock(symbol, reason string) {
	m.RiskBlocks.WithLabelValues(symbol, reason).Inc()
}

// RecordExecResult increments the execution counter for a symbol/status pair.
func (m *MetricsRegistry) RecordExecResult(symbol, status string) {
	m.ExecResults.WithLabelValues(symbol, status).Inc()
}

// SetDrawdown publishes the reconciler's latest drawdown fraction for a symbol.
func (m *MetricsRegistry) SetDrawdown(symbol string, pct float64) {
	m.DrawdownPct.WithLabelValues(symbol).Set(pct)
}

// Handler returns the promhttp handler serving this registry's collectors.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
