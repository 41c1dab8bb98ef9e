// Package reconciler is the single writer of the global risk gates
// (drawdown, consecutive losses). It consumes
// TradeOutcome events and publishes an immutable RiskGateSnapshot; this is
// a one-directional flow so RiskAuditAgent never calls back into Decision,
// avoiding a cyclic dependency between risk auditing and execution outcomes.
package reconciler

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// TradeOutcome is emitted by the orchestrator after every OrderSink
// submission: a filled or rejected order carrying the orchestrator's
// fill-slippage PnL proxy, or an unknown-state result after exhausted
// retries. No stop-out or take-profit outcome is ever emitted.
type TradeOutcome struct {
	Symbol       string
	SnapshotID   string
	RealizedPnL  float64
	AccountEquity float64
	PeakEquity    float64
	Unknown       bool
}

// RiskGateSnapshot is the immutable, atomically-swapped view RiskAuditAgent
// reads at the start of every audit.
type RiskGateSnapshot struct {
	DrawdownPct       float64
	ConsecutiveLosses int
}

// Reconciler owns gate state and republishes it on every outcome.
type Reconciler struct {
	outcomes chan TradeOutcome
	snapshot atomic.Value // RiskGateSnapshot

	mu                sync.Mutex
	peakEquity        float64
	consecutiveLosses int

	log zerolog.Logger
}

// New builds a Reconciler with a safe zero-value gate snapshot already
// published. It starts nothing: the caller starts the consume loop with
// Run, which returns only once the event channel is closed.
func New(log zerolog.Logger) *Reconciler {
	r := &Reconciler{
		outcomes: make(chan TradeOutcome, 256),
		log:      log.With().Str("component", "Reconciler").Logger(),
	}
	r.snapshot.Store(RiskGateSnapshot{})
	return r
}

// Events returns the channel the orchestrator publishes TradeOutcome events
// to after every OrderSink resolution.
func (r *Reconciler) Events() chan<- TradeOutcome { return r.outcomes }

// Snapshot returns the current immutable risk-gate view.
func (r *Reconciler) Snapshot() RiskGateSnapshot {
	return r.snapshot.Load().(RiskGateSnapshot)
}

// Run consumes outcomes until the channel is closed, updating and
// republishing the gate snapshot after each one.
func (r *Reconciler) Run() {
	for outcome := range r.outcomes {
		r.apply(outcome)
	}
}

func (r *Reconciler) apply(outcome TradeOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome.Unknown {
		r.log.Warn().Str("symbol", outcome.Symbol).Str("snapshot_id", outcome.SnapshotID).
			Msg("trade outcome unknown after retries, treating as neither win nor loss")
	} else if outcome.RealizedPnL < 0 {
		r.consecutiveLosses++
	} else if outcome.RealizedPnL > 0 {
		r.consecutiveLosses = 0
	}

	if outcome.PeakEquity > r.peakEquity {
		r.peakEquity = outcome.PeakEquity
	}
	if outcome.AccountEquity > r.peakEquity {
		r.peakEquity = outcome.AccountEquity
	}

	drawdown := 0.0
	if r.peakEquity > 0 {
		drawdown = (r.peakEquity - outcome.AccountEquity) / r.peakEquity
		if drawdown < 0 {
			drawdown = 0
		}
	}

	r.snapshot.Store(RiskGateSnapshot{
		DrawdownPct:       drawdown,
		ConsecutiveLosses: r.consecutiveLosses,
	})
}
