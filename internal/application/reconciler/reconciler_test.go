package reconciler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestReconciler_ZeroValueSnapshotIsSafe(t *testing.T) {
	r := New(zerolog.Nop())

	snap := r.Snapshot()

	assert.Equal(t, 0.0, snap.DrawdownPct)
	assert.Equal(t, 0, snap.ConsecutiveLosses)
}

func TestReconciler_ConsecutiveLossesIncrementAndReset(t *testing.T) {
	r := New(zerolog.Nop())
	go r.Run()
	defer close(r.outcomes)

	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", RealizedPnL: -10, AccountEquity: 990, PeakEquity: 1000}
	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", RealizedPnL: -5, AccountEquity: 985, PeakEquity: 1000}
	waitForSnapshot(t, r, func(s RiskGateSnapshot) bool { return s.ConsecutiveLosses == 2 })

	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", RealizedPnL: 20, AccountEquity: 1005, PeakEquity: 1005}
	waitForSnapshot(t, r, func(s RiskGateSnapshot) bool { return s.ConsecutiveLosses == 0 })
}

func TestReconciler_DrawdownTracksPeakEquity(t *testing.T) {
	r := New(zerolog.Nop())
	go r.Run()
	defer close(r.outcomes)

	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", RealizedPnL: 100, AccountEquity: 1000, PeakEquity: 1000}
	waitForSnapshot(t, r, func(s RiskGateSnapshot) bool { return s.DrawdownPct == 0 })

	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", RealizedPnL: -120, AccountEquity: 880, PeakEquity: 880}
	waitForSnapshot(t, r, func(s RiskGateSnapshot) bool {
		return s.DrawdownPct > 0.11 && s.DrawdownPct < 0.13
	})
}

func TestReconciler_UnknownOutcomeDoesNotAffectStreak(t *testing.T) {
	r := New(zerolog.Nop())
	go r.Run()
	defer close(r.outcomes)

	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", RealizedPnL: -10, AccountEquity: 990, PeakEquity: 1000}
	waitForSnapshot(t, r, func(s RiskGateSnapshot) bool { return s.ConsecutiveLosses == 1 })

	r.Events() <- TradeOutcome{Symbol: "BTCUSDT", Unknown: true, AccountEquity: 990, PeakEquity: 1000}
	waitForSnapshot(t, r, func(s RiskGateSnapshot) bool { return s.ConsecutiveLosses == 1 })
}

func waitForSnapshot(t *testing.T, r *Reconciler, ok func(RiskGateSnapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ok(r.Snapshot()) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("snapshot condition not met, last snapshot: %+v", r.Snapshot())
}
