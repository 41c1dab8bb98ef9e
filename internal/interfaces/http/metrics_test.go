package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry_StageTimerRecordsDuration(t *testing.T) {
	m := NewMetricsRegistry()

	timer := m.StartStage("sync", "BTCUSDT")
	timer.Stop("ok")

	count := testutilCollect(t, m)
	assert.Greater(t, count, 0)
}

func TestMetricsRegistry_RecordHelpersDoNotPanic(t *testing.T) {
	m := NewMetricsRegistry()

	assert.NotPanics(t, func() {
		m.RecordStageError("risk", "risk_block")
		m.RecordDecision("BTCUSDT", "long")
		m.RecordRiskBlock("BTCUSDT", "DRAWDOWN")
		m.RecordExecResult("BTCUSDT", "filled")
		m.SetDrawdown("BTCUSDT", 0.04)
	})
}

// testutilCollect counts the metric families currently registered, a cheap
// way to assert something was recorded without depending on promhttp output
// formatting.
func testutilCollect(t *testing.T, m *MetricsRegistry) int {
	t.Helper()
	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	return len(families)
}
