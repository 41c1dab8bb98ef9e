package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobdamio/tradeengine/internal/domain"
)

func baseSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		SnapshotID: "snap-1",
		Symbol:     "BTCUSDT",
		Views: map[domain.Timeframe]domain.TimeframeView{
			domain.TF5m:  {},
			domain.TF15m: {},
			domain.TF1h:  {},
		},
		FundingAvailable: true,
	}
}

func TestDecide_FullyAlignedStrongScoreGoesLongAt85(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: 90, domain.TF15m: 90, domain.TF1h: 90},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 40, domain.TF15m: 40, domain.TF1h: 40},
		Sentiment:  50,
	}
	predict := domain.PredictResult{PUp: 0.9}
	position := domain.Position{AllowLong: true, AllowShort: true, Location: domain.LocationMiddle}

	result := agent.Decide(snap, quant, predict, domain.RegimeTrending, position)

	assert.Equal(t, domain.ActionLong, result.Action)
	assert.Equal(t, 85.0, result.Confidence)
	assert.True(t, result.MultiPeriodAligned)
}

func TestDecide_ChoppyMiddleForcesHold(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: 90, domain.TF15m: 90, domain.TF1h: 90},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 40, domain.TF15m: 40, domain.TF1h: 40},
		Sentiment:  50,
	}
	predict := domain.PredictResult{PUp: 0.9}
	position := domain.Position{AllowLong: true, AllowShort: true, Location: domain.LocationMiddle}

	result := agent.Decide(snap, quant, predict, domain.RegimeChoppy, position)

	assert.Equal(t, domain.ActionHold, result.Action)
	assert.Contains(t, result.Reason, "CHOPPY-MIDDLE")
}

func TestDecide_PositionGateBlocksLong(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: 90, domain.TF15m: 90, domain.TF1h: 90},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 40, domain.TF15m: 40, domain.TF1h: 40},
		Sentiment:  50,
	}
	predict := domain.PredictResult{PUp: 0.9}
	position := domain.Position{AllowLong: false, AllowShort: true, Location: domain.LocationTop}

	result := agent.Decide(snap, quant, predict, domain.RegimeTrending, position)

	assert.Equal(t, domain.ActionHold, result.Action)
	assert.Contains(t, result.Reason, "POSITION-GATE-LONG")
}

func TestDecide_AdversarialAuditDecaysConfidence(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	snap.Funding.InstitutionalNetflow1h = -3_000_000

	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: 60, domain.TF15m: 60, domain.TF1h: 60},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 20, domain.TF15m: 20, domain.TF1h: 20},
		Sentiment:  20,
	}
	predict := domain.PredictResult{PUp: 0.7}
	position := domain.Position{AllowLong: true, AllowShort: true, Location: domain.LocationMiddle}

	result := agent.Decide(snap, quant, predict, domain.RegimeTrending, position)

	assert.Equal(t, domain.ActionLong, result.Action)
	assert.Less(t, result.Confidence, 85.0)
	assert.Contains(t, result.Reason, "institutional outflow")
}

func TestDecide_AdversarialAuditDecayBelowFloorDowngradesToHold(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	snap.Funding.InstitutionalNetflow1h = -3_000_000

	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: 0, domain.TF15m: 100, domain.TF1h: 100},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 0, domain.TF15m: 0, domain.TF1h: 0},
		Sentiment:  0,
	}
	predict := domain.PredictResult{PUp: 0.5}
	position := domain.Position{AllowLong: true, AllowShort: true, Location: domain.LocationMiddle}

	result := agent.Decide(snap, quant, predict, domain.RegimeTrending, position)

	assert.Equal(t, domain.ActionHold, result.Action)
	assert.Contains(t, result.Reason, "CONFIDENCE-FLOOR")
}

func TestDecide_PartiallyAlignedModerateScoreLinearlyScalesBetween60And75(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: -100, domain.TF15m: 100, domain.TF1h: 100},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 0, domain.TF15m: 0, domain.TF1h: 0},
		Sentiment:  75,
	}
	predict := domain.PredictResult{PUp: 0.5}
	position := domain.Position{AllowLong: true, AllowShort: true, Location: domain.LocationMiddle}

	result := agent.Decide(snap, quant, predict, domain.RegimeTrending, position)

	assert.Equal(t, domain.ActionLong, result.Action)
	assert.False(t, result.MultiPeriodAligned)
	assert.InDelta(t, 40.0, result.WeightedScore, 1e-9)
	assert.Greater(t, result.Confidence, 60.0)
	assert.Less(t, result.Confidence, 75.0)
}

func TestDecide_MissingSentimentRenormalizesWeights(t *testing.T) {
	agent := NewDecisionCoreAgent()
	snap := baseSnapshot()
	snap.FundingAvailable = false

	quant := domain.QuantAnalysis{
		Trend:      map[domain.Timeframe]float64{domain.TF5m: 50, domain.TF15m: 50, domain.TF1h: 50},
		Oscillator: map[domain.Timeframe]float64{domain.TF5m: 0, domain.TF15m: 0, domain.TF1h: 0},
		Sentiment:  100, // should be excluded entirely, not just scored low
	}
	predict := domain.PredictResult{PUp: 0.5}
	position := domain.Position{AllowLong: true, AllowShort: true}

	result := agent.Decide(snap, quant, predict, domain.RegimeTrending, position)

	_, present := result.VoteDetails["sentiment"]
	assert.False(t, present)
}
