package analyst

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/domain/indicator"
)

// syntheticCandles builds n candles with a gentle upward drift so indicator
// warmup (105 rows) is satisfied and EMA12 > EMA26, keeping regime/trend
// math deterministic for assertions.
func syntheticCandles(n int, start float64, drift float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := start
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		open := price
		price += drift
		close := price
		hi := math.Max(open, close) + 0.5
		lo := math.Min(open, close) - 0.5
		out[i] = domain.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     close,
			Volume:    100 + float64(i%5),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

func buildSnapshot(t *testing.T, n int, drift float64) domain.MarketSnapshot {
	t.Helper()
	candles := syntheticCandles(n, 100, drift)

	views := make(map[domain.Timeframe]domain.TimeframeView, 3)
	for _, tf := range []domain.Timeframe{domain.TF5m, domain.TF15m, domain.TF1h} {
		frame, err := indicator.Process("BTCUSDT", tf, candles)
		require.NoError(t, err)
		views[tf] = domain.TimeframeView{
			Stable: frame,
			Live:   candles[len(candles)-1],
		}
	}

	return domain.MarketSnapshot{
		SnapshotID: domain.NewSnapshotID(),
		Symbol:     "BTCUSDT",
		Timestamp:  time.Now().UTC(),
		Views:      views,
		Funding: domain.FundingSnapshot{
			FundingRate:            0.0001,
			OpenInterest:           1_200_000,
			OpenInterest24hAgo:     1_000_000,
			InstitutionalNetflow1h: 500,
		},
		AlignmentOK: true,
	}
}

func TestTrendSubAgent_ClipsToRange(t *testing.T) {
	snap := buildSnapshot(t, domain.MinSeriesLength+5, 1.0)

	scores := TrendSubAgent{}.Score(snap)
	require.Len(t, scores, 3)
	for tf, v := range scores {
		assert.GreaterOrEqualf(t, v, -100.0, "tf %s below floor", tf)
		assert.LessOrEqualf(t, v, 100.0, "tf %s above ceiling", tf)
	}
}

func TestOscillatorSubAgent_ExtremesClamp(t *testing.T) {
	// A long, steep downtrend should push RSI toward oversold territory,
	// yielding a positive (mean-reversion-up) oscillator score on 1h.
	snap := buildSnapshot(t, domain.MinSeriesLength+5, -2.0)

	scores := OscillatorSubAgent{}.Score(snap)
	assert.GreaterOrEqual(t, scores[domain.TF1h], 0.0)

	weighted := OscillatorSubAgent{}.Weighted(scores)
	assert.GreaterOrEqual(t, weighted, -100.0)
	assert.LessOrEqual(t, weighted, 100.0)
}

func TestSentimentSubAgent_MissingInputsYieldZeroComponents(t *testing.T) {
	snap := buildSnapshot(t, domain.MinSeriesLength+5, 0.1)
	snap.Funding = domain.FundingSnapshot{}

	score := SentimentSubAgent{}.Score(snap)
	assert.Equal(t, 0.0, score)
}

func TestSentimentSubAgent_AlignedOIChangeRewarded(t *testing.T) {
	snap := buildSnapshot(t, domain.MinSeriesLength+5, 1.0) // uptrend
	snap.Funding.OpenInterest24hAgo = 1_000_000
	snap.Funding.OpenInterest = 1_150_000 // +15%, aligned with uptrend
	snap.Funding.FundingRate = 0
	snap.Funding.InstitutionalNetflow1h = 0

	score := SentimentSubAgent{}.Score(snap)
	assert.Equal(t, 10.0, score)
}

func TestQuantAnalystAgent_LabelsFollowComposite(t *testing.T) {
	agent := QuantAnalystAgent{}

	bullish := buildSnapshot(t, domain.MinSeriesLength+5, 1.5)
	bullish.Funding.InstitutionalNetflow1h = 1000
	bullish.Funding.FundingRate = 0

	analysis := agent.Analyze(bullish)
	assert.Contains(t, []string{"buy", "neutral"}, analysis.Label)
	assert.Len(t, analysis.Rationale, 3)
	assert.GreaterOrEqual(t, analysis.Composite, -100.0)
	assert.LessOrEqual(t, analysis.Composite, 100.0)
}
