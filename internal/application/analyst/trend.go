// Package analyst implements the three layered signal sub-agents
// (TrendSubAgent, OscillatorSubAgent, SentimentSubAgent) and the
// QuantAnalystAgent that composes them.
package analyst

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// TrendSubAgent scores trend per timeframe. The same three
// cross-timeframe components contribute to every timeframe's score; only
// the live-correction term is evaluated against that timeframe's own
// stable/live views.
type TrendSubAgent struct{}

// Score returns trend_5m, trend_15m, trend_1h for the snapshot.
func (TrendSubAgent) Score(snap domain.MarketSnapshot) map[domain.Timeframe]float64 {
	out := make(map[domain.Timeframe]float64, 3)

	emaCross := emaCrossComponent(snap.Views[domain.TF1h].Stable)
	macdExpand := macdExpansionComponent(snap.Views[domain.TF15m].Stable)
	breakout := breakoutComponent(snap.Views[domain.TF5m].Stable)

	for _, tf := range []domain.Timeframe{domain.TF5m, domain.TF15m, domain.TF1h} {
		score := emaCross + macdExpand + breakout + liveCorrection(snap.Views[tf])
		out[tf] = clip(score)
	}
	return out
}

// emaCrossComponent adds +/-40 when a 1h EMA(12)/EMA(26) crossover occurred
// within the last 3 closed candles, signed by the direction of the cross.
func emaCrossComponent(frame domain.IndicatorFrame) float64 {
	last := frame.Len() - 1
	if last < frame.Series.WarmupRows+3 {
		return 0
	}
	for i := last; i > last-3; i-- {
		prevDiff := frame.EMA12[i-1] - frame.EMA26[i-1]
		currDiff := frame.EMA12[i] - frame.EMA26[i]
		if math.IsNaN(prevDiff) || math.IsNaN(currDiff) {
			continue
		}
		if prevDiff <= 0 && currDiff > 0 {
			return 40
		}
		if prevDiff >= 0 && currDiff < 0 {
			return -40
		}
	}
	return 0
}

// macdExpansionComponent adds +/-30 when the 15m MACD histogram has been
// strictly expanding in magnitude over the last 3 bars.
func macdExpansionComponent(frame domain.IndicatorFrame) float64 {
	last := frame.Len() - 1
	if last < frame.Series.WarmupRows+2 {
		return 0
	}
	h0, h1, h2 := frame.MACDHist[last-2], frame.MACDHist[last-1], frame.MACDHist[last]
	if math.IsNaN(h0) || math.IsNaN(h1) || math.IsNaN(h2) {
		return 0
	}
	if h2 > h1 && h1 > h0 && h2 > 0 {
		return 30
	}
	if h2 < h1 && h1 < h0 && h2 < 0 {
		return -30
	}
	return 0
}

// breakoutComponent adds +/-30 when the 5m close breaks the prior 20-bar
// high/low.
func breakoutComponent(frame domain.IndicatorFrame) float64 {
	last := frame.Len() - 1
	if last < frame.Series.WarmupRows+20 {
		return 0
	}
	candles := frame.Series.Candles
	priorHigh, priorLow := candles[last-20].High, candles[last-20].Low
	for i := last - 19; i < last; i++ {
		if candles[i].High > priorHigh {
			priorHigh = candles[i].High
		}
		if candles[i].Low < priorLow {
			priorLow = candles[i].Low
		}
	}
	close := candles[last].Close
	if close > priorHigh {
		return 30
	}
	if close < priorLow {
		return -30
	}
	return 0
}

// liveCorrection adds +/-20 from comparing the in-progress candle's close
// against the last closed candle's close for that timeframe.
func liveCorrection(view domain.TimeframeView) float64 {
	if view.LiveStale || view.Stable.Len() == 0 {
		return 0
	}
	lastClose := view.Stable.Series.Last().Close
	if lastClose == 0 {
		return 0
	}
	delta := (view.Live.Close - lastClose) / lastClose
	switch {
	case delta > 0:
		return 20
	case delta < 0:
		return -20
	default:
		return 0
	}
}

func clip(v float64) float64 {
	return math.Max(-100, math.Min(100, v))
}
