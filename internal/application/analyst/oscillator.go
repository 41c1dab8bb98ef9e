package analyst

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// OscillatorSubAgent scores each timeframe's RSI(14) independently, per
// the oscillator sub-agent's rules:
//
//	RSI >= 75      -> -80 (overbought, mean-reversion down)
//	RSI <= 25      -> +80 (oversold, mean-reversion up)
//	70 < RSI < 75  -> linear taper from 0 to -40
//	25 < RSI < 30  -> linear taper from 0 to +40
//	otherwise      -> 0
type OscillatorSubAgent struct{}

// compositeWeights is the 30/30/40 blend across 5m/15m/1h,
// used by Weighted for callers that want a single oscillator number rather
// than the per-timeframe map (DecisionCoreAgent consults the per-tf map
// directly; this is a convenience for reporting/logging).
var compositeWeights = map[domain.Timeframe]float64{
	domain.TF5m:  0.30,
	domain.TF15m: 0.30,
	domain.TF1h:  0.40,
}

// Score returns oscillator_5m, oscillator_15m, oscillator_1h.
func (OscillatorSubAgent) Score(snap domain.MarketSnapshot) map[domain.Timeframe]float64 {
	out := make(map[domain.Timeframe]float64, 3)
	for _, tf := range []domain.Timeframe{domain.TF5m, domain.TF15m, domain.TF1h} {
		frame := snap.Views[tf].Stable
		out[tf] = rsiScore(frame)
	}
	return out
}

// Weighted blends the per-timeframe scores 30/30/40 into one number.
func (OscillatorSubAgent) Weighted(perTF map[domain.Timeframe]float64) float64 {
	sum := 0.0
	for tf, w := range compositeWeights {
		sum += perTF[tf] * w
	}
	return clip(sum)
}

func rsiScore(frame domain.IndicatorFrame) float64 {
	last := frame.Len() - 1
	if last < 0 || last < frame.Series.WarmupRows {
		return 0
	}
	rsi := frame.RSI14[last]
	if math.IsNaN(rsi) {
		return 0
	}

	switch {
	case rsi >= 75:
		return -80
	case rsi <= 25:
		return 80
	case rsi > 70:
		// taper from 70 (~0) towards 75 (-40)
		frac := (rsi - 70) / 5.0
		return -40 * frac
	case rsi < 30:
		// taper from 30 (~0) towards 25 (+40)
		frac := (30 - rsi) / 5.0
		return 40 * frac
	default:
		return 0
	}
}
