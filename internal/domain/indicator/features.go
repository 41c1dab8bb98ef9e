package indicator

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// ExtractFeatures condenses an IndicatorFrame's last closed row into the
// one-row FeatureSnapshot the predictor consumes.
func ExtractFeatures(symbol string, f domain.IndicatorFrame) domain.FeatureSnapshot {
	closes := make([]float64, f.Len())
	for i, c := range f.Series.Candles {
		closes[i] = c.Close
	}
	last := f.Len() - 1

	fs := domain.FeatureSnapshot{
		Symbol:    symbol,
		Timestamp: f.Series.Candles[last].CloseTime,
	}

	fs.PriceChange1 = pctChange(closes, last, 1)
	fs.PriceChange3 = pctChange(closes, last, 3)
	fs.PriceChange5 = pctChange(closes, last, 5)
	fs.PriceChange10 = pctChange(closes, last, 10)
	fs.PriceChange20 = pctChange(closes, last, 20)

	if last >= 1 {
		fs.EMACrossUp = f.EMA12[last-1] <= f.EMA26[last-1] && f.EMA12[last] > f.EMA26[last]
		fs.EMACrossDown = f.EMA12[last-1] >= f.EMA26[last-1] && f.EMA12[last] < f.EMA26[last]
		fs.MACDCrossUp = f.MACD[last-1] <= f.MACDSignal[last-1] && f.MACD[last] > f.MACDSignal[last]
		fs.MACDCrossDown = f.MACD[last-1] >= f.MACDSignal[last-1] && f.MACD[last] < f.MACDSignal[last]
	}

	rsiVal := f.RSI14[last]
	switch {
	case rsiVal <= 30:
		fs.RSIBucket = "oversold"
	case rsiVal >= 70:
		fs.RSIBucket = "overbought"
	default:
		fs.RSIBucket = "neutral"
	}

	if f.Series.Candles[last].Close != 0 {
		fs.ATROverPrice = f.ATR14[last] / f.Series.Candles[last].Close
	}

	fs.VolumeRatioZ = zScore(volumeRatioWindow(f, last, 20))

	window := lookback(f.Series.Candles, last, 96)
	hi, lo := highLow(window)
	price := f.Series.Candles[last].Close
	if hi != lo {
		fs.DistToRecentHigh = (hi - price) / (hi - lo)
		fs.DistToRecentLow = (price - lo) / (hi - lo)
	}

	return fs
}

func pctChange(closes []float64, last, lag int) float64 {
	idx := last - lag
	if idx < 0 || closes[idx] == 0 {
		return math.NaN()
	}
	return (closes[last] - closes[idx]) / closes[idx]
}

func volumeRatioWindow(f domain.IndicatorFrame, last, window int) []float64 {
	start := last - window + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, last-start+1)
	for i := start; i <= last; i++ {
		if !math.IsNaN(f.VolumeRatio[i]) {
			out = append(out, f.VolumeRatio[i])
		}
	}
	return out
}

func zScore(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (values[len(values)-1] - mean) / std
}

func lookback(candles []domain.Candle, last, window int) []domain.Candle {
	start := last - window + 1
	if start < 0 {
		start = 0
	}
	return candles[start : last+1]
}

func highLow(candles []domain.Candle) (hi, lo float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	hi, lo = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	return hi, lo
}
