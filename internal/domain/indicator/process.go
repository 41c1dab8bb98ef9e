// Package indicator computes the closed-form technical indicator set used by
// the sub-agents (EMA/MACD/RSI/ATR/Bollinger/OBV/VWAP/ADX).
// Process is a pure function of its input: same candles in, same frame out,
// no I/O, no suspension — safe to call from either the live or replay path.
package indicator

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/apperr"
	"github.com/bobdamio/tradeengine/internal/domain"
)

// Process computes the full IndicatorFrame for a candle series. It rejects
// series shorter than domain.MinSeriesLength and marks the first
// domain.WarmupRows entries of every indicator as NaN.
func Process(symbol string, tf domain.Timeframe, candles []domain.Candle) (domain.IndicatorFrame, error) {
	n := len(candles)
	if n < domain.MinSeriesLength {
		return domain.IndicatorFrame{}, apperr.New(apperr.KindInsufficient, "IndicatorProcessor", symbol, errShort(n))
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	f := domain.IndicatorFrame{
		Series:  domain.Series{TF: tf, Candles: candles, WarmupRows: domain.WarmupRows},
		Version: domain.CurrentFrameVersion,
	}

	f.SMA20 = sma(closes, 20)
	f.SMA50 = sma(closes, 50)
	f.EMA12 = ema(closes, 12)
	f.EMA26 = ema(closes, 26)
	f.EMA20 = ema(closes, 20)
	f.EMA50 = ema(closes, 50)

	f.MACD = make([]float64, n)
	for i := range f.MACD {
		f.MACD[i] = f.EMA12[i] - f.EMA26[i]
	}
	f.MACDSignal = ema(f.MACD, 9)
	f.MACDHist = make([]float64, n)
	for i := range f.MACDHist {
		f.MACDHist[i] = f.MACD[i] - f.MACDSignal[i]
	}

	f.RSI14 = rsi(closes, 14)
	f.ATR14 = atrWilder(highs, lows, closes, 14)
	f.BollMid, f.BollUpper, f.BollLower = bollinger(closes, 20, 2)
	f.OBV = obv(closes, volumes)
	f.VolumeRatio = volumeRatio(volumes, 20)
	f.VWAP = vwap(highs, lows, closes, volumes)
	f.ADX14 = adx(highs, lows, closes, 14)

	blankWarmup(f)

	return f, nil
}

// blankWarmup sets the first domain.WarmupRows entries of every indicator
// slice to NaN so downstream consumers cannot silently read unstable values.
func blankWarmup(f domain.IndicatorFrame) {
	w := domain.WarmupRows
	if w > len(f.SMA20) {
		w = len(f.SMA20)
	}
	slices := [][]float64{
		f.SMA20, f.SMA50, f.EMA12, f.EMA26, f.EMA20, f.EMA50, f.MACD, f.MACDSignal, f.MACDHist,
		f.RSI14, f.ATR14, f.BollMid, f.BollUpper, f.BollLower, f.OBV,
		f.VolumeRatio, f.VWAP, f.ADX14,
	}
	for _, s := range slices {
		for i := 0; i < w && i < len(s); i++ {
			s[i] = math.NaN()
		}
	}
}

func sma(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += values[i]
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

func ema(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1.0)

	seed := math.NaN()
	seedIdx := period - 1
	if seedIdx >= n {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sum := 0.0
	for i := 0; i <= seedIdx; i++ {
		sum += values[i]
		out[i] = math.NaN()
	}
	seed = sum / float64(period)
	out[seedIdx] = seed

	prev := seed
	for i := seedIdx + 1; i < n; i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

func rsi(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= period {
		return out
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// atrWilder computes ATR(period) using Wilder's smoothing method.
func atrWilder(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= period {
		return out
	}

	trueRange := func(i int) float64 {
		if i == 0 {
			return highs[i] - lows[i]
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		return math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(i)
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < n; i++ {
		tr := trueRange(i)
		atr = (atr*float64(period-1) + tr) / float64(period)
		out[i] = atr
	}
	return out
}

func bollinger(closes []float64, period int, numStd float64) (mid, upper, lower []float64) {
	n := len(closes)
	mid = sma(closes, period)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := range upper {
		upper[i] = math.NaN()
		lower[i] = math.NaN()
	}
	for i := period - 1; i < n; i++ {
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mid[i]
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + numStd*std
		lower[i] = mid[i] - numStd*std
	}
	return mid, upper, lower
}

func obv(closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = volumes[0]
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func volumeRatio(volumes []float64, period int) []float64 {
	avg := sma(volumes, period)
	n := len(volumes)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(avg[i]) || avg[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = volumes[i] / avg[i]
	}
	return out
}

func vwap(highs, lows, closes, volumes []float64) []float64 {
	n := len(highs)
	out := make([]float64, n)
	cumPV, cumV := 0.0, 0.0
	for i := 0; i < n; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3.0
		cumPV += typical * volumes[i]
		cumV += volumes[i]
		if cumV == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumPV / cumV
	}
	return out
}

// adx computes the Average Directional Index via Wilder smoothing of the
// directional movement indicators, used only by RegimeDetector.
func adx(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= 2*period {
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	smooth := func(values []float64) []float64 {
		s := make([]float64, n)
		sum := 0.0
		for i := 1; i <= period; i++ {
			sum += values[i]
		}
		s[period] = sum
		for i := period + 1; i < n; i++ {
			s[i] = s[i-1] - s[i-1]/float64(period) + values[i]
		}
		return s
	}

	smTR := smooth(tr)
	smPlusDM := smooth(plusDM)
	smMinusDM := smooth(minusDM)

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if smTR[i] == 0 {
			dx[i] = 0
			continue
		}
		plusDI := 100 * smPlusDM[i] / smTR[i]
		minusDI := 100 * smMinusDM[i] / smTR[i]
		sumDI := plusDI + minusDI
		if sumDI == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sumDI
	}

	start := 2 * period
	if start >= n {
		return out
	}
	sum := 0.0
	for i := period; i < start; i++ {
		sum += dx[i]
	}
	adxVal := sum / float64(period)
	out[start] = adxVal
	for i := start + 1; i < n; i++ {
		adxVal = (adxVal*float64(period-1) + dx[i]) / float64(period)
		out[i] = adxVal
	}
	return out
}

type shortErr struct{ n int }

func (e shortErr) Error() string { return "insufficient candles for indicator processing" }
func errShort(n int) error       { return shortErr{n: n} }
