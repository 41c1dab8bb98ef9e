// Package position computes where price sits within its recent range and
// derives the long/short gates DecisionCoreAgent consults.
package position

import "github.com/bobdamio/tradeengine/internal/domain"

const (
	lookbackCandles = 96
	bottomThreshold = 30.0
	topThreshold    = 70.0
)

// Analyze computes the percentile of the last closed 1h close within the
// trailing lookbackCandles 1h candles and derives direction gates.
func Analyze(frame1h domain.IndicatorFrame) domain.Position {
	candles := frame1h.Series.Candles
	last := len(candles) - 1
	if last < 0 {
		return domain.Position{Location: domain.LocationMiddle}
	}

	start := last - lookbackCandles + 1
	if start < 0 {
		start = 0
	}
	window := candles[start : last+1]

	hi, lo := window[0].High, window[0].Low
	for _, c := range window[1:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}

	price := candles[last].Close
	pct := 50.0
	if hi != lo {
		pct = (price - lo) / (hi - lo) * 100.0
	}

	loc := domain.LocationMiddle
	switch {
	case pct < bottomThreshold:
		loc = domain.LocationBottom
	case pct > topThreshold:
		loc = domain.LocationTop
	}

	return domain.Position{
		Percentile: pct,
		Location:   loc,
		AllowLong:  pct < topThreshold,
		AllowShort: pct > bottomThreshold,
	}
}
