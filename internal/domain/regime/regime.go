// Package regime labels the symbol's current 1h market regime. The ADX
// trending/choppy boundary is frozen at ADX >= 25 for trending, ADX < 20 for
// choppy eligibility; the gap between is resolved by falling through to
// volatile/unknown.
package regime

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/domain"
)

const (
	adxTrendingThreshold = 25.0
	adxChoppyThreshold   = 20.0
	choppyBandPct        = 0.003 // 0.3%
	volatileATRPct       = 0.015 // 1.5%
)

// Detect labels the 1h regime from its closed-candle indicator frame.
func Detect(frame1h domain.IndicatorFrame) domain.Regime {
	last := frame1h.Len() - 1
	if last < 0 || last < frame1h.Series.WarmupRows {
		return domain.RegimeUnknown
	}

	row := frame1h.At(last)
	if math.IsNaN(row.ADX14) || math.IsNaN(row.EMA12) || math.IsNaN(row.ATR14) {
		return domain.RegimeUnknown
	}

	if row.Close == 0 {
		return domain.RegimeUnknown
	}

	atrRatio := row.ATR14 / row.Close
	if atrRatio > volatileATRPct {
		return domain.RegimeVolatile
	}

	if row.ADX14 >= adxTrendingThreshold && emaMonotonic(frame1h, last) {
		return domain.RegimeTrending
	}

	if row.ADX14 < adxChoppyThreshold {
		dist := math.Abs(row.Close-row.EMA20) / row.Close
		if dist < choppyBandPct {
			return domain.RegimeChoppy
		}
	}

	return domain.RegimeUnknown
}

// emaMonotonic checks EMA(12), EMA(26), EMA(50) are monotonically ordered
// in the same direction.
func emaMonotonic(f domain.IndicatorFrame, i int) bool {
	e12, e26, e50 := f.EMA12[i], f.EMA26[i], f.EMA50[i]
	if math.IsNaN(e12) || math.IsNaN(e26) || math.IsNaN(e50) {
		return false
	}
	ascending := e12 > e26 && e26 > e50
	descending := e12 < e26 && e26 < e50
	return ascending || descending
}
