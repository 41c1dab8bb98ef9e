// Package kline validates and repairs raw candle series before they reach
// the indicator processor, mirroring the gate-evidence style of
// a gate-evidence style: every check reports what it saw and
// what it required, not just pass/fail.
package kline

import (
	"sort"

	"github.com/bobdamio/tradeengine/internal/apperr"
	"github.com/bobdamio/tradeengine/internal/domain"
)

// Report summarizes what Validate did to a raw series.
type Report struct {
	InputRows   int
	OutputRows  int
	Dropped     int
	DroppedWhy  []string
}

// Validate rejects malformed candles, sorts by open_time, and drops rows
// that violate the Candle invariants. It fails with InsufficientData if
// fewer than domain.MinSeriesLength rows survive.
func Validate(symbol string, tf domain.Timeframe, raw []domain.Candle) ([]domain.Candle, Report, error) {
	report := Report{InputRows: len(raw)}

	sorted := make([]domain.Candle, len(raw))
	copy(sorted, raw)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	clean := make([]domain.Candle, 0, len(sorted))
	var lastOpen int64
	for i, c := range sorted {
		if !c.Valid() {
			report.Dropped++
			report.DroppedWhy = append(report.DroppedWhy, "invalid_ohlcv")
			continue
		}
		open := c.OpenTime.UnixNano()
		if i > 0 && open <= lastOpen {
			report.Dropped++
			report.DroppedWhy = append(report.DroppedWhy, "non_increasing_timestamp")
			continue
		}
		lastOpen = open
		clean = append(clean, c)
	}

	report.OutputRows = len(clean)

	if len(clean) < domain.MinSeriesLength {
		return nil, report, apperr.New(apperr.KindInsufficient, "KlineValidator", symbol,
			errTooShort(len(clean), domain.MinSeriesLength))
	}

	return clean, report, nil
}

type shortSeriesErr struct {
	got, want int
}

func (e shortSeriesErr) Error() string {
	return "series too short for indicator stability"
}

func errTooShort(got, want int) error {
	return shortSeriesErr{got: got, want: want}
}
