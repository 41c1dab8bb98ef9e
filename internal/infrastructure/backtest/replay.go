// Package backtest supplies the offline MarketDataSource and OrderSink the
// backtest command wires in place of exchange.Client, grounded on the
// march_aug package's seeded synthetic OHLCV walk but reworked into a pure
// function of (symbol, timeframe, bar) rather than a stateful rand.Seed
// sequence, and stamped near real wall-clock time so the pipeline's
// physical-time alignment gate (sync.checkAlignment) still passes during a
// replay.
package backtest

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/bobdamio/tradeengine/internal/domain"
)

var tfStep = map[domain.Timeframe]time.Duration{
	domain.TF5m:  5 * time.Minute,
	domain.TF15m: 15 * time.Minute,
	domain.TF1h:  time.Hour,
}

// ReplaySource deterministically synthesizes OHLCV history for a fixed
// symbol universe. Each symbol has its own replay cursor (a bar index into
// the synthetic series) that Advance steps forward once per backtest cycle;
// FetchClosedCandles/FetchLiveCandle always read relative to that cursor, so
// replaying the same run twice reproduces identical OHLCV values; the
// OpenTime/CloseTime stamps are taken from the wall clock on every call.
type ReplaySource struct {
	mu     sync.Mutex
	cursor map[string]int
	bars   int
}

// NewReplaySource builds a source that can replay up to bars steps (one bar
// per 5m timeframe tick) for each of symbols.
func NewReplaySource(symbols []string, bars int) *ReplaySource {
	cursor := make(map[string]int, len(symbols))
	for _, s := range symbols {
		cursor[s] = historyLookback
	}
	return &ReplaySource{cursor: cursor, bars: bars}
}

// historyLookback is how many bars of synthetic history precede bar 0, so
// the very first Advance already has a full indicator warm-up window behind
// it.
const historyLookback = domain.MinSeriesLength + 60

// Advance steps symbol's replay cursor forward one bar. Done reports
// whether the configured replay window has been exhausted.
func (r *ReplaySource) Advance(symbol string) (done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor[symbol]++
	return r.cursor[symbol]-historyLookback >= r.bars
}

func (r *ReplaySource) cursorOf(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor[symbol]
}

// FetchClosedCandles returns limit candles ending at the symbol's current
// cursor, each stamped so the most recent CloseTime is already in the past
// by one step (as a just-closed candle would be).
func (r *ReplaySource) FetchClosedCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	cursor := r.cursorOf(symbol)
	step := tfStep[tf]
	now := time.Now().UTC()

	candles := make([]domain.Candle, 0, limit)
	for i := limit; i >= 1; i-- {
		bar := cursor - i
		openTime := now.Add(-time.Duration(i) * step)
		candles = append(candles, candleAt(symbol, tf, bar, openTime, step))
	}
	return candles, nil
}

// FetchLiveCandle returns the still-forming candle at the cursor, stamped
// with an OpenTime within the sync package's staleness tolerance of now.
func (r *ReplaySource) FetchLiveCandle(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Candle, error) {
	cursor := r.cursorOf(symbol)
	step := tfStep[tf]
	return candleAt(symbol, tf, cursor, time.Now().UTC(), step), nil
}

// FetchFunding synthesizes a small, symbol-stable funding snapshot; the
// pipeline treats funding as advisory, so it need not vary bar to bar.
func (r *ReplaySource) FetchFunding(ctx context.Context, symbol string) (domain.FundingSnapshot, error) {
	n := noise(symbol, "funding", 0)
	return domain.FundingSnapshot{
		FundingRate:            n * 0.001,
		OpenInterest:           1_000_000 * (1 + n),
		OpenInterest24hAgo:     1_000_000,
		InstitutionalNetflow1h: n * 50_000,
	}, nil
}

func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 10 + float64(h.Sum32()%200000)/100
}

// noise derives a deterministic pseudo-random value in [-0.5, 0.5] from its
// inputs, so the same (symbol, tag, bar) always synthesizes the same value
// regardless of call order.
func noise(symbol, tag string, bar int) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	_, _ = h.Write([]byte(tag))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(int64(bar)))
	_, _ = h.Write(buf[:])
	frac := float64(h.Sum64()%1_000_000) / 1_000_000
	return frac - 0.5
}

// candleAt synthesizes the bar-th candle for symbol/tf: a slow upward drift
// perturbed by per-bar noise, with OpenTime/CloseTime anchored to wallClock
// rather than to the virtual bar index, so the alignment gate sees fresh
// data.
func candleAt(symbol string, tf domain.Timeframe, bar int, wallClock time.Time, step time.Duration) domain.Candle {
	base := basePrice(symbol)
	drift := base * (1 + 0.0002*float64(bar))
	n := noise(symbol, string(tf), bar)
	prevN := noise(symbol, string(tf), bar-1)

	open := drift * (1 + prevN*0.02)
	close := drift * (1 + n*0.02)
	high := math.Max(open, close) * 1.0015
	low := math.Min(open, close) * 0.9985
	volume := 1000 + math.Abs(n)*20000

	return domain.Candle{
		OpenTime:  wallClock.Add(-step),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		CloseTime: wallClock,
	}
}
