// Package sync fans out the per-timeframe market data fetch, validates and
// processes each leg into an IndicatorFrame, and assembles the result into
// one immutable MarketSnapshot. Every network call is
// isolated behind MarketDataSource; this package itself performs no I/O of
// its own beyond suspending on the injected source.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bobdamio/tradeengine/internal/apperr"
	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/domain/indicator"
	"github.com/bobdamio/tradeengine/internal/domain/kline"
)

// historyLimit is how many closed candles are requested per timeframe;
// comfortably above domain.MinSeriesLength so a handful of rejected candles
// still leaves a usable series.
const historyLimit = domain.MinSeriesLength + 50

// MarketDataSource is the boundary DataSyncAgent suspends on. Concrete
// implementations live in internal/infrastructure/exchange.
type MarketDataSource interface {
	FetchClosedCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
	FetchLiveCandle(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Candle, error)
	FetchFunding(ctx context.Context, symbol string) (domain.FundingSnapshot, error)
}

// DataSyncAgent builds one MarketSnapshot per cycle for a symbol.
type DataSyncAgent struct {
	Source MarketDataSource
	log    zerolog.Logger
}

// NewDataSyncAgent wires a DataSyncAgent against the given source.
func NewDataSyncAgent(source MarketDataSource, log zerolog.Logger) *DataSyncAgent {
	return &DataSyncAgent{Source: source, log: log.With().Str("component", "DataSyncAgent").Logger()}
}

var tfPeriod = map[domain.Timeframe]time.Duration{
	domain.TF5m:  5 * time.Minute,
	domain.TF15m: 15 * time.Minute,
	domain.TF1h:  time.Hour,
}

// Sync fetches and assembles the cross-timeframe snapshot for symbol. A
// closed-candle fetch, validation, or indicator failure on any timeframe
// fails the whole call with a FetchError. A missing or stale live candle,
// dropped candles, and a funding fetch failure do not: they are recorded in
// snapshot.Warnings (and a live-candle problem sets that view's LiveStale),
// while AlignmentOK reflects only the stable views' freshness and lag.
func (a *DataSyncAgent) Sync(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{
		SnapshotID: domain.NewSnapshotID(),
		Symbol:     symbol,
		Timestamp:  time.Now().UTC(),
		Views:      make(map[domain.Timeframe]domain.TimeframeView, 3),
	}

	type legResult struct {
		tf   domain.Timeframe
		view domain.TimeframeView
		warn string
	}

	results := make(chan legResult, 3)
	g, gctx := errgroup.WithContext(ctx)

	for _, tf := range []domain.Timeframe{domain.TF5m, domain.TF15m, domain.TF1h} {
		tf := tf
		g.Go(func() error {
			view, warn, err := a.fetchLeg(gctx, symbol, tf)
			if err != nil {
				return fmt.Errorf("timeframe %s: %w", tf, err)
			}
			results <- legResult{tf: tf, view: view, warn: warn}
			return nil
		})
	}

	funding, fundingErr := a.Source.FetchFunding(ctx, symbol)

	if err := g.Wait(); err != nil {
		return domain.MarketSnapshot{}, apperr.New(apperr.KindFetch, "DataSyncAgent", symbol, err)
	}
	close(results)

	for r := range results {
		snap.Views[r.tf] = r.view
		if r.warn != "" {
			snap.Warnings = append(snap.Warnings, r.warn)
		}
	}

	snap.AlignmentOK = checkAlignment(snap)

	if fundingErr != nil {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("funding unavailable: %v", fundingErr))
		a.log.Warn().Err(fundingErr).Str("symbol", symbol).Msg("funding fetch failed, continuing without it")
	} else {
		snap.Funding = funding
		snap.FundingAvailable = true
	}

	return snap, nil
}

func (a *DataSyncAgent) fetchLeg(ctx context.Context, symbol string, tf domain.Timeframe) (domain.TimeframeView, string, error) {
	raw, err := a.Source.FetchClosedCandles(ctx, symbol, tf, historyLimit)
	if err != nil {
		return domain.TimeframeView{}, "", err
	}

	validated, report, err := kline.Validate(symbol, tf, raw)
	if err != nil {
		return domain.TimeframeView{}, "", err
	}

	frame, err := indicator.Process(symbol, tf, validated)
	if err != nil {
		return domain.TimeframeView{}, "", err
	}

	live, err := a.Source.FetchLiveCandle(ctx, symbol, tf)
	stale := false
	warn := ""
	if err != nil {
		stale = true
		warn = fmt.Sprintf("%s live candle unavailable: %v", tf, err)
	} else if time.Since(live.OpenTime) > 2*tfPeriod[tf] {
		stale = true
		warn = fmt.Sprintf("%s live candle stale (open_time=%s)", tf, live.OpenTime)
	}

	if report.Dropped > 0 {
		dropWarn := fmt.Sprintf("%s dropped %d candles: %s", tf, report.Dropped, report.DroppedWhy)
		if warn == "" {
			warn = dropWarn
		}
	}

	return domain.TimeframeView{Stable: frame, Live: live, LiveStale: stale}, warn, nil
}

// checkAlignment enforces the pipeline's temporal-alignment invariant: the 5m
// stable view must be fresh (within 10 minutes of now), and the 15m/1h
// stable views must not lag more than their own period behind it.
func checkAlignment(snap domain.MarketSnapshot) bool {
	view5m, ok := snap.Views[domain.TF5m]
	if !ok || view5m.Stable.Len() == 0 {
		return false
	}
	ts := view5m.Stable.Series.Last().CloseTime
	if ts.Before(time.Now().Add(-10 * time.Minute)) {
		return false
	}

	view15m, ok := snap.Views[domain.TF15m]
	if !ok || view15m.Stable.Len() == 0 || view15m.Stable.Series.Last().CloseTime.Before(ts.Add(-15*time.Minute)) {
		return false
	}

	view1h, ok := snap.Views[domain.TF1h]
	if !ok || view1h.Stable.Len() == 0 || view1h.Stable.Series.Last().CloseTime.Before(ts.Add(-60*time.Minute)) {
		return false
	}

	return true
}
