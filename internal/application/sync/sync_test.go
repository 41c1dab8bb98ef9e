package sync

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdamio/tradeengine/internal/domain"
)

type fakeSource struct {
	candles     map[domain.Timeframe][]domain.Candle
	live        map[domain.Timeframe]domain.Candle
	liveErr     error
	fundingErr  error
	closedErrTF domain.Timeframe
}

func (f fakeSource) FetchClosedCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	if tf == f.closedErrTF {
		return nil, errors.New("exchange unreachable")
	}
	return f.candles[tf], nil
}

func (f fakeSource) FetchLiveCandle(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Candle, error) {
	if f.liveErr != nil {
		return domain.Candle{}, f.liveErr
	}
	return f.live[tf], nil
}

func (f fakeSource) FetchFunding(ctx context.Context, symbol string) (domain.FundingSnapshot, error) {
	if f.fundingErr != nil {
		return domain.FundingSnapshot{}, f.fundingErr
	}
	return domain.FundingSnapshot{FundingRate: 0.0001}, nil
}

func candleSeries(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	base := time.Now().UTC().Add(-time.Duration(n) * time.Hour)
	price := 100.0
	for i := 0; i < n; i++ {
		open := price
		price += 0.5
		close := price
		out[i] = domain.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, close) + 0.25,
			Low:       math.Min(open, close) - 0.25,
			Close:     close,
			Volume:    10,
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

func allTFCandles(n int) map[domain.Timeframe][]domain.Candle {
	series := candleSeries(n)
	return map[domain.Timeframe][]domain.Candle{
		domain.TF5m:  series,
		domain.TF15m: series,
		domain.TF1h:  series,
	}
}

func allTFLive(n int) map[domain.Timeframe]domain.Candle {
	series := candleSeries(n)
	last := series[len(series)-1]
	return map[domain.Timeframe]domain.Candle{
		domain.TF5m:  last,
		domain.TF15m: last,
		domain.TF1h:  last,
	}
}

func TestDataSyncAgent_Sync_HappyPath(t *testing.T) {
	n := domain.MinSeriesLength + 10
	source := fakeSource{candles: allTFCandles(n), live: allTFLive(n)}
	agent := NewDataSyncAgent(source, zerolog.Nop())

	snap, err := agent.Sync(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Len(t, snap.Views, 3)
	assert.NotEmpty(t, snap.SnapshotID)
	assert.Equal(t, 0.0001, snap.Funding.FundingRate)
	assert.True(t, snap.AlignmentOK)
}

func TestDataSyncAgent_Sync_FailsOnLegError(t *testing.T) {
	n := domain.MinSeriesLength + 10
	source := fakeSource{candles: allTFCandles(n), live: allTFLive(n), closedErrTF: domain.TF1h}
	agent := NewDataSyncAgent(source, zerolog.Nop())

	_, err := agent.Sync(context.Background(), "BTCUSDT")
	require.Error(t, err)
}

func TestDataSyncAgent_Sync_FundingFailureDegradesNotFails(t *testing.T) {
	n := domain.MinSeriesLength + 10
	source := fakeSource{candles: allTFCandles(n), live: allTFLive(n), fundingErr: errors.New("funding api down")}
	agent := NewDataSyncAgent(source, zerolog.Nop())

	snap, err := agent.Sync(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Warnings)
}

func TestDataSyncAgent_Sync_StaleLiveCandleWarns(t *testing.T) {
	n := domain.MinSeriesLength + 10
	live := allTFLive(n)
	stale := live[domain.TF1h]
	stale.OpenTime = stale.OpenTime.Add(-5 * time.Hour)
	live[domain.TF1h] = stale

	source := fakeSource{candles: allTFCandles(n), live: live}
	agent := NewDataSyncAgent(source, zerolog.Nop())

	snap, err := agent.Sync(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, snap.Views[domain.TF1h].LiveStale)
	assert.NotEmpty(t, snap.Warnings)
}
