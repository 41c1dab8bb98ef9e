package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobdamio/tradeengine/internal/domain"
)

func TestStubSink_SubmitFillsAtRequestedEntry(t *testing.T) {
	sink := NewStubSink()

	result := sink.Submit(context.Background(), domain.ProposedOrder{
		SnapshotID: "snap-1", Symbol: "BTCUSDT", Action: domain.ActionLong,
		Entry: 100, Qty: 0.5,
	})

	assert.Equal(t, domain.ExecFilled, result.Status)
	assert.Equal(t, 100.0, result.FilledPrice)
	assert.Equal(t, 0.5, result.FilledQty)
	assert.Equal(t, "snap-1", result.SnapshotID)
}

func TestStubSink_FillsAccumulateInSubmissionOrder(t *testing.T) {
	sink := NewStubSink()

	sink.Submit(context.Background(), domain.ProposedOrder{SnapshotID: "a", Symbol: "BTCUSDT", Entry: 100, Qty: 1})
	sink.Submit(context.Background(), domain.ProposedOrder{SnapshotID: "b", Symbol: "ETHUSDT", Entry: 50, Qty: 2})

	fills := sink.Fills()
	assert.Len(t, fills, 2)
	assert.Equal(t, "a", fills[0].SnapshotID)
	assert.Equal(t, "b", fills[1].SnapshotID)
}
