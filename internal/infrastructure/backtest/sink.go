package backtest

import (
	"context"
	"sync"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// StubSink is the backtest command's OrderSink: rather than placing a real
// order (exchange.Client.Submit), it fills every proposed order at its
// requested Entry price and records the fill, mirroring exchange.Client's
// ExecutionResult shape without any network round trip.
type StubSink struct {
	mu    sync.Mutex
	fills []domain.ExecutionResult
}

// NewStubSink builds an empty StubSink.
func NewStubSink() *StubSink { return &StubSink{} }

// Submit always fills at order.Entry. A zero-quantity order (the
// orchestrator never builds one for a hold vote, but Qty could still be
// zero if sizing degrades) is reported filled with zero size rather than
// rejected, since nothing about the stub can fail.
func (s *StubSink) Submit(ctx context.Context, order domain.ProposedOrder) domain.ExecutionResult {
	result := domain.ExecutionResult{
		SnapshotID:  order.SnapshotID,
		Symbol:      order.Symbol,
		OrderID:     "backtest-" + order.SnapshotID,
		Status:      domain.ExecFilled,
		FilledQty:   order.Qty,
		FilledPrice: order.Entry,
	}

	s.mu.Lock()
	s.fills = append(s.fills, result)
	s.mu.Unlock()

	return result
}

// Fills returns every execution StubSink has recorded so far, in submission
// order.
func (s *StubSink) Fills() []domain.ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExecutionResult, len(s.fills))
	copy(out, s.fills)
	return out
}
