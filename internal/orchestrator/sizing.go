package orchestrator

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/application/risk"
	"github.com/bobdamio/tradeengine/internal/domain"
)

// Neither QuantAnalystAgent, PredictAgent, nor DecisionCoreAgent prices an
// order: VoteResult carries a direction and a confidence, nothing else.
// buildProposedOrder is where a vote becomes the Entry/StopLoss/TakeProfit/
// Leverage/Qty RiskAuditAgent actually audits. It is deliberately simple and
// ATR-anchored rather than a dedicated sizing sub-agent: stop distance comes
// from the 1h frame's ATR14, leverage scales with vote confidence, and
// quantity is sized off the same MaxTotalRiskPct/MaxPositionPct budgets
// RiskAuditAgent enforces, so a well-formed order rarely needs correcting.
const (
	atrStopMultiplier = 1.5
	riskRewardRatio   = 2.0
	baseLeverage      = 3.0
)

// buildProposedOrder prices vote against the 1h view's latest close/ATR and
// the account's current risk budget. A hold vote yields a zero-sized order
// that the orchestrator never submits to RiskAuditAgent.
func buildProposedOrder(snap domain.MarketSnapshot, vote domain.VoteResult, riskCfg risk.Config, balance float64) domain.ProposedOrder {
	order := domain.ProposedOrder{
		Symbol:     snap.Symbol,
		SnapshotID: snap.SnapshotID,
		Action:     vote.Action,
		Confidence: vote.Confidence,
	}
	if vote.Action == domain.ActionHold {
		return order
	}

	view := snap.Views[domain.TF1h]
	frame := view.Stable
	if frame.Len() == 0 {
		return order
	}
	row := frame.At(frame.Len() - 1)

	entry := row.Close
	if !view.LiveStale && view.Live.Close > 0 {
		entry = view.Live.Close
	}
	if entry <= 0 {
		return order
	}

	atr := row.ATR14
	if atr <= 0 || math.IsNaN(atr) {
		atr = entry * riskCfg.MinSLDistancePct
	}
	stopDist := atr * atrStopMultiplier

	var stopLoss, takeProfit float64
	switch vote.Action {
	case domain.ActionLong:
		stopLoss = entry - stopDist
		takeProfit = entry + stopDist*riskRewardRatio
	case domain.ActionShort:
		stopLoss = entry + stopDist
		takeProfit = entry - stopDist*riskRewardRatio
	}

	leverage := baseLeverage * (vote.Confidence / 100)
	leverage = math.Min(math.Max(leverage, 1), riskCfg.MaxLeverage)

	qty := 0.0
	if stopDist > 0 {
		riskBudget := riskCfg.MaxTotalRiskPct * balance
		qty = riskBudget / stopDist
	}
	if positionCapQty := (riskCfg.MaxPositionPct * balance) / entry; positionCapQty < qty {
		qty = positionCapQty
	}
	qty = math.Max(qty, 0)

	order.Entry = entry
	order.StopLoss = stopLoss
	order.TakeProfit = takeProfit
	order.Leverage = leverage
	order.Qty = qty
	return order
}
