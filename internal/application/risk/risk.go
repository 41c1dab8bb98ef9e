// Package risk implements the final, non-bypassable veto over a proposed
// order: eight ordered checks, each able to rewrite the order (stop-loss
// direction) or block it outright.
package risk

import (
	"math"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// Block reason codes, returned verbatim in RiskCheckResult.BlockedReason.
const (
	ReasonFatalSL      = "FATAL_SL"
	ReasonSLRange      = "SL_RANGE"
	ReasonLeverage     = "LEVERAGE"
	ReasonMargin       = "MARGIN"
	ReasonPositionPct  = "POSITION_PCT"
	ReasonRiskExposure = "RISK_EXPOSURE"
	ReasonDrawdown     = "DRAWDOWN"
	ReasonCooldown     = "COOLDOWN"
)

// Config bounds the risk checks; all percentages are fractions (0.10 = 10%).
type Config struct {
	MaxLeverage            float64
	MinSLDistancePct       float64
	MaxSLDistancePct       float64
	MaxCorrectableSLPct    float64
	MaxMarginUtilization   float64
	MaxPositionPct         float64
	MaxTotalRiskPct        float64
	StopTradingDrawdownPct float64
	MaxConsecutiveLosses   int
}

// DefaultConfig returns the pipeline's default risk thresholds.
func DefaultConfig() Config {
	return Config{
		MaxLeverage:            10,
		MinSLDistancePct:       0.005,
		MaxSLDistancePct:       0.05,
		MaxCorrectableSLPct:    0.20,
		MaxMarginUtilization:   0.95,
		MaxPositionPct:         0.30,
		MaxTotalRiskPct:        0.02,
		StopTradingDrawdownPct: 0.10,
		MaxConsecutiveLosses:   5,
	}
}

// Account is the account state the risk gates consult. DrawdownPct and
// ConsecutiveLosses are populated from the reconciler's RiskGateSnapshot.
type Account struct {
	Balance           float64
	DrawdownPct       float64
	ConsecutiveLosses int
}

// RiskAuditAgent runs the ordered check chain.
type RiskAuditAgent struct {
	Config Config
}

// NewRiskAuditAgent builds an agent with the default risk thresholds.
func NewRiskAuditAgent() *RiskAuditAgent {
	return &RiskAuditAgent{Config: DefaultConfig()}
}

// Audit runs checks 1-8 in order against order, short-circuiting on the
// first block. Corrections made by check 1 are applied to a local copy of
// order before later checks evaluate it.
func (a *RiskAuditAgent) Audit(order domain.ProposedOrder, position domain.Position, account Account) domain.RiskCheckResult {
	result := domain.RiskCheckResult{
		Passed:      true,
		RiskLevel:   domain.RiskSafe,
		Corrections: map[string]float64{},
	}

	working := order

	if blocked := a.checkStopLossDirection(&working, &result); blocked {
		return a.block(result, ReasonFatalSL)
	}

	if !a.withinRange(stopDistance(working), a.Config.MinSLDistancePct, a.Config.MaxSLDistancePct) {
		return a.block(result, ReasonSLRange)
	}

	if working.Leverage > a.Config.MaxLeverage {
		return a.block(result, ReasonLeverage)
	}

	requiredMargin := working.Qty * working.Entry / working.Leverage
	marginCap := a.Config.MaxMarginUtilization * account.Balance
	if requiredMargin > marginCap {
		return a.block(result, ReasonMargin)
	}
	if requiredMargin > 0.8*marginCap {
		result.Warnings = append(result.Warnings, "margin utilization near limit")
		result.RiskLevel = maxSeverity(result.RiskLevel, domain.RiskWarning)
	}

	positionValue := working.Qty * working.Entry
	positionCap := a.Config.MaxPositionPct * account.Balance
	if positionValue > positionCap {
		return a.block(result, ReasonPositionPct)
	}
	if positionValue > 0.8*positionCap {
		result.Warnings = append(result.Warnings, "position concentration near limit")
		result.RiskLevel = maxSeverity(result.RiskLevel, domain.RiskWarning)
	}

	totalRisk := math.Abs(working.Entry-working.StopLoss) * working.Qty
	riskCap := a.Config.MaxTotalRiskPct * account.Balance
	if totalRisk > riskCap {
		return a.block(result, ReasonRiskExposure)
	}

	if account.DrawdownPct >= a.Config.StopTradingDrawdownPct {
		return a.block(result, ReasonDrawdown)
	}

	if account.ConsecutiveLosses >= a.Config.MaxConsecutiveLosses {
		return a.block(result, ReasonCooldown)
	}

	return result
}

// checkStopLossDirection enforces long: stop < entry, short: stop > entry,
// flipping the stop symmetrically around entry when the distance is
// plausible. Returns true when the order cannot be made safe.
func (a *RiskAuditAgent) checkStopLossDirection(order *domain.ProposedOrder, result *domain.RiskCheckResult) bool {
	wrongSide := false
	switch order.Action {
	case domain.ActionLong:
		wrongSide = order.StopLoss <= 0 || order.StopLoss >= order.Entry
	case domain.ActionShort:
		wrongSide = order.StopLoss <= order.Entry
	}
	if !wrongSide {
		return false
	}

	if order.StopLoss <= 0 || order.Entry <= 0 {
		return true
	}

	dist := stopDistance(*order)
	if dist > a.Config.MaxCorrectableSLPct {
		return true
	}

	flipped := order.Entry - (order.StopLoss - order.Entry)
	order.StopLoss = flipped
	result.Corrections["stop_loss"] = flipped
	result.RiskLevel = maxSeverity(result.RiskLevel, domain.RiskWarning)
	return false
}

func stopDistance(order domain.ProposedOrder) float64 {
	if order.Entry == 0 {
		return math.Inf(1)
	}
	return math.Abs(order.Entry-order.StopLoss) / order.Entry
}

func (a *RiskAuditAgent) withinRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func (a *RiskAuditAgent) block(result domain.RiskCheckResult, reason string) domain.RiskCheckResult {
	result.Passed = false
	result.BlockedReason = reason
	result.RiskLevel = domain.RiskFatal
	return result
}

func maxSeverity(a, b domain.RiskLevel) domain.RiskLevel {
	rank := map[domain.RiskLevel]int{
		domain.RiskSafe:    0,
		domain.RiskWarning: 1,
		domain.RiskDanger:  2,
		domain.RiskFatal:   3,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
