package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobdamio/tradeengine/internal/domain"
)

func TestAudit_WrongSidedStopIsCorrected(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 103, // wrong side, but flippable to 97 (3% away, within range)
		Leverage: 2,
		Qty:      5,
	}
	account := Account{Balance: 2000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.True(t, result.Passed)
	assert.Equal(t, 97.0, result.Corrections["stop_loss"])
}

func TestAudit_UncorrectableStopBlocksFatal(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 200, // 100% away, not plausible to flip
		Leverage: 2,
		Qty:      5,
	}
	account := Account{Balance: 1000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonFatalSL, result.BlockedReason)
}

func TestAudit_SLRangeTooTightBlocks(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 99.9, // 0.1%, below the 0.5% floor
		Leverage: 2,
		Qty:      5,
	}
	account := Account{Balance: 1000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonSLRange, result.BlockedReason)
}

func TestAudit_LeverageCapBlocks(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 97,
		Leverage: 25,
		Qty:      1,
	}
	account := Account{Balance: 10000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonLeverage, result.BlockedReason)
}

func TestAudit_MarginInfeasibleBlocks(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 97,
		Leverage: 2,
		Qty:      20, // required_margin = 20*100/2 = 1000 > 0.95*1000
	}
	account := Account{Balance: 1000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonMargin, result.BlockedReason)
}

func TestAudit_PositionConcentrationBlocks(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 97,
		Leverage: 10,
		Qty:      50, // position value 5000 > 30% of 10000
	}
	account := Account{Balance: 10000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonPositionPct, result.BlockedReason)
}

func TestAudit_RiskExposureBlocks(t *testing.T) {
	// Exercised with a widened SL range: under the default ratios
	// (2% total-risk cap vs 30% position cap, 5% max stop distance) a
	// position narrow enough to clear the concentration check can never
	// also breach the risk-exposure check, so this check is only reachable
	// with a wider stop distance than the default cap allows.
	agent := NewRiskAuditAgent()
	agent.Config.MaxSLDistancePct = 0.10

	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 90, // 10% away: clears position concentration, breaches total risk
		Leverage: 2,
		Qty:      25,
	}
	account := Account{Balance: 10000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonRiskExposure, result.BlockedReason)
}

func TestAudit_DrawdownGateBlocks(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 97,
		Leverage: 2,
		Qty:      1,
	}
	account := Account{Balance: 10000, DrawdownPct: 0.12}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonDrawdown, result.BlockedReason)
}

func TestAudit_ConsecutiveLossCooldownBlocks(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 97,
		Leverage: 2,
		Qty:      1,
	}
	account := Account{Balance: 10000, ConsecutiveLosses: 7}

	result := agent.Audit(order, domain.Position{}, account)

	assert.False(t, result.Passed)
	assert.Equal(t, ReasonCooldown, result.BlockedReason)
}

func TestAudit_HealthyOrderPassesClean(t *testing.T) {
	agent := NewRiskAuditAgent()
	order := domain.ProposedOrder{
		Action:   domain.ActionLong,
		Entry:    100,
		StopLoss: 98,
		Leverage: 2,
		Qty:      1,
	}
	account := Account{Balance: 10000}

	result := agent.Audit(order, domain.Position{}, account)

	assert.True(t, result.Passed)
	assert.Equal(t, domain.RiskSafe, result.RiskLevel)
	assert.Empty(t, result.BlockedReason)
}
