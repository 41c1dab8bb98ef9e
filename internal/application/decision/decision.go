// Package decision fuses the quant, predictor, regime, and position
// signals into one VoteResult: the weighted vote, multi-timeframe
// alignment check, regime/position vetoes, and the adversarial confidence
// audit.
package decision

import (
	"math"
	"strings"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// signalOrder fixes iteration order over the weighted-vote components so
// renormalization is bit-for-bit deterministic regardless of map iteration
// order.
var signalOrder = []string{
	"trend_5m", "trend_15m", "trend_1h",
	"osc_5m", "osc_15m", "osc_1h",
	"prophet", "sentiment",
}

// DefaultWeights sums to 1.0 across signalOrder.
var DefaultWeights = map[string]float64{
	"trend_5m":  0.10,
	"trend_15m": 0.15,
	"trend_1h":  0.20,
	"osc_5m":    0.05,
	"osc_15m":   0.07,
	"osc_1h":    0.08,
	"prophet":   0.15,
	"sentiment": 0.20,
}

const (
	longStrongThreshold = 50.0
	longThreshold       = 30.0
	confidenceFloor     = 30.0
	netflowExtreme      = 1_000_000.0
)

// DecisionCoreAgent fuses upstream signals into a VoteResult.
type DecisionCoreAgent struct {
	Weights map[string]float64
}

// NewDecisionCoreAgent builds an agent with the default signal weights.
func NewDecisionCoreAgent() *DecisionCoreAgent {
	return &DecisionCoreAgent{Weights: DefaultWeights}
}

// Decide fuses quant/predict/regime/position into the final VoteResult.
func (a *DecisionCoreAgent) Decide(
	snap domain.MarketSnapshot,
	quant domain.QuantAnalysis,
	predict domain.PredictResult,
	regime domain.Regime,
	position domain.Position,
) domain.VoteResult {
	sources := a.buildSources(snap, quant, predict)
	weightedScore, details := a.weightedVote(sources)

	aligned, _ := alignment(quant.Trend)

	action, confidence := mapAction(weightedScore, aligned)

	var reasons []string

	proposed := action
	if regime == domain.RegimeChoppy && position.Location == domain.LocationMiddle {
		action = domain.ActionHold
		reasons = append(reasons, "CHOPPY-MIDDLE")
	}
	if proposed == domain.ActionLong && !position.AllowLong {
		action = domain.ActionHold
		reasons = append(reasons, "POSITION-GATE-LONG")
	}
	if proposed == domain.ActionShort && !position.AllowShort {
		action = domain.ActionHold
		reasons = append(reasons, "POSITION-GATE-SHORT")
	}

	if action != domain.ActionHold {
		confidence, reasons = adversarialAudit(action, confidence, snap.Funding.InstitutionalNetflow1h, reasons)
		if confidence < confidenceFloor {
			action = domain.ActionHold
			reasons = append(reasons, "CONFIDENCE-FLOOR")
		}
	}

	reason := "weighted vote"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return domain.VoteResult{
		Action:             action,
		Confidence:         confidence,
		WeightedScore:      weightedScore,
		VoteDetails:        details,
		MultiPeriodAligned: aligned,
		Regime:             regime,
		Position:           position,
		Reason:             reason,
	}
}

// buildSources assembles the raw per-signal scores and presence flags.
// Trend/oscillator components are present whenever their timeframe's view
// resolved (DataSyncAgent fails the whole snapshot otherwise);
// sentiment is absent when the funding/OI fetch degraded for this cycle.
func (a *DecisionCoreAgent) buildSources(snap domain.MarketSnapshot, quant domain.QuantAnalysis, predict domain.PredictResult) map[string]domain.SignalSource {
	_, trend5Present := snap.Views[domain.TF5m]
	_, trend15Present := snap.Views[domain.TF15m]
	_, trend1hPresent := snap.Views[domain.TF1h]

	return map[string]domain.SignalSource{
		"trend_5m":  {Score: quant.Trend[domain.TF5m], Present: trend5Present},
		"trend_15m": {Score: quant.Trend[domain.TF15m], Present: trend15Present},
		"trend_1h":  {Score: quant.Trend[domain.TF1h], Present: trend1hPresent},
		"osc_5m":    {Score: quant.Oscillator[domain.TF5m], Present: trend5Present},
		"osc_15m":   {Score: quant.Oscillator[domain.TF15m], Present: trend15Present},
		"osc_1h":    {Score: quant.Oscillator[domain.TF1h], Present: trend1hPresent},
		"prophet":   {Score: (predict.PUp - 0.5) * 200, Present: true},
		"sentiment": {Score: quant.Sentiment, Present: snap.FundingAvailable},
	}
}

// weightedVote computes weighted_score = sum(w_i * s_i) with missing
// sources zeroed and the remaining weights renormalized to sum to 1.
func (a *DecisionCoreAgent) weightedVote(sources map[string]domain.SignalSource) (float64, map[string]float64) {
	presentWeight := 0.0
	for _, key := range signalOrder {
		if sources[key].Present {
			presentWeight += a.Weights[key]
		}
	}
	if presentWeight == 0 {
		return 0, map[string]float64{}
	}

	details := make(map[string]float64, len(signalOrder))
	score := 0.0
	for _, key := range signalOrder {
		src := sources[key]
		if !src.Present {
			continue
		}
		w := a.Weights[key] / presentWeight
		contribution := w * src.Score
		details[key] = contribution
		score += contribution
	}
	return score, details
}

// alignment reports fully-aligned (all three trend signs equal and
// non-zero) and partially-aligned (1h and 15m agree and are non-zero).
func alignment(trend map[domain.Timeframe]float64) (fully bool, partial bool) {
	s1h := sign(trend[domain.TF1h])
	s15m := sign(trend[domain.TF15m])
	s5m := sign(trend[domain.TF5m])

	fully = s1h == s15m && s15m == s5m && s1h != 0
	partial = !fully && s1h == s15m && s1h != 0
	return fully, partial
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// mapAction applies the score/alignment -> action/confidence table. A
// score beyond the threshold in either direction with full cross-timeframe
// alignment always earns the flat 85 ceiling; a score crossing the
// threshold without full alignment scales linearly with its distance past
// it instead.
func mapAction(score float64, fullyAligned bool) (domain.Action, float64) {
	switch {
	case score > longThreshold && fullyAligned:
		return domain.ActionLong, 85
	case score > longThreshold:
		return domain.ActionLong, linearConfidence(score)
	case score < -longThreshold && fullyAligned:
		return domain.ActionShort, 85
	case score < -longThreshold:
		return domain.ActionShort, linearConfidence(-score)
	default:
		return domain.ActionHold, holdConfidence(math.Abs(score))
	}
}

// linearConfidence maps |score| in (30,50] onto confidence in (60,75],
// clipped to 75 beyond 50 (the 85 ceiling is reserved for full alignment).
func linearConfidence(score float64) float64 {
	c := 60 + (score-longThreshold)/(longStrongThreshold-longThreshold)*15
	return math.Min(math.Max(c, 60), 75)
}

func holdConfidence(absScore float64) float64 {
	return math.Min(absScore/longThreshold*50, 50)
}

// adversarialAudit decays confidence when the proposed direction fights a
// strong institutional flow signal; it never flips the action.
func adversarialAudit(action domain.Action, confidence float64, netflow1h float64, reasons []string) (float64, []string) {
	if action == domain.ActionLong && netflow1h < -netflowExtreme {
		confidence *= 0.5
		reasons = append(reasons, "technical long vs institutional outflow")
	}
	if action == domain.ActionShort && netflow1h > netflowExtreme {
		confidence *= 0.5
		reasons = append(reasons, "technical short vs institutional inflow")
	}
	return confidence, reasons
}
