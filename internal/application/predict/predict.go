// Package predict wraps an external probability-of-up model behind a
// circuit breaker, falling back to a deterministic rule-based estimate when
// the model is unavailable or tripped.
package predict

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// Predictor is the injected model client. Implementations call out to
// whatever scoring service backs the live model; PredictAgent never talks
// to it directly except through the breaker.
type Predictor interface {
	Predict(ctx context.Context, fs domain.FeatureSnapshot) (pUp float64, err error)
}

// PredictAgent produces a PredictResult for a feature snapshot, preferring
// the injected Predictor and degrading to a rule-based sigmoid when the
// breaker is open or the call errors.
type PredictAgent struct {
	Model   Predictor
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewPredictAgent wires a breaker around model with the same trip policy
// the rest of the pipeline uses for external calls: 3 consecutive failures,
// or a >5% failure rate once at least 20 requests have been observed.
func NewPredictAgent(model Predictor, log zerolog.Logger) *PredictAgent {
	settings := gobreaker.Settings{
		Name:     "predict-agent",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return &PredictAgent{
		Model:   model,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log.With().Str("component", "PredictAgent").Logger(),
	}
}

// Predict returns the model's estimate when available, otherwise the
// rule-based fallback `p_up = sigmoid(0.02*compositeQuantScore)` with
// confidence capped at 50. It never returns an error: a
// failing model degrades the confidence and source field, it does not fail
// the pipeline stage.
func (a *PredictAgent) Predict(ctx context.Context, fs domain.FeatureSnapshot, compositeQuantScore float64) domain.PredictResult {
	if a.Model != nil {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			return a.Model.Predict(ctx, fs)
		})
		if err == nil {
			pUp := result.(float64)
			return domain.PredictResult{
				PUp:        pUp,
				Label:      labelFromPUp(pUp),
				Confidence: math.Abs(pUp-0.5) * 200,
				Source:     "model",
			}
		}
		a.log.Warn().Err(err).Str("symbol", fs.Symbol).Msg("predictor unavailable, using rule fallback")
	}

	pUp := sigmoid(0.02 * compositeQuantScore)
	confidence := math.Min(math.Abs(pUp-0.5)*200, 50)
	return domain.PredictResult{
		PUp:        pUp,
		Label:      labelFromPUp(pUp),
		Confidence: confidence,
		Source:     "rule-fallback",
	}
}

func labelFromPUp(pUp float64) string {
	switch {
	case pUp >= 0.6:
		return "bullish"
	case pUp <= 0.4:
		return "bearish"
	default:
		return "neutral"
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
