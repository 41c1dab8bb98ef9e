// Package advisor implements the optional LLM confidence advisor. It sits
// between DecisionCoreAgent and RiskAuditAgent and is structurally barred
// from touching anything but confidence: its return type carries a bounded
// scale factor and a rationale string, never a VoteResult, so it can never
// flip an action or bypass a risk veto.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/bobdamio/tradeengine/internal/domain"
)

const (
	minFactor = 0.5
	maxFactor = 1.5
)

// AdvisorAdjustment is the only channel the advisor has into the pipeline:
// a bounded multiplicative scale on VoteResult.Confidence.
type AdvisorAdjustment struct {
	Factor    float64
	Rationale string
}

// Client is the subset of the OpenAI chat-completions API the advisor needs,
// satisfied by *openai.Client.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMAdvisor wraps a chat-completion client behind the confidence-only
// contract. It is only consulted when Config.LLMEnabled is true.
type LLMAdvisor struct {
	client Client
	model  string
	log    zerolog.Logger
}

// New builds an LLMAdvisor. model is the chat-completion model name (e.g.
// openai.GPT4oMini); pass an *openai.Client built from the configured API key.
func New(client Client, model string, log zerolog.Logger) *LLMAdvisor {
	return &LLMAdvisor{
		client: client,
		model:  model,
		log:    log.With().Str("component", "LLMAdvisor").Logger(),
	}
}

type rawAdjustment struct {
	Factor    float64 `json:"factor"`
	Rationale string  `json:"rationale"`
}

// Adjust asks the model to critique a VoteResult and returns a bounded scale
// factor. On any transport, parse, or out-of-range failure it degrades to the
// identity adjustment (Factor: 1.0) rather than blocking the pipeline.
func (a *LLMAdvisor) Adjust(ctx context.Context, snap domain.MarketSnapshot, quant domain.QuantAnalysis, vote domain.VoteResult) AdvisorAdjustment {
	identity := AdvisorAdjustment{Factor: 1.0, Rationale: "advisor unavailable"}

	prompt := fmt.Sprintf(
		"Symbol %s proposes %s at confidence %.1f (weighted_score=%.2f, composite_quant=%.2f, regime=%s). "+
			"Reply with strict JSON {\"factor\": <0.5-1.5>, \"rationale\": \"<one sentence>\"} scaling confidence only.",
		snap.Symbol, vote.Action, vote.Confidence, vote.WeightedScore, quant.Composite, vote.Regime,
	)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a risk-averse trading confidence critic. You never choose a direction, only scale confidence."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("advisor call failed, using identity adjustment")
		return identity
	}
	if len(resp.Choices) == 0 {
		a.log.Warn().Str("symbol", snap.Symbol).Msg("advisor returned no choices, using identity adjustment")
		return identity
	}

	var raw rawAdjustment
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		a.log.Warn().Err(err).Str("symbol", snap.Symbol).Msg("advisor returned unparseable JSON, using identity adjustment")
		return identity
	}

	factor := math.Min(math.Max(raw.Factor, minFactor), maxFactor)
	return AdvisorAdjustment{Factor: factor, Rationale: raw.Rationale}
}

// Apply scales confidence by adj.Factor without touching action, leaving
// RiskAuditAgent as the only veto downstream.
func Apply(vote domain.VoteResult, adj AdvisorAdjustment) domain.VoteResult {
	vote.Confidence = math.Min(math.Max(vote.Confidence*adj.Factor, 0), 100)
	return vote
}
