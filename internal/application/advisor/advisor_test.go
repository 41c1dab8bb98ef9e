package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/bobdamio/tradeengine/internal/domain"
)

type stubClient struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (s stubClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func sampleVote() domain.VoteResult {
	return domain.VoteResult{Action: domain.ActionLong, Confidence: 70, WeightedScore: 40, Regime: domain.RegimeTrending}
}

func TestLLMAdvisor_Adjust_ClampsFactorAboveCeiling(t *testing.T) {
	client := stubClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: `{"factor": 3.0, "rationale": "very bullish"}`},
		}},
	}}
	adv := New(client, "gpt-4o-mini", zerolog.Nop())

	adj := adv.Adjust(context.Background(), domain.MarketSnapshot{Symbol: "BTCUSDT"}, domain.QuantAnalysis{}, sampleVote())

	assert.Equal(t, 1.5, adj.Factor)
}

func TestLLMAdvisor_Adjust_ClampsFactorBelowFloor(t *testing.T) {
	client := stubClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: `{"factor": 0.1, "rationale": "too risky"}`},
		}},
	}}
	adv := New(client, "gpt-4o-mini", zerolog.Nop())

	adj := adv.Adjust(context.Background(), domain.MarketSnapshot{Symbol: "BTCUSDT"}, domain.QuantAnalysis{}, sampleVote())

	assert.Equal(t, 0.5, adj.Factor)
}

func TestLLMAdvisor_Adjust_TransportErrorDegradesToIdentity(t *testing.T) {
	client := stubClient{err: errors.New("connection reset")}
	adv := New(client, "gpt-4o-mini", zerolog.Nop())

	adj := adv.Adjust(context.Background(), domain.MarketSnapshot{Symbol: "BTCUSDT"}, domain.QuantAnalysis{}, sampleVote())

	assert.Equal(t, 1.0, adj.Factor)
}

func TestLLMAdvisor_Adjust_UnparseableJSONDegradesToIdentity(t *testing.T) {
	client := stubClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "not json"},
		}},
	}}
	adv := New(client, "gpt-4o-mini", zerolog.Nop())

	adj := adv.Adjust(context.Background(), domain.MarketSnapshot{Symbol: "BTCUSDT"}, domain.QuantAnalysis{}, sampleVote())

	assert.Equal(t, 1.0, adj.Factor)
}

func TestApply_ScalesConfidenceWithoutTouchingAction(t *testing.T) {
	vote := sampleVote()

	scaled := Apply(vote, AdvisorAdjustment{Factor: 0.5})

	assert.Equal(t, domain.ActionLong, scaled.Action)
	assert.Equal(t, 35.0, scaled.Confidence)
}

func TestApply_ClampsConfidenceTo100(t *testing.T) {
	vote := sampleVote()
	vote.Confidence = 90

	scaled := Apply(vote, AdvisorAdjustment{Factor: 1.5})

	assert.Equal(t, 100.0, scaled.Confidence)
}
