package analyst

import (
	"fmt"

	"github.com/bobdamio/tradeengine/internal/domain"
)

const (
	labelBuyThreshold  = 30.0
	labelSellThreshold = -30.0
)

// QuantAnalystAgent composes TrendSubAgent, OscillatorSubAgent, and
// SentimentSubAgent into one QuantAnalysis record.
type QuantAnalystAgent struct {
	Trend      TrendSubAgent
	Oscillator OscillatorSubAgent
	Sentiment  SentimentSubAgent
}

// Analyze runs all three sub-agents and folds them into the composite score
// composite = 0.4*avg(trend) + 0.3*avg(oscillator) + 0.3*sentiment.
func (a QuantAnalystAgent) Analyze(snap domain.MarketSnapshot) domain.QuantAnalysis {
	trend := a.Trend.Score(snap)
	osc := a.Oscillator.Score(snap)
	sentiment := a.Sentiment.Score(snap)

	composite := clip(0.4*average(trend) + 0.3*average(osc) + 0.3*sentiment)

	label := "neutral"
	switch {
	case composite >= labelBuyThreshold:
		label = "buy"
	case composite <= labelSellThreshold:
		label = "sell"
	}

	return domain.QuantAnalysis{
		Trend:      trend,
		Oscillator: osc,
		Sentiment:  sentiment,
		Composite:  composite,
		Label:      label,
		Rationale:  rationale(trend, osc, sentiment, composite),
	}
}

func average(perTF map[domain.Timeframe]float64) float64 {
	if len(perTF) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range perTF {
		sum += v
	}
	return sum / float64(len(perTF))
}

func rationale(trend, osc map[domain.Timeframe]float64, sentiment, composite float64) []string {
	return []string{
		fmt.Sprintf("trend(5m=%.1f,15m=%.1f,1h=%.1f)", trend[domain.TF5m], trend[domain.TF15m], trend[domain.TF1h]),
		fmt.Sprintf("oscillator(5m=%.1f,15m=%.1f,1h=%.1f)", osc[domain.TF5m], osc[domain.TF15m], osc[domain.TF1h]),
		fmt.Sprintf("sentiment=%.1f composite=%.1f", sentiment, composite),
	}
}
