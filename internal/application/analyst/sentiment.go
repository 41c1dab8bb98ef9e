package analyst

import "github.com/bobdamio/tradeengine/internal/domain"

const (
	fundingExtreme       = 0.0003 // 0.03%
	oiChangeThresholdPct = 10.0
	priceLookback1h      = 24
)

// SentimentSubAgent folds funding rate, institutional netflow and open
// interest change into a single score. Any missing input
// contributes 0 rather than failing the agent.
type SentimentSubAgent struct{}

// Score computes the sentiment contribution for the snapshot.
func (SentimentSubAgent) Score(snap domain.MarketSnapshot) float64 {
	total := 0.0

	total += netflowComponent(snap.Funding.InstitutionalNetflow1h)
	total += fundingComponent(snap.Funding.FundingRate)
	total += openInterestComponent(snap.Funding, priceDirection(snap.Views[domain.TF1h].Stable))

	return clip(total)
}

func netflowComponent(netflow1h float64) float64 {
	switch {
	case netflow1h > 0:
		return 30
	case netflow1h < 0:
		return -30
	default:
		return 0
	}
}

func fundingComponent(rate float64) float64 {
	switch {
	case rate > fundingExtreme:
		return -30
	case rate < -fundingExtreme:
		return 30
	default:
		return 0
	}
}

// openInterestComponent rewards a >10% 24h open-interest change that moves
// in the same direction as price (both indicate conviction, not just churn).
func openInterestComponent(f domain.FundingSnapshot, priceDir int) float64 {
	if f.OpenInterest24hAgo == 0 {
		return 0
	}
	pctChange := (f.OpenInterest - f.OpenInterest24hAgo) / f.OpenInterest24hAgo * 100.0
	if pctChange <= -oiChangeThresholdPct || pctChange >= oiChangeThresholdPct {
		if (pctChange > 0 && priceDir > 0) || (pctChange < 0 && priceDir < 0) {
			return 10
		}
	}
	return 0
}

// priceDirection returns +1/-1/0 comparing the last closed 1h close against
// the close priceLookback1h candles earlier.
func priceDirection(frame domain.IndicatorFrame) int {
	n := frame.Len()
	last := n - 1
	idx := last - priceLookback1h
	if idx < 0 || last < 0 {
		return 0
	}
	cur := frame.Series.Candles[last].Close
	prior := frame.Series.Candles[idx].Close
	switch {
	case cur > prior:
		return 1
	case cur < prior:
		return -1
	default:
		return 0
	}
}
