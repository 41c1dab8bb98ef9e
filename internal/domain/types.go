// Package domain holds the data model shared by every stage of the decision
// pipeline: candles, indicator frames, feature snapshots, the cross-timeframe
// MarketSnapshot, and the per-cycle analysis/decision/audit records. Types
// here are plain structs, not interfaces — the pipeline stages (internal/application/*)
// are the behavior, these are the immutable data they pass between them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Timeframe is one of the three synchronized candle buckets the pipeline
// operates on.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
)

// Candle is a single timeframe-bucketed OHLCV record.
type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Valid reports whether the candle satisfies its own invariants:
// low <= open,close <= high; volume >= 0; close_time > open_time.
func (c Candle) Valid() bool {
	if c.Volume < 0 {
		return false
	}
	if !c.CloseTime.After(c.OpenTime) {
		return false
	}
	if c.Low > c.Open || c.Open > c.High {
		return false
	}
	if c.Low > c.Close || c.Close > c.High {
		return false
	}
	return true
}

// Series is an ordered, finite sequence of candles at a single timeframe.
// Index 0 is oldest. WarmupRows marks how many leading rows are
// indicator-unstable and must be excluded from decisions (spec: 105).
type Series struct {
	TF         Timeframe
	Candles    []Candle
	WarmupRows int
}

const (
	// MinSeriesLength is the minimum candle count required for indicator stability.
	MinSeriesLength = 200
	// WarmupRows is the number of leading rows excluded from decisions.
	WarmupRows = 105
)

func (s Series) Len() int { return len(s.Candles) }

// Last returns the most recent candle. Panics on an empty series — callers
// must validate length first via KlineValidator/IndicatorProcessor.
func (s Series) Last() Candle { return s.Candles[len(s.Candles)-1] }

// IndicatorFrame is a Series extended with the full indicator set. Rows
// align 1:1 with the underlying series; the first WarmupRows entries of
// every indicator slice are NaN.
type IndicatorFrame struct {
	Series Series

	SMA20, SMA50     []float64
	EMA12, EMA26     []float64
	EMA20, EMA50     []float64
	MACD, MACDSignal []float64
	MACDHist         []float64
	RSI14            []float64
	ATR14            []float64
	BollMid          []float64
	BollUpper        []float64
	BollLower        []float64
	OBV              []float64
	VolumeRatio      []float64
	VWAP             []float64
	ADX14            []float64

	// Version is the indicator-schema version embedded in persisted frames;
	// bumped whenever the formula set changes so cached frames from an
	// older version are never reused.
	Version int
}

// CurrentFrameVersion is incremented whenever the indicator formula set changes.
const CurrentFrameVersion = 1

func (f IndicatorFrame) Len() int { return f.Series.Len() }

// Row returns a single-index snapshot of every indicator, for convenience
// when consumers need "the latest closed values" rather than full slices.
type Row struct {
	Close                    float64
	SMA20, SMA50             float64
	EMA12, EMA26             float64
	EMA20, EMA50             float64
	MACD, MACDSignal, MACDHist float64
	RSI14                    float64
	ATR14                    float64
	BollMid, BollUpper, BollLower float64
	OBV                      float64
	VolumeRatio              float64
	VWAP                     float64
	ADX14                    float64
}

// At returns the indicator row at index i. Callers must not call this for
// i < f.Series.WarmupRows (those rows are NaN by construction).
func (f IndicatorFrame) At(i int) Row {
	return Row{
		Close:       f.Series.Candles[i].Close,
		SMA20:       f.SMA20[i],
		SMA50:       f.SMA50[i],
		EMA12:       f.EMA12[i],
		EMA26:       f.EMA26[i],
		EMA20:       f.EMA20[i],
		EMA50:       f.EMA50[i],
		MACD:        f.MACD[i],
		MACDSignal:  f.MACDSignal[i],
		MACDHist:    f.MACDHist[i],
		RSI14:       f.RSI14[i],
		ATR14:       f.ATR14[i],
		BollMid:     f.BollMid[i],
		BollUpper:   f.BollUpper[i],
		BollLower:   f.BollLower[i],
		OBV:         f.OBV[i],
		VolumeRatio: f.VolumeRatio[i],
		VWAP:        f.VWAP[i],
		ADX14:       f.ADX14[i],
	}
}

// FeatureSnapshot is the one-row summary extracted from an IndicatorFrame,
// consumed by the predictor.
type FeatureSnapshot struct {
	Symbol    string
	Timestamp time.Time

	PriceChange1  float64
	PriceChange3  float64
	PriceChange5  float64
	PriceChange10 float64
	PriceChange20 float64

	EMACrossUp   bool
	EMACrossDown bool
	MACDCrossUp  bool
	MACDCrossDown bool

	RSIBucket string // "oversold", "neutral", "overbought"

	ATROverPrice float64

	VolumeRatioZ float64

	DistToRecentHigh float64
	DistToRecentLow  float64
}

// FundingSnapshot bundles the auxiliary market metrics fetched alongside klines.
type FundingSnapshot struct {
	FundingRate           float64
	OpenInterest          float64
	OpenInterest24hAgo    float64
	InstitutionalNetflow1h float64
}

// TimeframeView is the per-timeframe split the pipeline requires: the immutable
// stable_view (all closed candles) and the single still-forming live_view.
type TimeframeView struct {
	Stable IndicatorFrame
	Live   Candle
	// LiveStale is set when the live candle could not be fetched or its
	// open_time is more than two timeframe periods old; a live candle
	// between one and two periods old is not flagged.
	LiveStale bool
}

// MarketSnapshot is the pipeline's atomic, immutable unit of work for one
// symbol at one point in time.
type MarketSnapshot struct {
	SnapshotID string
	Symbol     string
	Timestamp  time.Time

	Views map[Timeframe]TimeframeView

	Funding          FundingSnapshot
	FundingAvailable bool

	AlignmentOK bool
	Warnings    []string
}

// NewSnapshotID mints a fresh, stable snapshot identifier.
func NewSnapshotID() string {
	return uuid.NewString()
}

// Regime is the coarse market label used to gate direction.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeChoppy   Regime = "choppy"
	RegimeVolatile Regime = "volatile"
	RegimeUnknown  Regime = "unknown"
)

// PositionLocation buckets where price sits in its recent range.
type PositionLocation string

const (
	LocationBottom PositionLocation = "bottom"
	LocationMiddle PositionLocation = "middle"
	LocationTop    PositionLocation = "top"
)

// Position is PositionAnalyzer's output.
type Position struct {
	Percentile float64
	Location   PositionLocation
	AllowLong  bool
	AllowShort bool
}

// SignalSource labels a per-timeframe/per-signal score, used by
// DecisionCoreAgent for weight renormalization.
type SignalSource struct {
	Score   float64
	Present bool
}

// SubAgentResult is the per-timeframe output of TrendSubAgent/OscillatorSubAgent.
type SubAgentResult struct {
	TF    Timeframe
	Score float64 // [-100, 100]
}

// QuantAnalysis composes trend/oscillator/sentiment into one record.
type QuantAnalysis struct {
	Trend      map[Timeframe]float64
	Oscillator map[Timeframe]float64
	Sentiment  float64
	Composite  float64
	Label      string // "buy", "sell", "neutral"
	Rationale  []string
}

// PredictResult is PredictAgent's output.
type PredictResult struct {
	PUp        float64
	Label      string // "bullish", "bearish", "neutral"
	Confidence float64
	Source     string // "model", "rule-fallback"
}

// Action is a VoteResult's discrete trading decision.
type Action string

const (
	ActionLong Action = "long"
	ActionShort Action = "short"
	ActionHold Action = "hold"
)

// VoteResult is DecisionCoreAgent's output.
type VoteResult struct {
	Action              Action
	Confidence          float64
	WeightedScore       float64
	VoteDetails         map[string]float64
	MultiPeriodAligned  bool
	Regime              Regime
	Position            Position
	Reason              string
}

// RiskLevel is the severity RiskAuditAgent attaches to a decision.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
	RiskFatal   RiskLevel = "fatal"
)

// RiskCheckResult is RiskAuditAgent's output.
type RiskCheckResult struct {
	Passed        bool
	RiskLevel     RiskLevel
	BlockedReason string
	Corrections   map[string]float64
	Warnings      []string
}

// ProposedOrder is what the orchestrator builds from a DecisionCoreAgent
// vote and hands to RiskAuditAgent before dispatch.
type ProposedOrder struct {
	Symbol     string
	SnapshotID string
	Action     Action
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Leverage   float64
	Qty        float64
	Confidence float64
}

// ExecutionStatus is the terminal state OrderSink reports for a dispatched order.
type ExecutionStatus string

const (
	ExecFilled  ExecutionStatus = "filled"
	ExecRejected ExecutionStatus = "rejected"
	ExecUnknown ExecutionStatus = "unknown"
)

// ExecutionResult is OrderSink's response to a submitted ProposedOrder,
// persisted keyed by (SnapshotID, Symbol) for idempotent retries.
type ExecutionResult struct {
	SnapshotID   string
	Symbol       string
	OrderID      string
	Status       ExecutionStatus
	FilledQty    float64
	FilledPrice  float64
	Err          error
}
