// Package orchestrator drives one cycle per symbol through every pipeline
// stage — sync, analysis, feature extraction, prediction, regime/position,
// decision, advisor, risk audit, and order submission — persisting each
// stage's artifact and republishing risk-gate state through the reconciler.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bobdamio/tradeengine/internal/apperr"
	"github.com/bobdamio/tradeengine/internal/application/advisor"
	"github.com/bobdamio/tradeengine/internal/application/analyst"
	"github.com/bobdamio/tradeengine/internal/application/reconciler"
	"github.com/bobdamio/tradeengine/internal/application/risk"
	"github.com/bobdamio/tradeengine/internal/domain"
	"github.com/bobdamio/tradeengine/internal/domain/indicator"
	"github.com/bobdamio/tradeengine/internal/domain/position"
	"github.com/bobdamio/tradeengine/internal/domain/regime"
	"github.com/bobdamio/tradeengine/internal/infrastructure/cache"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence"
	httpapi "github.com/bobdamio/tradeengine/internal/interfaces/http"
)

// DataSyncer is the boundary satisfied by sync.DataSyncAgent; named here so
// the orchestrator depends on the method it calls rather than the whole
// concrete agent.
type DataSyncer interface {
	Sync(ctx context.Context, symbol string) (domain.MarketSnapshot, error)
}

// Predictor is the boundary satisfied by predict.PredictAgent.
type Predictor interface {
	Predict(ctx context.Context, fs domain.FeatureSnapshot, compositeQuantScore float64) domain.PredictResult
}

// Decider is the boundary satisfied by decision.DecisionCoreAgent.
type Decider interface {
	Decide(snap domain.MarketSnapshot, quant domain.QuantAnalysis, pred domain.PredictResult, rgm domain.Regime, pos domain.Position) domain.VoteResult
}

// Advisor is the boundary satisfied by advisor.LLMAdvisor.
type Advisor interface {
	Adjust(ctx context.Context, snap domain.MarketSnapshot, quant domain.QuantAnalysis, vote domain.VoteResult) advisor.AdvisorAdjustment
}

// RiskAuditor is the boundary satisfied by risk.RiskAuditAgent.
type RiskAuditor interface {
	Audit(order domain.ProposedOrder, pos domain.Position, account risk.Account) domain.RiskCheckResult
}

// OrderSink is the boundary satisfied by exchange.Client.Submit.
type OrderSink interface {
	Submit(ctx context.Context, order domain.ProposedOrder) domain.ExecutionResult
}

// maxExecRetries bounds how many times submitWithRetry will call the
// OrderSink for a single order before giving up and blocking the symbol.
const maxExecRetries = 3

// execBackoffBase is the first retry's backoff; it doubles each attempt and
// gets up to 50% jitter added. The exchange client itself has no such
// back-off: an HTTP 429 is returned as an ordinary request error.
const execBackoffBase = 200 * time.Millisecond

// Config bounds one Orchestrator's run.
type Config struct {
	Symbols       []string
	CycleInterval time.Duration
	MaxConcurrent int
	Risk          risk.Config
}

// Orchestrator wires every pipeline stage together and drives one cycle per
// symbol on CycleInterval.
type Orchestrator struct {
	cfg Config

	sync     DataSyncer
	quant    analyst.QuantAnalystAgent
	predict  Predictor
	decide   Decider
	advise   Advisor // nil when the advisor is disabled
	audit    RiskAuditor
	sink     OrderSink
	reconcil *reconciler.Reconciler

	repo      *persistence.Repository
	positions *cache.PositionCache
	balances  *cache.BalanceCache
	metrics   *httpapi.MetricsRegistry

	blockedMu      sync.Mutex
	blockedSymbols map[string]bool

	log zerolog.Logger
}

// New builds an Orchestrator. advise may be nil; a nil advisor is a no-op
// identity adjustment.
func New(
	cfg Config,
	syncer DataSyncer,
	quant analyst.QuantAnalystAgent,
	predictor Predictor,
	decider Decider,
	adv Advisor,
	auditor RiskAuditor,
	sink OrderSink,
	recon *reconciler.Reconciler,
	repo *persistence.Repository,
	positions *cache.PositionCache,
	balances *cache.BalanceCache,
	metrics *httpapi.MetricsRegistry,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:            cfg,
		sync:           syncer,
		quant:          quant,
		predict:        predictor,
		decide:         decider,
		advise:         adv,
		audit:          auditor,
		sink:           sink,
		reconcil:       recon,
		repo:           repo,
		positions:      positions,
		balances:       balances,
		metrics:        metrics,
		blockedSymbols: make(map[string]bool),
		log:            log.With().Str("component", "Orchestrator").Logger(),
	}
}

// Run starts one ticking goroutine per symbol and blocks until ctx is
// cancelled; a symbol's goroutine never returns an error, since runCycle
// records failures instead of returning them. Each
// symbol's goroutine runs its cycles strictly one after another — cycle
// n+1 only starts once cycle n's OrderSink submission (or veto) has been
// persisted and reconciled — so cycle ordering per symbol needs no separate
// lock or generation counter, only the fan-out across symbols is bounded.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxConcurrent > 0 {
		g.SetLimit(o.cfg.MaxConcurrent)
	}

	// Reconciler.Run loops until its event channel is closed, which this
	// orchestrator never does — it is meant to outlive any single Run call,
	// so it is started detached rather than folded into the errgroup (that
	// would make g.Wait block on it forever once ctx is cancelled).
	go o.reconcil.Run()

	for _, symbol := range o.cfg.Symbols {
		symbol := symbol
		g.Go(func() error {
			return o.runSymbolLoop(gctx, symbol)
		})
	}

	return g.Wait()
}

func (o *Orchestrator) runSymbolLoop(ctx context.Context, symbol string) error {
	ticker := time.NewTicker(o.cfg.CycleInterval)
	defer ticker.Stop()

	o.runCycle(ctx, symbol)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.runCycle(ctx, symbol)
		}
	}
}

// RunOnce drives a single cycle for symbol synchronously, returning once
// every stage has run (or the cycle degraded short). The backtest command
// uses this directly instead of Run's ticking loop, advancing its replay
// source's cursor between calls.
func (o *Orchestrator) RunOnce(ctx context.Context, symbol string) {
	o.runCycle(ctx, symbol)
}

// runCycle runs every stage for one symbol's cycle. Any failure (a Sync
// error of whatever kind, a failed alignment check, a too-short frame)
// stops the cycle short of submission and is recorded and logged, not
// propagated — the next tick retries.
func (o *Orchestrator) runCycle(ctx context.Context, symbol string) {
	o.metrics.ActiveCycles.Inc()
	defer o.metrics.ActiveCycles.Dec()

	timer := o.metrics.StartStage("sync", symbol)
	snap, err := o.sync.Sync(ctx, symbol)
	if err != nil {
		timer.Stop("error")
		o.recordStageErr("sync", err)
		return
	}
	timer.Stop("ok")

	if err := o.repo.Snapshots.Insert(ctx, snap); err != nil {
		o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist snapshot")
	}

	if !snap.AlignmentOK {
		o.log.Warn().Str("symbol", symbol).Strs("warnings", snap.Warnings).Msg("cycle degraded: timeframe alignment failed, holding")
		return
	}

	timer = o.metrics.StartStage("analysis", symbol)
	quant := o.quant.Analyze(snap)
	timer.Stop("ok")
	if err := o.repo.Quant.Insert(ctx, snap.SnapshotID, symbol, quant); err != nil {
		o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist quant analysis")
	}

	frame5m := snap.Views[domain.TF5m].Stable
	frame1h := snap.Views[domain.TF1h].Stable
	if frame5m.Len() == 0 || frame1h.Len() == 0 {
		o.recordStageErr("analysis", apperr.New(apperr.KindInsufficient, "Orchestrator", symbol, nil))
		return
	}

	features := indicator.ExtractFeatures(symbol, frame5m)

	timer = o.metrics.StartStage("predict", symbol)
	predResult := o.predict.Predict(ctx, features, quant.Composite)
	timer.Stop("ok")

	pos := position.Analyze(frame1h)
	if cached, found, cacheErr := o.positions.Get(ctx, symbol); cacheErr == nil && found {
		pos = cached
	}
	if err := o.positions.Set(ctx, symbol, pos); err != nil {
		o.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to refresh position cache")
	}
	rgm := regime.Detect(frame1h)

	timer = o.metrics.StartStage("decision", symbol)
	vote := o.decide.Decide(snap, quant, predResult, rgm, pos)
	timer.Stop("ok")

	if o.advise != nil {
		adj := o.advise.Adjust(ctx, snap, quant, vote)
		vote = advisor.Apply(vote, adj)
	}

	o.metrics.RecordDecision(symbol, string(vote.Action))
	if err := o.repo.Decisions.Insert(ctx, snap.SnapshotID, symbol, vote); err != nil {
		o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist decision")
	}

	if vote.Action == domain.ActionHold {
		return
	}

	if o.isBlocked(symbol) {
		o.metrics.RecordRiskBlock(symbol, "EXEC_UNRECONCILED")
		o.log.Warn().Str("symbol", symbol).Msg("skipping submission: symbol blocked pending reconciliation")
		return
	}

	balance := o.currentBalance(ctx)
	order := buildProposedOrder(snap, vote, o.cfg.Risk, balance.Equity)
	gateSnapshot := o.reconcil.Snapshot()
	o.metrics.SetDrawdown(symbol, gateSnapshot.DrawdownPct)

	timer = o.metrics.StartStage("risk", symbol)
	auditResult := o.audit.Audit(order, pos, risk.Account{
		Balance:           balance.Equity,
		DrawdownPct:       gateSnapshot.DrawdownPct,
		ConsecutiveLosses: gateSnapshot.ConsecutiveLosses,
	})
	timer.Stop("ok")
	if err := o.repo.RiskAudit.Insert(ctx, snap.SnapshotID, symbol, auditResult); err != nil {
		o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist risk audit")
	}

	if !auditResult.Passed {
		o.metrics.RecordRiskBlock(symbol, auditResult.BlockedReason)
		o.log.Info().Str("symbol", symbol).Str("reason", auditResult.BlockedReason).Msg("order blocked by risk audit")
		return
	}
	if sl, ok := auditResult.Corrections["stop_loss"]; ok {
		order.StopLoss = sl
	}

	timer = o.metrics.StartStage("exec", symbol)
	execResult := o.submitWithRetry(ctx, order)
	timer.Stop(execResultLabel(execResult))
	o.metrics.RecordExecResult(symbol, string(execResult.Status))
	if err := o.repo.Execution.Insert(ctx, execResult); err != nil {
		o.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist execution result")
	}

	o.publishOutcome(symbol, snap.SnapshotID, order, execResult, balance)
}

// submitWithRetry calls the OrderSink up to maxExecRetries times, retrying
// only when the result is ExecUnknown (the exchange response was
// ambiguous, not a clean reject). Retries back off exponentially from
// execBackoffBase with up to 50% jitter. If the final attempt is still
// ExecUnknown, the symbol is blocked from further submissions: resubmitting
// an order whose true fate is unknown risks a double fill.
func (o *Orchestrator) submitWithRetry(ctx context.Context, order domain.ProposedOrder) domain.ExecutionResult {
	var result domain.ExecutionResult
	for attempt := 0; attempt < maxExecRetries; attempt++ {
		result = o.sink.Submit(ctx, order)
		if result.Status != domain.ExecUnknown {
			return result
		}
		if attempt == maxExecRetries-1 {
			break
		}
		backoff := execBackoffBase * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
		select {
		case <-ctx.Done():
			return result
		case <-time.After(backoff + jitter):
		}
	}

	o.blockSymbol(order.Symbol)
	return result
}

// blockSymbol marks symbol as unknown-exposure, skipping submission on
// every future cycle until ReconcileSymbol clears it.
func (o *Orchestrator) blockSymbol(symbol string) {
	o.blockedMu.Lock()
	o.blockedSymbols[symbol] = true
	o.blockedMu.Unlock()
	o.recordStageErr("exec", apperr.New(apperr.KindExec, "Orchestrator", symbol, nil))
	o.log.Error().Str("symbol", symbol).
		Msg("execution result still unknown after retries, blocking further trades on this symbol until reconciliation")
}

func (o *Orchestrator) isBlocked(symbol string) bool {
	o.blockedMu.Lock()
	defer o.blockedMu.Unlock()
	return o.blockedSymbols[symbol]
}

// ReconcileSymbol clears symbol's unknown-exposure block. Nothing in this
// package calls it automatically — it exists for an operator to invoke
// once they've confirmed the true exchange position out-of-band, since
// auto-clearing an unknown-exposure block would defeat its purpose.
func (o *Orchestrator) ReconcileSymbol(symbol string) {
	o.blockedMu.Lock()
	delete(o.blockedSymbols, symbol)
	o.blockedMu.Unlock()
	o.log.Info().Str("symbol", symbol).Msg("execution block manually reconciled")
}

func (o *Orchestrator) currentBalance(ctx context.Context) cache.AccountBalance {
	balance, found, err := o.balances.Get(ctx)
	if err != nil || !found {
		return cache.AccountBalance{}
	}
	return balance
}

// publishOutcome emits a TradeOutcome to the reconciler. RealizedPnL is a
// fill-quality proxy (signed fill-price slippage against the requested
// entry, scaled by filled quantity) since this pipeline only submits
// entries and never tracks a position through to close; it is enough to
// drive the drawdown/consecutive-loss gates RiskAuditAgent reads.
func (o *Orchestrator) publishOutcome(symbol, snapshotID string, order domain.ProposedOrder, result domain.ExecutionResult, balance cache.AccountBalance) {
	if result.Status == domain.ExecUnknown {
		o.reconcil.Events() <- reconciler.TradeOutcome{
			Symbol: symbol, SnapshotID: snapshotID, Unknown: true,
			AccountEquity: balance.Equity, PeakEquity: balance.Equity,
		}
		return
	}

	pnl := 0.0
	if result.Status == domain.ExecFilled && result.FilledPrice > 0 {
		switch order.Action {
		case domain.ActionLong:
			pnl = (result.FilledPrice - order.Entry) * result.FilledQty
		case domain.ActionShort:
			pnl = (order.Entry - result.FilledPrice) * result.FilledQty
		}
	}

	o.reconcil.Events() <- reconciler.TradeOutcome{
		Symbol:        symbol,
		SnapshotID:    snapshotID,
		RealizedPnL:   pnl,
		AccountEquity: balance.Equity,
		PeakEquity:    balance.Equity,
	}
}

func (o *Orchestrator) recordStageErr(stage string, err error) {
	kind := "unknown"
	var ae *apperr.Error
	if e, ok := err.(*apperr.Error); ok {
		ae = e
		kind = string(ae.Kind)
	}
	o.metrics.RecordStageError(stage, kind)
	o.log.Warn().Err(err).Str("stage", stage).Msg("cycle degraded")
}

func execResultLabel(result domain.ExecutionResult) string {
	switch result.Status {
	case domain.ExecFilled:
		return "ok"
	case domain.ExecRejected:
		return "error"
	default:
		return "degraded"
	}
}
