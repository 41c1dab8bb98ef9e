package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bobdamio/tradeengine/internal/application/analyst"
	"github.com/bobdamio/tradeengine/internal/application/decision"
	"github.com/bobdamio/tradeengine/internal/application/predict"
	"github.com/bobdamio/tradeengine/internal/application/reconciler"
	"github.com/bobdamio/tradeengine/internal/application/risk"
	"github.com/bobdamio/tradeengine/internal/application/sync"
	"github.com/bobdamio/tradeengine/internal/config"
	bt "github.com/bobdamio/tradeengine/internal/infrastructure/backtest"
	"github.com/bobdamio/tradeengine/internal/infrastructure/cache"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence/postgres"
	httpapi "github.com/bobdamio/tradeengine/internal/interfaces/http"
	"github.com/bobdamio/tradeengine/internal/orchestrator"
)

var (
	backtestSymbols []string
	backtestBars    int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a synthetic history through the pipeline instead of the live exchange",
	RunE:  runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringSliceVar(&backtestSymbols, "symbols", nil, "symbols to replay (overrides config.yaml when set)")
	backtestCmd.Flags().IntVar(&backtestBars, "bars", 500, "number of 5m bars to replay per symbol")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return configErr(err)
	}
	if len(backtestSymbols) > 0 {
		cfg.Symbols = backtestSymbols
	}

	db, err := postgres.Connect(cfg.Postgres)
	if err != nil {
		return runtimeErr(err)
	}
	defer db.Close()
	repo := postgres.NewRepository(db, cfg.Postgres.QueryTimeout)

	redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return runtimeErr(err)
	}
	positions := cache.NewPositionCache(redisCache)
	balances := cache.NewBalanceCache(redisCache)

	replay := bt.NewReplaySource(cfg.Symbols, backtestBars)
	sink := bt.NewStubSink()
	metrics := httpapi.NewMetricsRegistry()
	recon := reconciler.New(log)
	go recon.Run()

	orch := orchestrator.New(
		orchestrator.Config{
			Symbols:       cfg.Symbols,
			CycleInterval: cfg.CycleInterval,
			Risk:          cfg.Risk.ToRiskConfig(),
		},
		sync.NewDataSyncAgent(replay, log),
		analyst.QuantAnalystAgent{},
		predict.NewPredictAgent(nil, log),
		decision.NewDecisionCoreAgent(),
		nil,
		&risk.RiskAuditAgent{Config: cfg.Risk.ToRiskConfig()},
		sink,
		recon,
		repo,
		positions,
		balances,
		metrics,
		log,
	)

	ctx := context.Background()
	for _, symbol := range cfg.Symbols {
		for {
			orch.RunOnce(ctx, symbol)
			if done := replay.Advance(symbol); done {
				break
			}
		}
	}

	return printBacktestReport(cmd, sink)
}

func printBacktestReport(cmd *cobra.Command, sink *bt.StubSink) error {
	fills := sink.Fills()
	out := cmd.OutOrStdout()

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(out, "backtest complete: %d fills\n", len(fills))

	bySymbol := make(map[string]int)
	var grossQty float64
	for _, f := range fills {
		bySymbol[f.Symbol]++
		grossQty += f.FilledQty
	}

	for symbol, count := range bySymbol {
		fmt.Fprintf(out, "  %-12s fills=%d\n", symbol, count)
	}
	fmt.Fprintf(out, "total filled quantity: %.6f\n", grossQty)

	if len(fills) == 0 {
		color.New(color.FgYellow).Fprintln(out, "no orders were ever submitted (every cycle held or was risk-blocked)")
	}
	return nil
}
