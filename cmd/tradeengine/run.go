package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/bobdamio/tradeengine/internal/application/advisor"
	"github.com/bobdamio/tradeengine/internal/application/analyst"
	"github.com/bobdamio/tradeengine/internal/application/decision"
	"github.com/bobdamio/tradeengine/internal/application/predict"
	"github.com/bobdamio/tradeengine/internal/application/reconciler"
	"github.com/bobdamio/tradeengine/internal/application/risk"
	"github.com/bobdamio/tradeengine/internal/application/sync"
	"github.com/bobdamio/tradeengine/internal/config"
	"github.com/bobdamio/tradeengine/internal/infrastructure/cache"
	"github.com/bobdamio/tradeengine/internal/infrastructure/exchange"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence/postgres"
	httpapi "github.com/bobdamio/tradeengine/internal/interfaces/http"
	"github.com/bobdamio/tradeengine/internal/orchestrator"
)

var runSymbols []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision pipeline against the live exchange",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "symbols to trade (overrides config.yaml when set)")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return configErr(err)
	}
	if len(runSymbols) > 0 {
		cfg.Symbols = runSymbols
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

	exchangeClient := exchange.New(exchange.Config{
		APIKey:            cfg.Exchange.APIKey,
		SecretKey:         cfg.Exchange.SecretKey,
		Testnet:           cfg.Exchange.Testnet,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Burst:             cfg.Exchange.Burst,
	}, log)

	var adv orchestrator.Advisor
	if cfg.LLMEnabled() {
		client := openai.NewClient(cfg.Advisor.APIKey)
		adv = advisor.New(client, cfg.Advisor.Model, log)
	}

	metrics := httpapi.NewMetricsRegistry()
	recon := reconciler.New(log)

	orch := orchestrator.New(
		orchestrator.Config{
			Symbols:       cfg.Symbols,
			CycleInterval: cfg.CycleInterval,
			MaxConcurrent: len(cfg.Symbols),
			Risk:          cfg.Risk.ToRiskConfig(),
		},
		sync.NewDataSyncAgent(exchangeClient, log),
		analyst.QuantAnalystAgent{},
		predict.NewPredictAgent(nil, log),
		decision.NewDecisionCoreAgent(),
		adv,
		&risk.RiskAuditAgent{Config: cfg.Risk.ToRiskConfig()},
		exchangeClient,
		recon,
		repo,
		positions,
		balances,
		metrics,
		log,
	)

	httpServer := httpapi.NewServer(httpapi.DefaultConfig(cfg.HTTP.Addr), repo, metrics, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()
	go func() { errCh <- orch.Run(ctx) }()

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "tradeengine running: %d symbols, cycle=%s\n", len(cfg.Symbols), cfg.CycleInterval)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil {
			return runtimeErr(err)
		}
		return nil
	}
}
