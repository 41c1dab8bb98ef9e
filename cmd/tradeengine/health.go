package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bobdamio/tradeengine/internal/config"
	"github.com/bobdamio/tradeengine/internal/infrastructure/persistence/postgres"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to Postgres and Redis",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print health status as JSON instead of colorized text")
}

// ComponentHealth is one dependency's probe result.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthStatus is every component's probe result plus an overall verdict.
type HealthStatus struct {
	Overall    string            `json:"overall"`
	Components []ComponentHealth `json:"components"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return configErr(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := HealthStatus{
		Components: []ComponentHealth{
			probePostgres(ctx, cfg),
			probeRedis(ctx, cfg),
		},
	}
	status.Overall = "HEALTHY"
	for _, c := range status.Components {
		if !c.Healthy {
			status.Overall = "UNHEALTHY"
		}
	}

	out := cmd.OutOrStdout()
	if healthJSON {
		encoded, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return runtimeErr(err)
		}
		fmt.Fprintln(out, string(encoded))
		return healthExit(status)
	}

	printHealthStatus(out, status)
	return healthExit(status)
}

func probePostgres(ctx context.Context, cfg *config.Config) ComponentHealth {
	start := time.Now()
	db, err := postgres.Connect(cfg.Postgres)
	if err != nil {
		return ComponentHealth{Name: "postgres", Healthy: false, Latency: time.Since(start), Error: err.Error()}
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return ComponentHealth{Name: "postgres", Healthy: false, Latency: time.Since(start), Error: err.Error()}
	}
	return ComponentHealth{Name: "postgres", Healthy: true, Latency: time.Since(start)}
}

func probeRedis(ctx context.Context, cfg *config.Config) ComponentHealth {
	start := time.Now()
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return ComponentHealth{Name: "redis", Healthy: false, Latency: time.Since(start), Error: err.Error()}
	}
	return ComponentHealth{Name: "redis", Healthy: true, Latency: time.Since(start)}
}

func printHealthStatus(out io.Writer, status HealthStatus) {
	overallColor := color.New(color.FgGreen, color.Bold)
	if status.Overall != "HEALTHY" {
		overallColor = color.New(color.FgRed, color.Bold)
	}
	overallColor.Fprintf(out, "overall: %s\n", status.Overall)

	for _, c := range status.Components {
		marker := color.New(color.FgGreen).Sprint("OK")
		if !c.Healthy {
			marker = color.New(color.FgRed).Sprint("FAIL")
		}
		fmt.Fprintf(out, "  %-10s %s (%s)", c.Name, marker, c.Latency)
		if c.Error != "" {
			fmt.Fprintf(out, " - %s", c.Error)
		}
		fmt.Fprintln(out)
	}
}

func healthExit(status HealthStatus) error {
	if status.Overall != "HEALTHY" {
		return runtimeErr(fmt.Errorf("health check failed"))
	}
	return nil
}
