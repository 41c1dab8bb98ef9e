// Command tradeengine runs the cross-timeframe futures decision pipeline:
// sync, analyze, predict, decide, audit, submit, reconcile — one cycle per
// symbol, persisted at every stage.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Exit codes, per the CLI's documented contract: 0 normal, 1 configuration
// error, 2 unrecoverable runtime error.
const (
	exitOK     = 0
	exitConfig = 1
	exitRuntime = 2
)

var rootCmd = &cobra.Command{
	Use:   "tradeengine",
	Short: "Cross-timeframe crypto futures decision pipeline",
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		code := exitRuntime
		if ce, ok := err.(*cliError); ok {
			code = ce.code
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
	os.Exit(exitOK)
}

// cliError carries an explicit process exit code through cobra's plain
// error-returning RunE, so main can tell a configuration failure (exit 1)
// from an unrecoverable runtime failure (exit 2).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func configErr(err error) error  { return &cliError{code: exitConfig, err: err} }
func runtimeErr(err error) error { return &cliError{code: exitRuntime, err: err} }
