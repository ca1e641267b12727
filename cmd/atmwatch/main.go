package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/banktl/atmwatch/internal/config"
)

const (
	appName = "atmwatch"
	version = "v1.4.0"
)

// Exit codes: 0 success (failover cycles included), 1 unhandled
// failure, 130 operator interrupt.
const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "ATM fleet telemetry collector",
		Version: version,
		Long: `atmwatch harvests ATM fleet status from the vendor monitoring API
and persists regional aggregates, per-terminal observations and cash
positions to PostgreSQL. When the vendor is unreachable it synthesises
a definitive OUT_OF_SERVICE snapshot for the whole known fleet.`,
	}

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Run collection cycles",
		Long:  "Run one collection cycle, or loop continuously on a fixed interval",
		RunE:  runCollect,
	}

	collectCmd.Flags().String("config", "", "Path to YAML config file")
	collectCmd.Flags().Bool("demo", false, "Fabricate fleet data instead of calling the vendor API")
	collectCmd.Flags().Bool("save-to-db", false, "Persist cycle output to PostgreSQL")
	collectCmd.Flags().Bool("use-new-tables", true, "Write the JSONB tables")
	collectCmd.Flags().Bool("legacy-tables", false, "Also write the legacy regional counts table")
	collectCmd.Flags().Bool("include-cash-info", false, "Fetch per-terminal cash positions")
	collectCmd.Flags().Int("total-atms", 0, "Override the fleet size used for percentage arithmetic")
	collectCmd.Flags().String("region", "", "Override the region code under observation")
	collectCmd.Flags().Bool("continuous", false, "Loop cycles on a fixed interval until interrupted")
	collectCmd.Flags().Duration("interval", 0, "Start-to-start interval between continuous cycles")
	collectCmd.Flags().Bool("save-json", false, "Write each cycle as a JSON artifact")
	collectCmd.Flags().String("output-dir", "output", "Directory for JSON cycle artifacts")
	collectCmd.Flags().String("registry", "", "Override the terminal registry file path")
	collectCmd.Flags().String("metrics-addr", "", "Listen address for /health and /metrics (disabled when empty)")

	rootCmd.AddCommand(collectCmd)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(exitInterrupt)
		}
		log.Error().Err(err).Msg("Command failed")
		os.Exit(exitFailure)
	}
	os.Exit(exitOK)
}

// setupLogging reconfigures zerolog from the loaded config: level, and
// an optional log file alongside the console.
func setupLogging(cfg config.LoggingConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.File == "" {
		log.Logger = log.Output(console)
		return nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
	}
	log.Logger = log.Output(zerolog.MultiLevelWriter(console, f))
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
