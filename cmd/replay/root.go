package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/utility/logging"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay candles and scheduled orders through the simulated exchange",
		Long: `replay feeds historical candles from DuckDB or binary candle files to the
simulated exchange, submits the scheduled orders of the orders table and
reports the resulting balances.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			production, _ := cmd.Flags().GetBool("production")
			debug, _ := cmd.Flags().GetBool("debug")

			cfg, err := loadConfiguration(v, configFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(production, debug)
			if err != nil {
				return fmt.Errorf("error creating logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("replay", zap.String("version", Version))
			defer logger.Info("done")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := replay(ctx, logger, cfg, debug); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("error during replay", zap.Error(err))
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "YAML configuration file")
	flags.Bool("production", false, "log JSON instead of console output")
	flags.Bool("debug", false, "log every fill and settlement")
	flags.String("duckdb", "", "DuckDB database with the candles and orders tables")
	flags.StringSlice("symbols", nil, "pairs to replay, e.g. ADAUSDT")
	flags.String("from", "", "replay start (RFC 3339)")
	flags.String("to", "", "replay end (RFC 3339)")
	flags.String("fill-model", "", "immediate or slippage")
	flags.String("metrics-address", "", "serve prometheus metrics on this address")

	bindFlags(v, cmd)
	cmd.AddCommand(newDumpCmd())
	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	bindings := map[string]string{
		"data.duckdb":     "duckdb",
		"data.symbols":    "symbols",
		"data.from":       "from",
		"data.to":         "to",
		"fill.model":      "fill-model",
		"metrics_address": "metrics-address",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}
