package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/data/duckdb"
	"github.com/redtramp/univocity-trader/pkg/data/mapper"
	"github.com/redtramp/univocity-trader/pkg/simulation"
	"github.com/redtramp/univocity-trader/pkg/utility/logging"
)

var errMissingFlag = errors.New("missing required flag")

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Export the candles of one symbol from DuckDB into a binary candle file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			dsn, _ := flags.GetString("duckdb")
			symbol, _ := flags.GetString("symbol")
			out, _ := flags.GetString("out")
			fromText, _ := flags.GetString("from")
			toText, _ := flags.GetString("to")

			if dsn == "" || symbol == "" {
				return fmt.Errorf("%w: --duckdb and --symbol", errMissingFlag)
			}
			symbol = strings.ToUpper(symbol)
			if out == "" {
				out = symbol + ".bin"
			}

			window := simulation.Configuration{Data: simulation.DataConfiguration{From: fromText, To: toText}}
			from, to, err := window.Window()
			if err != nil {
				return err
			}

			logger, err := logging.New(false, false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			count, err := dump(cmd, dsn, symbol, out, from, to)
			if err != nil {
				_ = os.Remove(out)
				return err
			}
			logger.Info("dump finished", zap.String("symbol", symbol), zap.String("file", out), zap.Int64("candles", count))
			return nil
		},
	}

	cmd.Flags().String("duckdb", "", "DuckDB database with the candles table")
	cmd.Flags().String("symbol", "", "pair to export, e.g. ADAUSDT")
	cmd.Flags().String("out", "", "output file (default <symbol>.bin)")
	cmd.Flags().String("from", "", "first open time to export (RFC 3339)")
	cmd.Flags().String("to", "", "last open time to export (RFC 3339)")
	return cmd
}

func dump(cmd *cobra.Command, dsn, symbol, out string, from, to time.Time) (int64, error) {
	reader := duckdb.NewReader(dsn)
	if err := reader.Connect(); err != nil {
		return 0, err
	}
	defer reader.Close()

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer func(f *os.File) { _ = f.Close() }(f)

	w := mapper.NewWriter(f)
	if err := reader.LoadCandles(cmd.Context(), symbol, from, to, func(candle common.Candle) error {
		return w.Write(candle)
	}); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return w.Count(), f.Sync()
}
