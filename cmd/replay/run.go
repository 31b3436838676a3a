package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/data/db/psql"
	"github.com/redtramp/univocity-trader/pkg/data/duckdb"
	"github.com/redtramp/univocity-trader/pkg/data/mapper"
	"github.com/redtramp/univocity-trader/pkg/exchange/sandbox"
	"github.com/redtramp/univocity-trader/pkg/middleware"
	"github.com/redtramp/univocity-trader/pkg/simulation"
)

const (
	orderMonitorFlags = middleware.MonitorOrdersAccepted | middleware.MonitorOrdersRejected | middleware.MonitorOrdersFilled | middleware.MonitorOrdersCancelled
	shutdownTimeout   = 5 * time.Second
)

func replay(ctx context.Context, logger *zap.Logger, cfg simulation.Configuration, debug bool) error {
	ledger, err := cfg.NewLedger(logger)
	if err != nil {
		return fmt.Errorf("error creating ledger: %w", err)
	}

	router := bus.NewRouter(logger, cfg.EventCapacity)

	options, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	options = append(options, sandbox.WithRouter(router), sandbox.WithSource("replay"))

	engine, err := sandbox.NewEngine(logger, ledger, options...)
	if err != nil {
		return fmt.Errorf("error creating engine: %w", err)
	}
	logger.Info("engine created", zap.Stringer("execution_id", engine.ExecutionId()))

	sources, orders, closeSources, err := openSources(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSources()

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("error registering metrics: %w", err)
	}
	if cfg.MetricsAddress != "" {
		stop := serveMetrics(logger, cfg.MetricsAddress, registry)
		defer stop()
	}

	flags := orderMonitorFlags
	if debug {
		flags = middleware.MonitorAll
	}
	monitor := middleware.NewMonitor(logger, flags)
	telemetry := middleware.NewTelemetry(logger)
	performance := middleware.NewPerformance(logger)

	fills := []func(bus.OrderFilledEventHandler) bus.OrderFilledEventHandler{telemetry.WithOrderFilled, performance.WithOrderFilled, metrics.WithOrderFilled, monitor.WithOrderFilled}
	if cfg.Journal.Enabled {
		db, err := psql.Connect(ctx, cfg.Journal.Host, cfg.Journal.Port, cfg.Journal.User, cfg.Journal.Password, cfg.Journal.Database)
		if err != nil {
			return fmt.Errorf("error connecting to the fill journal: %w", err)
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)

		journal := middleware.NewJournal(logger, db)
		defer journal.Wait()
		fills = append(fills, journal.WithOrderFilled)
	}

	router.OnCandle = middleware.Chain(telemetry.WithCandle, performance.WithCandle, monitor.WithCandle)(middleware.NoopCandleHdl)
	router.OnBalance = middleware.Chain(telemetry.WithBalance, performance.WithBalance, metrics.WithBalance, monitor.WithBalance)(middleware.NoopBalanceHdl)
	router.OnOrderAcceptance = middleware.Chain(telemetry.WithOrderAccepted, metrics.WithOrderAccepted, monitor.WithOrderAccepted)(middleware.NoopOrderAccHdl)
	router.OnOrderRejection = middleware.Chain(telemetry.WithOrderRejected, metrics.WithOrderRejected, monitor.WithOrderRejected)(middleware.NoopOrderRjctHdl)
	router.OnOrderFilled = middleware.Chain(fills...)(middleware.NoopOrderFillHdl)
	router.OnOrderCancel = middleware.Chain(telemetry.WithOrderCancelled, metrics.WithOrderCancelled, monitor.WithOrderCancelled)(middleware.NoopOrderCnclHdl)

	executor := simulation.NewExecutor(logger, engine, router, sources, orders)

	defer router.GetStatistics().Print(logger)
	defer telemetry.PrintStatistics()
	defer performance.PrintStatistics()
	defer executor.PrintStatistics()

	return executor.Run(ctx)
}

// openSources prefers a binary candle file over the DuckDB candles table
// for every symbol that has one. Scheduled orders always come from DuckDB.
func openSources(ctx context.Context, cfg simulation.Configuration) ([]simulation.CandleSource, []*common.OrderRequest, func(), error) {
	from, to, err := cfg.Window()
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		closers []func()
		sources []simulation.CandleSource
		orders  []*common.OrderRequest
		reader  *duckdb.Reader
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Data.DuckDB != "" {
		reader = duckdb.NewReader(cfg.Data.DuckDB)
		if err := reader.Connect(); err != nil {
			return nil, nil, nil, fmt.Errorf("error connecting to %s: %w", cfg.Data.DuckDB, err)
		}
		closers = append(closers, reader.Close)

		if orders, err = reader.LoadOrders(ctx); err != nil {
			closeAll()
			return nil, nil, nil, err
		}
	}

	for _, symbol := range cfg.Symbols() {
		var source simulation.CandleSource

		if path, ok := cfg.BinaryFile(symbol); ok {
			m := mapper.NewReader[mapper.BinaryCandle](path)
			if err := m.Open(); err != nil {
				closeAll()
				return nil, nil, nil, err
			}
			closers = append(closers, m.Close)

			binary := simulation.NewBinarySource(symbol, m, from, to)
			if err := binary.LookupStartIndex(); err != nil {
				closeAll()
				return nil, nil, nil, fmt.Errorf("error positioning %s: %w", path, err)
			}
			source = binary
		} else if reader != nil {
			loaded, err := simulation.LoadSource(ctx, reader, symbol, from, to)
			if err != nil {
				closeAll()
				return nil, nil, nil, err
			}
			source = loaded
		} else {
			closeAll()
			return nil, nil, nil, fmt.Errorf("%w for %s", simulation.ErrNoDataSource, symbol)
		}

		sources = append(sources, simulation.NewAggregator(source, cfg.Data.Period))
	}

	return sources, orders, closeAll, nil
}

func serveMetrics(logger *zap.Logger, address string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("address", address))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
