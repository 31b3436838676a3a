package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/exchange/sandbox"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

type pair struct {
	assets string
	funds  string
}

type head struct {
	candle common.Candle
	loaded bool
	done   bool
}

// Executor replays candles of several symbols in open time order through
// the engine. Scheduled requests are submitted right before the first
// candle of their symbol that opens at or after the request time.
type Executor struct {
	logger  *zap.Logger
	engine  *sandbox.Engine
	router  *bus.Router
	sources []CandleSource
	heads   []head

	pending map[string][]*common.OrderRequest
	pairs   map[string]pair

	candleCount   uint64
	submitCount   uint64
	acceptedCount uint64
}

func NewExecutor(logger *zap.Logger, engine *sandbox.Engine, router *bus.Router, sources []CandleSource, orders []*common.OrderRequest) *Executor {
	e := &Executor{
		logger:  logger,
		engine:  engine,
		router:  router,
		sources: sources,
		heads:   make([]head, len(sources)),
		pending: make(map[string][]*common.OrderRequest),
		pairs:   make(map[string]pair),
	}

	for _, order := range orders {
		symbol := order.Symbol()
		e.pending[symbol] = append(e.pending[symbol], order)
		e.pairs[symbol] = pair{order.AssetsSymbol, order.FundsSymbol}
	}
	for _, queue := range e.pending {
		sort.SliceStable(queue, func(i, j int) bool { return queue[i].Time.Before(queue[j].Time) })
	}
	return e
}

// Feed processes the next candle across all sources. It returns
// ErrEndOfData once every source is exhausted.
func (e *Executor) Feed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := -1
	for i := range e.heads {
		h := &e.heads[i]
		if h.done {
			continue
		}
		if !h.loaded {
			candle, err := e.sources[i].Next(ctx)
			if errors.Is(err, ErrEndOfData) {
				h.done = true
				continue
			}
			if err != nil {
				return fmt.Errorf("error reading candle: %w", err)
			}
			h.candle, h.loaded = candle, true
		}
		if next < 0 || h.candle.OpenTime.Before(e.heads[next].candle.OpenTime) {
			next = i
		}
	}

	if next < 0 {
		return ErrEndOfData
	}

	e.heads[next].loaded = false
	return e.step(e.heads[next].candle)
}

// Run drives Feed until the data is exhausted, dispatching the posted
// events in between when a router is set.
func (e *Executor) Run(ctx context.Context) error {
	var err error
	if e.router != nil {
		err = <-e.router.ExecLoop(ctx, func() error { return e.Feed(ctx) })
	} else {
		for err == nil {
			err = e.Feed(ctx)
		}
	}

	if errors.Is(err, ErrEndOfData) {
		return nil
	}
	return err
}

func (e *Executor) step(candle common.Candle) error {
	candle.ExecutionId = e.engine.ExecutionId()

	if err := e.submitDue(candle); err != nil {
		return err
	}
	if _, err := e.engine.OnCandle(candle.Symbol, candle); err != nil {
		return fmt.Errorf("error processing candle of %s at %s: %w", candle.Symbol, candle.OpenTime, err)
	}
	e.candleCount++

	if e.router != nil {
		if err := e.router.Post(bus.CandleEvent, candle); err != nil {
			e.logger.Warn("unable to post candle", zap.Error(err))
		}
	}
	return nil
}

func (e *Executor) submitDue(candle common.Candle) error {
	queue := e.pending[candle.Symbol]

	n := 0
	for ; n < len(queue) && !queue[n].Time.After(candle.OpenTime); n++ {
		if !e.size(queue[n]) {
			e.logger.Info("nothing to trade", zap.Stringer("request", queue[n]))
			continue
		}
		_, accepted, err := e.engine.Submit(queue[n])
		if err != nil {
			return fmt.Errorf("error submitting %s: %w", queue[n], err)
		}
		e.submitCount++
		if accepted {
			e.acceptedCount++
		}
	}

	e.pending[candle.Symbol] = queue[n:]
	return nil
}

// size fills in the quantity of a request scheduled without one and reports
// whether there is anything to submit. Entries spend what the allocation
// limits of the account allow; exits close the whole position.
func (e *Executor) size(request *common.OrderRequest) bool {
	if request.Quantity.IsPos() {
		return true
	}

	ledger := e.engine.Ledger()
	switch {
	case request.IsLong() && request.IsSell():
		request.Quantity = ledger.Balance(request.AssetsSymbol).Free
	case request.IsShort() && request.IsBuy():
		request.Quantity = ledger.Balance(request.AssetsSymbol).Shorted
	default:
		if request.FundsSymbol != ledger.ReferenceCurrency() {
			return false
		}
		price := request.Price
		if !price.IsPos() {
			price, _ = e.engine.LatestClose(request.Symbol())
		}
		if !price.IsPos() {
			return false
		}
		funds := ledger.AllocateFunds(request.AssetsSymbol, request.TradeSide, e.prices(), e.engine.Fees())
		request.Quantity = funds.Div(price).Round(fixed.Scale)
	}
	return request.Quantity.IsPos()
}

// prices maps every traded asset quoted in the reference currency to its
// latest close.
func (e *Executor) prices() map[string]fixed.Point {
	reference := e.engine.Ledger().ReferenceCurrency()
	prices := make(map[string]fixed.Point)
	for symbol, pr := range e.pairs {
		if pr.funds != reference {
			continue
		}
		if price, ok := e.engine.LatestClose(symbol); ok {
			prices[pr.assets] = price
		}
	}
	return prices
}

// Equity values the account in its reference currency at the latest close
// of every traded pair quoted in it.
func (e *Executor) Equity() fixed.Point {
	return e.engine.Ledger().Equity(e.prices())
}

func (e *Executor) PrintStatistics() {
	unsubmitted := 0
	for _, queue := range e.pending {
		unsubmitted += len(queue)
	}

	e.logger.Info("replay statistics",
		zap.Uint64("candles", e.candleCount),
		zap.Uint64("submitted", e.submitCount),
		zap.Uint64("accepted", e.acceptedCount),
		zap.Int("unsubmitted", unsubmitted),
		zap.Stringer("equity", e.Equity()))

	for _, b := range e.engine.Ledger().Balances() {
		e.logger.Info("balance",
			zap.String("symbol", b.Symbol),
			zap.Stringer("free", b.Free),
			zap.Stringer("locked", b.Locked),
			zap.Stringer("shorted", b.Shorted))
	}
}
