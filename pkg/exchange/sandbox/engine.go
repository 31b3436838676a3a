package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/account"
	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

const engineComponentName = "exchange.sandbox.engine"

var (
	ErrNoLedger        = errors.New("ledger is required")
	ErrNoFillEstimator = errors.New("fill estimator is required")
	ErrNoFeeSchedule   = errors.New("fee schedule is required")
	ErrUnknownOrder    = errors.New("unknown order")
)

var defaultQuantityTolerance = fixed.MustFromString("0.0001")

// entry is the engine's record of one order.
type entry struct {
	order common.Order

	// What is left of the amount the order locked for itself, in lockSymbol.
	locked     fixed.Point
	lockSymbol string

	// Attachments whose funds are the assets the parent bought draw from the
	// parent's pool instead of locking anything.
	fromPool bool
	// Attachments of any other kind lock when they activate.
	lockOnActivation bool

	// Bracket parents: executed quantity not yet taken by any attachment.
	pool fixed.Point

	open bool
}

type posting struct {
	id   bus.EventId
	data any
}

// Engine simulates an exchange on top of an account ledger. Orders are
// matched against candles, one symbol at a time, and every fill settles
// into the ledger under the ledger's lock. The engine's own order book is
// guarded by that same lock.
type Engine struct {
	logger      *zap.Logger
	ledger      *account.Ledger
	router      *bus.Router
	estimator   FillEstimator
	fees        FeeSchedule
	tolerance   fixed.Point
	borrow      bool
	source      string
	executionId uuid.UUID

	lastId  common.OrderId
	orders  map[common.OrderId]*entry
	open    map[string][]common.OrderId
	closes  map[string]fixed.Point
	pending []posting
}

func NewEngine(logger *zap.Logger, ledger *account.Ledger, options ...Option) (*Engine, error) {
	if ledger == nil {
		return nil, ErrNoLedger
	}

	e := &Engine{
		logger:      logger,
		ledger:      ledger,
		tolerance:   defaultQuantityTolerance,
		borrow:      true,
		source:      engineComponentName,
		executionId: uuid.Must(uuid.NewV7()),
		orders:      make(map[common.OrderId]*entry),
		open:        make(map[string][]common.OrderId),
		closes:      make(map[string]fixed.Point),
	}

	for _, option := range options {
		option(e)
	}

	if e.estimator == nil {
		return nil, ErrNoFillEstimator
	}
	if e.fees == nil {
		return nil, ErrNoFeeSchedule
	}

	return e, nil
}

func (e *Engine) ExecutionId() uuid.UUID  { return e.executionId }
func (e *Engine) Ledger() *account.Ledger { return e.ledger }
func (e *Engine) Fees() FeeSchedule       { return e.fees }

// Submit admits request if the account can fund it. A rejected request
// returns false without an error; errors are reserved for invalid requests
// and broken balances.
func (e *Engine) Submit(request *common.OrderRequest) (common.Order, bool, error) {
	if request == nil {
		return common.Order{}, false, common.ErrInvalidRequest
	}
	if err := request.Validate(); err != nil {
		return common.Order{}, false, err
	}
	if request.IsAttachment() {
		return common.Order{}, false, fmt.Errorf("%w: attachments are submitted with their parent", common.ErrInvalidRequest)
	}
	for _, a := range request.Attachments {
		if a.AssetsSymbol != request.AssetsSymbol || a.FundsSymbol != request.FundsSymbol {
			return common.Order{}, false, fmt.Errorf("%w: attachment must trade %s", common.ErrInvalidRequest, request.Symbol())
		}
	}

	var (
		out      common.Order
		accepted bool
		postings []posting
	)

	err := e.ledger.Update(func(tx *account.Tx) error {
		defer func() { postings = e.takePostings() }()

		en, reason, err := e.admit(tx, request)
		if err != nil {
			return err
		}
		if en == nil {
			e.logger.Warn("order rejected", zap.Stringer("request", request), zap.String("reason", reason))
			e.post(bus.OrderRejectionEvent, common.OrderRejected{
				Source:      e.source,
				ExecutionId: e.executionId,
				TimeStamp:   request.Time,
				Request:     *request,
				Reason:      reason,
			})
			return nil
		}

		e.addOpen(en)
		for _, a := range request.Attachments {
			e.attach(en, a)
		}

		out = en.order.Clone()
		accepted = true

		e.logger.Debug("order accepted", zap.Stringer("order", &en.order))
		e.post(bus.OrderAcceptanceEvent, common.OrderAccepted{
			Source:      e.source,
			ExecutionId: e.executionId,
			TimeStamp:   request.Time,
			Order:       out,
		})
		e.postBalances(tx, request.Time)
		return nil
	})

	e.flush(postings, err)
	return out, accepted, err
}

// OnCandle matches the open orders of symbol against candle. It returns
// false when the symbol had no open orders.
func (e *Engine) OnCandle(symbol string, candle common.Candle) (bool, error) {
	var (
		hadOrders bool
		postings  []posting
	)

	err := e.ledger.Update(func(tx *account.Tx) error {
		defer func() { postings = e.takePostings() }()

		e.closes[symbol] = candle.Close

		ids := e.sorted(e.open[symbol])
		if len(ids) == 0 {
			return nil
		}
		hadOrders = true

		for _, id := range ids {
			en := e.orders[id]
			if !en.open {
				continue
			}
			if err := e.process(tx, en, candle); err != nil {
				return err
			}
		}

		e.postBalances(tx, candle.CloseTime)
		return nil
	})

	e.flush(postings, err)
	return hadOrders, err
}

// Cancel stops an order from filling any further. Its balances settle on
// the next candle of its symbol; attachments that were never released are
// cancelled right away.
func (e *Engine) Cancel(id common.OrderId) error {
	var postings []posting

	err := e.ledger.Update(func(tx *account.Tx) error {
		defer func() { postings = e.takePostings() }()

		en, ok := e.orders[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownOrder, id)
		}
		if en.order.IsFinalized() {
			return nil
		}

		en.order.Cancel()
		if !en.open {
			e.postCancelled(en, en.order.Time)
		}
		return nil
	})

	e.flush(postings, err)
	return err
}

// Order returns a snapshot of the order with the given id.
func (e *Engine) Order(id common.OrderId) (common.Order, bool) {
	var (
		out common.Order
		ok  bool
	)
	_ = e.ledger.Update(func(*account.Tx) error {
		var en *entry
		if en, ok = e.orders[id]; ok {
			out = en.order.Clone()
		}
		return nil
	})
	return out, ok
}

// OpenOrders returns snapshots of the orders of symbol still being matched,
// in processing order.
func (e *Engine) OpenOrders(symbol string) []common.Order {
	var out []common.Order
	_ = e.ledger.Update(func(*account.Tx) error {
		for _, id := range e.sorted(e.open[symbol]) {
			out = append(out, e.orders[id].order.Clone())
		}
		return nil
	})
	return out
}

// LatestClose is the last close seen for symbol.
func (e *Engine) LatestClose(symbol string) (fixed.Point, bool) {
	var (
		out fixed.Point
		ok  bool
	)
	_ = e.ledger.Update(func(*account.Tx) error {
		out, ok = e.closes[symbol]
		return nil
	})
	return out, ok
}

func (e *Engine) admit(tx *account.Tx, request *common.OrderRequest) (*entry, string, error) {
	price := request.Price
	if price.IsZero() {
		last, ok := e.closes[request.Symbol()]
		if !ok {
			return nil, "no price available for " + request.Symbol(), nil
		}
		price = last
	}
	if !request.Quantity.IsPos() {
		return nil, "quantity must be positive", nil
	}

	en := &entry{order: e.newOrder(request, price, request.Quantity)}
	en.order.Trigger = request.Trigger
	en.order.TriggerPrice = request.TriggerPrice
	en.order.Active = request.Trigger == common.TriggerNone

	reason, err := e.reserve(tx, en)
	if err != nil || reason != "" {
		return nil, reason, err
	}

	en.order.Id = e.nextId()
	e.orders[en.order.Id] = en
	return en, "", nil
}

func (e *Engine) attach(parent *entry, request *common.OrderRequest) {
	p := &parent.order

	price, triggerPrice := request.Price, request.TriggerPrice
	if price.IsZero() {
		price = common.ApplyChange(p.Price, request.PriceChange)
	}
	if triggerPrice.IsZero() && request.Trigger != common.TriggerNone {
		triggerPrice = price
	}

	quantity := request.Quantity
	if !quantity.IsPos() {
		quantity = p.Quantity
	}

	child := &entry{order: e.newOrder(request, price, quantity)}
	child.order.Id = e.nextId()
	child.order.ParentId = p.Id
	child.order.Trigger = request.Trigger
	child.order.TriggerPrice = triggerPrice
	child.order.Active = request.Trigger == common.TriggerNone
	child.fromPool = child.order.IsLong() && child.order.IsSell() && p.IsLong() && p.IsBuy()
	child.lockOnActivation = !child.fromPool

	p.Attachments = append(p.Attachments, child.order.Id)
	e.orders[child.order.Id] = child
}

func (e *Engine) nextId() common.OrderId {
	e.lastId++
	return e.lastId
}

func (e *Engine) newOrder(request *common.OrderRequest, price, quantity fixed.Point) common.Order {
	return common.Order{
		AssetsSymbol:    request.AssetsSymbol,
		FundsSymbol:     request.FundsSymbol,
		Side:            request.Side,
		TradeSide:       request.TradeSide,
		Type:            request.Type,
		Time:            request.Time,
		ResubmittedFrom: request.ResubmittedFrom,
		Status:          common.OrderStatusNew,
		Quantity:        quantity.Round(fixed.Scale),
		Price:           price.Round(fixed.Scale),
	}
}

func (e *Engine) addOpen(en *entry) {
	symbol := en.order.Symbol()
	e.open[symbol] = append(e.open[symbol], en.order.Id)
	en.open = true
}

func (e *Engine) removeOpen(en *entry) {
	symbol := en.order.Symbol()
	ids := e.open[symbol]
	for i, id := range ids {
		if id == en.order.Id {
			e.open[symbol] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	en.open = false
}

// sorted orders ids by submission time, then id.
func (e *Engine) sorted(ids []common.OrderId) []common.OrderId {
	out := append([]common.OrderId(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		a, b := &e.orders[out[i]].order, &e.orders[out[j]].order
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		return a.Id < b.Id
	})
	return out
}

func (e *Engine) post(id bus.EventId, data any) {
	if e.router == nil {
		return
	}
	e.pending = append(e.pending, posting{id, data})
}

func (e *Engine) takePostings() []posting {
	out := e.pending
	e.pending = nil
	return out
}

// flush posts the events of a committed update. Events of an update that
// failed, and was rolled back, are dropped.
func (e *Engine) flush(postings []posting, err error) {
	if err != nil {
		return
	}
	for _, p := range postings {
		if err := e.router.Post(p.id, p.data); err != nil {
			e.logger.Warn("unable to post event", zap.Stringer("event", p.id), zap.Error(err))
		}
	}
}

func (e *Engine) postCancelled(en *entry, ts time.Time) {
	e.post(bus.OrderCancelledEvent, common.OrderCancelled{
		Source:      e.source,
		ExecutionId: e.executionId,
		TimeStamp:   ts,
		Order:       en.order.Clone(),
	})
}

func (e *Engine) postBalances(tx *account.Tx, ts time.Time) {
	for _, symbol := range tx.Touched() {
		b := tx.Balance(symbol)
		e.post(bus.BalanceEvent, common.Balance{
			Source:        e.source,
			ExecutionId:   e.executionId,
			TimeStamp:     ts,
			Symbol:        b.Symbol,
			Free:          b.Free,
			Locked:        b.Locked,
			Shorted:       b.Shorted,
			MarginReserve: b.MarginReserve,
		})
	}
}
