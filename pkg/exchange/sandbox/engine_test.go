package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/redtramp/univocity-trader/pkg/account"
	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/exchange/fee"
	"github.com/redtramp/univocity-trader/pkg/exchange/fill"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

const symbol = "ADAUSDT"

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func p(s string) fixed.Point { return fixed.MustFromString(s) }

// stepFill fills at most step units per candle at the limit price.
type stepFill struct {
	step fixed.Point
}

func (s stepFill) Fill(order *common.Order, candle common.Candle) {
	order.ResetPartialFill()
	if order.Type == common.OrderTypeMarket {
		order.Fill(s.step, candle.Open)
		return
	}
	if (order.IsBuy() && candle.Low.Lte(order.Price)) || (order.IsSell() && candle.High.Gte(order.Price)) {
		order.Fill(s.step, order.Price)
	}
}

func newTestEngine(t *testing.T, options ...Option) (*Engine, *account.Ledger) {
	ledger, err := account.NewLedger(zaptest.NewLogger(t), "USDT")
	require.NoError(t, err)
	require.NoError(t, ledger.SetAmount("USDT", p("100")))

	options = append([]Option{WithFillEstimator(fill.Immediate{}), WithFeeSchedule(fee.Binance)}, options...)
	e, err := NewEngine(zaptest.NewLogger(t), ledger, options...)
	require.NoError(t, err)
	return e, ledger
}

func newRequest(t *testing.T, assets string, side common.OrderSide, tradeSide common.TradeSide, quantity, price string) *common.OrderRequest {
	r, err := common.NewOrderRequest(assets, "USDT", side, tradeSide, epoch)
	require.NoError(t, err)
	r.Quantity = p(quantity)
	r.Price = p(price)
	return r
}

func flat(minute int, price string) common.Candle {
	return common.FlatCandle(symbol, epoch.Add(time.Duration(minute)*time.Minute), p(price), p("1000"))
}

func submit(t *testing.T, e *Engine, r *common.OrderRequest) common.Order {
	o, ok, err := e.Submit(r)
	require.NoError(t, err)
	require.True(t, ok, "request %s should be accepted", r)
	return o
}

func onCandle(t *testing.T, e *Engine, c common.Candle) {
	_, err := e.OnCandle(c.Symbol, c)
	require.NoError(t, err)
}

func TestNewEngine(t *testing.T) {
	ledger, err := account.NewLedger(zaptest.NewLogger(t), "USDT")
	require.NoError(t, err)

	_, err = NewEngine(zaptest.NewLogger(t), nil)
	assert.ErrorIs(t, err, ErrNoLedger)

	_, err = NewEngine(zaptest.NewLogger(t), ledger, WithFeeSchedule(fee.Binance))
	assert.ErrorIs(t, err, ErrNoFillEstimator)

	_, err = NewEngine(zaptest.NewLogger(t), ledger, WithFillEstimator(fill.Immediate{}))
	assert.ErrorIs(t, err, ErrNoFeeSchedule)

	a, _ := newTestEngine(t)
	b, _ := newTestEngine(t)
	assert.NotEqual(t, a.ExecutionId(), b.ExecutionId())
}

func TestEngine_SubmitLocksFunds(t *testing.T) {
	e, ledger := newTestEngine(t)

	o := submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "40", "1"))

	assert.Equal(t, common.OrderId(1), o.Id)
	assert.Equal(t, common.OrderStatusNew, o.Status)
	assert.True(t, o.Active)

	usdt := ledger.Balance("USDT")
	assert.Equal(t, "59.96", usdt.Free.String())
	assert.Equal(t, "40.04", usdt.Locked.String())
	assert.Len(t, e.OpenOrders(symbol), 1)
}

func TestEngine_SubmitRejections(t *testing.T) {
	tests := []struct {
		name    string
		request func(t *testing.T) *common.OrderRequest
	}{
		{"insufficient funds", func(t *testing.T) *common.OrderRequest {
			return newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "100", "1")
		}},
		{"insufficient assets", func(t *testing.T) *common.OrderRequest {
			return newRequest(t, "ADA", common.OrderSideSell, common.TradeSideLong, "1", "1")
		}},
		{"insufficient margin", func(t *testing.T) *common.OrderRequest {
			return newRequest(t, "ADA", common.OrderSideSell, common.TradeSideShort, "200", "1")
		}},
		{"cover without funds", func(t *testing.T) *common.OrderRequest {
			return newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideShort, "100", "1")
		}},
		{"no market price", func(t *testing.T) *common.OrderRequest {
			r := newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "10", "0")
			r.Type = common.OrderTypeMarket
			return r
		}},
		{"zero quantity", func(t *testing.T) *common.OrderRequest {
			return newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "0", "1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ledger := newTestEngine(t)

			_, ok, err := e.Submit(tt.request(t))
			require.NoError(t, err)
			assert.False(t, ok)

			usdt := ledger.Balance("USDT")
			assert.Equal(t, "100", usdt.Free.String())
			assert.True(t, usdt.Locked.IsZero())
			assert.Empty(t, e.OpenOrders(symbol))
		})
	}
}

func TestEngine_SubmitInvalid(t *testing.T) {
	e, _ := newTestEngine(t)

	_, _, err := e.Submit(nil)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	r := newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "-1", "1")
	_, _, err = e.Submit(r)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	parent := newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "1", "1")
	child, err := parent.Attach(common.OrderTypeLimit, p("1"))
	require.NoError(t, err)
	_, _, err = e.Submit(child)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestEngine_MarketPriceFromLatestClose(t *testing.T) {
	e, ledger := newTestEngine(t)

	had, err := e.OnCandle(symbol, flat(0, "2"))
	require.NoError(t, err)
	assert.False(t, had)

	r := newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "10", "0")
	r.Type = common.OrderTypeMarket
	o := submit(t, e, r)

	assert.Equal(t, "2", o.Price.String())
	assert.Equal(t, "20.02", ledger.Balance("USDT").Locked.String())

	onCandle(t, e, flat(1, "2"))
	assert.Equal(t, "10", ledger.Balance("ADA").Free.String())
	assert.Equal(t, "79.98", ledger.Balance("USDT").Free.String())
	assert.True(t, ledger.Balance("USDT").Locked.IsZero())
}

func TestEngine_MarketBuyGapUp(t *testing.T) {
	e, ledger := newTestEngine(t)
	onCandle(t, e, flat(0, "1"))

	r := newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "99.8", "0")
	r.Type = common.OrderTypeMarket
	o := submit(t, e, r)
	assert.Equal(t, "99.8998", ledger.Balance("USDT").Locked.String())

	// opens at 1.01, so 99.8 units would cost more than the whole account
	onCandle(t, e, flat(1, "1.01"))

	got, ok := e.Order(o.Id)
	require.True(t, ok)
	assert.Equal(t, common.OrderStatusCancelled, got.Status)
	assert.Equal(t, "98.91099", got.ExecutedQuantity.String())
	assert.Equal(t, "1.01", got.AveragePrice.String())

	assert.Equal(t, "98.91099", ledger.Balance("ADA").Free.String())
	assert.True(t, ledger.Balance("USDT").Total().IsZero())
	assert.Empty(t, e.OpenOrders(symbol))
}

func TestEngine_SellQuantityTolerance(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		accepted bool
		want     string
	}{
		{"clamped", "40", true, "39.999"},
		{"exact", "39.999", true, "39.999"},
		{"beyond tolerance", "41", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ledger := newTestEngine(t)
			require.NoError(t, ledger.SetAmount("ADA", p("39.999")))

			o, ok, err := e.Submit(newRequest(t, "ADA", common.OrderSideSell, common.TradeSideLong, tt.quantity, "1"))
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, o.Quantity.String())
			assert.Equal(t, tt.want, ledger.Balance("ADA").Locked.String())
			assert.True(t, ledger.Balance("ADA").Free.IsZero())
		})
	}
}

func TestEngine_ShortMargin(t *testing.T) {
	e, ledger := newTestEngine(t)

	submit(t, e, newRequest(t, "ADA", common.OrderSideSell, common.TradeSideShort, "40", "1"))
	usdt := ledger.Balance("USDT")
	assert.Equal(t, "79.96", usdt.Free.String())
	assert.Equal(t, "20.04", usdt.Locked.String())

	onCandle(t, e, flat(1, "1"))

	usdt = ledger.Balance("USDT")
	assert.Equal(t, "60", usdt.GetMarginReserve("ADA").String())
	assert.Equal(t, "79.96", usdt.Free.String())
	assert.True(t, usdt.Locked.IsZero())
	assert.Equal(t, "40", ledger.Balance("ADA").Shorted.String())

	submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideShort, "40", "1"))
	onCandle(t, e, flat(2, "1"))

	usdt = ledger.Balance("USDT")
	assert.Equal(t, "99.92", usdt.Free.String())
	assert.True(t, usdt.GetMarginReserve("ADA").IsZero())
	assert.True(t, usdt.Locked.IsZero())
	assert.True(t, ledger.Balance("ADA").Shorted.IsZero())
}

func TestEngine_ShortCoverAtLoss(t *testing.T) {
	e, ledger := newTestEngine(t)

	submit(t, e, newRequest(t, "ADA", common.OrderSideSell, common.TradeSideShort, "40", "1"))
	onCandle(t, e, flat(1, "1"))

	submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideShort, "40", "1.2"))
	onCandle(t, e, flat(2, "1.2"))

	usdt := ledger.Balance("USDT")
	assert.Equal(t, "91.912", usdt.Free.String())
	assert.True(t, usdt.GetMarginReserve("ADA").IsZero())
	assert.True(t, ledger.Balance("ADA").Shorted.IsZero())
}

func TestEngine_MarginBorrowing(t *testing.T) {
	run := func(t *testing.T, borrow bool) (*account.Ledger, error) {
		e, ledger := newTestEngine(t, WithNegativeFreeBorrowing(borrow))

		submit(t, e, newRequest(t, "ADA", common.OrderSideSell, common.TradeSideShort, "40", "1"))
		onCandle(t, e, flat(1, "1"))

		submit(t, e, newRequest(t, "ADA", common.OrderSideSell, common.TradeSideShort, "100", "1.5"))
		assert.Equal(t, "4.81", ledger.Balance("USDT").Free.String())

		_, err := e.OnCandle(symbol, flat(2, "1.5"))
		return ledger, err
	}

	t.Run("borrow from reserve", func(t *testing.T) {
		ledger, err := run(t, true)
		require.NoError(t, err)

		usdt := ledger.Balance("USDT")
		assert.True(t, usdt.Free.IsZero())
		assert.Equal(t, "289.81", usdt.GetMarginReserve("ADA").String())
		assert.Equal(t, "25.19", usdt.GetMarginShortfall("ADA").String())
		assert.Equal(t, "140", ledger.Balance("ADA").Shorted.String())
	})

	t.Run("fail without borrowing", func(t *testing.T) {
		_, err := run(t, false)

		var balanceErr *account.BalanceError
		require.ErrorAs(t, err, &balanceErr)
		assert.Equal(t, "USDT", balanceErr.Symbol)
		assert.Contains(t, err.Error(), "settlement of order")
	})
}

func TestEngine_FillThenCancel(t *testing.T) {
	e, ledger := newTestEngine(t, WithFillEstimator(stepFill{step: p("33")}))

	o := submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "40", "1"))
	onCandle(t, e, flat(1, "1"))

	got, ok := e.Order(o.Id)
	require.True(t, ok)
	assert.Equal(t, common.OrderStatusPartiallyFilled, got.Status)
	assert.Equal(t, "7.007", ledger.Balance("USDT").Locked.String())

	require.NoError(t, e.Cancel(o.Id))
	got, _ = e.Order(o.Id)
	assert.Equal(t, common.OrderStatusCancelled, got.Status)

	had, err := e.OnCandle(symbol, flat(2, "1"))
	require.NoError(t, err)
	assert.True(t, had)

	usdt := ledger.Balance("USDT")
	assert.Equal(t, "66.967", usdt.Free.String())
	assert.True(t, usdt.Locked.IsZero())
	assert.Equal(t, "33", ledger.Balance("ADA").Free.String())

	got, _ = e.Order(o.Id)
	assert.Equal(t, "33", got.ExecutedQuantity.String())
	assert.Equal(t, "0.033", got.FeesPaid.String())
	assert.Empty(t, e.OpenOrders(symbol))
}

func TestEngine_SettlementIsIdempotent(t *testing.T) {
	e, ledger := newTestEngine(t)

	submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "40", "1"))
	onCandle(t, e, flat(1, "1"))

	free, updates := ledger.Amount("USDT"), ledger.UpdateCount("USDT")

	for i := 2; i < 5; i++ {
		had, err := e.OnCandle(symbol, flat(i, "1"))
		require.NoError(t, err)
		assert.False(t, had)
	}

	assert.True(t, free.Eq(ledger.Amount("USDT")))
	assert.Equal(t, updates, ledger.UpdateCount("USDT"))
	assert.NoError(t, e.Cancel(1))
}

func TestEngine_RoundTrip(t *testing.T) {
	e, ledger := newTestEngine(t)

	submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "40", "1"))
	onCandle(t, e, flat(1, "1"))
	assert.Equal(t, "40", ledger.Balance("ADA").Free.String())

	submit(t, e, newRequest(t, "ADA", common.OrderSideSell, common.TradeSideLong, "40", "1"))
	onCandle(t, e, flat(2, "1"))

	assert.Equal(t, "99.92", ledger.Amount("USDT").String())
	assert.True(t, ledger.Balance("USDT").Locked.IsZero())
	assert.True(t, ledger.Balance("ADA").Total().IsZero())
}

func TestEngine_CancelUnknown(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.Cancel(42), ErrUnknownOrder)
}

func bracket(t *testing.T) *common.OrderRequest {
	r := newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "40", "1")
	_, err := r.Attach(common.OrderTypeMarket, p("-1"))
	require.NoError(t, err)
	_, err = r.Attach(common.OrderTypeLimit, p("1.5"))
	require.NoError(t, err)
	return r
}

func TestEngine_BracketExclusivity(t *testing.T) {
	e, ledger := newTestEngine(t)

	parent := submit(t, e, bracket(t))
	require.Len(t, parent.Attachments, 2)
	stopId, gainId := parent.Attachments[0], parent.Attachments[1]

	onCandle(t, e, flat(1, "1"))
	assert.Equal(t, "40", ledger.Balance("ADA").Locked.String())
	assert.Len(t, e.OpenOrders(symbol), 2)

	onCandle(t, e, flat(2, "1.02"))

	stop, _ := e.Order(stopId)
	gain, _ := e.Order(gainId)
	assert.Equal(t, common.OrderStatusCancelled, stop.Status)
	assert.Equal(t, common.OrderStatusFilled, gain.Status)
	assert.Equal(t, "1.015", gain.AveragePrice.String())
	assert.Equal(t, parent.Id, gain.ParentId)

	assert.Equal(t, "100.5194", ledger.Amount("USDT").String())
	assert.True(t, ledger.Balance("USDT").Locked.IsZero())
	assert.True(t, ledger.Balance("ADA").Total().IsZero())
	assert.Empty(t, e.OpenOrders(symbol))

	onCandle(t, e, flat(3, "0.5"))
	stop, _ = e.Order(stopId)
	assert.Equal(t, common.OrderStatusCancelled, stop.Status)
}

func TestEngine_BracketLegCancelledWithoutExecution(t *testing.T) {
	e, ledger := newTestEngine(t)

	parent := submit(t, e, bracket(t))
	stopId, gainId := parent.Attachments[0], parent.Attachments[1]
	onCandle(t, e, flat(1, "1"))

	require.NoError(t, e.Cancel(stopId))
	onCandle(t, e, flat(2, "1"))

	stop, _ := e.Order(stopId)
	gain, _ := e.Order(gainId)
	assert.Equal(t, common.OrderStatusCancelled, stop.Status)
	assert.Equal(t, common.OrderStatusNew, gain.Status)
	assert.Equal(t, "40", ledger.Balance("ADA").Locked.String())
	assert.Len(t, e.OpenOrders(symbol), 1)

	onCandle(t, e, flat(3, "1.02"))

	gain, _ = e.Order(gainId)
	assert.Equal(t, common.OrderStatusFilled, gain.Status)
	assert.Equal(t, "100.5194", ledger.Amount("USDT").String())
	assert.True(t, ledger.Balance("ADA").Total().IsZero())
	assert.Empty(t, e.OpenOrders(symbol))
}

func TestEngine_BracketStopLoss(t *testing.T) {
	e, ledger := newTestEngine(t)

	parent := submit(t, e, bracket(t))
	onCandle(t, e, flat(1, "1"))
	onCandle(t, e, flat(2, "0.98"))

	stop, _ := e.Order(parent.Attachments[0])
	gain, _ := e.Order(parent.Attachments[1])
	assert.Equal(t, common.OrderStatusFilled, stop.Status)
	assert.Equal(t, common.OrderStatusCancelled, gain.Status)

	// 59.96 + 40 × 0.98 − 0.0392
	assert.Equal(t, "99.1208", ledger.Amount("USDT").String())
	assert.True(t, ledger.Balance("ADA").Total().IsZero())
}

func TestEngine_TriggeredAttachmentCancelsParent(t *testing.T) {
	e, ledger := newTestEngine(t, WithFillEstimator(stepFill{step: p("20")}))

	parent := submit(t, e, bracket(t))
	onCandle(t, e, flat(1, "1"))

	got, _ := e.Order(parent.Id)
	assert.Equal(t, common.OrderStatusPartiallyFilled, got.Status)
	assert.Equal(t, "20", ledger.Balance("ADA").Locked.String())

	onCandle(t, e, flat(2, "1.02"))

	got, _ = e.Order(parent.Id)
	assert.Equal(t, common.OrderStatusCancelled, got.Status)
	assert.Equal(t, "20", got.ExecutedQuantity.String())

	stop, _ := e.Order(parent.Attachments[0])
	gain, _ := e.Order(parent.Attachments[1])
	assert.Equal(t, common.OrderStatusCancelled, stop.Status)
	assert.Equal(t, common.OrderStatusFilled, gain.Status)
	assert.Equal(t, "20", gain.Quantity.String())

	// 100 − 20.02 + 20.3 − 0.0203
	assert.Equal(t, "100.2597", ledger.Amount("USDT").String())
	assert.True(t, ledger.Balance("USDT").Locked.IsZero())
	assert.True(t, ledger.Balance("ADA").Total().IsZero())
}

func TestEngine_BracketParentNeverFills(t *testing.T) {
	e, ledger := newTestEngine(t)

	parent := submit(t, e, bracket(t))
	require.NoError(t, e.Cancel(parent.Id))
	onCandle(t, e, flat(1, "1"))

	for _, id := range parent.Attachments {
		child, ok := e.Order(id)
		require.True(t, ok)
		assert.Equal(t, common.OrderStatusCancelled, child.Status)
	}
	assert.Equal(t, "100", ledger.Amount("USDT").String())
	assert.Empty(t, e.OpenOrders(symbol))
}

func TestEngine_Conservation(t *testing.T) {
	e, ledger := newTestEngine(t, WithFeeSchedule(fee.NewPercentage(fixed.Zero, fixed.Zero)))
	prices := map[string]fixed.Point{"ADA": fixed.One, "BNB": fixed.One}
	bnb := func(minute int) common.Candle {
		c := flat(minute, "1")
		c.Symbol = "BNBUSDT"
		return c
	}

	check := func(step string) {
		assert.Equal(t, "100", ledger.Equity(prices).Round(fixed.Scale).String(), step)
		for _, b := range ledger.Balances() {
			assert.False(t, b.Free.IsNeg(), "%s free", b.Symbol)
			assert.False(t, b.Locked.IsNeg(), "%s locked", b.Symbol)
			assert.False(t, b.Shorted.IsNeg(), "%s shorted", b.Symbol)
			for asset, reserve := range b.MarginReserve {
				assert.False(t, reserve.IsNeg(), "%s reserve for %s", b.Symbol, asset)
			}
		}
	}

	submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "30", "1"))
	check("long entry submitted")
	onCandle(t, e, flat(1, "1"))
	check("long entry filled")

	submit(t, e, newRequest(t, "BNB", common.OrderSideSell, common.TradeSideShort, "20", "1"))
	check("short entry submitted")
	onCandle(t, e, bnb(1))
	check("short entry filled")
	assert.Equal(t, "30", ledger.MarginReserve("USDT", "BNB").String())

	submit(t, e, newRequest(t, "BNB", common.OrderSideBuy, common.TradeSideShort, "20", "1"))
	onCandle(t, e, bnb(2))
	check("short covered")

	submit(t, e, newRequest(t, "ADA", common.OrderSideSell, common.TradeSideLong, "30", "1"))
	onCandle(t, e, flat(2, "1"))
	check("long exit")

	assert.Equal(t, "100", ledger.Amount("USDT").String())
}

func TestEngine_PostsEvents(t *testing.T) {
	router := bus.NewRouter(zaptest.NewLogger(t), 100)
	e, _ := newTestEngine(t, WithRouter(router), WithFillEstimator(stepFill{step: p("20")}))

	var (
		accepted, rejected, filled, cancelled int
		balances                              = map[string]common.Balance{}
	)
	router.OnOrderAcceptance = func(_ context.Context, ev common.OrderAccepted) {
		accepted++
		assert.Equal(t, e.ExecutionId(), ev.ExecutionId)
	}
	router.OnOrderRejection = func(_ context.Context, ev common.OrderRejected) {
		rejected++
		assert.NotEmpty(t, ev.Reason)
	}
	router.OnOrderFilled = func(_ context.Context, ev common.OrderFilled) {
		filled++
		assert.Equal(t, "20", ev.Quantity.String())
		assert.Equal(t, "0.02", ev.Fee.String())
	}
	router.OnOrderCancel = func(_ context.Context, ev common.OrderCancelled) {
		cancelled++
		assert.Equal(t, common.OrderStatusCancelled, ev.Order.Status)
	}
	router.OnBalance = func(_ context.Context, ev common.Balance) {
		balances[ev.Symbol] = ev
	}

	o := submit(t, e, newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "40", "1"))
	_, ok, err := e.Submit(newRequest(t, "ADA", common.OrderSideBuy, common.TradeSideLong, "100", "1"))
	require.NoError(t, err)
	require.False(t, ok)

	onCandle(t, e, flat(1, "1"))
	require.NoError(t, e.Cancel(o.Id))
	onCandle(t, e, flat(2, "1"))

	errDone := errors.New("done")
	err = <-router.ExecLoop(context.Background(), func() error { return errDone })
	require.ErrorIs(t, err, errDone)

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, filled)
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, "79.98", balances["USDT"].Free.String())
	assert.Equal(t, "20", balances["ADA"].Free.String())
}
