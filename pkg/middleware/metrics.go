package middleware

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
)

// Metrics exports order flow and balances as prometheus collectors.
type Metrics struct {
	orders   *prometheus.CounterVec
	volume   *prometheus.CounterVec
	fees     *prometheus.CounterVec
	balances *prometheus.GaugeVec
	reserves *prometheus.GaugeVec
}

func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_orders_total",
			Help: "Order events by outcome",
		}, []string{"symbol", "outcome"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_traded_volume",
			Help: "Traded notional in funds currency",
		}, []string{"symbol", "side"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_fees_paid",
			Help: "Fees charged on fills",
		}, []string{"symbol"}),
		balances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sandbox_balance",
			Help: "Latest balance by symbol and field",
		}, []string{"symbol", "field"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sandbox_margin_reserve",
			Help: "Margin reserved in funds for a shorted asset",
		}, []string{"funds", "asset"}),
	}

	for _, c := range []prometheus.Collector{m.orders, m.volume, m.fees, m.balances, m.reserves} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) WithOrderAccepted(handler bus.OrderAcceptanceEventHandler) bus.OrderAcceptanceEventHandler {
	return func(ctx context.Context, accepted common.OrderAccepted) {
		m.orders.WithLabelValues(accepted.Order.Symbol(), "accepted").Inc()
		handler(ctx, accepted)
	}
}

func (m *Metrics) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		m.orders.WithLabelValues(rejected.Request.Symbol(), "rejected").Inc()
		handler(ctx, rejected)
	}
}

func (m *Metrics) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		symbol := filled.Order.Symbol()
		m.orders.WithLabelValues(symbol, "filled").Inc()
		if v, ok := filled.Quantity.Mul(filled.Price).Float64(); ok {
			m.volume.WithLabelValues(symbol, filled.Order.Side.String()).Add(v)
		}
		if v, ok := filled.Fee.Float64(); ok {
			m.fees.WithLabelValues(symbol).Add(v)
		}
		handler(ctx, filled)
	}
}

func (m *Metrics) WithOrderCancelled(handler bus.OrderCancelledEventHandler) bus.OrderCancelledEventHandler {
	return func(ctx context.Context, cancelled common.OrderCancelled) {
		m.orders.WithLabelValues(cancelled.Order.Symbol(), "cancelled").Inc()
		handler(ctx, cancelled)
	}
}

func (m *Metrics) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		set := func(field string, v float64) { m.balances.WithLabelValues(balance.Symbol, field).Set(v) }
		if v, ok := balance.Free.Float64(); ok {
			set("free", v)
		}
		if v, ok := balance.Locked.Float64(); ok {
			set("locked", v)
		}
		if v, ok := balance.Shorted.Float64(); ok {
			set("shorted", v)
		}

		m.reserves.DeletePartialMatch(prometheus.Labels{"funds": balance.Symbol})
		for asset, reserve := range balance.MarginReserve {
			if v, ok := reserve.Float64(); ok {
				m.reserves.WithLabelValues(balance.Symbol, asset).Set(v)
			}
		}
		handler(ctx, balance)
	}
}
