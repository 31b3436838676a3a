package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorCandles
	MonitorBalances
	MonitorOrdersAccepted
	MonitorOrdersRejected
	MonitorOrdersFilled
	MonitorOrdersCancelled
)

// Monitor logs the events selected by its flags before passing them on.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithCandle(handler bus.CandleEventHandler) bus.CandleEventHandler {
	return func(ctx context.Context, candle common.Candle) {
		if m.enabled(MonitorCandles) {
			m.logger.Info("candle",
				zap.String("symbol", candle.Symbol),
				zap.Time("open_time", candle.OpenTime),
				zap.Stringer("open", candle.Open),
				zap.Stringer("high", candle.High),
				zap.Stringer("low", candle.Low),
				zap.Stringer("close", candle.Close),
				zap.Stringer("volume", candle.Volume))
		}
		handler(ctx, candle)
	}
}

func (m *Monitor) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		if m.enabled(MonitorBalances) {
			m.logger.Info("balance",
				zap.String("symbol", balance.Symbol),
				zap.Stringer("free", balance.Free),
				zap.Stringer("locked", balance.Locked),
				zap.Stringer("shorted", balance.Shorted),
				zap.Any("margin_reserve", balance.MarginReserve))
		}
		handler(ctx, balance)
	}
}

func (m *Monitor) WithOrderAccepted(handler bus.OrderAcceptanceEventHandler) bus.OrderAcceptanceEventHandler {
	return func(ctx context.Context, accepted common.OrderAccepted) {
		if m.enabled(MonitorOrdersAccepted) {
			m.logger.Info("order accepted", zap.Stringer("order", &accepted.Order))
		}
		handler(ctx, accepted)
	}
}

func (m *Monitor) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Info("order rejected",
				zap.Stringer("request", &rejected.Request),
				zap.String("reason", rejected.Reason))
		}
		handler(ctx, rejected)
	}
}

func (m *Monitor) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		if m.enabled(MonitorOrdersFilled) {
			m.logger.Info("order filled",
				zap.Uint64("id", filled.Order.Id),
				zap.Stringer("quantity", filled.Quantity),
				zap.Stringer("price", filled.Price),
				zap.Stringer("fee", filled.Fee),
				zap.Stringer("status", filled.Order.Status))
		}
		handler(ctx, filled)
	}
}

func (m *Monitor) WithOrderCancelled(handler bus.OrderCancelledEventHandler) bus.OrderCancelledEventHandler {
	return func(ctx context.Context, cancelled common.OrderCancelled) {
		if m.enabled(MonitorOrdersCancelled) {
			m.logger.Info("order cancelled", zap.Stringer("order", &cancelled.Order))
		}
		handler(ctx, cancelled)
	}
}
