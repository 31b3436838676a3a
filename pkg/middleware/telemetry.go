package middleware

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
)

// Telemetry counts the events passing through it.
type Telemetry struct {
	logger *zap.Logger

	candleEventCounter    atomic.Int64
	balanceEventCounter   atomic.Int64
	acceptedEventCounter  atomic.Int64
	rejectedEventCounter  atomic.Int64
	filledEventCounter    atomic.Int64
	cancelledEventCounter atomic.Int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

func (t *Telemetry) WithCandle(handler bus.CandleEventHandler) bus.CandleEventHandler {
	return func(ctx context.Context, candle common.Candle) {
		t.candleEventCounter.Add(1)
		handler(ctx, candle)
	}
}

func (t *Telemetry) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		t.balanceEventCounter.Add(1)
		handler(ctx, balance)
	}
}

func (t *Telemetry) WithOrderAccepted(handler bus.OrderAcceptanceEventHandler) bus.OrderAcceptanceEventHandler {
	return func(ctx context.Context, accepted common.OrderAccepted) {
		t.acceptedEventCounter.Add(1)
		handler(ctx, accepted)
	}
}

func (t *Telemetry) WithOrderRejected(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejected common.OrderRejected) {
		t.rejectedEventCounter.Add(1)
		handler(ctx, rejected)
	}
}

func (t *Telemetry) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		t.filledEventCounter.Add(1)
		handler(ctx, filled)
	}
}

func (t *Telemetry) WithOrderCancelled(handler bus.OrderCancelledEventHandler) bus.OrderCancelledEventHandler {
	return func(ctx context.Context, cancelled common.OrderCancelled) {
		t.cancelledEventCounter.Add(1)
		handler(ctx, cancelled)
	}
}

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("candle_events", t.candleEventCounter.Load()),
		zap.Int64("balance_events", t.balanceEventCounter.Load()),
		zap.Int64("order_accepted_events", t.acceptedEventCounter.Load()),
		zap.Int64("order_rejected_events", t.rejectedEventCounter.Load()),
		zap.Int64("order_filled_events", t.filledEventCounter.Load()),
		zap.Int64("order_cancelled_events", t.cancelledEventCounter.Load()))
}
