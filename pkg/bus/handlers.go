package bus

import (
	"context"

	"github.com/redtramp/univocity-trader/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type CandleEventHandler EventHandler[common.Candle]
type BalanceEventHandler EventHandler[common.Balance]
type OrderAcceptanceEventHandler EventHandler[common.OrderAccepted]
type OrderRejectionEventHandler EventHandler[common.OrderRejected]
type OrderFilledEventHandler EventHandler[common.OrderFilled]
type OrderCancelledEventHandler EventHandler[common.OrderCancelled]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			handler(ctx, event)
		}
	}
}
