package middleware

import (
	"context"

	"github.com/redtramp/univocity-trader/pkg/common"
)

//goland:noinspection ALL
var (
	NoopCandleHdl    = func(context.Context, common.Candle) {}
	NoopBalanceHdl   = func(context.Context, common.Balance) {}
	NoopOrderAccHdl  = func(context.Context, common.OrderAccepted) {}
	NoopOrderRjctHdl = func(context.Context, common.OrderRejected) {}
	NoopOrderFillHdl = func(context.Context, common.OrderFilled) {}
	NoopOrderCnclHdl = func(context.Context, common.OrderCancelled) {}
)
