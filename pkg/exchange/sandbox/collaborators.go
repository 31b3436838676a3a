package sandbox

import (
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// FillEstimator decides how much of an active order a candle fills. It must
// only grow the executed quantity, and must leave the increment of this call
// in the order's partial fill fields (see common.Order.Fill).
type FillEstimator interface {
	Fill(order *common.Order, candle common.Candle)
}

type FeeSchedule interface {
	Fee(amount fixed.Point, orderType common.OrderType, side common.OrderSide) fixed.Point
	FeeOnFilled(order common.Order) fixed.Point
}
