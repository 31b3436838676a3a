package fee

import (
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// Percentage charges a percentage of the traded amount. Limit orders pay the
// maker rate, market orders the taker rate.
type Percentage struct {
	Maker fixed.Point
	Taker fixed.Point
}

// Binance is the default spot schedule, 0.1% on both sides.
var Binance = Percentage{Maker: fixed.PointOne, Taker: fixed.PointOne}

func NewPercentage(maker, taker fixed.Point) Percentage {
	return Percentage{Maker: maker, Taker: taker}
}

func (p Percentage) Fee(amount fixed.Point, orderType common.OrderType, _ common.OrderSide) fixed.Point {
	rate := p.Maker
	if orderType == common.OrderTypeMarket {
		rate = p.Taker
	}
	return amount.Mul(rate).Div(fixed.Hundred).Round(fixed.Scale)
}

func (p Percentage) FeeOnFilled(order common.Order) fixed.Point {
	return p.Fee(order.TotalTraded(), order.Type, order.Side)
}
