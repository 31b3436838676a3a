package fill

import (
	"github.com/redtramp/univocity-trader/pkg/common"
)

// Immediate fills the whole remaining quantity as soon as the candle's range
// reaches the limit price. Market orders fill at the open.
type Immediate struct{}

func (Immediate) Fill(order *common.Order, candle common.Candle) {
	order.ResetPartialFill()
	if order.Type == common.OrderTypeMarket {
		order.Fill(order.RemainingQuantity(), candle.Open)
		return
	}
	if reaches(order, candle) {
		order.Fill(order.RemainingQuantity(), order.Price)
	}
}

func reaches(order *common.Order, candle common.Candle) bool {
	if order.IsBuy() {
		return candle.Low.Lte(order.Price)
	}
	return candle.High.Gte(order.Price)
}
