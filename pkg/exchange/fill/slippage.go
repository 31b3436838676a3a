package fill

import (
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

var defaultVolumeRatio = fixed.One.Div(fixed.Three)

// Slippage fills at most a share of the candle's volume per candle, at the
// better of the limit price and the close.
type Slippage struct {
	ratio fixed.Point
}

// NewSlippage returns an estimator taking ratio of each candle's volume. A
// ratio outside (0, 1] falls back to one third.
func NewSlippage(ratio fixed.Point) *Slippage {
	if !ratio.IsPos() || ratio.Gt(fixed.One) {
		ratio = defaultVolumeRatio
	}
	return &Slippage{ratio: ratio}
}

func (s *Slippage) Fill(order *common.Order, candle common.Candle) {
	order.ResetPartialFill()
	if order.Type != common.OrderTypeMarket && !reaches(order, candle) {
		return
	}

	quantity := order.RemainingQuantity().Min(candle.Volume.Mul(s.ratio).Round(fixed.Scale))
	if !quantity.IsPos() {
		return
	}
	order.Fill(quantity, s.price(order, candle))
}

func (s *Slippage) price(order *common.Order, candle common.Candle) fixed.Point {
	if order.Type == common.OrderTypeMarket {
		return candle.Close
	}
	if order.IsBuy() {
		return order.Price.Min(candle.Close)
	}
	return order.Price.Max(candle.Close)
}
