package mapper

import (
	"time"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// BinaryCandle is the fixed-size on-disk layout of one candle. Prices are
// stored as integers scaled by 10^8.
type BinaryCandle struct {
	OpenTime  int64
	CloseTime int64
	Open      int64
	High      int64
	Low       int64
	Close     int64
	Volume    int64
}

func (b BinaryCandle) ToCandle(symbol string, candle *common.Candle) {
	candle.Symbol = symbol
	candle.OpenTime = time.Unix(0, b.OpenTime).UTC()
	candle.CloseTime = time.Unix(0, b.CloseTime).UTC()
	candle.Open = fixed.FromInt64(b.Open, fixed.Scale).Round(fixed.Scale)
	candle.High = fixed.FromInt64(b.High, fixed.Scale).Round(fixed.Scale)
	candle.Low = fixed.FromInt64(b.Low, fixed.Scale).Round(fixed.Scale)
	candle.Close = fixed.FromInt64(b.Close, fixed.Scale).Round(fixed.Scale)
	candle.Volume = fixed.FromInt64(b.Volume, fixed.Scale).Round(fixed.Scale)
}
