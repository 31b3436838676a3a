package common

import (
	"time"

	"github.com/google/uuid"

	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

type Candle struct {
	Source      string    `json:"src,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	ExecutionId uuid.UUID `json:"eid,omitempty"`
	OpenTime    time.Time `json:"open_time"`
	CloseTime   time.Time `json:"close_time"`

	Open   fixed.Point `json:"open"`
	High   fixed.Point `json:"high"`
	Low    fixed.Point `json:"low"`
	Close  fixed.Point `json:"close"`
	Volume fixed.Point `json:"volume"`
}

// FlatCandle is a candle whose open, high, low and close are all price.
func FlatCandle(symbol string, ts time.Time, price, volume fixed.Point) Candle {
	return Candle{
		Symbol:    symbol,
		OpenTime:  ts,
		CloseTime: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    volume,
	}
}
