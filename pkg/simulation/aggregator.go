package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// Aggregator merges the candles of a source into candles of a longer
// period aligned to period boundaries. A non-positive period passes the
// source through.
type Aggregator struct {
	inner  CandleSource
	period time.Duration

	current  common.Candle
	building bool
}

func NewAggregator(inner CandleSource, period time.Duration) *Aggregator {
	return &Aggregator{
		inner:  inner,
		period: period,
	}
}

func (a *Aggregator) Next(ctx context.Context) (common.Candle, error) {
	if a.period <= 0 {
		return a.inner.Next(ctx)
	}

	for {
		candle, err := a.inner.Next(ctx)
		if errors.Is(err, ErrEndOfData) && a.building {
			a.building = false
			return a.current, nil
		}
		if err != nil {
			return common.Candle{}, err
		}

		start := candle.OpenTime.Truncate(a.period)
		if !a.building {
			a.start(candle, start)
			continue
		}
		if start.Equal(a.current.OpenTime) {
			a.merge(candle)
			continue
		}

		out := a.current
		a.start(candle, start)
		return out, nil
	}
}

func (a *Aggregator) start(candle common.Candle, openTime time.Time) {
	a.current = candle
	a.current.OpenTime = openTime
	a.building = true
}

func (a *Aggregator) merge(candle common.Candle) {
	if candle.High.Gt(a.current.High) {
		a.current.High = candle.High
	}
	if candle.Low.Lt(a.current.Low) {
		a.current.Low = candle.Low
	}
	a.current.Close = candle.Close
	a.current.CloseTime = candle.CloseTime
	a.current.Volume = a.current.Volume.Add(candle.Volume).Round(fixed.Scale)
}
