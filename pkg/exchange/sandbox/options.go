package sandbox

import (
	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

type Option func(*Engine)

func WithFillEstimator(estimator FillEstimator) Option {
	return func(e *Engine) {
		e.estimator = estimator
	}
}

func WithFeeSchedule(fees FeeSchedule) Option {
	return func(e *Engine) {
		e.fees = fees
	}
}

func WithRouter(router *bus.Router) Option {
	return func(e *Engine) {
		e.router = router
	}
}

// WithQuantityTolerance sets the relative shortfall of assets below which a
// sell is clamped to what is available instead of being rejected.
func WithQuantityTolerance(tolerance fixed.Point) Option {
	return func(e *Engine) {
		e.tolerance = tolerance
	}
}

// WithNegativeFreeBorrowing controls whether margin mark-to-market may borrow
// from the reserve when free funds run out, or fails instead.
func WithNegativeFreeBorrowing(enabled bool) Option {
	return func(e *Engine) {
		e.borrow = enabled
	}
}

func WithSource(source string) Option {
	return func(e *Engine) {
		e.source = source
	}
}
