package account

import (
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// FeeEstimator prices the fee of trading amount.
type FeeEstimator interface {
	Fee(amount fixed.Point, orderType common.OrderType, side common.OrderSide) fixed.Point
}

// limits are zero when unset.
type limits struct {
	maxAmountPerAsset     fixed.Point
	maxPercentagePerAsset fixed.Point
	maxAmountPerTrade     fixed.Point
	maxPercentagePerTrade fixed.Point
	minAmountPerTrade     fixed.Point
}

func WithMaxInvestmentAmountPerAsset(amount fixed.Point) Option {
	return func(l *Ledger) {
		l.limits.maxAmountPerAsset = amount
	}
}

func WithMaxInvestmentPercentagePerAsset(pct fixed.Point) Option {
	return func(l *Ledger) {
		l.limits.maxPercentagePerAsset = pct
	}
}

func WithMaxInvestmentAmountPerTrade(amount fixed.Point) Option {
	return func(l *Ledger) {
		l.limits.maxAmountPerTrade = amount
	}
}

func WithMaxInvestmentPercentagePerTrade(pct fixed.Point) Option {
	return func(l *Ledger) {
		l.limits.maxPercentagePerTrade = pct
	}
}

func WithMinInvestmentAmountPerTrade(amount fixed.Point) Option {
	return func(l *Ledger) {
		l.limits.minAmountPerTrade = amount
	}
}

// Configure applies options to an existing ledger, e.g. to tighten limits
// between trades.
func (l *Ledger) Configure(options ...Option) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, option := range options {
		option(l)
	}
}

// AllocateFunds returns how much of the reference currency may be spent on a
// new trade of asset, net of the fee for spending it. prices maps symbols to
// their price in the reference currency.
func (l *Ledger) AllocateFunds(asset string, tradeSide common.TradeSide, prices map[string]fixed.Point, fees FeeEstimator) fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()

	funds := l.balance(l.referenceCurrency)
	holding := l.balance(asset)
	price := prices[asset]

	available := funds.Free
	invested := holding.Total().Mul(price)
	if tradeSide == common.TradeSideShort {
		available = available.Div(l.marginReserveFactor.Sub(fixed.One))
		invested = holding.Shorted.Mul(price)
	}

	total := l.equity(prices)
	limit := available

	lim := l.limits
	if lim.maxAmountPerAsset.IsPos() {
		limit = limit.Min(lim.maxAmountPerAsset.Sub(invested))
	}
	if lim.maxPercentagePerAsset.IsPos() {
		limit = limit.Min(percentOf(total, lim.maxPercentagePerAsset).Sub(invested))
	}
	if lim.maxAmountPerTrade.IsPos() {
		limit = limit.Min(lim.maxAmountPerTrade)
	}
	if lim.maxPercentagePerTrade.IsPos() {
		limit = limit.Min(percentOf(total, lim.maxPercentagePerTrade))
	}

	limit = limit.Round(fixed.Scale)
	if !limit.IsPos() || limit.Lt(lim.minAmountPerTrade) {
		return fixed.Zero
	}

	side := common.OrderSideBuy
	if tradeSide == common.TradeSideShort {
		side = common.OrderSideSell
	}
	net := limit.Sub(fees.Fee(limit, common.OrderTypeLimit, side)).Round(fixed.Scale)
	if !net.IsPos() {
		return fixed.Zero
	}
	return net
}

func percentOf(total, pct fixed.Point) fixed.Point {
	return total.Mul(pct).Div(fixed.Hundred)
}
