package sandbox

import (
	"github.com/redtramp/univocity-trader/pkg/account"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// reserve decides whether the account can fund the order and locks what it
// needs. A non-empty reason means the order is not admissible and nothing was
// touched.
func (e *Engine) reserve(tx *account.Tx, en *entry) (string, error) {
	o := &en.order
	notional := o.TotalOrderAmount()
	fee := e.fees.Fee(notional, o.Type, o.Side)

	switch {
	case o.IsLong() && o.IsBuy():
		available := tx.AvailableFunds(o.FundsSymbol, o.AssetsSymbol, false)
		if available.Sub(fee).Lt(notional.Sub(fixed.EffectivelyZero)) {
			return "insufficient " + o.FundsSymbol, nil
		}
		return "", e.lock(tx, en, o.FundsSymbol, notional.Add(fee).Min(available))

	case o.IsLong() && o.IsSell():
		available := tx.AvailableAssets(o.AssetsSymbol, false)
		if available.IsPos() && available.Lt(o.Quantity) {
			shortfall := fixed.One.Sub(available.Div(o.Quantity))
			if shortfall.Lt(e.tolerance) {
				o.Quantity = available
			}
		}
		if available.Lt(o.Quantity) {
			return "insufficient " + o.AssetsSymbol, nil
		}
		return "", e.lock(tx, en, o.AssetsSymbol, o.Quantity)

	case o.IsShort() && o.IsSell():
		margin := tx.MarginReserveFactor().Sub(fixed.One).Mul(notional).Add(fee).Round(fixed.Scale)
		if tx.AvailableFunds(o.FundsSymbol, o.AssetsSymbol, false).Lt(margin) {
			return "insufficient margin in " + o.FundsSymbol, nil
		}
		return "", e.lock(tx, en, o.FundsSymbol, margin)

	default:
		available := tx.AvailableFunds(o.FundsSymbol, o.AssetsSymbol, true)
		if available.Lt(notional.Add(fee)) {
			return "insufficient " + o.FundsSymbol + " to cover short", nil
		}
		return "", nil
	}
}

func (e *Engine) lock(tx *account.Tx, en *entry, symbol string, amount fixed.Point) error {
	amount = amount.Round(fixed.Scale)
	if err := tx.Lock(symbol, amount); err != nil {
		return err
	}
	en.lockSymbol = symbol
	en.locked = amount
	return nil
}

// settle books one fill of quantity units at price.
func (e *Engine) settle(tx *account.Tx, en *entry, quantity, traded, fee fixed.Point, candle common.Candle) error {
	o := &en.order
	factor := tx.MarginReserveFactor()

	switch {
	case o.IsLong() && o.IsBuy():
		var err error
		if o.HasAttachments() {
			err = tx.AddLocked(o.AssetsSymbol, quantity)
		} else {
			err = tx.AddFree(o.AssetsSymbol, quantity)
		}
		if err != nil {
			return err
		}
		return e.consume(tx, en, traded.Add(fee))

	case o.IsLong() && o.IsSell():
		var err error
		if en.fromPool {
			err = tx.SubtractLocked(o.AssetsSymbol, quantity)
		} else {
			err = e.consume(tx, en, quantity)
		}
		if err != nil {
			return err
		}
		if err := tx.AddFree(o.FundsSymbol, traded); err != nil {
			return err
		}
		return tx.SubtractFree(o.FundsSymbol, fee)

	case o.IsShort() && o.IsSell():
		margin := factor.Sub(fixed.One).Mul(traded).Round(fixed.Scale)
		if err := e.consume(tx, en, margin.Add(fee)); err != nil {
			return err
		}
		if err := tx.AddMarginReserve(o.FundsSymbol, o.AssetsSymbol, factor.Mul(traded).Round(fixed.Scale)); err != nil {
			return err
		}
		if err := tx.AddShorted(o.AssetsSymbol, quantity); err != nil {
			return err
		}
		return e.markToMarket(tx, o, candle.Close)

	default:
		covered := quantity.Min(tx.Shorted(o.AssetsSymbol))
		if err := tx.SubtractShorted(o.AssetsSymbol, covered); err != nil {
			return err
		}
		if excess := quantity.Sub(covered); excess.IsPos() {
			if err := tx.AddFree(o.AssetsSymbol, excess); err != nil {
				return err
			}
		}
		if err := tx.DebitMarginReserve(o.FundsSymbol, o.AssetsSymbol, traded); err != nil {
			return err
		}
		if err := tx.Debit(o.FundsSymbol, o.AssetsSymbol, fee); err != nil {
			return err
		}
		return e.markToMarket(tx, o, candle.Close)
	}
}

// consume pays amount out of the order's own lock. Whatever the lock no
// longer covers is debited from free funds.
func (e *Engine) consume(tx *account.Tx, en *entry, amount fixed.Point) error {
	used := amount.Min(en.locked)
	if used.IsPos() {
		if err := tx.SubtractLocked(en.lockSymbol, used); err != nil {
			return err
		}
		en.locked = en.locked.Sub(used).Round(fixed.Scale)
	}
	if rest := amount.Sub(used); rest.IsPos() {
		symbol := en.lockSymbol
		if symbol == "" {
			symbol = en.order.FundsSymbol
		}
		return tx.Debit(symbol, en.order.AssetsSymbol, rest)
	}
	return nil
}

// affordable caps quantity at what the order's lock plus free funds can pay
// for at price. Only orders that spend funds are capped.
func (e *Engine) affordable(tx *account.Tx, en *entry, quantity, price fixed.Point) fixed.Point {
	o := &en.order
	if !(o.IsLong() && o.IsBuy()) && !(o.IsShort() && o.IsSell()) {
		return quantity
	}

	budget := en.locked.Add(tx.Free(o.FundsSymbol))
	cost := e.cost(tx, o, quantity, price)
	if cost.Lte(budget) {
		return quantity
	}
	if !budget.IsPos() {
		return fixed.Zero
	}

	capped := quantity.Mul(budget).Div(cost).Round(fixed.Scale)
	if e.cost(tx, o, capped, price).Gt(budget) {
		capped = capped.Sub(fixed.EffectivelyZero)
	}
	return capped.Max(fixed.Zero)
}

// cost is what a fill of quantity at price takes out of the funds balance.
func (e *Engine) cost(tx *account.Tx, o *common.Order, quantity, price fixed.Point) fixed.Point {
	traded := quantity.Mul(price).Round(fixed.Scale)
	fee := e.fees.Fee(traded, o.Type, o.Side).Round(fixed.Scale)
	if o.IsShort() {
		return tx.MarginReserveFactor().Sub(fixed.One).Mul(traded).Add(fee).Round(fixed.Scale)
	}
	return traded.Add(fee)
}

// release returns what is left of the order's own lock.
func (e *Engine) release(tx *account.Tx, en *entry) error {
	if !en.locked.IsPos() {
		return nil
	}
	if err := tx.Unlock(en.lockSymbol, en.locked); err != nil {
		return err
	}
	en.locked = fixed.Zero
	return nil
}

// reconcileFees charges or refunds the difference between the fees accrued
// fill by fill and the fee on the whole traded amount.
func (e *Engine) reconcileFees(tx *account.Tx, en *entry) error {
	o := &en.order
	if !o.ExecutedQuantity.IsPos() {
		return nil
	}

	total := e.fees.FeeOnFilled(o.Clone()).Round(fixed.Scale)
	diff := total.Sub(o.FeesPaid).Round(fixed.Scale)
	if diff.IsZero() {
		return nil
	}

	var err error
	if diff.IsPos() {
		err = tx.Debit(o.FundsSymbol, o.AssetsSymbol, diff)
	} else {
		err = tx.AddFree(o.FundsSymbol, diff.Neg())
	}
	if err != nil {
		return err
	}
	o.FeesPaid = total
	return nil
}

// markToMarket re-prices the reserve for the short of o's asset at price.
func (e *Engine) markToMarket(tx *account.Tx, o *common.Order, price fixed.Point) error {
	notional := tx.Shorted(o.AssetsSymbol).Mul(price).Round(fixed.Scale)
	return tx.ApplyMarginReserve(o.FundsSymbol, o.AssetsSymbol, notional, e.borrow)
}
