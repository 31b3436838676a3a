package account

import (
	"sort"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// Tx is the view of the ledger handed to Update callbacks. It must not be
// used after the callback returns.
type Tx struct {
	ledger  *Ledger
	touched map[string]struct{}
	saved   map[string]savedCell
}

// savedCell is the state of a balance before the first mutation of a
// transaction. A nil balance means the symbol was unknown.
type savedCell struct {
	balance *Balance
	updates uint64
}

func newTx(l *Ledger) *Tx {
	return &Tx{
		ledger:  l,
		touched: make(map[string]struct{}),
		saved:   make(map[string]savedCell),
	}
}

func (tx *Tx) ReferenceCurrency() string       { return tx.ledger.referenceCurrency }
func (tx *Tx) MarginReserveFactor() fixed.Point { return tx.ledger.marginReserveFactor }

func (tx *Tx) Balance(symbol string) Balance { return tx.ledger.balance(symbol).Clone() }

func (tx *Tx) Free(symbol string) fixed.Point    { return tx.ledger.balance(symbol).Free }
func (tx *Tx) Locked(symbol string) fixed.Point  { return tx.ledger.balance(symbol).Locked }
func (tx *Tx) Shorted(symbol string) fixed.Point { return tx.ledger.balance(symbol).Shorted }

func (tx *Tx) MarginReserve(funds, asset string) fixed.Point {
	return tx.ledger.balance(funds).GetMarginReserve(asset)
}

func (tx *Tx) MarginShortfall(funds, asset string) fixed.Point {
	return tx.ledger.balance(funds).GetMarginShortfall(asset)
}

func (tx *Tx) Equity(prices map[string]fixed.Point) fixed.Point {
	return tx.ledger.equity(prices)
}

// Touched lists the symbols mutated so far, ordered.
func (tx *Tx) Touched() []string {
	out := make([]string, 0, len(tx.touched))
	for symbol := range tx.touched {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// AvailableFunds is the free amount of funds, plus the margin reserved
// for asset when the funds are used to cover a short.
func (tx *Tx) AvailableFunds(funds, asset string, isShortCover bool) fixed.Point {
	b := tx.ledger.balance(funds)
	if isShortCover {
		return b.Free.Add(b.GetMarginReserve(asset))
	}
	return b.Free
}

// AvailableAssets is the free amount of asset, or the shorted amount when
// the caller is entering a short.
func (tx *Tx) AvailableAssets(asset string, isShortEntry bool) fixed.Point {
	b := tx.ledger.balance(asset)
	if isShortEntry {
		return b.Shorted
	}
	return b.Free
}

func (tx *Tx) SetFree(symbol string, v fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetFree(v) })
}

func (tx *Tx) SetLocked(symbol string, v fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetLocked(v) })
}

func (tx *Tx) SetShorted(symbol string, v fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetShorted(v) })
}

func (tx *Tx) AddFree(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetFree(b.Free.Add(amount)) })
}

func (tx *Tx) SubtractFree(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetFree(b.Free.Sub(amount)) })
}

func (tx *Tx) AddLocked(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetLocked(b.Locked.Add(amount)) })
}

func (tx *Tx) SubtractLocked(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetLocked(b.Locked.Sub(amount)) })
}

func (tx *Tx) AddShorted(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetShorted(b.Shorted.Add(amount)) })
}

func (tx *Tx) SubtractShorted(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error { return b.SetShorted(b.Shorted.Sub(amount)) })
}

func (tx *Tx) AddMarginReserve(funds, asset string, amount fixed.Point) error {
	return tx.mutate(funds, func(b *Balance) error {
		return b.SetMarginReserve(asset, b.GetMarginReserve(asset).Add(amount))
	})
}

// Lock moves amount of symbol from free to locked.
func (tx *Tx) Lock(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error {
		if err := b.SetFree(b.Free.Sub(amount)); err != nil {
			return err
		}
		return b.SetLocked(b.Locked.Add(amount))
	})
}

// Unlock moves amount of symbol from locked back to free.
func (tx *Tx) Unlock(symbol string, amount fixed.Point) error {
	return tx.mutate(symbol, func(b *Balance) error {
		if err := b.SetLocked(b.Locked.Sub(amount)); err != nil {
			return err
		}
		return b.SetFree(b.Free.Add(amount))
	})
}

// Debit takes amount out of free funds and, once those are exhausted, out of
// the margin reserved for asset. Whatever the reserve had to cover is
// recorded as a shortfall.
func (tx *Tx) Debit(funds, asset string, amount fixed.Point) error {
	return tx.mutate(funds, func(b *Balance) error {
		if b.Free.Gte(amount) || asset == "" {
			return b.SetFree(b.Free.Sub(amount))
		}

		rest := amount.Sub(b.Free)
		reserve := b.GetMarginReserve(asset)
		if reserve.Lt(rest.Sub(fixed.EffectivelyZero)) {
			return &BalanceError{Symbol: funds, Field: "free", Value: b.Free.Add(reserve).Sub(amount)}
		}
		if err := b.SetFree(fixed.Zero); err != nil {
			return err
		}
		if err := b.SetMarginReserve(asset, reserve.Sub(rest)); err != nil {
			return err
		}
		return b.SetMarginShortfall(asset, b.GetMarginShortfall(asset).Add(rest))
	})
}

// DebitMarginReserve pays amount out of the margin reserved for asset, taking
// whatever the reserve cannot cover from free funds.
func (tx *Tx) DebitMarginReserve(funds, asset string, amount fixed.Point) error {
	return tx.mutate(funds, func(b *Balance) error {
		reserve := b.GetMarginReserve(asset)
		if reserve.Gte(amount) {
			return b.SetMarginReserve(asset, reserve.Sub(amount))
		}
		if err := b.SetMarginReserve(asset, fixed.Zero); err != nil {
			return err
		}
		return b.SetFree(b.Free.Sub(amount.Sub(reserve)))
	})
}

// ApplyMarginReserve marks the short of asset to market: the reserve held in
// funds becomes factor × notional and the difference moves from or to free.
// When free funds cannot pay for the increase and borrow is set, the reserve
// grows by what is available and the remainder is recorded as shortfall.
func (tx *Tx) ApplyMarginReserve(funds, asset string, notional fixed.Point, borrow bool) error {
	required := tx.ledger.marginReserveFactor.Mul(notional).Round(fixed.Scale)

	return tx.mutate(funds, func(b *Balance) error {
		current := b.GetMarginReserve(asset)
		delta := required.Sub(current)

		if !delta.IsPos() || b.Free.Gte(delta) {
			if err := b.SetFree(b.Free.Sub(delta)); err != nil {
				return err
			}
			if err := b.SetMarginReserve(asset, required); err != nil {
				return err
			}
			return b.SetMarginShortfall(asset, fixed.Zero)
		}

		if !borrow {
			return &BalanceError{Symbol: funds, Field: "free", Value: b.Free.Sub(delta)}
		}

		reserve := current.Add(b.Free)
		tx.ledger.logger.Debug("margin reserve short of funds",
			zap.String("funds", funds),
			zap.String("asset", asset),
			zap.Stringer("required", required),
			zap.Stringer("reserve", reserve))

		if err := b.SetFree(fixed.Zero); err != nil {
			return err
		}
		if err := b.SetMarginReserve(asset, reserve); err != nil {
			return err
		}
		return b.SetMarginShortfall(asset, required.Sub(reserve))
	})
}

func (tx *Tx) mutate(symbol string, fn func(*Balance) error) error {
	if symbol == "" {
		return ErrBlankSymbol
	}
	tx.save(symbol)
	if err := fn(tx.ledger.balance(symbol)); err != nil {
		return err
	}
	tx.ledger.updates[symbol]++
	tx.touched[symbol] = struct{}{}
	return nil
}

func (tx *Tx) save(symbol string) {
	if _, ok := tx.saved[symbol]; ok {
		return
	}
	cell := savedCell{updates: tx.ledger.updates[symbol]}
	if b, ok := tx.ledger.balances[symbol]; ok {
		c := b.Clone()
		cell.balance = &c
	}
	tx.saved[symbol] = cell
}

// rollback puts every balance mutated by the transaction back the way it was.
func (tx *Tx) rollback() {
	l := tx.ledger
	for symbol, cell := range tx.saved {
		if cell.balance == nil {
			delete(l.balances, symbol)
		} else {
			*l.balance(symbol) = *cell.balance
		}
		if cell.updates == 0 {
			delete(l.updates, symbol)
		} else {
			l.updates[symbol] = cell.updates
		}
	}
	clear(tx.touched)
}
