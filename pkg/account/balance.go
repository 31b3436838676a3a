package account

import (
	"fmt"
	"maps"

	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

type BalanceError struct {
	Symbol string
	Field  string
	Value  fixed.Point
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s balance of %s cannot be negative: %s", e.Field, e.Symbol, e.Value)
}

// Balance is the ledger cell of one symbol. MarginReserve is the collateral
// held in this symbol for shorts of the keyed asset; MarginShortfall is how
// much of that reserve was borrowed back while free funds were exhausted.
type Balance struct {
	Symbol          string                 `json:"symbol"`
	Free            fixed.Point            `json:"free"`
	Locked          fixed.Point            `json:"locked"`
	Shorted         fixed.Point            `json:"shorted"`
	MarginReserve   map[string]fixed.Point `json:"margin_reserve,omitempty"`
	MarginShortfall map[string]fixed.Point `json:"margin_shortfall,omitempty"`
}

func NewBalance(symbol string) *Balance {
	return &Balance{
		Symbol:          symbol,
		MarginReserve:   make(map[string]fixed.Point),
		MarginShortfall: make(map[string]fixed.Point),
	}
}

func (b Balance) Total() fixed.Point {
	return b.Free.Add(b.Locked)
}

func (b Balance) TotalMarginReserve() fixed.Point {
	total := fixed.Zero
	for _, v := range b.MarginReserve {
		total = total.Add(v)
	}
	return total
}

func (b Balance) GetMarginReserve(asset string) fixed.Point {
	return b.MarginReserve[asset]
}

func (b Balance) GetMarginShortfall(asset string) fixed.Point {
	return b.MarginShortfall[asset]
}

func (b *Balance) SetFree(v fixed.Point) error {
	v, err := b.normalize("free", v)
	if err != nil {
		return err
	}
	b.Free = v
	return nil
}

func (b *Balance) SetLocked(v fixed.Point) error {
	v, err := b.normalize("locked", v)
	if err != nil {
		return err
	}
	b.Locked = v
	return nil
}

func (b *Balance) SetShorted(v fixed.Point) error {
	v, err := b.normalize("shorted", v)
	if err != nil {
		return err
	}
	b.Shorted = v
	return nil
}

func (b *Balance) SetMarginReserve(asset string, v fixed.Point) error {
	v, err := b.normalize("margin reserve["+asset+"]", v)
	if err != nil {
		return err
	}
	setOrDelete(b.MarginReserve, asset, v)
	return nil
}

func (b *Balance) SetMarginShortfall(asset string, v fixed.Point) error {
	v, err := b.normalize("margin shortfall["+asset+"]", v)
	if err != nil {
		return err
	}
	setOrDelete(b.MarginShortfall, asset, v)
	return nil
}

func (b Balance) Clone() Balance {
	c := b
	c.MarginReserve = maps.Clone(b.MarginReserve)
	c.MarginShortfall = maps.Clone(b.MarginShortfall)
	return c
}

func (b Balance) String() string {
	return fmt.Sprintf("%s{free=%s, locked=%s, shorted=%s, margin=%v}", b.Symbol, b.Free, b.Locked, b.Shorted, b.MarginReserve)
}

// normalize rounds v to fixed.Scale. Values within EffectivelyZero below
// zero clamp to zero, anything lower is an error.
func (b *Balance) normalize(field string, v fixed.Point) (fixed.Point, error) {
	v = v.Round(fixed.Scale)
	if !v.IsNeg() {
		return v, nil
	}
	if v.Gte(fixed.EffectivelyZero.Neg()) {
		return fixed.Zero, nil
	}
	return fixed.Zero, &BalanceError{Symbol: b.Symbol, Field: field, Value: v}
}

func setOrDelete(m map[string]fixed.Point, key string, v fixed.Point) {
	if v.IsZero() {
		delete(m, key)
		return
	}
	m[key] = v
}
