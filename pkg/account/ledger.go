package account

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

var (
	ErrBlankSymbol          = errors.New("symbol cannot be blank")
	ErrInvalidReserveFactor = errors.New("margin reserve factor must be greater than one")
)

var defaultMarginReserveFactor = fixed.MustFromString("1.5")

type Option func(*Ledger)

func WithMarginReserveFactor(factor fixed.Point) Option {
	return func(l *Ledger) {
		l.marginReserveFactor = factor
	}
}

// Ledger holds every balance of one account. Reads take the account lock,
// mutations go through Update so they serialize with each other.
type Ledger struct {
	mu     sync.Mutex
	logger *zap.Logger

	referenceCurrency   string
	marginReserveFactor fixed.Point
	limits              limits

	balances map[string]*Balance
	updates  map[string]uint64
}

func NewLedger(logger *zap.Logger, referenceCurrency string, options ...Option) (*Ledger, error) {
	if referenceCurrency == "" {
		return nil, ErrBlankSymbol
	}

	l := &Ledger{
		logger:              logger,
		referenceCurrency:   referenceCurrency,
		marginReserveFactor: defaultMarginReserveFactor,
		balances:            make(map[string]*Balance),
		updates:             make(map[string]uint64),
	}

	for _, option := range options {
		option(l)
	}

	if l.marginReserveFactor.Lte(fixed.One) {
		return nil, ErrInvalidReserveFactor
	}

	return l, nil
}

func (l *Ledger) ReferenceCurrency() string       { return l.referenceCurrency }
func (l *Ledger) MarginReserveFactor() fixed.Point { return l.marginReserveFactor }

// Update runs fn with exclusive access to the account. When fn fails every
// balance it changed is restored.
func (l *Ledger) Update(fn func(*Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(l)
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (l *Ledger) SetAmount(symbol string, free fixed.Point) error {
	return l.Update(func(tx *Tx) error {
		return tx.SetFree(symbol, free)
	})
}

func (l *Ledger) Balance(symbol string) Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(symbol).Clone()
}

// Balances returns a snapshot of every known balance ordered by symbol.
func (l *Ledger) Balances() []Balance {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Balance, 0, len(l.balances))
	for _, b := range l.balances {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) Amount(symbol string) fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(symbol).Free
}

func (l *Ledger) MarginReserve(funds, asset string) fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(funds).GetMarginReserve(asset)
}

func (l *Ledger) UpdateCount(symbol string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates[symbol]
}

// Equity values the account in the reference currency. prices maps a symbol
// to its price in the reference currency; symbols without a price are skipped.
func (l *Ledger) Equity(prices map[string]fixed.Point) fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equity(prices)
}

func (l *Ledger) equity(prices map[string]fixed.Point) fixed.Point {
	total := fixed.Zero
	for symbol, b := range l.balances {
		price, ok := l.price(symbol, prices)
		if !ok {
			continue
		}
		value := b.Total().Add(b.TotalMarginReserve()).Sub(b.Shorted)
		total = total.Add(value.Mul(price))
	}
	return total.Round(fixed.Scale)
}

func (l *Ledger) price(symbol string, prices map[string]fixed.Point) (fixed.Point, bool) {
	if symbol == l.referenceCurrency {
		return fixed.One, true
	}
	p, ok := prices[symbol]
	return p, ok
}

func (l *Ledger) balance(symbol string) *Balance {
	b, ok := l.balances[symbol]
	if !ok {
		b = NewBalance(symbol)
		l.balances[symbol] = b
	}
	return b
}
