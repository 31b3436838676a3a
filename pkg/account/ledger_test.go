package account

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

func p(s string) fixed.Point { return fixed.MustFromString(s) }

func newTestLedger(t *testing.T, options ...Option) *Ledger {
	l, err := NewLedger(zaptest.NewLogger(t), "USDT", options...)
	require.NoError(t, err)
	return l
}

func TestNewLedger(t *testing.T) {
	_, err := NewLedger(zaptest.NewLogger(t), "")
	assert.ErrorIs(t, err, ErrBlankSymbol)

	_, err = NewLedger(zaptest.NewLogger(t), "USDT", WithMarginReserveFactor(fixed.One))
	assert.ErrorIs(t, err, ErrInvalidReserveFactor)

	l := newTestLedger(t)
	assert.Equal(t, "1.5", l.MarginReserveFactor().String())
	assert.Equal(t, "USDT", l.ReferenceCurrency())
}

func TestLedger_LockUnlock(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetAmount("USDT", p("100")))

	err := l.Update(func(tx *Tx) error {
		if err := tx.Lock("USDT", p("40.04")); err != nil {
			return err
		}
		return tx.Unlock("USDT", p("10"))
	})
	require.NoError(t, err)

	b := l.Balance("USDT")
	assert.Equal(t, "69.96", b.Free.String())
	assert.Equal(t, "30.04", b.Locked.String())

	err = l.Update(func(tx *Tx) error {
		return tx.Lock("USDT", p("70"))
	})
	var balanceErr *BalanceError
	require.True(t, errors.As(err, &balanceErr))
	assert.Equal(t, "USDT", balanceErr.Symbol)

	b = l.Balance("USDT")
	assert.Equal(t, "69.96", b.Free.String())
	assert.Equal(t, "30.04", b.Locked.String())
}

func TestLedger_UpdateCount(t *testing.T) {
	l := newTestLedger(t)
	other := newTestLedger(t)

	require.NoError(t, l.SetAmount("USDT", p("100")))
	require.NoError(t, l.Update(func(tx *Tx) error {
		return tx.Lock("USDT", p("1"))
	}))
	assert.Error(t, l.Update(func(tx *Tx) error {
		return tx.SubtractFree("USDT", p("1000"))
	}))

	assert.Equal(t, uint64(2), l.UpdateCount("USDT"))
	assert.Equal(t, uint64(0), l.UpdateCount("ADA"))
	assert.Equal(t, uint64(0), other.UpdateCount("USDT"))
}

func TestLedger_UpdateRollsBack(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetAmount("USDT", p("100")))
	require.NoError(t, l.Update(func(tx *Tx) error {
		return tx.Lock("USDT", p("40"))
	}))
	updates := l.UpdateCount("USDT")

	err := l.Update(func(tx *Tx) error {
		if err := tx.SubtractLocked("USDT", p("40")); err != nil {
			return err
		}
		if err := tx.AddFree("ADA", p("40")); err != nil {
			return err
		}
		return tx.SubtractFree("USDT", p("61"))
	})
	var balanceErr *BalanceError
	require.True(t, errors.As(err, &balanceErr))

	usdt := l.Balance("USDT")
	assert.Equal(t, "60", usdt.Free.String())
	assert.Equal(t, "40", usdt.Locked.String())
	assert.Equal(t, updates, l.UpdateCount("USDT"))
	assert.Zero(t, l.UpdateCount("ADA"))
	assert.Len(t, l.Balances(), 1)
}

func TestLedger_Touched(t *testing.T) {
	l := newTestLedger(t)

	var touched []string
	require.NoError(t, l.Update(func(tx *Tx) error {
		if err := tx.AddFree("USDT", p("1")); err != nil {
			return err
		}
		if err := tx.AddShorted("ADA", p("3")); err != nil {
			return err
		}
		if err := tx.AddMarginReserve("USDT", "ADA", p("2")); err != nil {
			return err
		}
		touched = tx.Touched()
		return nil
	}))

	assert.Equal(t, []string{"ADA", "USDT"}, touched)
}

func TestLedger_AvailableFunds(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Update(func(tx *Tx) error {
		if err := tx.SetFree("USDT", p("80")); err != nil {
			return err
		}
		if err := tx.SetFree("ADA", p("5")); err != nil {
			return err
		}
		if err := tx.SetShorted("ADA", p("40")); err != nil {
			return err
		}
		return tx.AddMarginReserve("USDT", "ADA", p("60"))
	}))

	require.NoError(t, l.Update(func(tx *Tx) error {
		assert.Equal(t, "80", tx.AvailableFunds("USDT", "ADA", false).String())
		assert.Equal(t, "140", tx.AvailableFunds("USDT", "ADA", true).String())
		assert.Equal(t, "5", tx.AvailableAssets("ADA", false).String())
		assert.Equal(t, "40", tx.AvailableAssets("ADA", true).String())
		return nil
	}))
}

func TestLedger_Debit(t *testing.T) {
	tests := []struct {
		name      string
		free      string
		reserve   string
		amount    string
		free2     string
		reserve2  string
		shortfall string
		wantErr   bool
	}{
		{"from free", "10", "60", "4", "6", "60", "0", false},
		{"spills into reserve", "1", "60", "4", "0", "57", "3", false},
		{"insufficient", "1", "2", "4", "1", "2", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			require.NoError(t, l.Update(func(tx *Tx) error {
				if err := tx.SetFree("USDT", p(tt.free)); err != nil {
					return err
				}
				return tx.AddMarginReserve("USDT", "ADA", p(tt.reserve))
			}))

			err := l.Update(func(tx *Tx) error {
				return tx.Debit("USDT", "ADA", p(tt.amount))
			})
			if tt.wantErr {
				var balanceErr *BalanceError
				assert.True(t, errors.As(err, &balanceErr))
			} else {
				require.NoError(t, err)
			}

			b := l.Balance("USDT")
			assert.Equal(t, tt.free2, b.Free.String())
			assert.Equal(t, tt.reserve2, b.GetMarginReserve("ADA").String())
			assert.Equal(t, tt.shortfall, b.GetMarginShortfall("ADA").String())
		})
	}
}

func TestLedger_DebitMarginReserve(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Update(func(tx *Tx) error {
		if err := tx.SetFree("USDT", p("10")); err != nil {
			return err
		}
		return tx.AddMarginReserve("USDT", "ADA", p("6"))
	}))

	require.NoError(t, l.Update(func(tx *Tx) error {
		return tx.DebitMarginReserve("USDT", "ADA", p("8"))
	}))

	b := l.Balance("USDT")
	assert.Equal(t, "8", b.Free.String())
	assert.True(t, b.GetMarginReserve("ADA").IsZero())
}

func TestLedger_ApplyMarginReserve(t *testing.T) {
	tests := []struct {
		name      string
		free      string
		reserve   string
		notional  string
		borrow    bool
		free2     string
		reserve2  string
		shortfall string
		wantErr   bool
	}{
		{"price up takes from free", "80", "60", "44", true, "74", "66", "0", false},
		{"price down releases to free", "80", "60", "36", true, "86", "54", "0", false},
		{"position closed releases all", "80", "60", "0", true, "140", "0", "0", false},
		{"borrows from reserve", "2", "60", "44", true, "0", "62", "4", false},
		{"fails without borrowing", "2", "60", "44", false, "2", "60", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			require.NoError(t, l.Update(func(tx *Tx) error {
				if err := tx.SetFree("USDT", p(tt.free)); err != nil {
					return err
				}
				return tx.AddMarginReserve("USDT", "ADA", p(tt.reserve))
			}))

			err := l.Update(func(tx *Tx) error {
				return tx.ApplyMarginReserve("USDT", "ADA", p(tt.notional), tt.borrow)
			})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			b := l.Balance("USDT")
			assert.Equal(t, tt.free2, b.Free.String())
			assert.Equal(t, tt.reserve2, b.GetMarginReserve("ADA").String())
			assert.Equal(t, tt.shortfall, b.GetMarginShortfall("ADA").String())
		})
	}
}

func TestLedger_Equity(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Update(func(tx *Tx) error {
		if err := tx.SetFree("USDT", p("79.96")); err != nil {
			return err
		}
		if err := tx.AddMarginReserve("USDT", "ADA", p("60")); err != nil {
			return err
		}
		if err := tx.SetShorted("ADA", p("40")); err != nil {
			return err
		}
		return tx.SetFree("BNB", p("1"))
	}))

	prices := map[string]fixed.Point{"ADA": fixed.One, "BNB": p("50")}
	assert.Equal(t, "149.96", l.Equity(prices).String())

	delete(prices, "BNB")
	assert.Equal(t, "99.96", l.Equity(prices).String())
}

func TestLedger_Balances(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetAmount("USDT", p("1")))
	require.NoError(t, l.SetAmount("ADA", p("2")))

	balances := l.Balances()
	require.Len(t, balances, 2)
	assert.Equal(t, "ADA", balances[0].Symbol)
	assert.Equal(t, "USDT", balances[1].Symbol)
	assert.Equal(t, "2", l.Amount("ADA").String())
}

func TestLedger_ConcurrentUpdates(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetAmount("USDT", p("0")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Update(func(tx *Tx) error {
				return tx.AddFree("USDT", p("0.1"))
			}))
		}()
	}
	wg.Wait()

	assert.Equal(t, "5", l.Amount("USDT").String())
}

type flatFee struct{ rate fixed.Point }

func (f flatFee) Fee(amount fixed.Point, _ common.OrderType, _ common.OrderSide) fixed.Point {
	return amount.Mul(f.rate).Round(fixed.Scale)
}
