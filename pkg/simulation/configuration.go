package simulation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/account"
	"github.com/redtramp/univocity-trader/pkg/exchange/fee"
	"github.com/redtramp/univocity-trader/pkg/exchange/fill"
	"github.com/redtramp/univocity-trader/pkg/exchange/sandbox"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

var (
	ErrNoDataSource     = errors.New("no data source configured")
	ErrNoSymbols        = errors.New("no symbols configured")
	ErrUnknownFillModel = errors.New("unknown fill model")
	ErrInvalidPeriod    = errors.New("replay end is before its start")
)

// openEnd stands in for a missing replay end. It stays within the range of
// UnixNano and of DuckDB timestamps.
var openEnd = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	FillModelImmediate = "immediate"
	FillModelSlippage  = "slippage"
)

// Configuration describes one replay. Amounts are decimal strings so they
// keep their precision through YAML and environment decoding. Symbol keys
// of maps are upper-cased since the config loader lower-cases them.
type Configuration struct {
	ReferenceCurrency     string                  `mapstructure:"reference_currency"`
	InitialBalances       map[string]string       `mapstructure:"initial_balances"`
	MarginReserveFactor   string                  `mapstructure:"margin_reserve_factor"`
	QuantityTolerance     string                  `mapstructure:"quantity_tolerance"`
	NegativeFreeBorrowing bool                    `mapstructure:"negative_free_borrowing"`
	Allocation            AllocationConfiguration `mapstructure:"allocation"`
	Fees                  FeeConfiguration        `mapstructure:"fees"`
	Fill                  FillConfiguration       `mapstructure:"fill"`
	Data                  DataConfiguration       `mapstructure:"data"`
	EventCapacity         int                     `mapstructure:"event_capacity"`
	MetricsAddress        string                  `mapstructure:"metrics_address"`
	Journal               JournalConfiguration    `mapstructure:"journal"`
}

// AllocationConfiguration limits how much of the account a scheduled order
// without a quantity may spend. Empty values leave a limit unset.
type AllocationConfiguration struct {
	MaxAmountPerAsset     string `mapstructure:"max_amount_per_asset"`
	MaxPercentagePerAsset string `mapstructure:"max_percentage_per_asset"`
	MaxAmountPerTrade     string `mapstructure:"max_amount_per_trade"`
	MaxPercentagePerTrade string `mapstructure:"max_percentage_per_trade"`
	MinAmountPerTrade     string `mapstructure:"min_amount_per_trade"`
}

type FeeConfiguration struct {
	Maker string `mapstructure:"maker"`
	Taker string `mapstructure:"taker"`
}

type FillConfiguration struct {
	Model string `mapstructure:"model"`
	Ratio string `mapstructure:"ratio"`
}

type DataConfiguration struct {
	DuckDB  string            `mapstructure:"duckdb"`
	Binary  map[string]string `mapstructure:"binary"`
	Symbols []string          `mapstructure:"symbols"`
	From    string            `mapstructure:"from"`
	To      string            `mapstructure:"to"`
	Period  time.Duration     `mapstructure:"period"`
}

type JournalConfiguration struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		ReferenceCurrency:     "USDT",
		InitialBalances:       map[string]string{},
		MarginReserveFactor:   "1.5",
		QuantityTolerance:     "0.0001",
		NegativeFreeBorrowing: true,
		Fees:                  FeeConfiguration{Maker: "0.1", Taker: "0.1"},
		Fill:                  FillConfiguration{Model: FillModelImmediate},
		EventCapacity:         1024,
	}
}

func (c Configuration) Validate() error {
	if strings.TrimSpace(c.ReferenceCurrency) == "" {
		return account.ErrBlankSymbol
	}
	if c.Data.DuckDB == "" && len(c.Data.Binary) == 0 {
		return ErrNoDataSource
	}
	if len(c.Symbols()) == 0 {
		return ErrNoSymbols
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	if c.Fill.Model != FillModelImmediate && c.Fill.Model != FillModelSlippage {
		return fmt.Errorf("%w: %q", ErrUnknownFillModel, c.Fill.Model)
	}
	return nil
}

// Symbols returns the pairs to replay. Without an explicit list every
// binary file is replayed.
func (c Configuration) Symbols() []string {
	var out []string
	if len(c.Data.Symbols) > 0 {
		for _, s := range c.Data.Symbols {
			out = append(out, strings.ToUpper(s))
		}
		return out
	}
	for s := range c.Data.Binary {
		out = append(out, strings.ToUpper(s))
	}
	return out
}

// BinaryFile returns the candle file configured for symbol.
func (c Configuration) BinaryFile(symbol string) (string, bool) {
	for s, path := range c.Data.Binary {
		if strings.EqualFold(s, symbol) {
			return path, true
		}
	}
	return "", false
}

// Window returns the replay interval. A missing bound is open.
func (c Configuration) Window() (time.Time, time.Time, error) {
	from, to := time.Unix(0, 0).UTC(), openEnd

	var err error
	if c.Data.From != "" {
		if from, err = time.Parse(time.RFC3339, c.Data.From); err != nil {
			return from, to, fmt.Errorf("error parsing replay start: %w", err)
		}
	}
	if c.Data.To != "" {
		if to, err = time.Parse(time.RFC3339, c.Data.To); err != nil {
			return from, to, fmt.Errorf("error parsing replay end: %w", err)
		}
	}
	if to.Before(from) {
		return from, to, ErrInvalidPeriod
	}
	return from, to, nil
}

// NewLedger builds the account with its allocation limits and seeds the
// initial free balances.
func (c Configuration) NewLedger(logger *zap.Logger) (*account.Ledger, error) {
	factor, err := parse("margin reserve factor", c.MarginReserveFactor)
	if err != nil {
		return nil, err
	}

	options, err := c.Allocation.options()
	if err != nil {
		return nil, err
	}
	options = append(options, account.WithMarginReserveFactor(factor))

	ledger, err := account.NewLedger(logger, strings.ToUpper(c.ReferenceCurrency), options...)
	if err != nil {
		return nil, err
	}

	for symbol, amount := range c.InitialBalances {
		v, err := parse("initial balance of "+symbol, amount)
		if err != nil {
			return nil, err
		}
		if err := ledger.SetAmount(strings.ToUpper(symbol), v); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

func (a AllocationConfiguration) options() ([]account.Option, error) {
	limits := []struct {
		name   string
		value  string
		option func(fixed.Point) account.Option
	}{
		{"max amount per asset", a.MaxAmountPerAsset, account.WithMaxInvestmentAmountPerAsset},
		{"max percentage per asset", a.MaxPercentagePerAsset, account.WithMaxInvestmentPercentagePerAsset},
		{"max amount per trade", a.MaxAmountPerTrade, account.WithMaxInvestmentAmountPerTrade},
		{"max percentage per trade", a.MaxPercentagePerTrade, account.WithMaxInvestmentPercentagePerTrade},
		{"min amount per trade", a.MinAmountPerTrade, account.WithMinInvestmentAmountPerTrade},
	}

	var out []account.Option
	for _, limit := range limits {
		if limit.value == "" {
			continue
		}
		v, err := parse(limit.name, limit.value)
		if err != nil {
			return nil, err
		}
		out = append(out, limit.option(v))
	}
	return out, nil
}

// EngineOptions translates the fee, fill and settlement settings.
func (c Configuration) EngineOptions() ([]sandbox.Option, error) {
	maker, err := parse("maker fee", c.Fees.Maker)
	if err != nil {
		return nil, err
	}
	taker, err := parse("taker fee", c.Fees.Taker)
	if err != nil {
		return nil, err
	}
	tolerance, err := parse("quantity tolerance", c.QuantityTolerance)
	if err != nil {
		return nil, err
	}

	var estimator sandbox.FillEstimator
	switch c.Fill.Model {
	case FillModelImmediate:
		estimator = fill.Immediate{}
	case FillModelSlippage:
		ratio, err := parse("slippage ratio", c.Fill.Ratio)
		if err != nil {
			return nil, err
		}
		estimator = fill.NewSlippage(ratio)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFillModel, c.Fill.Model)
	}

	return []sandbox.Option{
		sandbox.WithFillEstimator(estimator),
		sandbox.WithFeeSchedule(fee.NewPercentage(maker, taker)),
		sandbox.WithQuantityTolerance(tolerance),
		sandbox.WithNegativeFreeBorrowing(c.NegativeFreeBorrowing),
	}, nil
}

func parse(name, value string) (fixed.Point, error) {
	if value == "" {
		return fixed.Zero, nil
	}
	v, err := fixed.FromString(value)
	if err != nil {
		return fixed.Zero, fmt.Errorf("error parsing %s %q: %w", name, value, err)
	}
	return v, nil
}
