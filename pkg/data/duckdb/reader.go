package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

var ErrNotConnected = errors.New("reader is not connected")

// Reader loads replay input from a DuckDB database: candles from the
// candles table and scheduled order requests from the orders table.
type Reader struct {
	dataSourceName string
	db             *sql.DB
}

func NewReader(dataSourceName string) *Reader {
	return &Reader{
		dataSourceName: dataSourceName,
	}
}

func (r *Reader) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	r.db = db
	return nil
}

// DB exposes the connection, mostly for seeding and tests.
func (r *Reader) DB() *sql.DB { return r.db }

func (r *Reader) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// LoadCandles calls handler for every candle of symbol opening in [from, to],
// in open time order.
func (r *Reader) LoadCandles(ctx context.Context, symbol string, from, to time.Time, handler func(candle common.Candle) error) error {
	if r.db == nil {
		return ErrNotConnected
	}

	const query = `
	SELECT open_time, close_time,
	       CAST(open AS VARCHAR), CAST(high AS VARCHAR), CAST(low AS VARCHAR),
	       CAST(close AS VARCHAR), CAST(volume AS VARCHAR)
	FROM candles
	WHERE symbol = ? AND open_time BETWEEN ? AND ?
	ORDER BY open_time`

	rows, err := r.db.QueryContext(ctx, query, symbol, from, to)
	if err != nil {
		return fmt.Errorf("error preparing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			candle                          common.Candle
			open, high, low, closed, volume string
		)
		if err := rows.Scan(&candle.OpenTime, &candle.CloseTime, &open, &high, &low, &closed, &volume); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}

		candle.Symbol = symbol
		if err := parseAll(
			field{&candle.Open, open},
			field{&candle.High, high},
			field{&candle.Low, low},
			field{&candle.Close, closed},
			field{&candle.Volume, volume},
		); err != nil {
			return fmt.Errorf("error parsing candle of %s at %s: %w", symbol, candle.OpenTime, err)
		}

		if err := handler(candle); err != nil {
			return fmt.Errorf("error processing candle: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error scanning rows: %w", err)
	}
	return nil
}

// LoadOrders returns every scheduled order request in time order. A row
// with a stop loss or take profit percentage gets the matching attachment.
func (r *Reader) LoadOrders(ctx context.Context) ([]*common.OrderRequest, error) {
	if r.db == nil {
		return nil, ErrNotConnected
	}

	const query = `
	SELECT time, assets, funds, side, trade_side, type,
	       CAST(quantity AS VARCHAR), COALESCE(CAST(price AS VARCHAR), '0'),
	       CAST(stop_loss AS VARCHAR), CAST(take_profit AS VARCHAR)
	FROM orders
	ORDER BY time, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error preparing query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*common.OrderRequest
	for rows.Next() {
		var (
			ts                         time.Time
			assets, funds              string
			side, tradeSide, orderType string
			quantity, price            string
			stopLoss, takeProfit       sql.NullString
		)
		if err := rows.Scan(&ts, &assets, &funds, &side, &tradeSide, &orderType, &quantity, &price, &stopLoss, &takeProfit); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}

		request, err := newRequest(ts, assets, funds, side, tradeSide, orderType, quantity, price)
		if err != nil {
			return nil, err
		}
		if err := attach(request, common.OrderTypeMarket, stopLoss, true); err != nil {
			return nil, err
		}
		if err := attach(request, common.OrderTypeLimit, takeProfit, false); err != nil {
			return nil, err
		}
		out = append(out, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}
	return out, nil
}

func newRequest(ts time.Time, assets, funds, side, tradeSide, orderType, quantity, price string) (*common.OrderRequest, error) {
	var (
		s  common.OrderSide
		tr common.TradeSide
		ty common.OrderType
	)
	if err := s.UnmarshalText([]byte(side)); err != nil {
		return nil, err
	}
	if err := tr.UnmarshalText([]byte(tradeSide)); err != nil {
		return nil, err
	}
	if err := ty.UnmarshalText([]byte(orderType)); err != nil {
		return nil, err
	}

	request, err := common.NewOrderRequest(assets, funds, s, tr, ts)
	if err != nil {
		return nil, err
	}
	request.Type = ty
	if err := parseAll(field{&request.Quantity, quantity}, field{&request.Price, price}); err != nil {
		return nil, fmt.Errorf("error parsing order %s: %w", request.Symbol(), err)
	}
	return request, nil
}

// attach adds an exit leg change percent away from the entry price. Stop
// losses are always below the entry for longs and above it for shorts.
func attach(request *common.OrderRequest, orderType common.OrderType, change sql.NullString, loss bool) error {
	if !change.Valid {
		return nil
	}
	pct, err := fixed.FromString(change.String)
	if err != nil {
		return fmt.Errorf("error parsing attachment of %s: %w", request.Symbol(), err)
	}

	pct = pct.Abs()
	if loss == request.IsLong() {
		pct = pct.Neg()
	}
	_, err = request.Attach(orderType, pct)
	return err
}

type field struct {
	dst *fixed.Point
	src string
}

func parseAll(fields ...field) error {
	for _, f := range fields {
		v, err := fixed.FromString(f.src)
		if err != nil {
			return err
		}
		*f.dst = v.Round(fixed.Scale)
	}
	return nil
}
