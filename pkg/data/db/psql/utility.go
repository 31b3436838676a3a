package psql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

func Connect(ctx context.Context, host, port, user, pass, db string) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, db)
	dbConn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	return dbConn, nil
}

// InsertFill journals one settlement step. Replaying the same execution
// twice leaves the table unchanged.
func InsertFill(ctx context.Context, db *sql.DB, fill common.OrderFilled) error {
	query := `
	INSERT INTO sim_fills (
		execution_id,
		order_id,
		ts,
		symbol,
		side,
		trade_side,
		quantity,
		price,
		fee,
		status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (execution_id, order_id, ts) DO NOTHING;
	`

	_, err := db.ExecContext(
		ctx,
		query,
		fill.ExecutionId.String(),
		int64(fill.Order.Id),
		fill.TimeStamp,
		fill.Order.Symbol(),
		fill.Order.Side.String(),
		fill.Order.TradeSide.String(),
		float(fill.Quantity),
		float(fill.Price),
		float(fill.Fee),
		fill.Order.Status.String(),
	)

	return err
}

func float(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}
