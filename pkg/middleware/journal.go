package middleware

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/data/db/psql"
)

// Journal writes every fill to the sim_fills table without holding up the
// event loop. Wait blocks until the pending writes are done.
type Journal struct {
	logger *zap.Logger
	db     *sql.DB
	wg     sync.WaitGroup
}

func NewJournal(logger *zap.Logger, db *sql.DB) *Journal {
	return &Journal{
		logger: logger,
		db:     db,
	}
}

func (j *Journal) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, fill common.OrderFilled) {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			if err := psql.InsertFill(context.WithoutCancel(ctx), j.db, fill); err != nil {
				j.logger.Warn("unable to journal fill", zap.Uint64("order", fill.Order.Id), zap.Error(err))
			}
		}()
		handler(ctx, fill)
	}
}

func (j *Journal) Wait() {
	j.wg.Wait()
}
