package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
)

// Performance accumulates the time spent inside the wrapped handlers.
type Performance struct {
	logger *zap.Logger

	mu        sync.Mutex
	durations map[bus.EventId]time.Duration
	calls     map[bus.EventId]int64
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger:    logger,
		durations: make(map[bus.EventId]time.Duration),
		calls:     make(map[bus.EventId]int64),
	}
}

func (p *Performance) WithCandle(handler bus.CandleEventHandler) bus.CandleEventHandler {
	return func(ctx context.Context, candle common.Candle) {
		defer p.measure(bus.CandleEvent, time.Now())
		handler(ctx, candle)
	}
}

func (p *Performance) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		defer p.measure(bus.BalanceEvent, time.Now())
		handler(ctx, balance)
	}
}

func (p *Performance) WithOrderFilled(handler bus.OrderFilledEventHandler) bus.OrderFilledEventHandler {
	return func(ctx context.Context, filled common.OrderFilled) {
		defer p.measure(bus.OrderFilledEvent, time.Now())
		handler(ctx, filled)
	}
}

func (p *Performance) Duration(id bus.EventId) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durations[id]
}

func (p *Performance) measure(id bus.EventId, start time.Time) {
	elapsed := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.durations[id] += elapsed
	p.calls[id]++
}

func (p *Performance) PrintStatistics() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range []bus.EventId{bus.CandleEvent, bus.BalanceEvent, bus.OrderFilledEvent} {
		calls := p.calls[id]
		if calls == 0 {
			continue
		}
		p.logger.Info("handler performance",
			zap.Stringer("event", id),
			zap.Int64("calls", calls),
			zap.Duration("total", p.durations[id]),
			zap.Duration("average", p.durations[id]/time.Duration(calls)))
	}
}
