package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/common"
)

var ErrCapacityReached = errors.New("event capacity reached")

type event struct {
	id   EventId
	data any
}

type Router struct {
	logger *zap.Logger
	events chan event

	OnCandle          CandleEventHandler
	OnBalance         BalanceEventHandler
	OnOrderAcceptance OrderAcceptanceEventHandler
	OnOrderRejection  OrderRejectionEventHandler
	OnOrderFilled     OrderFilledEventHandler
	OnOrderCancel     OrderCancelledEventHandler

	runTime       atomic.Int64
	postCount     atomic.Uint64
	postFails     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	return &Router{
		logger: logger,
		events: make(chan event, eventCapacity),
	}
}

// Post queues an event without blocking.
func (r *Router) Post(id EventId, data any) error {
	select {
	case r.events <- event{id, data}:
		r.postCount.Add(1)
		return nil
	default:
		r.postFails.Add(1)
		return ErrCapacityReached
	}
}

// Exec dispatches events until ctx is done.
func (r *Router) Exec(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		start := time.Now()
		defer func() { r.runTime.Add(int64(time.Since(start))) }()

		for {
			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case ev := <-r.events:
				r.process(ctx, ev)
			}
		}
	}()
	return done
}

// ExecLoop interleaves doOnce with event dispatch. Once doOnce fails the
// queued events are drained and its error is reported.
func (r *Router) ExecLoop(ctx context.Context, doOnce func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		start := time.Now()
		defer func() { r.runTime.Add(int64(time.Since(start))) }()

		for {
			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case ev := <-r.events:
				r.process(ctx, ev)
			default:
				if err := doOnce(); err != nil {
					r.drain(ctx)
					done <- err
					return
				}
			}
		}
	}()
	return done
}

func (r *Router) GetStatistics() Statistics {
	runTime := time.Duration(r.runTime.Load())
	s := Statistics{
		RunTime:       runTime,
		PostCount:     r.postCount.Load(),
		PostFails:     r.postFails.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
	}
	if runTime > 0 {
		s.Throughput = float64(s.DispatchCount) / runTime.Seconds()
	}
	return s
}

func (r *Router) drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.process(ctx, ev)
		default:
			return
		}
	}
}

func (r *Router) process(ctx context.Context, ev event) {
	r.dispatchCount.Add(1)
	if err := r.dispatch(ctx, ev); err != nil {
		r.dispatchFails.Add(1)
		r.logger.Warn("dispatch failed", zap.Error(err), zap.Stringer("event", ev.id))
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case CandleEvent:
		return handle[common.Candle](ctx, r.OnCandle, ev)
	case BalanceEvent:
		return handle[common.Balance](ctx, r.OnBalance, ev)
	case OrderAcceptanceEvent:
		return handle[common.OrderAccepted](ctx, r.OnOrderAcceptance, ev)
	case OrderRejectionEvent:
		return handle[common.OrderRejected](ctx, r.OnOrderRejection, ev)
	case OrderFilledEvent:
		return handle[common.OrderFilled](ctx, r.OnOrderFilled, ev)
	case OrderCancelledEvent:
		return handle[common.OrderCancelled](ctx, r.OnOrderCancel, ev)
	default:
		return fmt.Errorf("unsupported event id: %d", ev.id)
	}
}

func handle[T any](ctx context.Context, handler func(context.Context, T), ev event) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("invalid type assertion for %s event", ev.id)
	}
	if handler != nil {
		handler(ctx, data)
	}
	return nil
}
