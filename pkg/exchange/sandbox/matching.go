package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/redtramp/univocity-trader/pkg/account"
	"github.com/redtramp/univocity-trader/pkg/bus"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

func triggerFires(o *common.Order, candle common.Candle) bool {
	switch o.Trigger {
	case common.TriggerStopGain:
		return candle.Low.Gte(o.TriggerPrice)
	case common.TriggerStopLoss:
		return candle.High.Lte(o.TriggerPrice)
	default:
		return false
	}
}

// process runs one candle through an open order: activation, fill,
// attachment triggers and, once the order is finalized, settlement.
func (e *Engine) process(tx *account.Tx, en *entry, candle common.Candle) error {
	o := &en.order

	if !o.IsFinalized() {
		if (!o.Active && triggerFires(o, candle)) || (o.Active && en.lockOnActivation) {
			if err := e.activate(tx, en); err != nil {
				return err
			}
		}
		if o.Active && !o.IsFinalized() {
			if err := e.fill(tx, en, candle); err != nil {
				return err
			}
		}
	}

	var triggered *entry
	if !o.IsFinalized() && o.ExecutedQuantity.IsPos() {
		for _, id := range o.Attachments {
			child := e.orders[id]
			if !child.order.IsFinalized() && triggerFires(&child.order, candle) {
				triggered = child
				o.Cancel()
				break
			}
		}
	}

	if !o.IsFinalized() {
		return nil
	}
	return e.finalize(tx, en, triggered, candle)
}

// activate makes an order fillable. Orders that did not lock on submission
// lock now, and are cancelled if the account can no longer fund them.
func (e *Engine) activate(tx *account.Tx, en *entry) error {
	o := &en.order
	o.Active = true
	if !en.lockOnActivation {
		return nil
	}
	en.lockOnActivation = false

	reason, err := e.reserve(tx, en)
	if err != nil {
		return settlementError(o, err)
	}
	if reason != "" {
		e.logger.Warn("attachment cancelled on activation", zap.Stringer("order", o), zap.String("reason", reason))
		o.Cancel()
	}
	return nil
}

func (e *Engine) fill(tx *account.Tx, en *entry, candle common.Candle) error {
	o := &en.order

	var parent *entry
	if o.HasParent() {
		parent = e.orders[o.ParentId]
		if limit := o.ExecutedQuantity.Add(parent.pool); o.Quantity.Gt(limit) {
			o.Quantity = limit.Round(fixed.Scale)
		}
		if !o.RemainingQuantity().IsPos() {
			if o.ExecutedQuantity.IsPos() {
				o.Status = common.OrderStatusFilled
			} else {
				o.Cancel()
			}
			return nil
		}
	}

	scratch := o.Clone()
	e.estimator.Fill(&scratch, candle)

	o.ResetPartialFill()
	quantity, price := scratch.PartialFillQuantity, scratch.PartialFillPrice
	if !quantity.IsPos() {
		return nil
	}

	if affordable := e.affordable(tx, en, quantity, price); affordable.Lt(quantity) {
		e.logger.Warn("fill capped by available funds",
			zap.Uint64("id", o.Id),
			zap.Stringer("quantity", quantity),
			zap.Stringer("affordable", affordable),
			zap.Stringer("price", price))
		quantity = affordable
		if !quantity.IsPos() {
			o.Cancel()
			return nil
		}
		defer o.Cancel()
	}

	o.Fill(quantity, price)
	quantity = o.PartialFillQuantity
	if !quantity.IsPos() {
		return nil
	}

	traded := quantity.Mul(o.PartialFillPrice).Round(fixed.Scale)
	fee := e.fees.Fee(traded, o.Type, o.Side).Round(fixed.Scale)
	o.FeesPaid = o.FeesPaid.Add(fee).Round(fixed.Scale)
	if parent != nil {
		parent.pool = parent.pool.Sub(quantity).Max(fixed.Zero).Round(fixed.Scale)
	}

	if err := e.settle(tx, en, quantity, traded, fee, candle); err != nil {
		return settlementError(o, err)
	}

	e.logger.Debug("order filled",
		zap.Uint64("id", o.Id),
		zap.Stringer("quantity", quantity),
		zap.Stringer("price", o.PartialFillPrice),
		zap.Stringer("fee", fee),
		zap.Stringer("status", o.Status))

	e.post(bus.OrderFilledEvent, common.OrderFilled{
		Source:      e.source,
		ExecutionId: e.executionId,
		TimeStamp:   candle.CloseTime,
		Order:       o.Clone(),
		Quantity:    quantity,
		Price:       o.PartialFillPrice,
		Fee:         fee,
	})
	return nil
}

// finalize settles an order that stopped filling and hands over to its
// bracket, if it has one.
func (e *Engine) finalize(tx *account.Tx, en *entry, triggered *entry, candle common.Candle) error {
	o := &en.order
	e.removeOpen(en)

	if err := e.release(tx, en); err != nil {
		return settlementError(o, err)
	}
	if err := e.reconcileFees(tx, en); err != nil {
		return settlementError(o, err)
	}

	e.logger.Debug("order finalized", zap.Stringer("order", o))
	if o.IsCancelled() {
		e.postCancelled(en, candle.CloseTime)
	}

	if o.HasParent() {
		if err := e.closeBracketLeg(tx, en, candle); err != nil {
			return err
		}
	}
	if o.HasAttachments() {
		return e.releaseChildren(tx, en, triggered, candle)
	}
	return nil
}

func settlementError(o *common.Order, err error) error {
	return fmt.Errorf("settlement of order %s failed: %w", o, err)
}
