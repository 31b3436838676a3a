package sandbox

import (
	"github.com/redtramp/univocity-trader/pkg/account"
	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// releaseChildren opens the attachments of a finalized parent. Nothing is
// released when the parent never executed. When one attachment triggered
// the parent's cancellation, only that one is released.
func (e *Engine) releaseChildren(tx *account.Tx, parent *entry, triggered *entry, candle common.Candle) error {
	p := &parent.order

	if !p.ExecutedQuantity.IsPos() {
		for _, id := range p.Attachments {
			e.cancelInPlace(e.orders[id], candle)
		}
		return nil
	}

	parent.pool = p.ExecutedQuantity
	var released []*entry

	for _, id := range p.Attachments {
		child := e.orders[id]
		c := &child.order
		if c.IsFinalized() {
			continue
		}
		if triggered != nil && child != triggered {
			e.cancelInPlace(child, candle)
			continue
		}

		c.Quantity = c.Quantity.Min(p.ExecutedQuantity)
		c.Time = candle.OpenTime
		e.addOpen(child)
		if child == triggered {
			if err := e.activate(tx, child); err != nil {
				return err
			}
		}
		released = append(released, child)
	}

	if len(released) == 0 {
		return e.returnPool(tx, parent)
	}

	for _, child := range released {
		if !child.open {
			continue
		}
		if err := e.process(tx, child, candle); err != nil {
			return err
		}
	}
	return nil
}

// closeBracketLeg runs after an attachment finalizes. An attachment that
// executed anything ends the bracket: its unfinished siblings are cancelled.
// Once every attachment is done the parent's unused pool is returned.
func (e *Engine) closeBracketLeg(tx *account.Tx, child *entry, candle common.Candle) error {
	parent := e.orders[child.order.ParentId]

	if child.order.ExecutedQuantity.IsPos() {
		for _, id := range parent.order.Attachments {
			sibling := e.orders[id]
			if sibling == child || sibling.order.IsFinalized() {
				continue
			}
			sibling.order.Cancel()
			if !sibling.open {
				e.postCancelled(sibling, candle.CloseTime)
				continue
			}
			if err := e.finalize(tx, sibling, nil, candle); err != nil {
				return err
			}
		}
	}

	for _, id := range parent.order.Attachments {
		if !e.orders[id].order.IsFinalized() {
			return nil
		}
	}
	return e.returnPool(tx, parent)
}

// returnPool gives the parent's undistributed quantity back. For a long buy
// the bought assets were held in locked and go back to free.
func (e *Engine) returnPool(tx *account.Tx, parent *entry) error {
	p := &parent.order
	if !parent.pool.IsPos() {
		return nil
	}
	if p.IsLong() && p.IsBuy() {
		if err := tx.Unlock(p.AssetsSymbol, parent.pool); err != nil {
			return settlementError(p, err)
		}
	}
	parent.pool = fixed.Zero
	return nil
}

func (e *Engine) cancelInPlace(child *entry, candle common.Candle) {
	if child.order.IsFinalized() {
		return
	}
	child.order.Cancel()
	e.postCancelled(child, candle.CloseTime)
}
