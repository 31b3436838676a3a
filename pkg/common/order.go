package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

type OrderId = uint64

var (
	ErrInvalidRequest   = errors.New("invalid order request")
	ErrNestedAttachment = errors.New("can only attach orders to the parent order")
)

// OrderRequest is what a strategy asks the exchange for. Nothing is reserved
// until an engine admits it and turns it into an Order.
type OrderRequest struct {
	AssetsSymbol    string           `json:"assets_symbol"`
	FundsSymbol     string           `json:"funds_symbol"`
	Side            OrderSide        `json:"side"`
	TradeSide       TradeSide        `json:"trade_side"`
	Type            OrderType        `json:"type"`
	Price           fixed.Point      `json:"price"`
	Quantity        fixed.Point      `json:"quantity"`
	Time            time.Time        `json:"ts"`
	ResubmittedFrom OrderId          `json:"resubmitted_from,omitempty"`
	Trigger         TriggerCondition `json:"trigger"`
	TriggerPrice    fixed.Point      `json:"trigger_price"`

	// PriceChange is the percentage an attachment was derived with, used to
	// price it once the parent's market price is known.
	PriceChange fixed.Point     `json:"price_change,omitempty"`
	Attachments []*OrderRequest `json:"attachments,omitempty"`

	attachment bool
}

func NewOrderRequest(assetsSymbol, fundsSymbol string, side OrderSide, tradeSide TradeSide, ts time.Time) (*OrderRequest, error) {
	r := &OrderRequest{
		AssetsSymbol: assetsSymbol,
		FundsSymbol:  fundsSymbol,
		Side:         side,
		TradeSide:    tradeSide,
		Type:         OrderTypeLimit,
		Time:         ts,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OrderRequest) Validate() error {
	if strings.TrimSpace(r.AssetsSymbol) == "" {
		return fmt.Errorf("%w: assets symbol cannot be blank", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.FundsSymbol) == "" {
		return fmt.Errorf("%w: funds symbol cannot be blank", ErrInvalidRequest)
	}
	if r.Quantity.IsNeg() || r.Price.IsNeg() {
		return fmt.Errorf("%w: negative quantity or price", ErrInvalidRequest)
	}
	return nil
}

func (r *OrderRequest) Symbol() string { return r.AssetsSymbol + r.FundsSymbol }

func (r *OrderRequest) IsBuy() bool   { return r.Side == OrderSideBuy }
func (r *OrderRequest) IsSell() bool  { return r.Side == OrderSideSell }
func (r *OrderRequest) IsLong() bool  { return r.TradeSide == TradeSideLong }
func (r *OrderRequest) IsShort() bool { return r.TradeSide == TradeSideShort }

func (r *OrderRequest) IsAttachment() bool { return r.attachment }

func (r *OrderRequest) TotalOrderAmount() fixed.Point {
	return r.Price.Mul(r.Quantity).Round(fixed.Scale)
}

// SetTrigger makes the request dormant until cond fires at price. A request
// without a price takes the trigger price.
func (r *OrderRequest) SetTrigger(cond TriggerCondition, price fixed.Point) {
	r.Trigger = cond
	r.TriggerPrice = price
	if r.Price.IsZero() {
		r.Price = price
	}
}

// Attach adds an exit leg priced change percent away from the parent price.
// Negative changes become stop losses, the rest stop gains.
func (r *OrderRequest) Attach(orderType OrderType, change fixed.Point) (*OrderRequest, error) {
	if r.attachment {
		return nil, ErrNestedAttachment
	}

	a := &OrderRequest{
		AssetsSymbol: r.AssetsSymbol,
		FundsSymbol:  r.FundsSymbol,
		Side:         r.Side.Opposite(),
		TradeSide:    r.TradeSide,
		Type:         orderType,
		Quantity:     r.Quantity,
		Time:         r.Time,
		PriceChange:  change,
		attachment:   true,
	}
	a.Price = ApplyChange(r.Price, change)

	if change.IsNeg() {
		a.SetTrigger(TriggerStopLoss, a.Price)
	} else {
		a.SetTrigger(TriggerStopGain, a.Price)
	}

	r.Attachments = append(r.Attachments, a)
	return a, nil
}

// ApplyChange returns price moved by change percent.
func ApplyChange(price, change fixed.Point) fixed.Point {
	return price.Mul(fixed.One.Add(change.Div(fixed.Hundred))).Round(fixed.Scale)
}

func (r *OrderRequest) String() string {
	trigger := ""
	if r.Trigger != TriggerNone {
		trigger = fmt.Sprintf(", {%s@%s}", r.Trigger, r.TriggerPrice)
	}
	return fmt.Sprintf("OrderRequest{symbol=%s%s, type=%s, tradeSide=%s, side=%s, price=%s, quantity=%s}",
		r.Symbol(), trigger, r.Type, r.TradeSide, r.Side, r.Price, r.Quantity)
}

// Order is an admitted request plus its fill state. Parent and attachments are
// referenced by id; the engine that created the order owns it.
type Order struct {
	Id              OrderId     `json:"id"`
	AssetsSymbol    string      `json:"assets_symbol"`
	FundsSymbol     string      `json:"funds_symbol"`
	Side            OrderSide   `json:"side"`
	TradeSide       TradeSide   `json:"trade_side"`
	Type            OrderType   `json:"type"`
	Time            time.Time   `json:"ts"`
	ResubmittedFrom OrderId     `json:"resubmitted_from,omitempty"`
	Status          OrderStatus `json:"status"`

	Quantity         fixed.Point `json:"quantity"`
	Price            fixed.Point `json:"price"`
	ExecutedQuantity fixed.Point `json:"executed_quantity"`
	AveragePrice     fixed.Point `json:"average_price"`
	FeesPaid         fixed.Point `json:"fees_paid"`

	// Incremental fill of the current candle only.
	PartialFillQuantity fixed.Point `json:"partial_fill_quantity"`
	PartialFillPrice    fixed.Point `json:"partial_fill_price"`

	Trigger      TriggerCondition `json:"trigger"`
	TriggerPrice fixed.Point      `json:"trigger_price"`
	Active       bool             `json:"active"`

	ParentId    OrderId   `json:"parent_id,omitempty"`
	Attachments []OrderId `json:"attachments,omitempty"`
}

func (o *Order) Symbol() string { return o.AssetsSymbol + o.FundsSymbol }

func (o *Order) IsBuy() bool   { return o.Side == OrderSideBuy }
func (o *Order) IsSell() bool  { return o.Side == OrderSideSell }
func (o *Order) IsLong() bool  { return o.TradeSide == TradeSideLong }
func (o *Order) IsShort() bool { return o.TradeSide == TradeSideShort }

func (o *Order) IsFinalized() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

func (o *Order) IsCancelled() bool { return o.Status == OrderStatusCancelled }

func (o *Order) HasParent() bool      { return o.ParentId != 0 }
func (o *Order) HasAttachments() bool { return len(o.Attachments) > 0 }

// Cancel stops further fills. Filled orders stay filled.
func (o *Order) Cancel() {
	if o.Status != OrderStatusFilled {
		o.Status = OrderStatusCancelled
	}
}

func (o *Order) RemainingQuantity() fixed.Point {
	return o.Quantity.Sub(o.ExecutedQuantity).Max(fixed.Zero).Round(fixed.Scale)
}

func (o *Order) TotalTraded() fixed.Point {
	return o.ExecutedQuantity.Mul(o.AveragePrice).Round(fixed.Scale)
}

func (o *Order) TotalOrderAmount() fixed.Point {
	return o.Quantity.Mul(o.Price).Round(fixed.Scale)
}

func (o *Order) FillPct() fixed.Point {
	if o.Quantity.IsZero() {
		return fixed.Zero
	}
	return o.ExecutedQuantity.Div(o.Quantity).Mul(fixed.Hundred).Round(fixed.Scale)
}

// Fill records quantity more units traded at price. The quantity is capped at
// what remains; the scratch partial fill values describe this call only.
func (o *Order) Fill(quantity, price fixed.Point) {
	o.ResetPartialFill()
	if o.IsFinalized() {
		return
	}

	quantity = quantity.Min(o.RemainingQuantity()).Round(fixed.Scale)
	if !quantity.IsPos() {
		return
	}

	executed := o.ExecutedQuantity.Add(quantity)
	o.AveragePrice = o.AveragePrice.Mul(o.ExecutedQuantity).Add(price.Mul(quantity)).Div(executed).Round(fixed.Scale)
	o.ExecutedQuantity = executed.Round(fixed.Scale)

	o.PartialFillQuantity = quantity
	o.PartialFillPrice = price.Round(fixed.Scale)

	if o.ExecutedQuantity.Gte(o.Quantity) {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}

func (o *Order) ResetPartialFill() {
	o.PartialFillQuantity = fixed.Zero
	o.PartialFillPrice = fixed.Zero
}

// Clone returns a copy that shares nothing with o.
func (o *Order) Clone() Order {
	c := *o
	if o.Attachments != nil {
		c.Attachments = append([]OrderId(nil), o.Attachments...)
	}
	return c
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%d, symbol=%s, %s %s %s, status=%s, price=%s, quantity=%s, executed=%s, avg=%s, fees=%s}",
		o.Id, o.Symbol(), o.Type, o.TradeSide, o.Side, o.Status, o.Price, o.Quantity, o.ExecutedQuantity, o.AveragePrice, o.FeesPaid)
}
