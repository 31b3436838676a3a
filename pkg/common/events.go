package common

import (
	"time"

	"github.com/google/uuid"

	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

type OrderAccepted struct {
	Source      string    `json:"src,omitempty"`
	ExecutionId uuid.UUID `json:"eid,omitempty"`
	TimeStamp   time.Time `json:"ts"`
	Order       Order     `json:"order"`
}

type OrderRejected struct {
	Source      string       `json:"src,omitempty"`
	ExecutionId uuid.UUID    `json:"eid,omitempty"`
	TimeStamp   time.Time    `json:"ts"`
	Request     OrderRequest `json:"request"`
	Reason      string       `json:"reason"`
}

// OrderFilled describes one settlement step. Quantity and Price are the
// increment, Order carries the running totals.
type OrderFilled struct {
	Source      string      `json:"src,omitempty"`
	ExecutionId uuid.UUID   `json:"eid,omitempty"`
	TimeStamp   time.Time   `json:"ts"`
	Order       Order       `json:"order"`
	Quantity    fixed.Point `json:"quantity"`
	Price       fixed.Point `json:"price"`
	Fee         fixed.Point `json:"fee"`
}

type OrderCancelled struct {
	Source      string    `json:"src,omitempty"`
	ExecutionId uuid.UUID `json:"eid,omitempty"`
	TimeStamp   time.Time `json:"ts"`
	Order       Order     `json:"order"`
}

type Balance struct {
	Source        string                 `json:"src,omitempty"`
	ExecutionId   uuid.UUID              `json:"eid,omitempty"`
	TimeStamp     time.Time              `json:"ts"`
	Symbol        string                 `json:"symbol"`
	Free          fixed.Point            `json:"free"`
	Locked        fixed.Point            `json:"locked"`
	Shorted       fixed.Point            `json:"shorted"`
	MarginReserve map[string]fixed.Point `json:"margin_reserve,omitempty"`
}
