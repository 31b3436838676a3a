package common

import (
	"errors"
	"strconv"
)

type OrderSide uint8
type TradeSide uint8
type OrderType uint8
type OrderStatus uint8
type TriggerCondition uint8

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

const (
	TradeSideLong TradeSide = iota
	TradeSideShort
)

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
)

const (
	TriggerNone TriggerCondition = iota
	TriggerStopLoss
	TriggerStopGain
)

var (
	orderSideNames = map[OrderSide]string{
		OrderSideBuy:  "buy",
		OrderSideSell: "sell",
	}
	tradeSideNames = map[TradeSide]string{
		TradeSideLong:  "long",
		TradeSideShort: "short",
	}
	orderTypeNames = map[OrderType]string{
		OrderTypeLimit:  "limit",
		OrderTypeMarket: "market",
	}
	orderStatusNames = map[OrderStatus]string{
		OrderStatusNew:             "new",
		OrderStatusPartiallyFilled: "partiallyFilled",
		OrderStatusFilled:          "filled",
		OrderStatusCancelled:       "cancelled",
	}
	triggerNames = map[TriggerCondition]string{
		TriggerNone:     "none",
		TriggerStopLoss: "stopLoss",
		TriggerStopGain: "stopGain",
	}
)

func (s OrderSide) String() string        { return name(orderSideNames, s) }
func (s TradeSide) String() string        { return name(tradeSideNames, s) }
func (t OrderType) String() string        { return name(orderTypeNames, t) }
func (s OrderStatus) String() string      { return name(orderStatusNames, s) }
func (c TriggerCondition) String() string { return name(triggerNames, c) }

// Opposite returns the side that exits a position opened on s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

func (s OrderSide) MarshalText() ([]byte, error)        { return marshal(orderSideNames, s, "order side") }
func (s TradeSide) MarshalText() ([]byte, error)        { return marshal(tradeSideNames, s, "trade side") }
func (t OrderType) MarshalText() ([]byte, error)        { return marshal(orderTypeNames, t, "order type") }
func (s OrderStatus) MarshalText() ([]byte, error)      { return marshal(orderStatusNames, s, "order status") }
func (c TriggerCondition) MarshalText() ([]byte, error) { return marshal(triggerNames, c, "trigger condition") }

func (s *OrderSide) UnmarshalText(b []byte) error { return unmarshal(orderSideNames, s, b, "order side") }
func (s *TradeSide) UnmarshalText(b []byte) error { return unmarshal(tradeSideNames, s, b, "trade side") }
func (t *OrderType) UnmarshalText(b []byte) error { return unmarshal(orderTypeNames, t, b, "order type") }
func (s *OrderStatus) UnmarshalText(b []byte) error {
	return unmarshal(orderStatusNames, s, b, "order status")
}
func (c *TriggerCondition) UnmarshalText(b []byte) error {
	return unmarshal(triggerNames, c, b, "trigger condition")
}

func name[T ~uint8](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return "unknown(" + strconv.Itoa(int(v)) + ")"
}

func marshal[T ~uint8](names map[T]string, v T, kind string) ([]byte, error) {
	if s, ok := names[v]; ok {
		return []byte(s), nil
	}
	return nil, errors.New("invalid " + kind + ": " + strconv.Itoa(int(v)))
}

func unmarshal[T ~uint8](names map[T]string, v *T, b []byte, kind string) error {
	for k, s := range names {
		if s == string(b) {
			*v = k
			return nil
		}
	}
	return errors.New("unsupported " + kind + ": " + string(b))
}
