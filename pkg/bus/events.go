package bus

type EventId uint8

const (
	CandleEvent EventId = iota
	BalanceEvent
	OrderAcceptanceEvent
	OrderRejectionEvent
	OrderFilledEvent
	OrderCancelledEvent
)

var eventNames = map[EventId]string{
	CandleEvent:          "candle",
	BalanceEvent:         "balance",
	OrderAcceptanceEvent: "order_acceptance",
	OrderRejectionEvent:  "order_rejection",
	OrderFilledEvent:     "order_filled",
	OrderCancelledEvent:  "order_cancelled",
}

func (id EventId) String() string {
	if name, ok := eventNames[id]; ok {
		return name
	}
	return "unknown"
}
