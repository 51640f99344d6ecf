// Package model holds the DTOs that cross the OMS boundary: the
// gateway-facing shapes for AddOrder/CancelOrder requests and the
// OrderEvent lifecycle record produced from each, decoupled from
// pkg/engine and pkg/orderbook's internal types.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
)

// AddOrder is a new-order request as it arrives from an external
// gateway (FIX NewOrderSingle, NATS ingress message, or a direct call).
type AddOrder struct {
	ClOrdID  string
	Symbol   string
	Side     orderbook.Side
	Type     orderbook.OrderType
	TraderID string
	TIF      orderbook.TimeInForce

	Price           decimal.Decimal
	StopPrice       decimal.Decimal
	LimitPrice      decimal.Decimal
	TrailingOffset  decimal.Decimal
	Quantity        decimal.Decimal
	DisplayQuantity decimal.Decimal // ICEBERG only
}

// CancelOrder is a cancel request keyed by the OrderID the matching
// engine assigned the original order (which OMS sets equal to ClOrdID).
type CancelOrder struct {
	OrderID string
	Symbol  string
}

// Status is the lifecycle stage an OrderEvent reports.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusRejected        Status = "REJECTED"
)

// OrderEvent is one lifecycle record for an order, appended to the
// event store on every state transition the OMS observes.
type OrderEvent struct {
	OrderID     string
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Status      Status
	Reason      string // populated on StatusRejected
	FilledQty   decimal.Decimal
	RemainingQuantity decimal.Decimal
	Timestamp   time.Time
}
