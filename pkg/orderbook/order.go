package orderbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

type OrderType string

const (
	LIMIT         OrderType = "LIMIT"
	MARKET        OrderType = "MARKET"
	STOP_LOSS     OrderType = "STOP_LOSS"
	STOP_LIMIT    OrderType = "STOP_LIMIT"
	TRAILING_STOP OrderType = "TRAILING_STOP"
	ICEBERG       OrderType = "ICEBERG"
)

// advancedTypes cannot be inserted directly into a book; the engine routes
// them (stop table, iceberg slicing) before anything reaches the book.
var advancedTypes = map[OrderType]bool{
	STOP_LOSS:     true,
	STOP_LIMIT:    true,
	TRAILING_STOP: true,
	ICEBERG:       true,
}

type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
)

// Order is the mutable unit of book residency: identity and static
// attributes are set at construction. Afterward only RemainingQuantity,
// HiddenRemaining (ICEBERG parents), TrailingWaterMark (TRAILING_STOP),
// the SequenceNumber a book assigns on first placement, and the cancel
// flag change.
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Type   OrderType

	Price decimal.Decimal // required for LIMIT/ICEBERG; empty for MARKET

	StopPrice      decimal.Decimal // STOP_LOSS, STOP_LIMIT trigger; unused by TRAILING_STOP
	LimitPrice     decimal.Decimal // STOP_LIMIT: price of the order once triggered
	TrailingOffset decimal.Decimal // TRAILING_STOP: distance from the high/low water mark

	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal

	DisplayQuantity decimal.Decimal // ICEBERG: size of each visible slice
	TotalQuantity   decimal.Decimal // ICEBERG: total size across all slices
	HiddenRemaining decimal.Decimal // ICEBERG: quantity not yet sliced out
	IcebergParentID string          // set on a sliced ICEBERG child, empty otherwise

	TrailingWaterMark decimal.Decimal // TRAILING_STOP: high (SELL) or low (BUY) water mark since submission

	TraderID string
	TIF      TimeInForce

	Timestamp      time.Time
	SequenceNumber int64

	canceled bool
}

// NewOrder validates and constructs an Order. It does not assign a
// SequenceNumber; that happens on first placement into a book.
func NewOrder(id string, typ OrderType, side Side, symbol, traderID string, price, quantity decimal.Decimal, tif TimeInForce, ts time.Time) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id must be non-empty", ErrInvalidOrder)
	}
	if side != BUY && side != SELL {
		return nil, fmt.Errorf("%w: unsupported side %q", ErrInvalidOrder, side)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	switch typ {
	case MARKET:
		if !price.IsZero() {
			return nil, fmt.Errorf("%w: market orders must not carry a price", ErrInvalidOrder)
		}
	case LIMIT, ICEBERG:
		if price.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
		}
	case STOP_LOSS, STOP_LIMIT, TRAILING_STOP:
		// trigger validation is the caller's responsibility via the
		// dedicated constructors below, which set the required auxiliary.
	default:
		return nil, fmt.Errorf("%w: unsupported order type %q", ErrInvalidOrder, typ)
	}
	if tif != GTC && tif != IOC {
		return nil, fmt.Errorf("%w: unsupported time in force %q", ErrInvalidOrder, tif)
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Order{
		ID:                id,
		Symbol:            symbol,
		Side:              side,
		Type:              typ,
		Price:             price,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		TraderID:          traderID,
		TIF:               tif,
		Timestamp:         ts.UTC(),
	}, nil
}

// NewStopOrder constructs a STOP_LOSS or STOP_LIMIT order.
func NewStopOrder(id string, typ OrderType, side Side, symbol, traderID string, stopPrice, limitPrice, quantity decimal.Decimal, tif TimeInForce, ts time.Time) (*Order, error) {
	if typ != STOP_LOSS && typ != STOP_LIMIT {
		return nil, fmt.Errorf("%w: NewStopOrder used for non-stop type %q", ErrInvalidOrder, typ)
	}
	if stopPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: stop price must be positive", ErrInvalidOrder)
	}
	if typ == STOP_LIMIT && limitPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: stop-limit order must carry a positive limit price", ErrInvalidOrder)
	}
	o, err := NewOrder(id, typ, side, symbol, traderID, decimal.Zero, quantity, tif, ts)
	if err != nil {
		return nil, err
	}
	o.StopPrice = stopPrice
	o.LimitPrice = limitPrice
	return o, nil
}

// NewTrailingStopOrder constructs a TRAILING_STOP order.
func NewTrailingStopOrder(id string, side Side, symbol, traderID string, trailingOffset, quantity decimal.Decimal, tif TimeInForce, ts time.Time) (*Order, error) {
	if trailingOffset.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: trailing offset must be positive", ErrInvalidOrder)
	}
	o, err := NewOrder(id, TRAILING_STOP, side, symbol, traderID, decimal.Zero, quantity, tif, ts)
	if err != nil {
		return nil, err
	}
	o.TrailingOffset = trailingOffset
	return o, nil
}

// NewIcebergOrder constructs an ICEBERG parent. It is never inserted into a
// book directly; the engine slices off LIMIT children instead.
func NewIcebergOrder(id string, side Side, symbol, traderID string, price, displayQuantity, totalQuantity decimal.Decimal, tif TimeInForce, ts time.Time) (*Order, error) {
	if displayQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: iceberg display quantity must be positive", ErrInvalidOrder)
	}
	if totalQuantity.LessThan(displayQuantity) {
		return nil, fmt.Errorf("%w: iceberg total quantity must be at least the display quantity", ErrInvalidOrder)
	}
	o, err := NewOrder(id, ICEBERG, side, symbol, traderID, price, totalQuantity, tif, ts)
	if err != nil {
		return nil, err
	}
	o.DisplayQuantity = displayQuantity
	o.TotalQuantity = totalQuantity
	o.HiddenRemaining = totalQuantity
	return o, nil
}

// effectivelyInfinite stands in for +infinity in priority comparisons: a
// price no real instrument will ever reach, used only so a MARKET buy
// always dominates every LIMIT on its side. decimal.Decimal has no true
// infinity.
var effectivelyInfinite = decimal.New(1, 30)

// EffectivePrice is the price used for priority comparisons: the limit
// price for LIMIT/ICEBERG-child orders, +inf for MARKET buys, 0 for MARKET
// sells.
func (o *Order) EffectivePrice() decimal.Decimal {
	if o.Type != MARKET {
		return o.Price
	}
	if o.Side == BUY {
		return effectivelyInfinite
	}
	return decimal.Zero
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.RemainingQuantity.LessThanOrEqual(decimal.Zero)
}

// Canceled reports whether the order has been lazily tombstoned.
func (o *Order) Canceled() bool {
	return o.canceled
}
