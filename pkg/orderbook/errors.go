package orderbook

import "errors"

var (
	// ErrInvalidOrder is returned by order construction when a required
	// field is missing or out of range for the order's type.
	ErrInvalidOrder = errors.New("orderbook: invalid order")

	// ErrSymbolMismatch is returned when an order's symbol does not match
	// the book it is being added to.
	ErrSymbolMismatch = errors.New("orderbook: order symbol does not match book symbol")

	// ErrUnsupportedOrderType is returned when an advanced order type
	// (STOP_LOSS, STOP_LIMIT, TRAILING_STOP, or a raw ICEBERG parent) is
	// added directly to a book instead of routed through the engine.
	ErrUnsupportedOrderType = errors.New("orderbook: order type not supported for direct book insertion")

	// ErrNotFound is returned by Remove for an unknown order id. Callers
	// treat it as a benign no-op.
	ErrNotFound = errors.New("orderbook: order not found")
)
