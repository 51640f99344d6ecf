package engine

import "errors"

var (
	// ErrUnknownSymbol is returned when an order names a symbol with no
	// registered book.
	ErrUnknownSymbol = errors.New("engine: unknown symbol")
	// ErrUnmatchableMarket is returned when a MARKET order is submitted
	// against an empty opposite side: it is neither booked nor silently
	// discarded.
	ErrUnmatchableMarket = errors.New("engine: market order has no opposite-side liquidity")
)
