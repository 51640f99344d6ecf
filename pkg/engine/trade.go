package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
)

// Trade is one completed execution between a taker and a resting maker.
type Trade struct {
	TradeID      string
	Symbol       string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	TakerOrderID string
	MakerOrderID string
	TakerSide    orderbook.Side
	Timestamp    time.Time
	MakerFee     decimal.Decimal
	TakerFee     decimal.Decimal
}
