// Package trader models an account's cash, positions, and risk limits,
// and applies fill settlement using a weighted-average cost basis.
package trader

import (
	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
)

// epsilon is the tolerance below which a position is considered flat and
// omitted from PositionReport; the positions map entry itself is kept.
var epsilon = decimal.New(1, -12)

// RiskConfig holds the per-trader limits the engine's risk gate enforces.
// A zero value for any field disables that particular check.
type RiskConfig struct {
	MaxOrderNotional     decimal.Decimal
	MaxExposurePerSymbol decimal.Decimal
	RiskPerTradeFraction decimal.Decimal
	DailyLossLimit       decimal.Decimal // reserved; windowed enforcement is unspecified, see DESIGN.md
}

// position tracks one symbol's signed quantity, cost basis, and realized
// P&L for a trader.
type position struct {
	quantity      decimal.Decimal // signed: positive long, negative short
	avgCost       decimal.Decimal // non-negative
	realizedPnL   decimal.Decimal
	lastMarkPrice decimal.Decimal
}

// Trader holds cash, per-symbol positions, and risk configuration.
type Trader struct {
	TraderID string
	Balance  decimal.Decimal
	Risk     RiskConfig

	positions    map[string]*position
	OrderHistory []*orderbook.Order
}

// New constructs a Trader with the given starting cash balance.
func New(traderID string, balance decimal.Decimal, risk RiskConfig) *Trader {
	return &Trader{
		TraderID:  traderID,
		Balance:   balance,
		Risk:      risk,
		positions: make(map[string]*position),
	}
}

func (t *Trader) posOrZero(symbol string) *position {
	p, ok := t.positions[symbol]
	if !ok {
		p = &position{}
		t.positions[symbol] = p
	}
	return p
}

// Position returns the current signed quantity held in symbol.
func (t *Trader) Position(symbol string) decimal.Decimal {
	if p, ok := t.positions[symbol]; ok {
		return p.quantity
	}
	return decimal.Zero
}

// AvgCost returns the current weighted-average cost basis for symbol.
func (t *Trader) AvgCost(symbol string) decimal.Decimal {
	if p, ok := t.positions[symbol]; ok {
		return p.avgCost
	}
	return decimal.Zero
}

// RealizedPnL returns the cumulative realized P&L for symbol.
func (t *Trader) RealizedPnL(symbol string) decimal.Decimal {
	if p, ok := t.positions[symbol]; ok {
		return p.realizedPnL
	}
	return decimal.Zero
}

// TotalRealizedPnL sums realized P&L across every symbol ever held.
func (t *Trader) TotalRealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.positions {
		total = total.Add(p.realizedPnL)
	}
	return total
}

// UnrealizedPnL is (mark - avgCost) * position, sign following position.
func (t *Trader) UnrealizedPnL(symbol string) decimal.Decimal {
	p, ok := t.positions[symbol]
	if !ok {
		return decimal.Zero
	}
	return p.lastMarkPrice.Sub(p.avgCost).Mul(p.quantity)
}

// TotalUnrealizedPnL sums unrealized P&L across every symbol held.
func (t *Trader) TotalUnrealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for symbol := range t.positions {
		total = total.Add(t.UnrealizedPnL(symbol))
	}
	return total
}

// Equity is cash plus unrealized P&L across all positions.
func (t *Trader) Equity() decimal.Decimal {
	return t.Balance.Add(t.TotalUnrealizedPnL())
}

// PositionReport returns a snapshot symbol -> signed quantity, omitting
// symbols whose position has flattened to zero. Realized P&L for a
// flattened symbol remains available via RealizedPnL/TotalRealizedPnL:
// the positions map itself is a persistent per-symbol record, not just
// current holdings.
func (t *Trader) PositionReport() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.positions))
	for symbol, p := range t.positions {
		if p.quantity.Abs().LessThan(epsilon) {
			continue
		}
		out[symbol] = p.quantity
	}
	return out
}

// UpdateMark sets the mark price used for unrealized P&L on symbol.
func (t *Trader) UpdateMark(symbol string, price decimal.Decimal) {
	t.posOrZero(symbol).lastMarkPrice = price
}

// RecordOrder appends order to the trader's append-only order history.
// Submitted orders are recorded whether or not they execute.
func (t *Trader) RecordOrder(o *orderbook.Order) {
	t.OrderHistory = append(t.OrderHistory, o)
}

// ApplyFill settles one fill of size qty at price for symbol/side against
// this trader's cash and position, using weighted-average cost basis.
// side is the side this trader took in the trade (BUY or SELL); fee is
// the fee amount (maker or taker) already computed as fee_rate*notional
// and is always a debit against balance.
func (t *Trader) ApplyFill(symbol string, side orderbook.Side, price, qty, fee decimal.Decimal) {
	notional := price.Mul(qty)
	p := t.posOrZero(symbol)

	if side == orderbook.BUY {
		t.Balance = t.Balance.Sub(notional).Sub(fee)
		t.applyBuy(p, price, qty)
	} else {
		t.Balance = t.Balance.Add(notional).Sub(fee)
		t.applySell(p, price, qty)
	}

}

func (t *Trader) applyBuy(p *position, price, qty decimal.Decimal) {
	switch {
	case p.quantity.GreaterThanOrEqual(decimal.Zero):
		// Extending or opening a long: quantity-weighted average cost.
		totalCost := p.avgCost.Mul(p.quantity).Add(price.Mul(qty))
		newQty := p.quantity.Add(qty)
		if newQty.IsPositive() {
			p.avgCost = totalCost.Div(newQty)
		}
		p.quantity = newQty
	default:
		// Covering a short, possibly beyond it into a new long.
		shortQty := p.quantity.Neg()
		covered := decimal.Min(qty, shortQty)
		p.realizedPnL = p.realizedPnL.Add(p.avgCost.Sub(price).Mul(covered))
		p.quantity = p.quantity.Add(covered)

		residual := qty.Sub(covered)
		if residual.IsPositive() {
			p.avgCost = price
			p.quantity = p.quantity.Add(residual)
		} else if p.quantity.IsZero() {
			p.avgCost = decimal.Zero
		}
	}
}

func (t *Trader) applySell(p *position, price, qty decimal.Decimal) {
	switch {
	case p.quantity.LessThanOrEqual(decimal.Zero):
		// Extending or opening a short.
		shortQty := p.quantity.Neg()
		totalCost := p.avgCost.Mul(shortQty).Add(price.Mul(qty))
		newShortQty := shortQty.Add(qty)
		if newShortQty.IsPositive() {
			p.avgCost = totalCost.Div(newShortQty)
		}
		p.quantity = p.quantity.Sub(qty)
	default:
		// Reducing a long, possibly beyond it into a new short.
		longQty := p.quantity
		reduced := decimal.Min(qty, longQty)
		p.realizedPnL = p.realizedPnL.Add(price.Sub(p.avgCost).Mul(reduced))
		p.quantity = p.quantity.Sub(reduced)

		residual := qty.Sub(reduced)
		if residual.IsPositive() {
			p.avgCost = price
			p.quantity = p.quantity.Sub(residual)
		} else if p.quantity.IsZero() {
			p.avgCost = decimal.Zero
		}
	}
}
