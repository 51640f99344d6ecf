// Package riskrule implements the pre-trade risk gate the engine runs
// every order through before it may rest in or match against a book.
package riskrule

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
	"github.com/joripage/limitcore/pkg/trader"
)

// Context is everything a Rule needs to judge one order. EstimatedPrice is
// the price used to estimate notional: the limit price for LIMIT/ICEBERG,
// the stop price for STOP_LOSS, the limit price for STOP_LIMIT, and for a
// MARKET or TRAILING_STOP (which carry no price of their own) the last
// traded price for the symbol, else the best opposite-side quote.
type Context struct {
	Order           *orderbook.Order
	Trader          *trader.Trader
	EstimatedPrice  decimal.Decimal
	CurrentPosition decimal.Decimal // trader's current signed quantity held in the order's symbol
}

// EstimatedNotional is Order.RemainingQuantity * EstimatedPrice.
func (c Context) EstimatedNotional() decimal.Decimal {
	return c.Order.RemainingQuantity.Mul(c.EstimatedPrice)
}

// Violation names the rule that rejected an order and why.
type Violation struct {
	Rule   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("risk rule %q violated: %s", v.Rule, v.Reason)
}

// Rejected wraps a Violation so callers can distinguish a risk rejection
// from other submission failures with errors.As.
type Rejected struct {
	*Violation
}

// Rule is one independently pluggable pre-trade check.
type Rule interface {
	// Name identifies the rule in a Violation.
	Name() string
	// Check returns a non-nil error, always a *Violation, if ctx violates
	// the rule.
	Check(ctx Context) error
}

// Gate runs an ordered set of Rules and stops at the first violation.
type Gate struct {
	rules []Rule
}

// NewGate constructs a Gate that checks rules in order.
func NewGate(rules ...Rule) *Gate {
	return &Gate{rules: rules}
}

// Evaluate runs every rule in order, returning the first *Rejected found,
// or nil if ctx passes them all.
func (g *Gate) Evaluate(ctx Context) error {
	for _, r := range g.rules {
		if err := r.Check(ctx); err != nil {
			v, ok := err.(*Violation)
			if !ok {
				return err
			}
			return &Rejected{Violation: v}
		}
	}
	return nil
}

// MaxOrderNotional rejects any single order whose estimated notional
// exceeds the trader's configured ceiling. A zero ceiling disables it.
type MaxOrderNotional struct{}

func (MaxOrderNotional) Name() string { return "max_order_notional" }

func (MaxOrderNotional) Check(ctx Context) error {
	limit := ctx.Trader.Risk.MaxOrderNotional
	if limit.IsZero() {
		return nil
	}
	if ctx.EstimatedNotional().GreaterThan(limit) {
		return &Violation{"max_order_notional", fmt.Sprintf(
			"order notional %s exceeds max_order_notional %s", ctx.EstimatedNotional(), limit)}
	}
	return nil
}

// RiskPerTradeFraction rejects an order whose estimated notional exceeds
// a configured fraction of the trader's current equity. A zero fraction
// disables it.
type RiskPerTradeFraction struct{}

func (RiskPerTradeFraction) Name() string { return "risk_per_trade_fraction" }

func (RiskPerTradeFraction) Check(ctx Context) error {
	fraction := ctx.Trader.Risk.RiskPerTradeFraction
	if fraction.IsZero() {
		return nil
	}
	limit := ctx.Trader.Equity().Mul(fraction)
	if ctx.EstimatedNotional().GreaterThan(limit) {
		return &Violation{"risk_per_trade_fraction", fmt.Sprintf(
			"order notional %s exceeds %s of equity (%s)", ctx.EstimatedNotional(), fraction, limit)}
	}
	return nil
}

// BuyerBalance rejects a BUY order the trader's cash balance cannot
// cover. SELL orders are exempt: the original system allows selling
// against an unborrowed position.
type BuyerBalance struct{}

func (BuyerBalance) Name() string { return "buyer_balance" }

func (BuyerBalance) Check(ctx Context) error {
	if ctx.Order.Side != orderbook.BUY {
		return nil
	}
	if ctx.EstimatedNotional().GreaterThan(ctx.Trader.Balance) {
		return &Violation{"buyer_balance", fmt.Sprintf(
			"order notional %s exceeds available balance %s", ctx.EstimatedNotional(), ctx.Trader.Balance)}
	}
	return nil
}

// MaxExposurePerSymbol rejects an order that would push the trader's
// signed position quantity in the order's symbol past a configured
// absolute-quantity ceiling: projected = current_qty +/- order.quantity
// (BUY adds, SELL subtracts), rejected when abs(projected) exceeds the
// limit. A zero ceiling disables it.
type MaxExposurePerSymbol struct{}

func (MaxExposurePerSymbol) Name() string { return "max_exposure_per_symbol" }

func (MaxExposurePerSymbol) Check(ctx Context) error {
	limit := ctx.Trader.Risk.MaxExposurePerSymbol
	if limit.IsZero() {
		return nil
	}
	delta := ctx.Order.RemainingQuantity
	if ctx.Order.Side == orderbook.SELL {
		delta = delta.Neg()
	}
	projected := ctx.CurrentPosition.Add(delta)
	if projected.Abs().GreaterThan(limit) {
		return &Violation{"max_exposure_per_symbol", fmt.Sprintf(
			"projected position %s exceeds max_exposure_per_symbol %s", projected, limit)}
	}
	return nil
}

// DefaultRules is the standard rule set applied by pkg/engine, matching
// the four checks described for the pre-trade risk gate.
func DefaultRules() []Rule {
	return []Rule{
		MaxOrderNotional{},
		RiskPerTradeFraction{},
		BuyerBalance{},
		MaxExposurePerSymbol{},
	}
}
