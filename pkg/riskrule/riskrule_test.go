package riskrule

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
	"github.com/joripage/limitcore/pkg/trader"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func mustLimitOrder(t *testing.T, side orderbook.Side, price, qty string) *orderbook.Order {
	t.Helper()
	o, err := orderbook.NewOrder("O1", orderbook.LIMIT, side, "ABC", "t1", d(price), d(qty), orderbook.GTC, time.Now())
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return o
}

func TestMaxOrderNotionalRejectsOversizedOrder(t *testing.T) {
	tr := trader.New("t1", d("1000000"), trader.RiskConfig{MaxOrderNotional: d("500")})
	order := mustLimitOrder(t, orderbook.BUY, "100", "10")

	err := MaxOrderNotional{}.Check(Context{Order: order, Trader: tr, EstimatedPrice: d("100")})
	if err == nil {
		t.Fatalf("expected violation for notional 1000 > limit 500")
	}
	var v *Violation
	if !errors.As(err, &v) || v.Rule != "max_order_notional" {
		t.Fatalf("expected max_order_notional violation, got %v", err)
	}
}

func TestMaxOrderNotionalZeroLimitDisablesCheck(t *testing.T) {
	tr := trader.New("t1", d("1000000"), trader.RiskConfig{})
	order := mustLimitOrder(t, orderbook.BUY, "100", "10")

	if err := (MaxOrderNotional{}).Check(Context{Order: order, Trader: tr, EstimatedPrice: d("100")}); err != nil {
		t.Fatalf("expected zero limit to disable the check, got %v", err)
	}
}

func TestBuyerBalanceRejectsInsufficientCash(t *testing.T) {
	tr := trader.New("t1", d("500"), trader.RiskConfig{})
	order := mustLimitOrder(t, orderbook.BUY, "100", "10")

	if err := (BuyerBalance{}).Check(Context{Order: order, Trader: tr, EstimatedPrice: d("100")}); err == nil {
		t.Fatalf("expected buyer balance violation: notional 1000 > balance 500")
	}
}

func TestBuyerBalanceExemptsSellOrders(t *testing.T) {
	tr := trader.New("t1", d("0"), trader.RiskConfig{})
	order := mustLimitOrder(t, orderbook.SELL, "100", "10")

	if err := (BuyerBalance{}).Check(Context{Order: order, Trader: tr, EstimatedPrice: d("100")}); err != nil {
		t.Fatalf("expected SELL orders to be exempt from the balance check, got %v", err)
	}
}

func TestRiskPerTradeFractionUsesEquityNotBalance(t *testing.T) {
	tr := trader.New("t1", d("1000"), trader.RiskConfig{RiskPerTradeFraction: d("0.1")})
	order := mustLimitOrder(t, orderbook.BUY, "50", "3")

	// notional 150 > 10% of equity (100) -> violation.
	if err := (RiskPerTradeFraction{}).Check(Context{Order: order, Trader: tr, EstimatedPrice: d("50")}); err == nil {
		t.Fatalf("expected risk-per-trade violation")
	}
}

func TestMaxExposurePerSymbolAccountsForCurrentExposure(t *testing.T) {
	tr := trader.New("t1", d("1000000"), trader.RiskConfig{MaxExposurePerSymbol: d("1000")})
	order := mustLimitOrder(t, orderbook.BUY, "100", "5")

	ctx := Context{Order: order, Trader: tr, EstimatedPrice: d("100"), CurrentPosition: d("997")}
	if err := (MaxExposurePerSymbol{}).Check(ctx); err == nil {
		t.Fatalf("expected projected position 997+5=1002 to exceed limit 1000")
	}

	sell := mustLimitOrder(t, orderbook.SELL, "100", "5")
	reducing := Context{Order: sell, Trader: tr, EstimatedPrice: d("100"), CurrentPosition: d("997")}
	if err := (MaxExposurePerSymbol{}).Check(reducing); err != nil {
		t.Fatalf("expected exposure-reducing sell 997-5=992 to pass, got %v", err)
	}
}

func TestGateStopsAtFirstViolationAndWrapsRejected(t *testing.T) {
	tr := trader.New("t1", d("10"), trader.RiskConfig{MaxOrderNotional: d("5")})
	order := mustLimitOrder(t, orderbook.BUY, "100", "10")

	gate := NewGate(DefaultRules()...)
	err := gate.Evaluate(Context{Order: order, Trader: tr, EstimatedPrice: d("100")})
	if err == nil {
		t.Fatalf("expected a rejection")
	}
	var rejected *Rejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *Rejected, got %T: %v", err, err)
	}
	if rejected.Rule != "max_order_notional" {
		t.Fatalf("expected max_order_notional to fire first, got %q", rejected.Rule)
	}
}

func TestGatePassesWhenNoRuleViolated(t *testing.T) {
	tr := trader.New("t1", d("1000000"), trader.RiskConfig{})
	order := mustLimitOrder(t, orderbook.BUY, "100", "10")

	gate := NewGate(DefaultRules()...)
	if err := gate.Evaluate(Context{Order: order, Trader: tr, EstimatedPrice: d("100")}); err != nil {
		t.Fatalf("expected no violation with every limit disabled, got %v", err)
	}
}
