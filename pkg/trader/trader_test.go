package trader

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestApplyFillOpensLongAtWeightedAverageCost(t *testing.T) {
	tr := New("t1", d("10000"), RiskConfig{})

	tr.ApplyFill("ABC", orderbook.BUY, d("100"), d("10"), d("0"))
	tr.ApplyFill("ABC", orderbook.BUY, d("110"), d("10"), d("0"))

	if got := tr.Position("ABC"); !got.Equal(d("20")) {
		t.Fatalf("expected position 20, got %s", got)
	}
	if got := tr.AvgCost("ABC"); !got.Equal(d("105")) {
		t.Fatalf("expected avg cost 105, got %s", got)
	}
	wantBalance := d("10000").Sub(d("1000")).Sub(d("1100"))
	if got := tr.Balance; !got.Equal(wantBalance) {
		t.Fatalf("expected balance %s, got %s", wantBalance, got)
	}
}

func TestApplyFillRealizesPnLOnCover(t *testing.T) {
	tr := New("t1", d("10000"), RiskConfig{})

	// Open a short of 10 @ 100.
	tr.ApplyFill("ABC", orderbook.SELL, d("100"), d("10"), d("0"))
	if got := tr.Position("ABC"); !got.Equal(d("-10")) {
		t.Fatalf("expected short position -10, got %s", got)
	}

	// Cover 5 @ 90: realize (100-90)*5 = 50 profit, leave -5 short.
	tr.ApplyFill("ABC", orderbook.BUY, d("90"), d("5"), d("0"))
	if got := tr.Position("ABC"); !got.Equal(d("-5")) {
		t.Fatalf("expected residual short -5, got %s", got)
	}
	if got := tr.RealizedPnL("ABC"); !got.Equal(d("50")) {
		t.Fatalf("expected realized pnl 50, got %s", got)
	}
}

func TestApplyFillCoverBeyondShortOpensNewLong(t *testing.T) {
	tr := New("t1", d("10000"), RiskConfig{})

	tr.ApplyFill("ABC", orderbook.SELL, d("100"), d("10"), d("0"))
	// Buy 15 @ 90: covers the 10 short (profit 100) and opens a new long of 5 @ 90.
	tr.ApplyFill("ABC", orderbook.BUY, d("90"), d("15"), d("0"))

	if got := tr.Position("ABC"); !got.Equal(d("5")) {
		t.Fatalf("expected new long position 5, got %s", got)
	}
	if got := tr.AvgCost("ABC"); !got.Equal(d("90")) {
		t.Fatalf("expected new long avg cost 90, got %s", got)
	}
	if got := tr.RealizedPnL("ABC"); !got.Equal(d("100")) {
		t.Fatalf("expected realized pnl 100, got %s", got)
	}
}

func TestApplyFillPrunesFlatPosition(t *testing.T) {
	tr := New("t1", d("10000"), RiskConfig{})

	tr.ApplyFill("ABC", orderbook.BUY, d("100"), d("10"), d("0"))
	tr.ApplyFill("ABC", orderbook.SELL, d("110"), d("10"), d("0"))

	report := tr.PositionReport()
	if _, ok := report["ABC"]; ok {
		t.Fatalf("expected flat position to be pruned from report, got %+v", report)
	}
	if got := tr.RealizedPnL("ABC"); !got.Equal(d("100")) {
		t.Fatalf("expected realized pnl 100 to survive pruning, got %s", got)
	}
}

func TestUnrealizedPnLTracksMark(t *testing.T) {
	tr := New("t1", d("10000"), RiskConfig{})
	tr.ApplyFill("ABC", orderbook.BUY, d("100"), d("10"), d("0"))
	tr.UpdateMark("ABC", d("120"))

	if got := tr.UnrealizedPnL("ABC"); !got.Equal(d("200")) {
		t.Fatalf("expected unrealized pnl 200, got %s", got)
	}
	wantEquity := tr.Balance.Add(d("200"))
	if got := tr.Equity(); !got.Equal(wantEquity) {
		t.Fatalf("expected equity %s, got %s", wantEquity, got)
	}
}

func TestApplyFillChargesFeeRegardlessOfSide(t *testing.T) {
	tr := New("t1", d("1000"), RiskConfig{})
	tr.ApplyFill("ABC", orderbook.BUY, d("100"), d("1"), d("2"))
	if got := tr.Balance; !got.Equal(d("898")) {
		t.Fatalf("expected balance 1000-100-2=898, got %s", got)
	}
}
