package orderbook

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustOrder(t *testing.T, id string, side Side, price, qty float64) *Order {
	t.Helper()
	o, err := NewOrder(id, LIMIT, side, "ABC", "trader-1",
		decimal.NewFromFloat(price), decimal.NewFromFloat(qty), GTC, time.Now())
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func TestBestBidAskEmpty(t *testing.T) {
	b := New("ABC")
	if b.BestBid() != nil {
		t.Fatalf("expected nil best bid on empty book")
	}
	if b.BestAsk() != nil {
		t.Fatalf("expected nil best ask on empty book")
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := New("ABC")
	first := mustOrder(t, "B1", BUY, 100, 10)
	second := mustOrder(t, "B2", BUY, 100, 10)
	better := mustOrder(t, "B3", BUY, 101, 10)

	for _, o := range []*Order{first, second, better} {
		if err := b.Add(o); err != nil {
			t.Fatalf("Add(%s): %v", o.ID, err)
		}
	}

	// Highest price wins regardless of arrival order.
	if got := b.BestBid(); got.ID != "B3" {
		t.Fatalf("expected best bid B3, got %s", got.ID)
	}

	// Once the better price is removed, priority within 100 is FIFO.
	if err := b.Remove("B3"); err != nil {
		t.Fatalf("Remove(B3): %v", err)
	}
	if got := b.BestBid(); got.ID != "B1" {
		t.Fatalf("expected FIFO priority at same price to surface B1, got %s", got.ID)
	}
}

func TestLazyDeletionSkipsCanceledOrders(t *testing.T) {
	b := New("ABC")
	a1 := mustOrder(t, "A1", SELL, 100, 5)
	a2 := mustOrder(t, "A2", SELL, 100, 5)
	if err := b.Add(a1); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(a2); err != nil {
		t.Fatal(err)
	}

	if err := b.Remove("A1"); err != nil {
		t.Fatalf("Remove(A1): %v", err)
	}

	if got := b.BestAsk(); got == nil || got.ID != "A2" {
		t.Fatalf("expected tombstoned A1 to be skipped in favor of A2, got %+v", got)
	}
}

func TestOrdersAtBestBidPreservesOrderAndLiveness(t *testing.T) {
	b := New("ABC")
	first := mustOrder(t, "B1", BUY, 100, 10)
	second := mustOrder(t, "B2", BUY, 100, 20)
	if err := b.Add(first); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(second); err != nil {
		t.Fatal(err)
	}
	if err := b.Remove("B1"); err != nil {
		t.Fatal(err)
	}

	makers := b.OrdersAtBestBid()
	if len(makers) != 1 || makers[0].ID != "B2" {
		t.Fatalf("expected only live maker B2, got %+v", makers)
	}
}

func TestDepthAggregatesLiveQuantityPerPrice(t *testing.T) {
	b := New("ABC")
	must := func(o *Order, err error) *Order {
		if err != nil {
			t.Fatal(err)
		}
		return o
	}
	if err := b.Add(must(NewOrder("B1", LIMIT, BUY, "ABC", "t1", decimal.NewFromInt(100), decimal.NewFromInt(10), GTC, time.Now()))); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(must(NewOrder("B2", LIMIT, BUY, "ABC", "t1", decimal.NewFromInt(100), decimal.NewFromInt(5), GTC, time.Now()))); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(must(NewOrder("B3", LIMIT, BUY, "ABC", "t1", decimal.NewFromInt(99), decimal.NewFromInt(7), GTC, time.Now()))); err != nil {
		t.Fatal(err)
	}

	bids, _ := b.Depth(5)
	if len(bids) != 2 {
		t.Fatalf("expected 2 distinct bid levels, got %d", len(bids))
	}
	if !bids[0].Price.Equal(decimal.NewFromInt(100)) || !bids[0].Quantity.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected top level 100@15, got %+v", bids[0])
	}
}

func TestEffectivePriceForMarketOrders(t *testing.T) {
	buy, err := NewOrder("M1", MARKET, BUY, "ABC", "t1", decimal.Zero, decimal.NewFromInt(1), GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	sell, err := NewOrder("M2", MARKET, SELL, "ABC", "t1", decimal.Zero, decimal.NewFromInt(1), GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !buy.EffectivePrice().GreaterThan(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("expected market buy effective price to dominate any limit price")
	}
	if !sell.EffectivePrice().IsZero() {
		t.Fatalf("expected market sell effective price to be zero")
	}
}

func TestAddRejectsSymbolMismatch(t *testing.T) {
	b := New("ABC")
	o := mustOrder(t, "B1", BUY, 100, 10)
	o.Symbol = "XYZ"
	if err := b.Add(o); err == nil {
		t.Fatalf("expected symbol mismatch error")
	}
}

func TestNewOrderRejectsNonPositiveQuantity(t *testing.T) {
	if _, err := NewOrder("X", LIMIT, BUY, "ABC", "t1", decimal.NewFromInt(1), decimal.Zero, GTC, time.Now()); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
}

// Equal decimal.Decimal prices constructed with different scales (e.g.
// decimal.NewFromInt's exp=0 "100" vs a FIX/JSON-decoded "100.00") must
// land in the same FIFO queue and price-level heap entry.
func TestEqualPricesWithDifferentScaleShareOnePriceLevel(t *testing.T) {
	b := New("ABC")
	first, err := NewOrder("B1", LIMIT, BUY, "ABC", "t1", decimal.NewFromInt(100), decimal.NewFromInt(10), GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	scaled, _ := decimal.NewFromString("100.00")
	second, err := NewOrder("B2", LIMIT, BUY, "ABC", "t1", scaled, decimal.NewFromInt(10), GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Add(first); err != nil {
		t.Fatalf("Add(B1): %v", err)
	}
	if err := b.Add(second); err != nil {
		t.Fatalf("Add(B2): %v", err)
	}

	best := b.BestBid()
	if best == nil || !best.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected best bid at 100, got %+v", best)
	}
	bids, _ := b.Depth(5)
	if len(bids) != 1 {
		t.Fatalf("expected one aggregated price level for equal prices of differing scale, got %d", len(bids))
	}
	if !bids[0].Quantity.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected aggregated quantity 20 at the shared price level, got %s", bids[0].Quantity)
	}

	orders := b.OrdersAtBestBid()
	if len(orders) != 2 || orders[0].ID != "B1" {
		t.Fatalf("expected both B1 and B2 in one FIFO queue with B1 first, got %+v", orders)
	}
}
