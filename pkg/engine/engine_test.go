package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/orderbook"
	"github.com/joripage/limitcore/pkg/riskrule"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestEngine(strategy Strategy) *Engine {
	e := New(strategy, decimal.Zero, decimal.Zero, riskrule.NewGate(), nil, nil)
	e.AddOrderBook("ABC")
	return e
}

func mustLimit(t *testing.T, id string, side orderbook.Side, price, qty string, tif orderbook.TimeInForce) *orderbook.Order {
	t.Helper()
	o, err := orderbook.NewOrder(id, orderbook.LIMIT, side, "ABC", "trader-"+id, d(price), d(qty), tif, time.Now())
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func mustMarket(t *testing.T, id string, side orderbook.Side, qty string) *orderbook.Order {
	t.Helper()
	o, err := orderbook.NewOrder(id, orderbook.MARKET, side, "ABC", "trader-"+id, decimal.Zero, d(qty), orderbook.GTC, time.Now())
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func TestBasicCrossingMatch(t *testing.T) {
	e := newTestEngine(FIFO)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "10", orderbook.GTC)); err != nil {
		t.Fatalf("submit S1: %v", err)
	}
	trades, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "10", orderbook.GTC))
	if err != nil {
		t.Fatalf("submit B1: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if !trades[0].Price.Equal(d("100")) || !trades[0].Quantity.Equal(d("10")) {
		t.Fatalf("unexpected trade %+v", trades[0])
	}
	if trades[0].MakerOrderID != "S1" || trades[0].TakerOrderID != "B1" {
		t.Fatalf("expected S1 as maker, B1 as taker, got %+v", trades[0])
	}
}

func TestPriceTimePriorityFillsEarliestOrderFirst(t *testing.T) {
	e := newTestEngine(FIFO)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S2", orderbook.SELL, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	trades, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "5", orderbook.GTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].MakerOrderID != "S1" {
		t.Fatalf("expected the earlier resting order S1 to fill first, got %+v", trades)
	}
}

func TestMarketOrderSweepsMultipleLevels(t *testing.T) {
	e := newTestEngine(FIFO)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S2", orderbook.SELL, "101", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	trades, err := e.Submit(mustMarket(t, "M1", orderbook.BUY, "10"))
	if err != nil {
		t.Fatalf("submit market: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected market order to sweep both levels, got %d trades", len(trades))
	}
	if !trades[0].Price.Equal(d("100")) || !trades[1].Price.Equal(d("101")) {
		t.Fatalf("expected sweep in ascending price order, got %+v", trades)
	}
}

func TestMarketOrderAgainstEmptyBookIsUnmatchable(t *testing.T) {
	e := newTestEngine(FIFO)
	_, err := e.Submit(mustMarket(t, "M1", orderbook.BUY, "10"))
	if err == nil {
		t.Fatalf("expected ErrUnmatchableMarket against an empty book")
	}
}

func TestIOCResidualIsCanceledNotRested(t *testing.T) {
	e := newTestEngine(FIFO)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	trades, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "10", orderbook.IOC))
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || !trades[0].Quantity.Equal(d("5")) {
		t.Fatalf("expected a 5-unit partial fill, got %+v", trades)
	}

	book, _ := e.Book("ABC")
	if _, ok := book.GetOrder("B1"); ok {
		t.Fatalf("expected IOC residual to be canceled, not resting in the book")
	}
}

func TestGTCResidualRestsInBook(t *testing.T) {
	e := newTestEngine(FIFO)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "10", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	book, _ := e.Book("ABC")
	resting, ok := book.GetOrder("B1")
	if !ok {
		t.Fatalf("expected GTC residual to rest in the book")
	}
	if !resting.RemainingQuantity.Equal(d("5")) {
		t.Fatalf("expected 5 remaining, got %s", resting.RemainingQuantity)
	}
}

func TestStopLossTriggersOnLastTradePrice(t *testing.T) {
	e := newTestEngine(FIFO)
	stop, err := orderbook.NewStopOrder("STOP1", orderbook.STOP_LOSS, orderbook.SELL, "ABC", "trader-stop",
		d("95"), decimal.Zero, d("10"), orderbook.GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(stop); err != nil {
		t.Fatalf("submit stop: %v", err)
	}

	// No trade has happened yet, so the stop must not have fired.
	book, _ := e.Book("ABC")
	if book.BestAsk() != nil {
		t.Fatalf("expected stop order to stay pending, not rest in the book")
	}

	// Seed liquidity and trade down through 95 to trigger the stop.
	if _, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "94", "20", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	trades, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "94", "5", orderbook.GTC))
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, tr := range trades {
		if tr.TakerOrderID == "STOP1-triggered" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the triggered stop to appear among the trades, got %+v", trades)
	}
}

func TestIcebergReplenishesFromHiddenQuantity(t *testing.T) {
	e := newTestEngine(FIFO)
	iceberg, err := orderbook.NewIcebergOrder("ICE1", orderbook.SELL, "ABC", "trader-ice",
		d("100"), d("5"), d("15"), orderbook.GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(iceberg); err != nil {
		t.Fatalf("submit iceberg: %v", err)
	}

	book, _ := e.Book("ABC")
	resting := book.BestAsk()
	if resting == nil || !resting.RemainingQuantity.Equal(d("5")) {
		t.Fatalf("expected only the 5-unit display slice resting, got %+v", resting)
	}

	// Fully fill the first visible slice; a second slice should replenish.
	if _, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	resting = book.BestAsk()
	if resting == nil {
		t.Fatalf("expected iceberg to replenish a new visible slice")
	}
	if resting.IcebergParentID != "ICE1" {
		t.Fatalf("expected replenishment child to reference parent ICE1, got %q", resting.IcebergParentID)
	}
	if !resting.RemainingQuantity.Equal(d("5")) {
		t.Fatalf("expected second slice of 5, got %s", resting.RemainingQuantity)
	}
}

func TestCancelOrderStopsIcebergReplenishment(t *testing.T) {
	e := newTestEngine(FIFO)
	iceberg, err := orderbook.NewIcebergOrder("ICE1", orderbook.SELL, "ABC", "trader-ice",
		d("100"), d("5"), d("15"), orderbook.GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(iceberg); err != nil {
		t.Fatalf("submit iceberg: %v", err)
	}

	// Cancel by the client's own submitted ID, not a synthetic child ID.
	if err := e.CancelOrder("ABC", "ICE1"); err != nil {
		t.Fatalf("CancelOrder(ICE1): %v", err)
	}

	book, _ := e.Book("ABC")
	if book.BestAsk() != nil {
		t.Fatalf("expected the currently resting visible slice to be removed on cancel")
	}

	// Filling whatever might remain must not trigger a replenishment.
	if _, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if book.BestAsk() != nil {
		t.Fatalf("expected no replenishment after the iceberg parent was canceled")
	}

	if err := e.CancelOrder("ABC", "ICE1"); err == nil {
		t.Fatalf("expected canceling an already-canceled iceberg to fail")
	}
}

func TestProRataAllocatesProportionally(t *testing.T) {
	e := newTestEngine(PRO_RATA)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "30", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S2", orderbook.SELL, "100", "70", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}

	trades, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "10", orderbook.GTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected pro-rata to split across both makers, got %d trades", len(trades))
	}

	byMaker := map[string]decimal.Decimal{}
	for _, tr := range trades {
		byMaker[tr.MakerOrderID] = tr.Quantity
	}
	// 30% and 70% of 10 = 3 and 7 exactly, no residue to distribute.
	if !byMaker["S1"].Equal(d("3")) {
		t.Fatalf("expected S1 to receive 3, got %s", byMaker["S1"])
	}
	if !byMaker["S2"].Equal(d("7")) {
		t.Fatalf("expected S2 to receive 7, got %s", byMaker["S2"])
	}
}

func TestProRataResidueGoesToFirstMaker(t *testing.T) {
	e := newTestEngine(PRO_RATA)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "10", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S2", orderbook.SELL, "100", "10", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S3", orderbook.SELL, "100", "10", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}

	// 10 units split three ways floors to 3/3/3 with 1 unit of residue,
	// which must go to the first (top-priority) maker, S1.
	trades, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "10", orderbook.GTC))
	if err != nil {
		t.Fatal(err)
	}
	byMaker := map[string]decimal.Decimal{}
	for _, tr := range trades {
		byMaker[tr.MakerOrderID] = tr.Quantity
	}
	if !byMaker["S1"].Equal(d("4")) {
		t.Fatalf("expected S1 to receive the floor share plus residue (4), got %s", byMaker["S1"])
	}
	if !byMaker["S2"].Equal(d("3")) || !byMaker["S3"].Equal(d("3")) {
		t.Fatalf("expected S2 and S3 to receive 3 each, got %s / %s", byMaker["S2"], byMaker["S3"])
	}
}

func TestSecondPriceLevelFallsBackToFIFOUnderProRata(t *testing.T) {
	e := newTestEngine(PRO_RATA)
	if _, err := e.Submit(mustLimit(t, "S1", orderbook.SELL, "100", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S2", orderbook.SELL, "101", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(mustLimit(t, "S3", orderbook.SELL, "101", "5", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}

	trades, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "101", "15", orderbook.GTC))
	if err != nil {
		t.Fatal(err)
	}
	// Level 1 (100) consumes S1 entirely via the pro-rata pass (only one
	// maker there). Level 2 (101) must fall back to FIFO: S2 then S3.
	if len(trades) != 3 {
		t.Fatalf("expected 3 fills across two levels, got %d", len(trades))
	}
	if trades[1].MakerOrderID != "S2" || trades[2].MakerOrderID != "S3" {
		t.Fatalf("expected FIFO order S2 then S3 at the second level, got %+v", trades[1:])
	}
}

func TestCancelOrderRemovesRestingOrder(t *testing.T) {
	e := newTestEngine(FIFO)
	if _, err := e.Submit(mustLimit(t, "B1", orderbook.BUY, "100", "10", orderbook.GTC)); err != nil {
		t.Fatal(err)
	}
	if err := e.CancelOrder("ABC", "B1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	book, _ := e.Book("ABC")
	if book.BestBid() != nil {
		t.Fatalf("expected canceled order to no longer rest in the book")
	}
}

func TestCancelOrderRemovesPendingStop(t *testing.T) {
	e := newTestEngine(FIFO)
	stop, err := orderbook.NewStopOrder("STOP1", orderbook.STOP_LOSS, orderbook.SELL, "ABC", "trader-stop",
		d("90"), decimal.Zero, d("5"), orderbook.GTC, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Submit(stop); err != nil {
		t.Fatal(err)
	}
	if err := e.CancelOrder("ABC", "STOP1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if len(e.stopOrders) != 0 {
		t.Fatalf("expected pending stop to be removed, got %d remaining", len(e.stopOrders))
	}
}
