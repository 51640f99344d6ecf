package orderbook

import "github.com/shopspring/decimal"

// priceLevelHeap orders resting price levels for one side of the book. Bids
// use a "greater than" comparator (max-heap); asks use "less than"
// (min-heap). It holds one entry per distinct price; the FIFO queue of
// orders at that price lives alongside it in OrderBook.bidQueues or
// OrderBook.askQueues.
type priceLevelHeap struct {
	prices []decimal.Decimal
	less   func(a, b decimal.Decimal) bool
	seen   map[string]bool
}

func newPriceLevelHeap(less func(a, b decimal.Decimal) bool) *priceLevelHeap {
	return &priceLevelHeap{less: less, seen: make(map[string]bool)}
}

func (h *priceLevelHeap) Len() int { return len(h.prices) }

func (h *priceLevelHeap) Less(i, j int) bool { return h.less(h.prices[i], h.prices[j]) }

func (h *priceLevelHeap) Swap(i, j int) { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceLevelHeap) Push(x any) {
	p := x.(decimal.Decimal)
	key := priceKey(p)
	if h.seen[key] {
		return
	}
	h.seen[key] = true
	h.prices = append(h.prices, p)
}

func (h *priceLevelHeap) Pop() any {
	n := len(h.prices)
	p := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.seen, priceKey(p))
	return p
}

func (h *priceLevelHeap) Peek() (decimal.Decimal, bool) {
	if len(h.prices) == 0 {
		return decimal.Zero, false
	}
	return h.prices[0], true
}

func (h *priceLevelHeap) Has(p decimal.Decimal) bool {
	return h.seen[priceKey(p)]
}

// priceKey canonicalizes a price for use as a map key: decimal.Decimal
// values that compare Equal can otherwise stringify differently depending
// on how they were constructed (e.g. decimal.NewFromInt(100) is "100"
// while a FIX/JSON-decoded "100.00" keeps its own scale). Truncate alone
// does not rescale a value that already has fewer fractional digits than
// the target precision, so two Equal prices could hash to different
// keys and land in separate FIFO queues. StringFixed always pads (or
// rounds) to exactly 8 fractional digits, giving Equal decimals an
// identical key regardless of how they were constructed.
func priceKey(p decimal.Decimal) string {
	return p.StringFixed(8)
}
