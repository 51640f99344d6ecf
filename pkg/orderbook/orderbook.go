package orderbook

import (
	"container/heap"
	"fmt"
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// DepthLevel is one aggregated price level as reported by Depth.
type DepthLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook holds the resting liquidity for a single symbol: two priority
// structures (bids, asks), each a heap of price levels backed by a FIFO
// deque per level, plus an id index for O(1) lookup and lazy cancellation.
//
// Cancellation is lazy: Remove only tombstones the order (drops it from
// the id index, flags it canceled); the deque entry is discarded the next
// time it surfaces at the front of its level, mirroring the heap-of-orders
// lazy-deletion scheme described for a single priority queue.
//
// An OrderBook is not safe for concurrent use; callers (pkg/engine) are
// responsible for serializing access, per the engine's single-threaded
// cooperative processing model.
type OrderBook struct {
	Symbol string

	bidLevels *priceLevelHeap
	askLevels *priceLevelHeap
	bidQueues map[string]*deque.Deque[*Order]
	askQueues map[string]*deque.Deque[*Order]

	ordersByID map[string]*Order

	seq int64
}

// New constructs an empty book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol:     symbol,
		bidLevels:  newPriceLevelHeap(func(a, b decimal.Decimal) bool { return a.GreaterThan(b) }),
		askLevels:  newPriceLevelHeap(func(a, b decimal.Decimal) bool { return a.LessThan(b) }),
		bidQueues:  make(map[string]*deque.Deque[*Order]),
		askQueues:  make(map[string]*deque.Deque[*Order]),
		ordersByID: make(map[string]*Order),
	}
}

// NextSequence assigns and returns the next monotonic sequence number for
// this book. Add calls it for every order placed without a sequence, which
// is how iceberg replenishment children receive a fresh one.
func (b *OrderBook) NextSequence() int64 {
	return atomic.AddInt64(&b.seq, 1)
}

// Add inserts a LIMIT (or a sliced ICEBERG child, which is itself a LIMIT)
// order into the book. MARKET and the raw advanced types must never reach
// here; the engine matches MARKET directly and routes STOP_*/ICEBERG
// parents elsewhere.
func (b *OrderBook) Add(o *Order) error {
	if o.Symbol != b.Symbol {
		return fmt.Errorf("%w: order symbol %q, book symbol %q", ErrSymbolMismatch, o.Symbol, b.Symbol)
	}
	if o.Type != LIMIT {
		return fmt.Errorf("%w: %q", ErrUnsupportedOrderType, o.Type)
	}
	if o.SequenceNumber == 0 {
		o.SequenceNumber = b.NextSequence()
	}
	b.ordersByID[o.ID] = o

	key := priceKey(o.Price)
	if o.Side == BUY {
		q, ok := b.bidQueues[key]
		if !ok {
			q = &deque.Deque[*Order]{}
			b.bidQueues[key] = q
			heap.Push(b.bidLevels, o.Price)
		}
		q.PushBack(o)
	} else {
		q, ok := b.askQueues[key]
		if !ok {
			q = &deque.Deque[*Order]{}
			b.askQueues[key] = q
			heap.Push(b.askLevels, o.Price)
		}
		q.PushBack(o)
	}
	return nil
}

// Remove tombstones order id: O(1) against the id index. The physical
// deque entry is discarded lazily, the next time it surfaces at the front
// of its price level. Removing an already-removed id is a benign no-op
// signaled by ErrNotFound.
func (b *OrderBook) Remove(orderID string) error {
	o, ok := b.ordersByID[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	delete(b.ordersByID, orderID)
	o.canceled = true
	return nil
}

// GetOrder returns the live order for id, if any.
func (b *OrderBook) GetOrder(orderID string) (*Order, bool) {
	o, ok := b.ordersByID[orderID]
	return o, ok
}

func isDead(o *Order) bool {
	return o.canceled || o.RemainingQuantity.LessThanOrEqual(decimal.Zero)
}

// cleanTop discards tombstoned/exhausted orders from the front of the top
// price level, and exhausted price levels themselves, until the top of
// the heap is either empty or points at a live order.
func (b *OrderBook) cleanTop(levels *priceLevelHeap, queues map[string]*deque.Deque[*Order]) {
	for levels.Len() > 0 {
		p, _ := levels.Peek()
		key := priceKey(p)
		q, ok := queues[key]
		if !ok {
			heap.Pop(levels)
			continue
		}
		for q.Len() > 0 && isDead(q.Front()) {
			q.PopFront()
		}
		if q.Len() == 0 {
			delete(queues, key)
			heap.Pop(levels)
			continue
		}
		return
	}
}

// BestBid returns the highest-priority resting bid, or nil if the side is
// empty.
func (b *OrderBook) BestBid() *Order {
	b.cleanTop(b.bidLevels, b.bidQueues)
	if b.bidLevels.Len() == 0 {
		return nil
	}
	p, _ := b.bidLevels.Peek()
	return b.bidQueues[priceKey(p)].Front()
}

// BestAsk returns the highest-priority (lowest-priced) resting ask, or nil
// if the side is empty.
func (b *OrderBook) BestAsk() *Order {
	b.cleanTop(b.askLevels, b.askQueues)
	if b.askLevels.Len() == 0 {
		return nil
	}
	p, _ := b.askLevels.Peek()
	return b.askQueues[priceKey(p)].Front()
}

// OrdersAtBestBid returns every live order resting at the best bid price,
// in FIFO order, for pro-rata allocation.
func (b *OrderBook) OrdersAtBestBid() []*Order {
	return b.ordersAtTop(b.bidLevels, b.bidQueues)
}

// OrdersAtBestAsk returns every live order resting at the best ask price,
// in FIFO order, for pro-rata allocation.
func (b *OrderBook) OrdersAtBestAsk() []*Order {
	return b.ordersAtTop(b.askLevels, b.askQueues)
}

func (b *OrderBook) ordersAtTop(levels *priceLevelHeap, queues map[string]*deque.Deque[*Order]) []*Order {
	b.cleanTop(levels, queues)
	if levels.Len() == 0 {
		return nil
	}
	p, _ := levels.Peek()
	q := queues[priceKey(p)]
	n := q.Len()
	out := make([]*Order, 0, n)
	buf := make([]*Order, 0, n)
	for i := 0; i < n; i++ {
		o := q.PopFront()
		buf = append(buf, o)
		if !isDead(o) {
			out = append(out, o)
		}
	}
	for _, o := range buf {
		q.PushBack(o)
	}
	return out
}

// Depth aggregates live resting quantity by price for up to levels
// distinct prices on each side. It walks a copy of the price heap and
// restores every queue it scans, so it never disturbs live priority
// ordering; canceled entries and empty levels are skipped, not discarded.
func (b *OrderBook) Depth(levels int) (bids, asks []DepthLevel) {
	bids = b.depthSide(b.bidLevels, b.bidQueues, levels)
	asks = b.depthSide(b.askLevels, b.askQueues, levels)
	return bids, asks
}

func (b *OrderBook) depthSide(lvls *priceLevelHeap, queues map[string]*deque.Deque[*Order], levels int) []DepthLevel {
	prices := make([]decimal.Decimal, len(lvls.prices))
	copy(prices, lvls.prices)
	tmp := &priceLevelHeap{prices: prices, less: lvls.less, seen: map[string]bool{}}
	for _, p := range prices {
		tmp.seen[priceKey(p)] = true
	}
	heap.Init(tmp)

	out := make([]DepthLevel, 0, levels)
	for tmp.Len() > 0 && len(out) < levels {
		p := heap.Pop(tmp).(decimal.Decimal)
		q, ok := queues[priceKey(p)]
		if !ok || q.Len() == 0 {
			continue
		}
		total := decimal.Zero
		n := q.Len()
		buf := make([]*Order, 0, n)
		for i := 0; i < n; i++ {
			o := q.PopFront()
			buf = append(buf, o)
			if !o.canceled {
				total = total.Add(o.RemainingQuantity)
			}
		}
		for _, o := range buf {
			q.PushBack(o)
		}
		if total.IsPositive() {
			out = append(out, DepthLevel{Price: p, Quantity: total})
		}
	}
	return out
}

// CancelAll tombstones every resting order belonging to traderID.
func (b *OrderBook) CancelAll(traderID string) {
	for id, o := range b.ordersByID {
		if o.TraderID == traderID {
			delete(b.ordersByID, id)
			o.canceled = true
		}
	}
}
