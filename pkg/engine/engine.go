// Package engine implements the matching engine: the sole entry point for
// order submission, risk enforcement, price-time or pro-rata matching,
// stop and iceberg order lifecycles, settlement, and trade publication.
//
// An Engine is defined as single-threaded cooperative: one Submit call
// runs to completion, including every recursive trigger it causes,
// before the next may begin. It performs no internal locking; callers
// that need concurrent access must serialize it themselves (a coarse
// mutex, as pkg/oms does, or a single-consumer inbox, as pkg/ingress
// does) per the concurrency model this package implements.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joripage/limitcore/pkg/eventbus"
	"github.com/joripage/limitcore/pkg/logging"
	"github.com/joripage/limitcore/pkg/orderbook"
	"github.com/joripage/limitcore/pkg/riskrule"
	"github.com/joripage/limitcore/pkg/trader"
)

// Strategy selects how liquidity at the top maker price level is
// allocated to an aggressor.
type Strategy string

const (
	FIFO     Strategy = "FIFO"
	PRO_RATA Strategy = "PRO_RATA"
)

// Event names published on the engine's bus.
const (
	EventOrderAdded    = "order_added"
	EventOrderRemoved  = "order_removed"
	EventTradeExecuted = "trade_executed"
)

type icebergState struct {
	order    *orderbook.Order
	childSeq int
}

// Engine is the matching engine for every registered symbol.
type Engine struct {
	Strategy Strategy
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal

	books  map[string]*orderbook.OrderBook
	traders map[string]*trader.Trader

	trades         []*Trade
	lastTradePrice map[string]decimal.Decimal
	stopOrders     []*orderbook.Order
	icebergParents map[string]*icebergState

	gate   *riskrule.Gate
	bus    *eventbus.Bus
	logger *logging.Logger

	tradeSeq int64
}

// New constructs an Engine. logger may be nil.
func New(strategy Strategy, makerFee, takerFee decimal.Decimal, gate *riskrule.Gate, bus *eventbus.Bus, logger *logging.Logger) *Engine {
	if gate == nil {
		gate = riskrule.NewGate(riskrule.DefaultRules()...)
	}
	if bus == nil {
		bus = eventbus.New(logger)
	}
	return &Engine{
		Strategy:       strategy,
		MakerFee:       makerFee,
		TakerFee:       takerFee,
		books:          make(map[string]*orderbook.OrderBook),
		traders:        make(map[string]*trader.Trader),
		lastTradePrice: make(map[string]decimal.Decimal),
		icebergParents: make(map[string]*icebergState),
		gate:           gate,
		bus:            bus,
		logger:         logger,
	}
}

// AddOrderBook registers a fresh, empty book for symbol.
func (e *Engine) AddOrderBook(symbol string) *orderbook.OrderBook {
	book := orderbook.New(symbol)
	e.books[symbol] = book
	return book
}

// RegisterTrader adds t to the engine's trader registry.
func (e *Engine) RegisterTrader(t *trader.Trader) {
	e.traders[t.TraderID] = t
}

// Book returns the registered book for symbol, if any.
func (e *Engine) Book(symbol string) (*orderbook.OrderBook, bool) {
	b, ok := e.books[symbol]
	return b, ok
}

// Trader returns the registered trader by id, if any.
func (e *Engine) Trader(traderID string) (*trader.Trader, bool) {
	t, ok := e.traders[traderID]
	return t, ok
}

// Trades returns the full append-only trade log.
func (e *Engine) Trades() []*Trade {
	return e.trades
}

// Subscribe registers handler for event ("order_added", "order_removed",
// "trade_executed").
func (e *Engine) Subscribe(event string, handler eventbus.Handler) {
	e.bus.Subscribe(event, handler)
}

func (e *Engine) nextTradeID() string {
	e.tradeSeq++
	return fmt.Sprintf("t-%d", e.tradeSeq)
}

// Submit is the sole ingress for every order type. It performs
// resolution, risk gating, recording, routing, matching, TIF resolution,
// and stop activation, returning every trade this call (including its
// recursive triggers) produced.
func (e *Engine) Submit(o *orderbook.Order) ([]*Trade, error) {
	book, ok := e.books[o.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, o.Symbol)
	}

	if tr, ok := e.traders[o.TraderID]; ok {
		if err := e.checkRisk(book, tr, o); err != nil {
			return nil, err
		}
		tr.RecordOrder(o)
	}

	switch o.Type {
	case orderbook.STOP_LOSS, orderbook.STOP_LIMIT, orderbook.TRAILING_STOP:
		if o.Type == orderbook.TRAILING_STOP {
			if last, ok := e.lastTradePrice[o.Symbol]; ok {
				o.TrailingWaterMark = last
			}
		}
		e.stopOrders = append(e.stopOrders, o)
		return nil, nil

	case orderbook.ICEBERG:
		state := &icebergState{order: o}
		e.icebergParents[o.ID] = state
		child, err := e.sliceIcebergChild(state)
		if err != nil {
			return nil, err
		}
		return e.Submit(child)

	case orderbook.LIMIT:
		if err := book.Add(o); err != nil {
			return nil, err
		}
		e.bus.Publish(EventOrderAdded, o)
		return e.runMatchAndActivate(book, o)

	case orderbook.MARKET:
		return e.runMatchAndActivate(book, o)

	default:
		return nil, fmt.Errorf("%w: %q", orderbook.ErrUnsupportedOrderType, o.Type)
	}
}

// runMatchAndActivate matches incoming against book, resolves IOC
// residual, and runs the post-match stop activation pass.
func (e *Engine) runMatchAndActivate(book *orderbook.OrderBook, incoming *orderbook.Order) ([]*Trade, error) {
	trades, err := e.matchSymbol(book, incoming)
	if err != nil {
		return trades, err
	}

	if incoming.Type == orderbook.LIMIT && incoming.TIF == orderbook.IOC && incoming.RemainingQuantity.IsPositive() {
		_ = book.Remove(incoming.ID)
		e.bus.Publish(EventOrderRemoved, incoming)
	}

	trades = append(trades, e.activateStops(incoming.Symbol)...)
	return trades, nil
}

// matchSymbol repeatedly crosses incoming against the resting side of
// book until incoming is exhausted or the book no longer crosses it.
// incoming is always the aggressor: it is either the LIMIT order just
// inserted into book, or a MARKET order that is never inserted.
func (e *Engine) matchSymbol(book *orderbook.OrderBook, incoming *orderbook.Order) ([]*Trade, error) {
	var trades []*Trade
	usedProRata := false

	for incoming.RemainingQuantity.IsPositive() {
		opposite := e.bestOpposite(book, incoming.Side)
		if opposite == nil {
			if incoming.Type == orderbook.MARKET && len(trades) == 0 {
				return trades, fmt.Errorf("%w: %s", ErrUnmatchableMarket, incoming.Symbol)
			}
			break
		}
		if !crosses(incoming, opposite) {
			break
		}

		if e.Strategy == PRO_RATA && incoming.Type != orderbook.MARKET && !usedProRata {
			usedProRata = true
			levelTrades := e.matchProRataLevel(book, incoming)
			trades = append(trades, levelTrades...)
			continue
		}

		fillQty := decimal.Min(incoming.RemainingQuantity, opposite.RemainingQuantity)
		trades = append(trades, e.executeFill(book, incoming, opposite, fillQty, opposite.Price))
	}

	return trades, nil
}

func (e *Engine) bestOpposite(book *orderbook.OrderBook, side orderbook.Side) *orderbook.Order {
	if side == orderbook.BUY {
		return book.BestAsk()
	}
	return book.BestBid()
}

// crosses reports whether incoming's effective price is marketable
// against opposite's effective price.
func crosses(incoming, opposite *orderbook.Order) bool {
	if incoming.Side == orderbook.BUY {
		return incoming.EffectivePrice().GreaterThanOrEqual(opposite.EffectivePrice())
	}
	return incoming.EffectivePrice().LessThanOrEqual(opposite.EffectivePrice())
}

// matchProRataLevel allocates incoming's quantity across every live
// maker at the current top price level, proportional to remaining
// quantity, floored, with the residue given to the top-priority (first
// FIFO) maker at that level.
func (e *Engine) matchProRataLevel(book *orderbook.OrderBook, incoming *orderbook.Order) []*Trade {
	var makers []*orderbook.Order
	if incoming.Side == orderbook.BUY {
		makers = book.OrdersAtBestAsk()
	} else {
		makers = book.OrdersAtBestBid()
	}
	if len(makers) == 0 {
		return nil
	}

	totalMakerQty := decimal.Zero
	for _, m := range makers {
		totalMakerQty = totalMakerQty.Add(m.RemainingQuantity)
	}
	allocatable := decimal.Min(incoming.RemainingQuantity, totalMakerQty)
	if allocatable.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	shares := make([]decimal.Decimal, len(makers))
	allocated := decimal.Zero
	for i, m := range makers {
		share := m.RemainingQuantity.Div(totalMakerQty).Mul(allocatable).Floor()
		shares[i] = share
		allocated = allocated.Add(share)
	}
	if residue := allocatable.Sub(allocated); residue.IsPositive() {
		shares[0] = shares[0].Add(residue)
	}

	var trades []*Trade
	for i, m := range makers {
		if shares[i].LessThanOrEqual(decimal.Zero) {
			continue
		}
		trades = append(trades, e.executeFill(book, incoming, m, shares[i], m.Price))
		if incoming.RemainingQuantity.LessThanOrEqual(decimal.Zero) {
			break
		}
	}
	return trades
}

// executeFill settles one fill of qty at price between incoming (taker)
// and maker, publishes the trade event, and evicts either side that is
// now fully filled, triggering iceberg replenishment as needed.
func (e *Engine) executeFill(book *orderbook.OrderBook, incoming, maker *orderbook.Order, qty, price decimal.Decimal) *Trade {
	incoming.RemainingQuantity = incoming.RemainingQuantity.Sub(qty)
	maker.RemainingQuantity = maker.RemainingQuantity.Sub(qty)

	var buyOrder, sellOrder *orderbook.Order
	if incoming.Side == orderbook.BUY {
		buyOrder, sellOrder = incoming, maker
	} else {
		buyOrder, sellOrder = maker, incoming
	}

	notional := price.Mul(qty)
	takerFee := e.TakerFee.Mul(notional)
	makerFee := e.MakerFee.Mul(notional)

	if buyer, ok := e.traders[buyOrder.TraderID]; ok {
		fee := takerFee
		if buyOrder == maker {
			fee = makerFee
		}
		buyer.ApplyFill(incoming.Symbol, orderbook.BUY, price, qty, fee)
	}
	if seller, ok := e.traders[sellOrder.TraderID]; ok {
		fee := takerFee
		if sellOrder == maker {
			fee = makerFee
		}
		seller.ApplyFill(incoming.Symbol, orderbook.SELL, price, qty, fee)
	}

	e.lastTradePrice[incoming.Symbol] = price
	for _, t := range e.traders {
		t.UpdateMark(incoming.Symbol, price)
	}

	trade := &Trade{
		TradeID:      e.nextTradeID(),
		Symbol:       incoming.Symbol,
		Price:        price,
		Quantity:     qty,
		TakerOrderID: incoming.ID,
		MakerOrderID: maker.ID,
		TakerSide:    incoming.Side,
		Timestamp:    time.Now().UTC(),
		MakerFee:     makerFee,
		TakerFee:     takerFee,
	}
	e.trades = append(e.trades, trade)
	e.bus.Publish(EventTradeExecuted, trade)

	e.maybeEvict(book, maker)
	if incoming.Type == orderbook.LIMIT {
		e.maybeEvict(book, incoming)
	}

	return trade
}

// maybeEvict removes o from book once it has no remaining quantity, and
// replenishes its iceberg parent if o was a sliced child.
func (e *Engine) maybeEvict(book *orderbook.OrderBook, o *orderbook.Order) {
	if o.RemainingQuantity.IsPositive() {
		return
	}
	_ = book.Remove(o.ID)
	e.bus.Publish(EventOrderRemoved, o)

	if o.IcebergParentID == "" {
		return
	}
	state, ok := e.icebergParents[o.IcebergParentID]
	if !ok || state.order.HiddenRemaining.LessThanOrEqual(decimal.Zero) {
		return
	}
	child, err := e.sliceIcebergChild(state)
	if err != nil {
		return
	}
	if err := book.Add(child); err != nil {
		if e.logger != nil {
			e.logger.Warn(context.Background(), "engine: iceberg replenishment failed", zap.Error(err))
		}
		return
	}
	e.bus.Publish(EventOrderAdded, child)
}

// sliceIcebergChild carves the next visible LIMIT slice off state's
// parent, with a fresh id and timestamp. The book gives it a new sequence
// number and queues it behind whatever else is already resting at that
// price when it is added, so it loses priority to those orders.
func (e *Engine) sliceIcebergChild(state *icebergState) (*orderbook.Order, error) {
	qty := decimal.Min(state.order.DisplayQuantity, state.order.HiddenRemaining)
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("engine: iceberg %s has no hidden quantity left", state.order.ID)
	}
	state.childSeq++
	childID := fmt.Sprintf("%s-child-%d", state.order.ID, state.childSeq)
	child, err := orderbook.NewOrder(childID, orderbook.LIMIT, state.order.Side, state.order.Symbol,
		state.order.TraderID, state.order.Price, qty, state.order.TIF, time.Now())
	if err != nil {
		return nil, err
	}
	child.IcebergParentID = state.order.ID
	state.order.HiddenRemaining = state.order.HiddenRemaining.Sub(qty)
	return child, nil
}

// activateStops scans pending stop orders for symbol and re-submits any
// whose trigger condition is now met by the current last trade price.
// Each stop is removed from the pending list before it is re-submitted,
// so a stop can trigger at most once; this bounds the recursive
// match -> activate -> match cycle by the number of live stops.
func (e *Engine) activateStops(symbol string) []*Trade {
	last, ok := e.lastTradePrice[symbol]
	if !ok || len(e.stopOrders) == 0 {
		return nil
	}

	remaining := e.stopOrders[:0:0]
	var triggered []*orderbook.Order
	for _, s := range e.stopOrders {
		if s.Symbol != symbol {
			remaining = append(remaining, s)
			continue
		}
		if s.Type == orderbook.TRAILING_STOP {
			updateTrailingWaterMark(s, last)
		}
		if stopTriggered(s, last) {
			triggered = append(triggered, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	e.stopOrders = remaining

	var trades []*Trade
	for _, s := range triggered {
		converted, err := convertTriggeredStop(s)
		if err != nil {
			continue
		}
		newTrades, err := e.Submit(converted)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn(context.Background(), "engine: triggered stop rejected", zap.Error(err))
			}
			continue
		}
		trades = append(trades, newTrades...)
	}
	return trades
}

func stopTriggered(s *orderbook.Order, last decimal.Decimal) bool {
	switch s.Type {
	case orderbook.STOP_LOSS, orderbook.STOP_LIMIT:
		if s.Side == orderbook.SELL {
			return last.LessThanOrEqual(s.StopPrice)
		}
		return last.GreaterThanOrEqual(s.StopPrice)
	case orderbook.TRAILING_STOP:
		if s.Side == orderbook.SELL {
			return last.LessThanOrEqual(s.TrailingWaterMark.Sub(s.TrailingOffset))
		}
		return last.GreaterThanOrEqual(s.TrailingWaterMark.Add(s.TrailingOffset))
	default:
		return false
	}
}

func updateTrailingWaterMark(s *orderbook.Order, last decimal.Decimal) {
	if s.TrailingWaterMark.IsZero() {
		s.TrailingWaterMark = last
		return
	}
	if s.Side == orderbook.SELL {
		if last.GreaterThan(s.TrailingWaterMark) {
			s.TrailingWaterMark = last
		}
		return
	}
	if last.LessThan(s.TrailingWaterMark) {
		s.TrailingWaterMark = last
	}
}

// convertTriggeredStop turns a fired stop into the order it becomes on
// activation: STOP_LOSS/TRAILING_STOP become MARKET, STOP_LIMIT becomes
// LIMIT at its limit price.
func convertTriggeredStop(s *orderbook.Order) (*orderbook.Order, error) {
	id := s.ID + "-triggered"
	switch s.Type {
	case orderbook.STOP_LOSS, orderbook.TRAILING_STOP:
		return orderbook.NewOrder(id, orderbook.MARKET, s.Side, s.Symbol, s.TraderID,
			decimal.Zero, s.RemainingQuantity, s.TIF, time.Now())
	case orderbook.STOP_LIMIT:
		return orderbook.NewOrder(id, orderbook.LIMIT, s.Side, s.Symbol, s.TraderID,
			s.LimitPrice, s.RemainingQuantity, s.TIF, time.Now())
	default:
		return nil, fmt.Errorf("engine: %q is not a stop order type", s.Type)
	}
}

// checkRisk estimates order's notional and runs it through the risk
// gate. Per the risk gate contract, a notional that cannot be estimated
// (a MARKET or TRAILING_STOP with neither a last trade price nor an
// opposite quote)
// silently skips the check rather than rejecting the order.
func (e *Engine) checkRisk(book *orderbook.OrderBook, tr *trader.Trader, o *orderbook.Order) error {
	price := e.estimateNotionalPrice(book, o)
	if price.IsZero() {
		return nil
	}
	ctx := riskrule.Context{
		Order:           o,
		Trader:          tr,
		EstimatedPrice:  price,
		CurrentPosition: tr.Position(o.Symbol),
	}
	return e.gate.Evaluate(ctx)
}

func (e *Engine) estimateNotionalPrice(book *orderbook.OrderBook, o *orderbook.Order) decimal.Decimal {
	switch o.Type {
	case orderbook.MARKET, orderbook.TRAILING_STOP:
		if last, ok := e.lastTradePrice[o.Symbol]; ok {
			return last
		}
		opp := e.bestOpposite(book, o.Side)
		if opp != nil {
			return opp.Price
		}
		return decimal.Zero
	case orderbook.LIMIT, orderbook.ICEBERG:
		return o.Price
	case orderbook.STOP_LOSS:
		return o.StopPrice
	case orderbook.STOP_LIMIT:
		return o.LimitPrice
	default:
		return decimal.Zero
	}
}

// CancelOrder cancels a resting or pending order. It checks the
// registered book first, then the stop table, then the iceberg parent
// table: an iceberg's parent order is itself never inserted into the
// book (only its sliced children are), so a caller canceling by the ID
// they originally submitted the iceberg under must be resolved here.
func (e *Engine) CancelOrder(symbol, orderID string) error {
	if book, ok := e.books[symbol]; ok {
		if err := book.Remove(orderID); err == nil {
			return nil
		}
	}
	for i, s := range e.stopOrders {
		if s.ID == orderID {
			e.stopOrders = append(e.stopOrders[:i], e.stopOrders[i+1:]...)
			return nil
		}
	}
	if state, ok := e.icebergParents[orderID]; ok {
		state.order.HiddenRemaining = decimal.Zero
		delete(e.icebergParents, orderID)
		if book, ok := e.books[symbol]; ok {
			childID := fmt.Sprintf("%s-child-%d", orderID, state.childSeq)
			_ = book.Remove(childID)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", orderbook.ErrNotFound, orderID)
}

// PnLReport summarizes traderID's realized/unrealized P&L, equity, and
// cash, aggregated across every symbol they have touched.
func (e *Engine) PnLReport(traderID string) (map[string]decimal.Decimal, error) {
	t, ok := e.traders[traderID]
	if !ok {
		return nil, fmt.Errorf("engine: unknown trader %s", traderID)
	}
	return map[string]decimal.Decimal{
		"realized":   t.TotalRealizedPnL(),
		"unrealized": t.TotalUnrealizedPnL(),
		"equity":     t.Equity(),
		"cash":       t.Balance,
	}, nil
}

// PositionReport returns traderID's current signed position per symbol.
func (e *Engine) PositionReport(traderID string) (map[string]decimal.Decimal, error) {
	t, ok := e.traders[traderID]
	if !ok {
		return nil, fmt.Errorf("engine: unknown trader %s", traderID)
	}
	return t.PositionReport(), nil
}
