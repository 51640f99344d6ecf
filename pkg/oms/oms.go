// Package oms is the coordination layer external gateways talk to: it
// wraps pkg/engine.Engine behind a single coarse mutex, satisfying the
// core's single-threaded cooperative concurrency requirement for any
// number of concurrent callers (FIX sessions, NATS ingress, direct
// calls), and records the OrderEvent lifecycle of every order in an
// EventStore.
package oms

import (
	"fmt"
	"sync"
	"time"

	eventstore "github.com/joripage/limitcore/pkg/oms/event_store"
	"github.com/joripage/limitcore/pkg/oms/model"
	"github.com/joripage/limitcore/pkg/orderbook"

	"github.com/joripage/limitcore/pkg/engine"
)

// OMS serializes access to a single Engine and turns its Submit/Cancel
// results into a durable-within-process OrderEvent trail.
type OMS struct {
	mu         sync.Mutex
	engine     *engine.Engine
	eventStore eventstore.EventStore
}

// New constructs an OMS around eng. store may be nil, in which case an
// InMemoryEventStore is used.
func New(eng *engine.Engine, store eventstore.EventStore) *OMS {
	if store == nil {
		store = eventstore.NewInMemoryEventStore()
	}
	return &OMS{engine: eng, eventStore: store}
}

// Engine exposes the underlying engine for read-only accessors (depth,
// pnl/position reports) that do not need the coarse lock's exclusivity
// guarantees beyond what the engine itself already provides per-call.
func (o *OMS) Engine() *engine.Engine { return o.engine }

// EventStore exposes the order-event history for gateways that need to
// answer status queries.
func (o *OMS) EventStore() eventstore.EventStore { return o.eventStore }

func (o *OMS) buildOrder(req *model.AddOrder) (*orderbook.Order, error) {
	switch req.Type {
	case orderbook.STOP_LOSS, orderbook.STOP_LIMIT:
		return orderbook.NewStopOrder(req.ClOrdID, req.Type, req.Side, req.Symbol, req.TraderID,
			req.StopPrice, req.LimitPrice, req.Quantity, req.TIF, time.Time{})
	case orderbook.TRAILING_STOP:
		return orderbook.NewTrailingStopOrder(req.ClOrdID, req.Side, req.Symbol, req.TraderID,
			req.TrailingOffset, req.Quantity, req.TIF, time.Time{})
	case orderbook.ICEBERG:
		return orderbook.NewIcebergOrder(req.ClOrdID, req.Side, req.Symbol, req.TraderID,
			req.Price, req.DisplayQuantity, req.Quantity, req.TIF, time.Time{})
	default:
		return orderbook.NewOrder(req.ClOrdID, req.Type, req.Side, req.Symbol, req.TraderID,
			req.Price, req.Quantity, req.TIF, time.Time{})
	}
}

// AddOrder submits req to the engine and returns the OrderEvent trail it
// produced: one NEW (or REJECTED) event, followed by a PARTIALLY_FILLED
// or FILLED event per trade the order participated in as it matched.
func (o *OMS) AddOrder(req *model.AddOrder) ([]*model.OrderEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, err := o.buildOrder(req)
	if err != nil {
		ev := o.reject(req.ClOrdID, "", req.Symbol, err)
		return []*model.OrderEvent{ev}, err
	}

	trades, err := o.engine.Submit(order)
	if err != nil {
		ev := o.reject(req.ClOrdID, order.ID, req.Symbol, err)
		return []*model.OrderEvent{ev}, err
	}

	events := []*model.OrderEvent{o.record(order, model.StatusNew, "")}
	events = append(events, o.eventsForTrades(order, trades)...)
	return events, nil
}

// CancelOrder cancels the order req names and records a CANCELED event.
func (o *OMS) CancelOrder(req *model.CancelOrder) (*model.OrderEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.engine.CancelOrder(req.Symbol, req.OrderID); err != nil {
		return nil, err
	}
	ev := &model.OrderEvent{
		OrderID:   req.OrderID,
		ClOrdID:   o.eventStore.GetLatestClOrdID(req.OrderID),
		Symbol:    req.Symbol,
		Status:    model.StatusCanceled,
		Timestamp: time.Now().UTC(),
	}
	o.eventStore.AddEvent(ev)
	return ev, nil
}

// eventsForTrades reports one event per trade order participated in,
// scanning the returned trade slice for either side matching order.ID
// (since Submit's return also carries trades from stop/iceberg triggers
// this call caused, which belong to different orders).
func (o *OMS) eventsForTrades(order *orderbook.Order, trades []*engine.Trade) []*model.OrderEvent {
	var events []*model.OrderEvent
	for _, t := range trades {
		if t.TakerOrderID != order.ID && t.MakerOrderID != order.ID {
			continue
		}
		status := model.StatusPartiallyFilled
		if order.IsFilled() {
			status = model.StatusFilled
		}
		events = append(events, o.record(order, status, ""))
	}
	return events
}

func (o *OMS) record(order *orderbook.Order, status model.Status, reason string) *model.OrderEvent {
	ev := &model.OrderEvent{
		OrderID:           order.ID,
		ClOrdID:           order.ID,
		Symbol:            order.Symbol,
		Status:            status,
		Reason:            reason,
		FilledQty:         order.Quantity.Sub(order.RemainingQuantity),
		RemainingQuantity: order.RemainingQuantity,
		Timestamp:         time.Now().UTC(),
	}
	o.eventStore.AddEvent(ev)
	return ev
}

func (o *OMS) reject(clOrdID, orderID, symbol string, err error) *model.OrderEvent {
	ev := &model.OrderEvent{
		OrderID:   orderID,
		ClOrdID:   clOrdID,
		Symbol:    symbol,
		Status:    model.StatusRejected,
		Reason:    fmt.Sprintf("%v", err),
		Timestamp: time.Now().UTC(),
	}
	o.eventStore.AddEvent(ev)
	return ev
}
