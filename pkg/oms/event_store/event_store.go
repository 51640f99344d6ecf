package eventstore

import "github.com/joripage/limitcore/pkg/oms/model"

// EventStore tracks the OrderEvent lifecycle history for every order the
// OMS has processed, plus the ClOrdID chain (original -> replacement)
// used to correlate cancel/replace requests back to their order.
type EventStore interface {
	AddEvent(ev *model.OrderEvent)
	TrackClOrdChain(orderID, clOrdID, origClOrdID string)
	GetLatestClOrdID(orderID string) string
	GetOrigClOrdID(clOrdID string) string
	GetOrderID(clOrdID string) string
	ReconstructChain(clOrdID string) []string
	History(orderID string) []*model.OrderEvent
}
