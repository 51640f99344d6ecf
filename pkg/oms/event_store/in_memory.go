package eventstore

import (
	"sync"

	"github.com/joripage/limitcore/pkg/oms/model"
)

// InMemoryEventStore is a process-local, non-durable EventStore: order
// history and ClOrdID chains live only as long as the OMS process runs.
type InMemoryEventStore struct {
	mu            sync.RWMutex
	orders        map[string][]*model.OrderEvent
	orderIDByClOrdID map[string]string // ClOrdID -> OrderID
	latestClOrdID map[string]string    // OrderID -> current ClOrdID
	clOrdChain    map[string]string    // ClOrdID -> OrigClOrdID
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		orders:           make(map[string][]*model.OrderEvent),
		orderIDByClOrdID: make(map[string]string),
		latestClOrdID:    make(map[string]string),
		clOrdChain:       make(map[string]string),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *model.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[ev.OrderID] = append(s.orders[ev.OrderID], ev)
	s.orderIDByClOrdID[ev.ClOrdID] = ev.OrderID
	s.trackClOrdChainLocked(ev.OrderID, ev.ClOrdID, ev.OrigClOrdID)
}

// TrackClOrdChain updates the chain between ClOrdID and OrigClOrdID.
func (s *InMemoryEventStore) TrackClOrdChain(orderID, clOrdID, origClOrdID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackClOrdChainLocked(orderID, clOrdID, origClOrdID)
}

func (s *InMemoryEventStore) trackClOrdChainLocked(orderID, clOrdID, origClOrdID string) {
	s.latestClOrdID[orderID] = clOrdID
	if origClOrdID != "" {
		s.clOrdChain[clOrdID] = origClOrdID
	}
}

func (s *InMemoryEventStore) GetLatestClOrdID(orderID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestClOrdID[orderID]
}

// GetOrigClOrdID returns the immediate OrigClOrdID for a given ClOrdID.
func (s *InMemoryEventStore) GetOrigClOrdID(clOrdID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clOrdChain[clOrdID]
}

// GetOrderID resolves the engine OrderID that a ClOrdID currently maps to.
func (s *InMemoryEventStore) GetOrderID(clOrdID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderIDByClOrdID[clOrdID]
}

// ReconstructChain walks backward from clOrdID to build the full
// original-to-replacement chain.
func (s *InMemoryEventStore) ReconstructChain(clOrdID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []string
	curr := clOrdID
	for curr != "" {
		chain = append(chain, curr)
		curr = s.clOrdChain[curr]
	}
	return chain
}

// History returns every recorded OrderEvent for orderID, oldest first.
func (s *InMemoryEventStore) History(orderID string) []*model.OrderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.OrderEvent(nil), s.orders[orderID]...)
}
