// Package ingress demonstrates the "single dedicated worker thread with
// an MPSC inbox" realization of the matching engine's concurrency
// model: any number of NATS publishers may submit orders concurrently,
// but a single goroutine drains the inbox channel and feeds them to the
// OMS one at a time, so the engine only ever sees one submission in
// flight.
package ingress

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/joripage/limitcore/pkg/logging"
	"github.com/joripage/limitcore/pkg/oms"
	"github.com/joripage/limitcore/pkg/oms/model"
	"go.uber.org/zap"
)

// inboxDepth bounds how many pending submissions may queue before a
// slow-draining worker starts applying backpressure to NATS delivery.
const inboxDepth = 256

// Worker owns one MPSC inbox: a buffered channel fed by a NATS
// subscription and drained by a single consumer goroutine.
type Worker struct {
	oms    *oms.OMS
	logger *logging.Logger
	inbox  chan *model.AddOrder
	sub    *nats.Subscription
}

// NewWorker constructs a Worker bound to o. Call Start to begin
// consuming from NATS.
func NewWorker(o *oms.OMS, logger *logging.Logger) *Worker {
	return &Worker{
		oms:    o,
		logger: logger,
		inbox:  make(chan *model.AddOrder, inboxDepth),
	}
}

// Start subscribes to subject on nc and launches the single consumer
// goroutine. It returns once the subscription is established; the
// consumer goroutine runs until ctx is canceled.
func (w *Worker) Start(ctx context.Context, nc *nats.Conn, subject string) error {
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var req model.AddOrder
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			if w.logger != nil {
				w.logger.Warn(ctx, "ingress: dropping malformed message", zap.Error(err))
			}
			return
		}
		select {
		case w.inbox <- &req:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	w.sub = sub

	go w.drain(ctx)
	return nil
}

// drain is the single consumer: it is the only goroutine that ever
// calls oms.AddOrder for messages arriving off this subject, so
// submissions from concurrently publishing clients are serialized in
// arrival order without the OMS's own mutex ever contending here.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case req := <-w.inbox:
			reqCtx := logging.WithClOrdID(ctx, req.ClOrdID)
			if _, err := w.oms.AddOrder(req); err != nil && w.logger != nil {
				w.logger.Warn(reqCtx, "ingress: order rejected", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop unsubscribes from NATS. The consumer goroutine exits when its
// context is canceled.
func (w *Worker) Stop() error {
	if w.sub == nil {
		return nil
	}
	return w.sub.Unsubscribe()
}
