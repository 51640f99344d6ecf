package fixgateway

import (
	"context"
	"sync"

	"github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"github.com/joripage/limitcore/pkg/logging"
	"github.com/joripage/limitcore/pkg/oms"
	"github.com/joripage/limitcore/pkg/oms/model"
	"github.com/joripage/limitcore/pkg/orderbook"
)

// application is the quickfix.Application implementation: it decodes
// inbound FIX messages, submits them to the OMS, and sends the
// resulting ExecutionReports back to the originating session.
type application struct {
	*quickfix.MessageRouter

	oms    *oms.OMS
	logger *logging.Logger

	// requests caches the request behind each ClOrdID so execution
	// reports (which the OMS answers with only OrderEvents) can be
	// rebuilt with the fields FIX requires but the core doesn't track,
	// e.g. the original OrdQty and TimeInForce.
	requests sync.Map // clOrdID -> *newOrderSingle
}

func newApplication(o *oms.OMS, logger *logging.Logger) *application {
	app := &application{
		MessageRouter: quickfix.NewMessageRouter(),
		oms:           o,
		logger:        logger,
	}
	app.AddRoute(newordersingle.Route(app.onNewOrderSingle))
	app.AddRoute(ordercancelrequest.Route(app.onOrderCancelRequest))
	return app
}

func (a *application) OnCreate(sessionID quickfix.SessionID)                       {}
func (a *application) OnLogon(sessionID quickfix.SessionID)                        {}
func (a *application) OnLogout(sessionID quickfix.SessionID)                       {}
func (a *application) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID)  {}
func (a *application) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}
func (a *application) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

// FromApp routes every inbound application message through the
// registered routes. Routing runs on the quickfix session goroutine;
// each route call is one full OMS.AddOrder/CancelOrder round trip, so
// this session serializes its own order flow, but distinct sessions
// still rely on OMS's own mutex for cross-session serialization.
func (a *application) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return a.Route(msg, sessionID)
}

func (a *application) onNewOrderSingle(msg newordersingle.NewOrderSingle, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, _ := msg.GetClOrdID()
	symbol, _ := msg.GetSymbol()
	side, _ := msg.GetSide()
	ordType, _ := msg.GetOrdType()
	price, _ := msg.GetPrice()
	stopPx, _ := msg.GetStopPx()
	orderQty, _ := msg.GetOrderQty()
	account, _ := msg.GetAccount()
	tif, _ := msg.GetTimeInForce()
	transactTime, _ := msg.GetTransactTime()
	maxFloor, _ := msg.GetMaxFloor()

	req := &newOrderSingle{
		SessionID:    sessionID,
		Account:      account,
		ClOrdID:      clOrdID,
		Symbol:       symbol,
		OrdType:      ordType,
		Price:        price,
		StopPx:       stopPx,
		TimeInForce:  tif,
		Side:         side,
		TransactTime: transactTime,
		OrderQty:     orderQty,
		MaxFloor:     maxFloor,
	}
	a.requests.Store(clOrdID, req)

	obType, ok := mapOrdType(ordType, !maxFloor.IsZero())
	if !ok {
		return nil
	}

	add := &model.AddOrder{
		ClOrdID:  clOrdID,
		Symbol:   symbol,
		Side:     mapSide(side),
		Type:     obType,
		TraderID: account,
		TIF:      mapTimeInForce(tif),
		Price:    price,
		Quantity: orderQty,
	}
	switch obType {
	case orderbook.STOP_LOSS:
		add.StopPrice = stopPx
	case orderbook.STOP_LIMIT:
		add.StopPrice = stopPx
		add.LimitPrice = price
	case orderbook.ICEBERG:
		add.DisplayQuantity = maxFloor
	}

	ctx := logging.WithClOrdID(context.Background(), clOrdID)
	events, err := a.oms.AddOrder(add)
	if err != nil && a.logger != nil {
		a.logger.Warn(ctx, "fixgateway: order rejected", zap.Error(err))
	}
	a.sendReports(ctx, req, events)
	return nil
}

func (a *application) onOrderCancelRequest(msg ordercancelrequest.OrderCancelRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	origClOrdID, _ := msg.GetOrigClOrdID()
	symbol, _ := msg.GetSymbol()

	ctx := logging.WithClOrdID(context.Background(), origClOrdID)
	orderID := a.oms.EventStore().GetOrderID(origClOrdID)
	if orderID == "" {
		orderID = origClOrdID
	}
	ev, err := a.oms.CancelOrder(&model.CancelOrder{OrderID: orderID, Symbol: symbol})
	if err != nil {
		if a.logger != nil {
			a.logger.Warn(ctx, "fixgateway: cancel rejected", zap.Error(err))
		}
		return nil
	}
	if req, ok := a.requests.Load(origClOrdID); ok {
		a.sendReports(ctx, req.(*newOrderSingle), []*model.OrderEvent{ev})
	}
	return nil
}

func (a *application) sendReports(ctx context.Context, req *newOrderSingle, events []*model.OrderEvent) {
	for _, ev := range events {
		report := buildExecutionReport(req, ev)
		if err := quickfix.SendToTarget(report, req.SessionID); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "fixgateway: send execution report failed", zap.Error(err))
		}
	}
}
