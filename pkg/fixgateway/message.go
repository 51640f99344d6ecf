package fixgateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/executionreport"

	"github.com/joripage/limitcore/pkg/oms/model"
)

// buildExecutionReport turns one OrderEvent, plus the original request
// this gateway cached for the order, into a FIX 4.4 ExecutionReport.
func buildExecutionReport(req *newOrderSingle, ev *model.OrderEvent) executionreport.ExecutionReport {
	execType, ok := execTypeForStatus[ev.Status]
	if !ok {
		execType = enum.ExecType_NEW
	}
	ordStatus, ok := ordStatusForStatus[ev.Status]
	if !ok {
		ordStatus = enum.OrdStatus_NEW
	}

	msg := executionreport.New(
		field.NewOrderID(ev.OrderID),
		field.NewExecID(uuid.NewString()),
		field.NewExecType(execType),
		field.NewOrdStatus(ordStatus),
		field.NewSide(req.Side),
		field.NewLeavesQty(ev.RemainingQuantity, 2),
		field.NewCumQty(ev.FilledQty, 2),
		field.NewAvgPx(req.Price, 2),
	)

	msg.SetSymbol(ev.Symbol)
	msg.SetClOrdID(ev.ClOrdID)
	msg.SetAccount(req.Account)
	msg.SetOrderQty(req.OrderQty, 0)
	msg.SetPrice(req.Price, 0)
	msg.SetTimeInForce(req.TimeInForce)
	msg.SetTransactTime(time.Now().UTC())
	if ev.Reason != "" {
		msg.SetText(ev.Reason)
	}
	return msg
}
