package fixgateway

import (
	"github.com/quickfixgo/enum"

	"github.com/joripage/limitcore/pkg/oms/model"
	"github.com/joripage/limitcore/pkg/orderbook"
)

func mapSide(s enum.Side) orderbook.Side {
	if s == enum.Side_SELL {
		return orderbook.SELL
	}
	return orderbook.BUY
}

func mapTimeInForce(tif enum.TimeInForce) orderbook.TimeInForce {
	if tif == enum.TimeInForce_IMMEDIATE_OR_CANCEL {
		return orderbook.IOC
	}
	// DAY, FILL_OR_KILL and anything else this gateway doesn't
	// distinguish fall back to GTC; FOK is not a core order type.
	return orderbook.GTC
}

// mapOrdType picks the core order type from OrdType plus MaxFloor. A
// non-zero MaxFloor always signals ICEBERG, matching how real venues
// overload the display-quantity field rather than adding a distinct
// OrdType. TRAILING_STOP has no standard FIX 4.4 OrdType and is
// therefore unreachable through this gateway; it can only be submitted
// programmatically or via pkg/ingress.
func mapOrdType(ot enum.OrdType, maxFloor bool) (orderbook.OrderType, bool) {
	if maxFloor {
		return orderbook.ICEBERG, true
	}
	switch ot {
	case enum.OrdType_MARKET:
		return orderbook.MARKET, true
	case enum.OrdType_LIMIT:
		return orderbook.LIMIT, true
	case enum.OrdType_STOP:
		return orderbook.STOP_LOSS, true
	case enum.OrdType_STOP_LIMIT:
		return orderbook.STOP_LIMIT, true
	default:
		return "", false
	}
}

var execTypeForStatus = map[model.Status]enum.ExecType{
	model.StatusNew:             enum.ExecType_NEW,
	model.StatusPartiallyFilled: enum.ExecType_TRADE,
	model.StatusFilled:          enum.ExecType_TRADE,
	model.StatusCanceled:        enum.ExecType_CANCELED,
	model.StatusRejected:        enum.ExecType_REJECTED,
}

var ordStatusForStatus = map[model.Status]enum.OrdStatus{
	model.StatusNew:             enum.OrdStatus_NEW,
	model.StatusPartiallyFilled: enum.OrdStatus_PARTIALLY_FILLED,
	model.StatusFilled:          enum.OrdStatus_FILLED,
	model.StatusCanceled:        enum.OrdStatus_CANCELED,
	model.StatusRejected:        enum.OrdStatus_REJECTED,
}
