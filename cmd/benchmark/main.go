package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joripage/limitcore/pkg/engine"
	"github.com/joripage/limitcore/pkg/eventbus"
	"github.com/joripage/limitcore/pkg/orderbook"
	"github.com/joripage/limitcore/pkg/riskrule"
)

const (
	numOrders = 100_000
	minPrice  = 100.0
	maxPrice  = 200.0
	minQty    = 1
	maxQty    = 100
	symbol    = "ABC"
)

func randomOrder(id int) *orderbook.Order {
	side := orderbook.BUY
	if rand.Intn(2) == 0 {
		side = orderbook.SELL
	}
	price := minPrice + rand.Float64()*(maxPrice-minPrice)
	qty := int64(rand.Intn(maxQty-minQty+1) + minQty)

	o, err := orderbook.NewOrder(
		fmt.Sprintf("ORD-%06d", id),
		orderbook.LIMIT,
		side,
		symbol,
		"benchmark-trader",
		decimal.NewFromFloat(price).Round(2),
		decimal.NewFromInt(qty),
		orderbook.GTC,
		time.Now(),
	)
	if err != nil {
		panic(err)
	}
	return o
}

func main() {
	gate := riskrule.NewGate() // no rules: this benchmark measures matching throughput, not risk gating
	bus := eventbus.New(nil)
	eng := engine.New(engine.FIFO, decimal.Zero, decimal.Zero, gate, bus, nil)
	eng.AddOrderBook(symbol)

	totalTrades := 0
	var totalQty decimal.Decimal
	eng.Subscribe(engine.EventTradeExecuted, func(payload any) {
		t, ok := payload.(*engine.Trade)
		if !ok {
			return
		}
		totalTrades++
		totalQty = totalQty.Add(t.Quantity)
	})

	start := time.Now()
	for i := 0; i < numOrders; i++ {
		if _, err := eng.Submit(randomOrder(i + 1)); err != nil {
			continue
		}
	}
	elapsed := time.Since(start)

	fmt.Println("--------")
	fmt.Printf("total orders   : %d\n", numOrders)
	fmt.Printf("total trades   : %d\n", totalTrades)
	fmt.Printf("total matched  : %s\n", totalQty.String())
	fmt.Printf("time taken     : %s\n", elapsed)
	fmt.Printf("orders/sec     : %.0f\n", float64(numOrders)/elapsed.Seconds())
}
