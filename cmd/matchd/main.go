package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joripage/limitcore/config"
	"github.com/joripage/limitcore/pkg/engine"
	"github.com/joripage/limitcore/pkg/eventbus"
	"github.com/joripage/limitcore/pkg/eventstream"
	"github.com/joripage/limitcore/pkg/fixgateway"
	"github.com/joripage/limitcore/pkg/ingress"
	"github.com/joripage/limitcore/pkg/logging"
	"github.com/joripage/limitcore/pkg/oms"
	eventstore "github.com/joripage/limitcore/pkg/oms/event_store"
	"github.com/joripage/limitcore/pkg/riskrule"
)

func main() {
	configPath := flag.String("config", "./config/matchd.yaml", "path to service config")
	flag.Parse()

	go func() {
		http.ListenAndServe("localhost:6060", nil)
	}()

	logger := logging.NewLogger(logging.INFO)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(context.Background(), "failed to load config", zap.Error(err))
	}

	strategy := engine.FIFO
	if cfg.Strategy == "PRO_RATA" {
		strategy = engine.PRO_RATA
	}

	gate := riskrule.NewGate(riskrule.DefaultRules()...)
	bus := eventbus.New(logger)
	eng := engine.New(strategy, decimal.Zero, decimal.Zero, gate, bus, logger)

	for _, sym := range cfg.Symbols {
		eng.AddOrderBook(sym.Symbol)
	}

	store := eventstore.NewInMemoryEventStore()
	omsCoordinator := oms.New(eng, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Kafka.Brokers) > 0 {
		producer := eventstream.NewProducer(eventstream.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
		}, logger)
		defer producer.Close()
		eventstream.NewTradePublisher(eng, producer, cfg.Kafka.TradeTopic, logger)
	}

	if cfg.Nats.URL != "" {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			logger.Fatal(ctx, "failed to connect to nats", zap.Error(err))
		}
		defer nc.Close()

		worker := ingress.NewWorker(omsCoordinator, logger)
		if err := worker.Start(ctx, nc, cfg.Nats.Subject); err != nil {
			logger.Fatal(ctx, "failed to start ingress worker", zap.Error(err))
		}
		defer worker.Stop()
	}

	var gw *fixgateway.Gateway
	if cfg.Fix.SettingsFile != "" {
		gw = fixgateway.NewGateway(omsCoordinator, logger)
		if err := gw.Start(cfg.Fix.SettingsFile); err != nil {
			logger.Fatal(ctx, "failed to start fix gateway", zap.Error(err))
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	fmt.Println("matchd started. Press Ctrl+C to exit.")

	<-sigs
	fmt.Println("shutting down...")
	if gw != nil {
		gw.Stop()
	}
	cancel()
	fmt.Println("exited cleanly.")
}
