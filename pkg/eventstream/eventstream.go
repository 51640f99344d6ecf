// Package eventstream publishes trade_executed events onto Kafka for
// downstream analytics collaborators (the OHLC candle aggregator, the
// HTTP trades endpoint's backing store) to consume. Only the producer
// side lives in this module: the consumers are external collaborators
// per the core's scope boundary.
package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/joripage/limitcore/pkg/engine"
	"github.com/joripage/limitcore/pkg/logging"
)

// ProducerConfig configures the underlying Kafka writer.
type ProducerConfig struct {
	Brokers      []string
	Balancer     kafka.Balancer
	BatchSize    int
	BatchBytes   int64
	BatchTimeout time.Duration
}

// Producer publishes JSON-encoded messages to Kafka, retrying failed
// writes with exponential backoff.
type Producer struct {
	w      *kafka.Writer
	logger *logging.Logger
}

// NewProducer constructs a Producer. It does not dial Kafka eagerly;
// the first Publish call establishes the connection.
func NewProducer(cfg ProducerConfig, logger *logging.Logger) *Producer {
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.Hash{}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               cfg.Balancer,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return &Producer{w: w, logger: logger}
}

// PublishJSON marshals v and writes it to topic under key, retrying any
// write error with exponential backoff (at most 5 retries after the first
// attempt, and never past ctx's deadline).
func (p *Producer) PublishJSON(ctx context.Context, topic, key string, v any) error {
	if p == nil || p.w == nil {
		return errors.New("eventstream: producer not initialized")
	}
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	return backoff.Retry(func() error {
		return p.w.WriteMessages(ctx, kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
			Time:  time.Now(),
		})
	}, backoff.WithContext(policy, ctx))
}

func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

// tradeEnvelope is the wire shape published for every trade; JSON
// tags keep it stable independent of pkg/engine.Trade's field names.
type tradeEnvelope struct {
	TradeID      string `json:"trade_id"`
	Symbol       string `json:"symbol"`
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
	TakerOrderID string `json:"taker_order_id"`
	MakerOrderID string `json:"maker_order_id"`
	TakerSide    string `json:"taker_side"`
	Timestamp    string `json:"timestamp"`
	MakerFee     string `json:"maker_fee"`
	TakerFee     string `json:"taker_fee"`
}

// TradePublisher subscribes to an engine's trade_executed event and
// republishes each trade to a fixed Kafka topic, keyed by symbol so a
// consumer group partitions naturally per instrument.
type TradePublisher struct {
	producer *Producer
	topic    string
	logger   *logging.Logger
}

// NewTradePublisher wires itself to eng's trade_executed event.
func NewTradePublisher(eng *engine.Engine, producer *Producer, topic string, logger *logging.Logger) *TradePublisher {
	tp := &TradePublisher{producer: producer, topic: topic, logger: logger}
	eng.Subscribe(engine.EventTradeExecuted, tp.onTrade)
	return tp
}

func (tp *TradePublisher) onTrade(payload any) {
	trade, ok := payload.(*engine.Trade)
	if !ok {
		return
	}
	envelope := tradeEnvelope{
		TradeID:      trade.TradeID,
		Symbol:       trade.Symbol,
		Price:        trade.Price.String(),
		Quantity:     trade.Quantity.String(),
		TakerOrderID: trade.TakerOrderID,
		MakerOrderID: trade.MakerOrderID,
		TakerSide:    string(trade.TakerSide),
		Timestamp:    trade.Timestamp.Format(time.RFC3339Nano),
		MakerFee:     trade.MakerFee.String(),
		TakerFee:     trade.TakerFee.String(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.producer.PublishJSON(ctx, tp.topic, trade.Symbol, envelope); err != nil && tp.logger != nil {
		tp.logger.Warn(ctx, "eventstream: failed to publish trade", zap.Error(err))
	}
}
