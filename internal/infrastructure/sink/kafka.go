package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/vitos/day_trade_sim/internal/domain"
	"go.uber.org/zap"
)

const (
	EventTradeClosed = "trade.closed"
	eventSource      = "day-trade-sim"
	schemaVersion    = "1.0"
)

// TradeEvent is the envelope every closed trade is published in.
type TradeEvent struct {
	EventType     string        `json:"event_type"`
	Source        string        `json:"source"`
	SchemaVersion string        `json:"schema_version"`
	Timestamp     time.Time     `json:"timestamp"`
	Data          *domain.Trade `json:"data"`
}

// KafkaSink publishes closed trades to a topic, keyed by order ID.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
	timeNow  func() time.Time
}

func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, topic, logger), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
		timeNow:  time.Now,
	}
}

func (k *KafkaSink) Publish(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(trades))
	for _, t := range trades {
		payload, err := json.Marshal(TradeEvent{
			EventType:     EventTradeClosed,
			Source:        eventSource,
			SchemaVersion: schemaVersion,
			Timestamp:     k.timeNow().UTC(),
			Data:          t,
		})
		if err != nil {
			return fmt.Errorf("marshal trade %s: %w", t.OrderID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(t.OrderID),
			Value: sarama.ByteEncoder(payload),
		})
	}

	if err := k.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("send %d trades to %s: %w", len(msgs), k.topic, err)
	}
	k.logger.Debug("Published trades to kafka", zap.String("topic", k.topic), zap.Int("count", len(msgs)))
	return nil
}

func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
