// Package producer streams auth events to Kafka.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"deafauth/backend/internal/telemetry"
)

// KafkaEmitter implements telemetry.EventEmitter using segmentio/kafka-go.
// Messages are keyed by session id so a session's events stay ordered within
// a partition.
type KafkaEmitter struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaEmitter creates a Kafka emitter writing auth events to topic.
// Returns nil when brokers or topic are empty (streaming disabled). Call
// Close when shutting down.
func NewKafkaEmitter(brokers []string, topic string, log *zap.Logger) *KafkaEmitter {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaEmitter{writer: writer, log: log}
}

// Emit serializes the event as JSON and writes it to the topic. A short write
// timeout keeps slow brokers from blocking callers indefinitely.
func (p *KafkaEmitter) Emit(ctx context.Context, e *telemetry.Event) error {
	if p == nil || p.writer == nil || e == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.SessionID),
		Value: payload,
	})
	if err != nil {
		p.log.Warn("telemetry: kafka emit failed", zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaEmitter) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
