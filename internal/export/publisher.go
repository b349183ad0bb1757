package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"invoicematch/internal/config"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer MessageWriter
	log    *zap.Logger
}

// NewKafkaPublisher writes synchronously to the export topic, hashing the
// transaction id so all exports of one invoice land on one partition.
func NewKafkaPublisher(cfg config.KafkaConfig, log *zap.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ExportTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return NewPublisher(w, log)
}

func NewPublisher(w MessageWriter, log *zap.Logger) *Publisher {
	return &Publisher{writer: w, log: log.Named("export")}
}

func (p *Publisher) Publish(ctx context.Context, payload Payload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode export payload: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(payload.TransactionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("export publish failed", zap.String("transaction_id", payload.TransactionID), zap.Error(err))
		return fmt.Errorf("publish export %s: %w", payload.TransactionID, err)
	}
	p.log.Info("export published",
		zap.String("transaction_id", payload.TransactionID),
		zap.Int("products", len(payload.ClassificationResult.Products)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
