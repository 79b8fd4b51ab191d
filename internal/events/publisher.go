package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ClassificationEvent is emitted after a verdict has been persisted.
type ClassificationEvent struct {
	RequestID         string    `json:"request_id"`
	RecordID          uint      `json:"record_id"`
	UserID            uint      `json:"user_id"`
	Label             string    `json:"label"`
	ConfidencePercent float64   `json:"confidence"`
	OriginalImage     string    `json:"original_image"`
	ProcessedImage    string    `json:"processed_image,omitempty"`
	OccurredAt        time.Time `json:"timestamp"`
}

// Publisher delivers classification events to downstream consumers.
type Publisher interface {
	PublishClassification(ctx context.Context, event ClassificationEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by user.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, logger), nil
}

func newKafkaPublisher(writer messageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// PublishClassification serialises event and writes it once.
func (p *KafkaPublisher) PublishClassification(ctx context.Context, event ClassificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode classification event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.UserID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "request_id", Value: []byte(event.RequestID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish classification event: %w", err)
	}

	p.logger.Debug("classification event published",
		zap.String("request_id", event.RequestID),
		zap.Uint("record_id", event.RecordID),
	)
	return nil
}

// Close flushes pending messages and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events; used when no brokers are configured.
type NopPublisher struct{}

// PublishClassification drops the event.
func (NopPublisher) PublishClassification(context.Context, ClassificationEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
