package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gathering-portal/backend/internal/models"
)

// CheckInEvent is the message written to the check-in topic.
type CheckInEvent struct {
	Type   string                  `json:"type"`
	Record models.AttendanceRecord `json:"record"`
	SentAt time.Time               `json:"sentAt"`
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes check-in events keyed by subject so one subject's
// events stay on one partition.
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaWriter builds a hash-balanced writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaPublisher wraps w.
func NewKafkaPublisher(w MessageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, logger: logger, now: time.Now}
}

// Publish implements Publisher.
func (k *KafkaPublisher) Publish(ctx context.Context, rec *models.AttendanceRecord) error {
	data, err := json.Marshal(CheckInEvent{Type: "attendance.checked_in", Record: *rec, SentAt: k.now()})
	if err != nil {
		return fmt.Errorf("marshal check-in event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.SubjectID.String()),
		Value: data,
		Time:  k.now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write check-in event: %w", err)
	}
	k.logger.Debug("check-in event written", zap.String("record_id", rec.ID.String()))
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
