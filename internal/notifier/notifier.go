// Package notifier delivers user-facing notifications produced by
// lifecycle changes. Delivery is fire-and-forget for callers.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TemplateKind names the message a downstream renderer should produce.
type TemplateKind string

const (
	TemplateEventPublished   TemplateKind = "event_published"
	TemplateEventStarted     TemplateKind = "event_started"
	TemplateEventEnded       TemplateKind = "event_ended"
	TemplateEventUnpublished TemplateKind = "event_unpublished"
	TemplateTicketApproved   TemplateKind = "ticket_approved"
	TemplateTicketRejected   TemplateKind = "ticket_rejected"
	TemplateTicketIssued     TemplateKind = "ticket_issued"
	TemplateTicketStaked     TemplateKind = "ticket_staked"
	TemplateTicketCheckedIn  TemplateKind = "ticket_checked_in"
	TemplateTicketRefunded   TemplateKind = "ticket_refunded"
	TemplateTicketForfeited  TemplateKind = "ticket_forfeited"
	TemplateTicketRevoked    TemplateKind = "ticket_revoked"
	TemplateStakeReleased    TemplateKind = "stake_released"
	TemplateSettlementFailed TemplateKind = "settlement_failed"
)

// Notifier sends one notification to one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind TemplateKind, data map[string]any) error
}

// Message is the wire shape written to Kafka.
type Message struct {
	UserID   string         `json:"user_id"`
	Template TemplateKind   `json:"template"`
	Context  map[string]any `json:"context"`
	SentAt   time.Time      `json:"sent_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications for a downstream delivery service.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

// NewKafkaNotifier builds a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier requires at least one broker")
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

// Notify writes one message keyed by user so a user's notifications stay ordered.
func (n *KafkaNotifier) Notify(ctx context.Context, userID string, kind TemplateKind, data map[string]any) error {
	now := time.Now().UTC()
	value, err := json.Marshal(Message{UserID: userID, Template: kind, Context: data, SentAt: now})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(userID),
		Value: value,
		Time:  now,
	})
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, userID string, kind TemplateKind, data map[string]any) error {
	n.logger.Info("notification",
		zap.String("user_id", userID),
		zap.String("template", string(kind)),
		zap.Any("context", data))
	return nil
}
