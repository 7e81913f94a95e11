package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const LedgerEventsTopic = "ledger_events"

// LedgerEvent is emitted whenever a journal entry changes lifecycle state,
// so downstream consumers (statements, notifications, audit) can react
// without polling the journal.
type LedgerEvent struct {
	EventType  string    `json:"event_type"` // entry.posted, entry.reversed, entry.cancelled
	CompanyID  string    `json:"company_id"`
	EntryID    int64     `json:"entry_id"`
	Reference  string    `json:"reference"`
	EntryDate  time.Time `json:"entry_date"`
	LineCount  int       `json:"line_count"`
	ReversalOf *int64    `json:"reversal_of,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// LedgerEventPublisher writes ledger events to kafka, keyed by company so
// per-company ordering survives partitioning.
type LedgerEventPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewLedgerEventPublisher(brokers []string, logger *zap.Logger) *LedgerEventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        LedgerEventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &LedgerEventPublisher{writer: writer, logger: logger}
}

// Publish emits one event. Publishing is best effort relative to the ledger
// write: the entry is already committed when this runs.
func (p *LedgerEventPublisher) Publish(ctx context.Context, event *LedgerEvent) error {
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CompanyID),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn("failed to publish ledger event",
			zap.String("event_type", event.EventType),
			zap.Int64("entry_id", event.EntryID),
			zap.Error(err))
		return fmt.Errorf("failed to publish ledger event: %w", err)
	}

	return nil
}

// EntryEvent builds an event from an entry
func EntryEvent(eventType string, e *domain.JournalEntry) *LedgerEvent {
	return &LedgerEvent{
		EventType:  eventType,
		CompanyID:  e.CompanyID,
		EntryID:    e.ID,
		Reference:  e.Reference,
		EntryDate:  e.EntryDate,
		LineCount:  len(e.Lines),
		ReversalOf: e.ReversalOf,
	}
}

// Close flushes and closes the kafka writer
func (p *LedgerEventPublisher) Close() error {
	return p.writer.Close()
}
