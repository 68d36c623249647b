package events

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Reservation lifecycle event types, also used as AMQP routing keys.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationEdited    = "reservation.edited"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationActivated = "reservation.activated"
	EventReservationExpired   = "reservation.expired"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// MaxAttempts bounds delivery retries before an event is parked as failed.
const MaxAttempts = 10

var (
	ErrInvalidEvent = errors.New("invalid_event")
)

// Event is what producers hand to the outbox inside their transaction.
type Event struct {
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is the persisted row relayed by the scheduler.
type OutboxEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	EventType     string            `gorm:"type:text;not null;index"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey     *string           `gorm:"type:text;uniqueIndex:ux_outbox_events_dedupe"`
	CorrelationID string            `gorm:"type:text;not null"`
	Status        Status            `gorm:"type:text;not null;index:idx_outbox_events_status_created,priority:1"`
	Attempts      int               `gorm:"not null;default:0"`
	LastError     *string           `gorm:"type:text"`
	CreatedAt     time.Time         `gorm:"not null;index:idx_outbox_events_status_created,priority:2"`
	PublishedAt   *time.Time
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// Message is the wire envelope sent to subscribers.
type Message struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	OccurredAt    time.Time         `json:"occurred_at"`
	CorrelationID string            `json:"correlation_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Data          map[string]any    `json:"data"`
}

func messageFromRow(row OutboxEvent) Message {
	data := map[string]any(row.Payload)
	meta := map[string]string{}
	if raw, ok := data["_meta"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				meta[k] = s
			}
		}
		trimmed := make(map[string]any, len(data)-1)
		for k, v := range data {
			if k != "_meta" {
				trimmed[k] = v
			}
		}
		data = trimmed
	}
	if len(meta) == 0 {
		meta = nil
	}
	return Message{
		ID:            row.ID.String(),
		Type:          row.EventType,
		OccurredAt:    row.CreatedAt,
		CorrelationID: row.CorrelationID,
		Metadata:      meta,
		Data:          data,
	}
}
