package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventPayoutCreated  = "payout.created"
	EventPayoutReversed = "payout.reversed"
)

// SettlementEvent is an outbox row. A relay reads unpublished rows and marks
// them published once delivered, so consumers see each event at least once.
type SettlementEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	EventType   string            `gorm:"type:text;not null;index" json:"event_type"`
	RecipientID snowflake.ID      `gorm:"not null;index" json:"recipient_id"`
	AggregateID snowflake.ID      `gorm:"not null" json:"aggregate_id"`
	Payload     datatypes.JSONMap `gorm:"not null" json:"payload"`
	DedupeKey   string            `gorm:"type:text;not null;uniqueIndex" json:"dedupe_key"`
	Published   bool              `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SettlementEvent) TableName() string { return "settlement_events" }

type Event struct {
	Type        string
	RecipientID snowflake.ID
	AggregateID snowflake.ID
	Payload     map[string]any
}

// DedupeKey identifies an event by type and aggregate.
func (e Event) DedupeKey() string {
	return e.Type + ":" + e.AggregateID.String()
}
