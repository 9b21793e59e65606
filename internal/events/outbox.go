package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidEvent = errors.New("invalid_event")
	ErrInvalidLimit = errors.New("invalid_limit")
)

var Module = fx.Module("events.outbox",
	fx.Provide(NewOutbox),
)

const (
	outcomeAppended  = "appended"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Outbox struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	obsMetrics *obsmetrics.Metrics
}

func NewOutbox(p Params) *Outbox {
	return &Outbox{
		db:         p.DB,
		log:        p.Log.Named("events.outbox"),
		genID:      p.GenID,
		obsMetrics: p.ObsMetrics,
	}
}

// Publish appends the event outside of any caller transaction. A repeated
// event with the same dedupe key is ignored.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	if o == nil {
		return nil
	}
	return o.PublishTx(ctx, o.db, event)
}

func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if o == nil {
		return nil
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" || event.AggregateID == 0 {
		return ErrInvalidEvent
	}
	payload := datatypes.JSONMap(event.Payload)
	if payload == nil {
		payload = datatypes.JSONMap{}
	}

	row := SettlementEvent{
		ID:          o.genID.Generate(),
		EventType:   event.Type,
		RecipientID: event.RecipientID,
		AggregateID: event.AggregateID,
		Payload:     payload,
		DedupeKey:   event.DedupeKey(),
		CreatedAt:   time.Now().UTC(),
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		o.obsMetrics.RecordOutboxEvent(ctx, event.Type, outcomeFailed)
		return res.Error
	}
	if res.RowsAffected == 0 {
		o.obsMetrics.RecordOutboxEvent(ctx, event.Type, outcomeDuplicate)
		return nil
	}
	o.obsMetrics.RecordOutboxEvent(ctx, event.Type, outcomeAppended)
	return nil
}

// ListPending returns unpublished events oldest first.
func (o *Outbox) ListPending(ctx context.Context, limit int) ([]SettlementEvent, error) {
	if limit <= 0 || limit > 1000 {
		return nil, ErrInvalidLimit
	}
	var items []SettlementEvent
	err := o.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := o.db.WithContext(ctx).Exec(
		`UPDATE settlement_events
		 SET published = ?, published_at = ?
		 WHERE id IN ? AND published = ?`,
		true,
		time.Now().UTC(),
		ids,
		false,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	o.log.Debug("outbox events published", zap.Int64("count", res.RowsAffected))
	return res.RowsAffected, nil
}
