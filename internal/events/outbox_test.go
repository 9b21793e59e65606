package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestOutbox(t *testing.T) (*Outbox, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&SettlementEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewOutbox(Params{DB: db, Log: zap.NewNop(), GenID: node}), node
}

func TestPublishDeduplicates(t *testing.T) {
	outbox, node := newTestOutbox(t)
	ctx := context.Background()
	payoutID := node.Generate()

	event := Event{
		Type:        EventPayoutCreated,
		RecipientID: node.Generate(),
		AggregateID: payoutID,
		Payload:     map[string]any{"amount_cents": 8000},
	}
	require.NoError(t, outbox.Publish(ctx, event))
	require.NoError(t, outbox.Publish(ctx, event))

	pending, err := outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "payout.created:"+payoutID.String(), pending[0].DedupeKey)
	assert.Equal(t, json.Number("8000"), pending[0].Payload["amount_cents"])
}

func TestPublishValidates(t *testing.T) {
	outbox, _ := newTestOutbox(t)
	assert.ErrorIs(t, outbox.Publish(context.Background(), Event{Type: EventPayoutCreated}), ErrInvalidEvent)

	var nilOutbox *Outbox
	assert.NoError(t, nilOutbox.Publish(context.Background(), Event{}))
}

func TestMarkPublished(t *testing.T) {
	outbox, node := newTestOutbox(t)
	ctx := context.Background()

	for _, typ := range []string{EventPayoutCreated, EventPayoutReversed} {
		require.NoError(t, outbox.Publish(ctx, Event{Type: typ, RecipientID: 1, AggregateID: node.Generate()}))
	}
	pending, err := outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	n, err := outbox.MarkPublished(ctx, []snowflake.ID{pending[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = outbox.MarkPublished(ctx, []snowflake.ID{pending[0].ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err = outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, EventPayoutReversed, pending[0].EventType)

	_, err = outbox.ListPending(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
