package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPayout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.GetPayout(ctx, h.node.Generate())
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)

	_, err = h.svc.GetPayout(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPayout)
}

func TestListPayouts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var first snowflake.ID
	for i := 0; i < 3; i++ {
		m := h.merchant(t, "m")
		h.sale(t, m.ID, 1000, day(1))
		payout, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(1)})
		require.NoError(t, err)
		if i == 0 {
			first = payout.RecipientID
		}
	}

	page, err := h.svc.ListPayouts(ctx, domain.ListPayoutsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Payouts, 2)
	assert.True(t, page.HasMore)

	next, err := h.svc.ListPayouts(ctx, domain.ListPayoutsRequest{Limit: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, next.Payouts, 1)
	assert.False(t, next.HasMore)

	filtered, err := h.svc.ListPayouts(ctx, domain.ListPayoutsRequest{RecipientID: &first, Status: domain.PayoutStatusPending})
	require.NoError(t, err)
	require.Len(t, filtered.Payouts, 1)
	assert.Equal(t, first, filtered.Payouts[0].RecipientID)

	none, err := h.svc.ListPayouts(ctx, domain.ListPayoutsRequest{Status: domain.PayoutStatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, none.Payouts)

	_, err = h.svc.ListPayouts(ctx, domain.ListPayoutsRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = h.svc.ListPayouts(ctx, domain.ListPayoutsRequest{Limit: 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}
