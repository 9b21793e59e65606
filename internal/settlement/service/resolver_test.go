package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEligibilityNoSales(t *testing.T) {
	h := newHarness(t)
	m := h.merchant(t, "quiet")

	got, err := h.svc.ResolveEligibility(context.Background(), m.ID)
	require.NoError(t, err)
	assert.False(t, got.CanSettle)
	assert.Equal(t, domain.ReasonNoSales, got.Reason)
	assert.Nil(t, got.EligibleFrom)
}

func TestResolveEligibilityWindow(t *testing.T) {
	h := newHarness(t)
	m := h.merchant(t, "busy")
	h.sale(t, m.ID, 1000, time.Date(2024, 3, 2, 15, 30, 0, 0, time.UTC))
	h.sale(t, m.ID, 1000, time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC))

	got, err := h.svc.ResolveEligibility(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, got.CanSettle)
	assert.Equal(t, day(2), *got.EligibleFrom)
	assert.Equal(t, day(6), *got.MaxTo)
	assert.Empty(t, got.Reason)
}

func TestResolveEligibilityClampsToToday(t *testing.T) {
	h := newHarness(t)
	m := h.merchant(t, "future")
	h.sale(t, m.ID, 1000, day(4))
	h.sale(t, m.ID, 1000, day(20))

	got, err := h.svc.ResolveEligibility(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, got.CanSettle)
	assert.Equal(t, day(10), *got.MaxTo)
}

func TestResolveEligibilityAfterClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "claimed")
	h.sale(t, m.ID, 1000, day(1))

	_, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(3)})
	require.NoError(t, err)

	got, err := h.svc.ResolveEligibility(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.CanSettle)
	assert.Equal(t, domain.ReasonNoUnsettledSales, got.Reason)

	h.sale(t, m.ID, 500, day(5))
	got, err = h.svc.ResolveEligibility(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.CanSettle)
	assert.Equal(t, day(5), *got.EligibleFrom)
}

func TestResolveEligibilityDegradesWhenClaimTableMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "partial")
	h.sale(t, m.ID, 1000, day(1))

	require.NoError(t, h.db.Exec("DROP TABLE settlement_window_claims").Error)

	got, err := h.svc.ResolveEligibility(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.CanSettle)
	assert.Equal(t, domain.ReasonStoreUnavailable, got.Reason)
	assert.Equal(t, float64(1), h.counter(t, "settlement_resolver_degraded_total", map[string]string{"reason": domain.ReasonStoreUnavailable}))

	preview, err := h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeSettleAll})
	require.NoError(t, err)
	assert.Empty(t, preview.Rows)
	assert.Empty(t, preview.Errors)
}

func TestResolveEligibilityRejectsZeroRecipient(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ResolveEligibility(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}
