package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReversalRestoresEligibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "reversed")
	h.sale(t, m.ID, 10000, day(1))

	payout, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(4)})
	require.NoError(t, err)

	err = h.svc.ReverseFailedPayout(ctx, payout.ID)
	assert.ErrorIs(t, err, domain.ErrPayoutNotReversible)

	updated, err := h.svc.TransitionPayout(ctx, payout.ID, domain.PayoutStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, updated.Status)

	eligibility, err := h.svc.ResolveEligibility(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, eligibility.CanSettle)
	assert.Equal(t, day(1), *eligibility.EligibleFrom)

	var claim domain.SettlementWindowClaim
	require.NoError(t, h.db.Where("linked_payout_id = ?", payout.ID).First(&claim).Error)
	assert.False(t, claim.IsActive)
	assert.NotNil(t, claim.DeactivatedAt)

	var reversal ledgerdomain.LedgerEntry
	require.NoError(t, h.db.Where("linked_payout_id = ? AND entry_type = ?", payout.ID, ledgerdomain.EntryTypePayoutDebitReversal).First(&reversal).Error)
	assert.Equal(t, int64(8000), reversal.AmountCents)

	err = h.svc.ReverseFailedPayout(ctx, payout.ID)
	assert.ErrorIs(t, err, domain.ErrPayoutAlreadyReversed)

	again, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(8000), again.AmountCents)
	assert.NotEqual(t, payout.ID, again.ID)

	pending, err := h.outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, e := range pending {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{events.EventPayoutCreated, events.EventPayoutReversed, events.EventPayoutCreated}, types)
}

func TestReverseFailedPayoutMarkedExternally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "external")
	h.sale(t, m.ID, 10000, day(1))

	payout, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(1)})
	require.NoError(t, err)
	require.NoError(t, h.db.Exec("UPDATE payout_transactions SET status = ? WHERE id = ?", domain.PayoutStatusCancelled, payout.ID).Error)

	require.NoError(t, h.svc.ReverseFailedPayout(ctx, payout.ID))
	assert.Equal(t, float64(1), h.counter(t, "settlement_payout_reversals_total", nil))

	preview, err := h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeSettleAll})
	require.NoError(t, err)
	require.Len(t, preview.Rows, 1)
	assert.Equal(t, int64(8000), preview.Rows[0].RemainingCents)
}

func TestTransitionPayoutRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "transitions")
	h.sale(t, m.ID, 10000, day(1))

	payout, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(1)})
	require.NoError(t, err)

	_, err = h.svc.TransitionPayout(ctx, payout.ID, domain.PayoutStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = h.svc.TransitionPayout(ctx, payout.ID, "settled")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	completed, err := h.svc.TransitionPayout(ctx, payout.ID, domain.PayoutStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, completed.Status)

	_, err = h.svc.TransitionPayout(ctx, payout.ID, domain.PayoutStatusFailed)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	eligibility, err := h.svc.ResolveEligibility(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.CanSettle)

	_, err = h.svc.TransitionPayout(ctx, h.node.Generate(), domain.PayoutStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)
}

// Apportioned net over a window always equals what was paid through claims on
// it plus what the previewer still reports as owed.
func TestConservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "conserved")
	h.sale(t, m.ID, 10000, day(1))
	h.sale(t, m.ID, 2500, day(2))

	check := func(stage string) {
		t.Helper()
		breakdown, err := h.svc.Apportion(ctx, m.ID, day(1), day(2))
		require.NoError(t, err)

		var claims []domain.SettlementWindowClaim
		require.NoError(t, h.db.Where("recipient_id = ?", m.ID).Find(&claims).Error)
		var paid int64
		for _, c := range claims {
			net, err := h.ledger.SumDebitsForClaim(ctx, c.ID)
			require.NoError(t, err)
			paid += -net
		}

		preview, err := h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeSettleAll})
		require.NoError(t, err)
		var remaining int64
		for _, row := range preview.Rows {
			remaining += row.RemainingCents
		}

		assert.Equal(t, breakdown.NetPayoutCents, paid+remaining, stage)
	}

	check("before payout")

	payout, err := h.svc.CreatePayout(ctx, domain.CreatePayoutRequest{RecipientID: m.ID, From: day(1), To: day(2)})
	require.NoError(t, err)
	check("after payout")

	_, err = h.svc.TransitionPayout(ctx, payout.ID, domain.PayoutStatusCancelled)
	require.NoError(t, err)
	check("after reversal")
}
