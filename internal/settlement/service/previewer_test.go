package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewBatchValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: "everything"})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	_, err = h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeCutoff})
	var windowErr *domain.WindowError
	require.True(t, errors.As(err, &windowErr))
	assert.Equal(t, "cutoff_date", windowErr.Field)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeCutoff, CutoffDate: ptr(day(11))})
	require.True(t, errors.As(err, &windowErr))
	assert.Equal(t, "cutoff_date", windowErr.Field)

	_, err = h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeSettleAll, Limit: 251})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)

	_, err = h.svc.PreviewBatch(ctx, domain.PreviewRequest{Mode: domain.ModeSettleAll, Cursor: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestPreviewBatchSingleMerchant(t *testing.T) {
	h := newHarness(t)
	m := h.merchant(t, "solo")
	h.sale(t, m.ID, 10000, day(1))

	got, err := h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{Mode: domain.ModeSettleAll})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)

	row := got.Rows[0]
	assert.Equal(t, m.ID, row.RecipientID)
	assert.Equal(t, day(1), row.From)
	assert.Equal(t, day(1), row.To)
	assert.Equal(t, int64(8000), row.ExpectedCents)
	assert.Zero(t, row.AlreadyPaidCents)
	assert.Equal(t, int64(8000), row.RemainingCents)
	assert.Equal(t, "USD", row.Currency)
	assert.False(t, got.HasMore)
}

func TestPreviewBatchCutoffMode(t *testing.T) {
	h := newHarness(t)
	m := h.merchant(t, "cutoff")
	h.sale(t, m.ID, 10000, day(1))
	h.sale(t, m.ID, 5000, day(5))

	got, err := h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{
		Mode:       domain.ModeCutoff,
		CutoffDate: ptr(day(3)),
	})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, day(3), got.Rows[0].To)
	assert.Equal(t, int64(8000), got.Rows[0].RemainingCents)

	got, err = h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{Mode: domain.ModeSettleAll})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, day(5), got.Rows[0].To)
	assert.Equal(t, int64(12000), got.Rows[0].RemainingCents)
}

func TestPreviewBatchSkipsMerchantsWithNothingOwed(t *testing.T) {
	h := newHarness(t)
	paid := h.merchant(t, "paid")
	idle := h.merchant(t, "idle")
	owed := h.merchant(t, "owed")
	h.sale(t, paid.ID, 1000, day(1))
	h.sale(t, owed.ID, 1000, day(2))

	_, err := h.svc.CreatePayout(context.Background(), domain.CreatePayoutRequest{RecipientID: paid.ID, From: day(1), To: day(1)})
	require.NoError(t, err)

	got, err := h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{Mode: domain.ModeSettleAll})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, owed.ID, got.Rows[0].RecipientID)
	assert.NotEqual(t, idle.ID, got.Rows[0].RecipientID)
}

func TestPreviewBatchAllowlist(t *testing.T) {
	h := newHarness(t)
	a := h.merchant(t, "a")
	b := h.merchant(t, "b")
	h.sale(t, a.ID, 1000, day(1))
	h.sale(t, b.ID, 1000, day(1))

	got, err := h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{
		Mode:        domain.ModeSettleAll,
		MerchantIDs: []snowflake.ID{b.ID},
	})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, b.ID, got.Rows[0].RecipientID)
}

func TestPreviewBatchIsIdempotent(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 4; i++ {
		m := h.merchant(t, "m")
		h.sale(t, m.ID, int64(1000*(i+1)), day(i+1))
	}
	req := domain.PreviewRequest{Mode: domain.ModeSettleAll, Limit: 3}

	first, err := h.svc.PreviewBatch(context.Background(), req)
	require.NoError(t, err)
	second, err := h.svc.PreviewBatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.NextCursor, second.NextCursor)
	assert.Equal(t, first.HasMore, second.HasMore)
	assert.True(t, first.HasMore)
}

func TestPreviewBatchCursorCompleteness(t *testing.T) {
	h := newHarness(t)
	want := map[snowflake.ID]bool{}
	for i := 0; i < 11; i++ {
		m := h.merchant(t, "m")
		if i%3 == 0 {
			continue
		}
		h.sale(t, m.ID, 1000, day(1+i%5))
		want[m.ID] = true
	}

	for _, limit := range []int{1, 2, 4, 50} {
		seen := map[snowflake.ID]int{}
		cursor := ""
		for pages := 0; ; pages++ {
			require.Less(t, pages, 20)
			got, err := h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{
				Mode:   domain.ModeSettleAll,
				Cursor: cursor,
				Limit:  limit,
			})
			require.NoError(t, err)
			for _, row := range got.Rows {
				seen[row.RecipientID]++
			}
			if !got.HasMore {
				break
			}
			cursor = got.NextCursor
		}

		assert.Len(t, seen, len(want), "limit %d", limit)
		for id, n := range seen {
			assert.True(t, want[id], "limit %d", limit)
			assert.Equal(t, 1, n, "limit %d", limit)
		}
	}
}

func TestPreviewBatchCountsRows(t *testing.T) {
	h := newHarness(t)
	m := h.merchant(t, "counted")
	h.merchant(t, "empty")
	h.sale(t, m.ID, 1000, day(1))

	_, err := h.svc.PreviewBatch(context.Background(), domain.PreviewRequest{Mode: domain.ModeSettleAll})
	require.NoError(t, err)

	assert.Equal(t, float64(1), h.counter(t, "settlement_preview_rows_total", map[string]string{"outcome": "emitted"}))
	assert.Equal(t, float64(1), h.counter(t, "settlement_preview_rows_total", map[string]string{"outcome": "not_eligible"}))
}
