package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/clock"
	"github.com/smallbiznis/settlement/internal/config"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/ledger/repository"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	marketplacerepo "github.com/smallbiznis/settlement/internal/marketplace/repository"
	"github.com/smallbiznis/settlement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   ledgerdomain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	node := testutil.NewNode(t)
	fake := clock.NewFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fake,
		Repo:        repository.NewRepository(),
		Marketplace: marketplacerepo.NewRepository(),
		Settings:    config.NewStaticSettlementConfig(config.DefaultSettlementConfig()),
	})
	return fixture{svc: svc, db: db, node: node, clock: fake}
}

func TestAppendCreditValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 1)

	cases := []struct {
		name string
		in   ledgerdomain.CreditInput
		want error
	}{
		{"missing recipient", ledgerdomain.CreditInput{AmountCents: 100, Currency: "USD", EarnedAt: day}, ledgerdomain.ErrInvalidRecipient},
		{"zero amount", ledgerdomain.CreditInput{RecipientID: 1, Currency: "USD", EarnedAt: day}, ledgerdomain.ErrInvalidAmount},
		{"bad currency", ledgerdomain.CreditInput{RecipientID: 1, AmountCents: 100, Currency: "US", EarnedAt: day}, ledgerdomain.ErrInvalidCurrency},
		{"missing date", ledgerdomain.CreditInput{RecipientID: 1, AmountCents: 100, Currency: "USD"}, ledgerdomain.ErrInvalidEarnedAt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.AppendCredit(ctx, nil, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAppendCreditIsIdempotentPerSourceLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := f.node.Generate()
	lineID := f.node.Generate()

	in := ledgerdomain.CreditInput{
		RecipientID:  recipient,
		AmountCents:  2500,
		Currency:     "usd",
		EarnedAt:     time.Date(2024, 3, 1, 17, 45, 0, 0, time.UTC),
		SourceLineID: &lineID,
	}
	entry, inserted, err := f.svc.AppendCredit(ctx, nil, in)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "USD", entry.Currency)
	assert.Equal(t, testutil.Day(2024, 3, 1), entry.EarnedAt)

	_, inserted, err = f.svc.AppendCredit(ctx, nil, in)
	require.NoError(t, err)
	assert.False(t, inserted)

	total, err := f.svc.SumCredits(ctx, recipient, testutil.Day(2024, 3, 1), testutil.Day(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2500), total)
}

func TestDebitAndReversalSigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := f.node.Generate()
	payoutID := f.node.Generate()
	claimID := f.node.Generate()

	in := ledgerdomain.PayoutEntryInput{
		RecipientID: recipient,
		PayoutID:    payoutID,
		ClaimID:     claimID,
		AmountCents: 8000,
		Currency:    "USD",
	}

	debit, err := f.svc.AppendDebit(ctx, nil, in)
	require.NoError(t, err)
	assert.Equal(t, int64(-8000), debit.AmountCents)
	assert.Equal(t, ledgerdomain.EntryTypePayoutDebit, debit.EntryType)

	net, err := f.svc.SumDebitsForClaim(ctx, claimID)
	require.NoError(t, err)
	assert.Equal(t, int64(-8000), net)

	_, err = f.svc.AppendDebit(ctx, nil, in)
	assert.ErrorIs(t, err, ledgerdomain.ErrDuplicateEntry)

	reversal, err := f.svc.AppendReversal(ctx, nil, in)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), reversal.AmountCents)

	net, err = f.svc.SumDebitsForClaim(ctx, claimID)
	require.NoError(t, err)
	assert.Zero(t, net)

	_, err = f.svc.AppendReversal(ctx, nil, in)
	assert.ErrorIs(t, err, ledgerdomain.ErrDuplicateEntry)
}

func TestAppendDebitRequiresLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AppendDebit(ctx, nil, ledgerdomain.PayoutEntryInput{RecipientID: 1, ClaimID: 2, AmountCents: 1, Currency: "USD"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidPayout)

	_, err = f.svc.AppendDebit(ctx, nil, ledgerdomain.PayoutEntryInput{RecipientID: 1, PayoutID: 2, AmountCents: 1, Currency: "USD"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidClaim)

	_, err = f.svc.AppendDebit(ctx, nil, ledgerdomain.PayoutEntryInput{RecipientID: 1, PayoutID: 2, ClaimID: 3, AmountCents: -5, Currency: "USD"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestAppendInsideRolledBackTransactionLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := f.node.Generate()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, _, err := f.svc.AppendCredit(ctx, tx, ledgerdomain.CreditInput{
			RecipientID: recipient,
			AmountCents: 100,
			Currency:    "USD",
			EarnedAt:    testutil.Day(2024, 3, 1),
		})
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Where("recipient_id = ?", recipient).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSumCreditsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := f.node.Generate()

	for day, cents := range map[int]int64{1: 100, 2: 200, 5: 400} {
		_, _, err := f.svc.AppendCredit(ctx, nil, ledgerdomain.CreditInput{
			RecipientID: recipient,
			AmountCents: cents,
			Currency:    "USD",
			EarnedAt:    testutil.Day(2024, 3, day),
		})
		require.NoError(t, err)
	}

	total, err := f.svc.SumCredits(ctx, recipient, testutil.Day(2024, 3, 1), testutil.Day(2024, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)

	total, err = f.svc.SumCredits(ctx, recipient, testutil.Day(2024, 3, 1), testutil.Day(2024, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, int64(700), total)

	_, err = f.svc.SumCredits(ctx, recipient, testutil.Day(2024, 3, 5), testutil.Day(2024, 3, 1))
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidWindow)
}

func TestSyncSaleCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merchant := testutil.SeedMerchant(t, f.db, f.node, "acme")

	verified := testutil.SeedSaleLine(t, f.db, f.node, merchant.ID, 10000, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	testutil.SeedSaleLine(t, f.db, f.node, merchant.ID, 5000, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		testutil.WithStage(marketplacedomain.PaymentStagePending))
	testutil.SeedSaleLine(t, f.db, f.node, merchant.ID, 700, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC),
		testutil.WithStage(marketplacedomain.PaymentStageRefunded))

	result, err := f.svc.SyncSaleCredits(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Credited)

	var entry ledgerdomain.LedgerEntry
	require.NoError(t, f.db.Where("source_line_id = ?", verified.ID).First(&entry).Error)
	assert.Equal(t, ledgerdomain.EntryTypeSaleCredit, entry.EntryType)
	assert.Equal(t, int64(10000), entry.AmountCents)
	assert.Equal(t, merchant.ID, entry.RecipientID)
	assert.Equal(t, "USD", entry.Currency)

	result, err = f.svc.SyncSaleCredits(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
	assert.Zero(t, result.Credited)

	_, err = f.svc.SyncSaleCredits(ctx, 0)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidSyncLimit)
}

func TestSyncSaleCreditsSkipsZeroSubtotalLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merchant := testutil.SeedMerchant(t, f.db, f.node, "freebies")

	for i := 0; i < 3; i++ {
		testutil.SeedSaleLine(t, f.db, f.node, merchant.ID, 0, time.Date(2024, 3, 1, 8, i, 0, 0, time.UTC))
	}
	paid := testutil.SeedSaleLine(t, f.db, f.node, merchant.ID, 10000, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC))

	result, err := f.svc.SyncSaleCredits(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Credited)

	var entry ledgerdomain.LedgerEntry
	require.NoError(t, f.db.Where("source_line_id = ?", paid.ID).First(&entry).Error)
	assert.Equal(t, int64(10000), entry.AmountCents)

	result, err = f.svc.SyncSaleCredits(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, result.Scanned)
}

func TestSyncSaleCreditsReadsEveryPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merchant := testutil.SeedMerchant(t, f.db, f.node, "busy")

	for i := 0; i < 7; i++ {
		testutil.SeedSaleLine(t, f.db, f.node, merchant.ID, 100, time.Date(2024, 3, 1, 9, i, 0, 0, time.UTC))
	}

	result, err := f.svc.SyncSaleCredits(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Scanned)
	assert.Equal(t, 7, result.Credited)
	assert.Zero(t, result.Failed)

	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).
		Where("recipient_id = ? AND entry_type = ?", merchant.ID, ledgerdomain.EntryTypeSaleCredit).
		Count(&count).Error)
	assert.Equal(t, int64(7), count)
}

func TestListEntriesPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := f.node.Generate()

	for i := 1; i <= 5; i++ {
		_, _, err := f.svc.AppendCredit(ctx, nil, ledgerdomain.CreditInput{
			RecipientID: recipient,
			AmountCents: int64(i * 100),
			Currency:    "USD",
			EarnedAt:    testutil.Day(2024, 3, i),
		})
		require.NoError(t, err)
	}

	var seen []snowflake.ID
	token := ""
	for {
		page, next, hasMore, err := f.svc.ListEntries(ctx, recipient, token, 2)
		require.NoError(t, err)
		for _, e := range page {
			seen = append(seen, e.ID)
		}
		if !hasMore {
			break
		}
		token = next
	}
	assert.Len(t, seen, 5)

	_, _, _, err := f.svc.ListEntries(ctx, recipient, "not-a-cursor", 2)
	assert.Error(t, err)
}
