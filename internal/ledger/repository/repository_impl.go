package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, recipient_id, entry_type, amount_cents, currency, earned_at,
			linked_payout_id, linked_claim_id, source_line_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.RecipientID,
		entry.EntryType,
		entry.AmountCents,
		entry.Currency,
		entry.EarnedAt,
		entry.LinkedPayoutID,
		entry.LinkedClaimID,
		entry.SourceLineID,
		entry.CreatedAt,
	).Error
}

// InsertCredit reports false when the source line was already credited.
func (r *repo) InsertCredit(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) (bool, error) {
	row := domain.LedgerEntry{
		ID:           entry.ID,
		RecipientID:  entry.RecipientID,
		EntryType:    domain.EntryTypeSaleCredit,
		AmountCents:  entry.AmountCents,
		Currency:     entry.Currency,
		EarnedAt:     entry.EarnedAt,
		SourceLineID: entry.SourceLineID,
		CreatedAt:    entry.CreatedAt,
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_type"}, {Name: "source_line_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SumCredits(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM ledger_entries
		 WHERE recipient_id = ? AND entry_type = ? AND earned_at >= ? AND earned_at <= ?`,
		recipientID,
		domain.EntryTypeSaleCredit,
		from,
		to,
	).Scan(&total).Error
	return total, err
}

func (r *repo) SumForClaim(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (int64, error) {
	return r.SumForClaims(ctx, db, []snowflake.ID{claimID})
}

func (r *repo) SumForClaims(ctx context.Context, db *gorm.DB, claimIDs []snowflake.ID) (int64, error) {
	if len(claimIDs) == 0 {
		return 0, nil
	}
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM ledger_entries
		 WHERE linked_claim_id IN ? AND entry_type IN ?`,
		claimIDs,
		[]domain.EntryType{domain.EntryTypePayoutDebit, domain.EntryTypePayoutDebitReversal},
	).Scan(&total).Error
	return total, err
}

type earnedRow struct {
	EarnedAt time.Time
}

// UnsettledSaleRange reads both ends with ORDER BY ... LIMIT 1 rather than
// MIN/MAX so drivers that type results by column declaration still return dates.
func (r *repo) UnsettledSaleRange(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, after *time.Time) (domain.SaleRange, error) {
	var out domain.SaleRange

	first, err := r.boundary(ctx, db, recipientID, after, "ASC")
	if err != nil {
		return out, err
	}
	if first == nil {
		return out, nil
	}
	last, err := r.boundary(ctx, db, recipientID, after, "DESC")
	if err != nil {
		return out, err
	}

	out.First = first
	out.Last = last
	return out, nil
}

func (r *repo) boundary(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, after *time.Time, direction string) (*time.Time, error) {
	query := db.WithContext(ctx).
		Table("ledger_entries").
		Select("earned_at").
		Where("recipient_id = ? AND entry_type = ?", recipientID, domain.EntryTypeSaleCredit)
	if after != nil {
		query = query.Where("earned_at > ?", *after)
	}

	var rows []earnedRow
	if err := query.Order("earned_at " + direction).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	earned := domain.DateOf(rows[0].EarnedAt)
	return &earned, nil
}

func (r *repo) WindowSales(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (domain.WindowSales, error) {
	var out domain.WindowSales
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(le.amount_cents), 0) AS gross_cents,
			COALESCE(SUM(CASE WHEN sl.discount_funded_by = 'platform' THEN sl.discount_cents ELSE 0 END), 0) AS platform_discount_cents,
			COALESCE(SUM(CASE WHEN sl.discount_funded_by = 'platform' THEN 0 ELSE COALESCE(sl.discount_cents, 0) END), 0) AS merchant_discount_cents,
			COUNT(le.id) AS line_count
		 FROM ledger_entries le
		 LEFT JOIN sale_lines sl ON sl.id = le.source_line_id
		 WHERE le.recipient_id = ? AND le.entry_type = ? AND le.earned_at >= ? AND le.earned_at <= ?`,
		recipientID,
		domain.EntryTypeSaleCredit,
		from,
		to,
	).Scan(&out).Error
	return out, err
}

func (r *repo) FindPayoutEntry(ctx context.Context, db *gorm.DB, payoutID snowflake.ID, entryType domain.EntryType) (*domain.LedgerEntry, error) {
	var items []domain.LedgerEntry
	err := db.WithContext(ctx).
		Where("linked_payout_id = ? AND entry_type = ?", payoutID, entryType).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListByRecipient(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, afterID *snowflake.ID, limit int) ([]domain.LedgerEntry, error) {
	query := db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if afterID != nil {
		query = query.Where("id > ?", *afterID)
	}
	var items []domain.LedgerEntry
	if err := query.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
