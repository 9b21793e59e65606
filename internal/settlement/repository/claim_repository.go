package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	pkgdb "github.com/smallbiznis/settlement/pkg/db"
	"gorm.io/gorm"
)

type claimRepo struct{}

func NewClaimRepository() domain.ClaimRepository {
	return &claimRepo{}
}

// LockRecipient takes a transaction-scoped lock per merchant. SQLite already
// allows a single writer, so nothing is taken there.
func (r *claimRepo) LockRecipient(ctx context.Context, db *gorm.DB, recipientID snowflake.ID) error {
	query := lockRecipientQuery(db.Dialector.Name())
	if query == "" {
		return nil
	}
	var locked []int64
	return db.WithContext(ctx).Raw(query, int64(recipientID)).Scan(&locked).Error
}

func lockRecipientQuery(dialect string) string {
	switch dialect {
	case pkgdb.DialectPostgres:
		return `SELECT 1 FROM (SELECT pg_advisory_xact_lock(?)) AS l`
	case pkgdb.DialectMySQL:
		return `SELECT 1 FROM merchants WHERE id = ? FOR UPDATE`
	default:
		return ""
	}
}

func (r *claimRepo) Insert(ctx context.Context, db *gorm.DB, claim *domain.SettlementWindowClaim) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO settlement_window_claims (
			id, recipient_id, settlement_from, settlement_to, is_active, linked_payout_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		claim.ID,
		claim.RecipientID,
		claim.SettlementFrom,
		claim.SettlementTo,
		claim.IsActive,
		claim.LinkedPayoutID,
		claim.CreatedAt,
	).Error
}

func (r *claimRepo) LinkPayout(ctx context.Context, db *gorm.DB, claimID, payoutID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE settlement_window_claims SET linked_payout_id = ? WHERE id = ?`,
		payoutID,
		claimID,
	).Error
}

func (r *claimRepo) Deactivate(ctx context.Context, db *gorm.DB, claimID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE settlement_window_claims
		 SET is_active = ?, deactivated_at = ?
		 WHERE id = ? AND is_active = ?`,
		false,
		at,
		claimID,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type settledToRow struct {
	SettlementTo time.Time
}

func (r *claimRepo) LastActiveSettledTo(ctx context.Context, db *gorm.DB, recipientID snowflake.ID) (*time.Time, error) {
	var rows []settledToRow
	err := db.WithContext(ctx).
		Table("settlement_window_claims").
		Select("settlement_to").
		Where("recipient_id = ? AND is_active = ?", recipientID, true).
		Order("settlement_to DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	settledTo := dateOf(rows[0].SettlementTo)
	return &settledTo, nil
}

func (r *claimRepo) FindActiveExact(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (*domain.SettlementWindowClaim, error) {
	var items []domain.SettlementWindowClaim
	err := db.WithContext(ctx).
		Where("recipient_id = ? AND settlement_from = ? AND settlement_to = ? AND is_active = ?", recipientID, from, to, true).
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

func (r *claimRepo) ListOverlapping(ctx context.Context, db *gorm.DB, filter domain.ClaimFilter) ([]domain.SettlementWindowClaim, error) {
	query := db.WithContext(ctx).
		Where("recipient_id = ? AND settlement_from <= ? AND settlement_to >= ?", filter.RecipientID, filter.To, filter.From)
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var items []domain.SettlementWindowClaim
	if err := query.Order("settlement_from ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *claimRepo) FindByPayout(ctx context.Context, db *gorm.DB, payoutID snowflake.ID) (*domain.SettlementWindowClaim, error) {
	var items []domain.SettlementWindowClaim
	err := db.WithContext(ctx).
		Where("linked_payout_id = ?", payoutID).
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

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
