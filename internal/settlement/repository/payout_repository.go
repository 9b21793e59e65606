package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"gorm.io/gorm"
)

type payoutRepo struct{}

func NewPayoutRepository() domain.PayoutRepository {
	return &payoutRepo{}
}

func (r *payoutRepo) Insert(ctx context.Context, db *gorm.DB, payout *domain.PayoutTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payout_transactions (
			id, recipient_id, amount_cents, currency, status, provider, reference,
			note, created_by, created_via, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.ID,
		payout.RecipientID,
		payout.AmountCents,
		payout.Currency,
		payout.Status,
		payout.Provider,
		payout.Reference,
		payout.Note,
		payout.CreatedBy,
		payout.CreatedVia,
		payout.CreatedAt,
		payout.UpdatedAt,
	).Error
}

func (r *payoutRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PayoutTransaction, error) {
	var items []domain.PayoutTransaction
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *payoutRepo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.PayoutStatus, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payout_transactions
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		at,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *payoutRepo) List(ctx context.Context, db *gorm.DB, filter domain.PayoutFilter) ([]domain.PayoutTransaction, error) {
	query := db.WithContext(ctx).Model(&domain.PayoutTransaction{})
	if filter.RecipientID != nil {
		query = query.Where("recipient_id = ?", *filter.RecipientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AfterID != nil {
		query = query.Where("id > ?", *filter.AfterID)
	}

	var items []domain.PayoutTransaction
	if err := query.Order("id ASC").Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
