package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/marketplace/domain"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) ListMerchants(ctx context.Context, db *gorm.DB, filter domain.MerchantFilter) ([]domain.Merchant, error) {
	if filter.Limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	query := db.WithContext(ctx).
		Model(&domain.Merchant{}).
		Where("is_merchant = ?", true)
	if filter.AfterID != nil {
		query = query.Where("id > ?", *filter.AfterID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}

	var items []domain.Merchant
	if err := query.Order("id ASC").Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindMerchant(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Merchant, error) {
	var item domain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, is_merchant, created_at
		 FROM merchants
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListUncreditedSaleLines(ctx context.Context, db *gorm.DB, afterID *snowflake.ID, limit int) ([]domain.SaleLine, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	var after int64
	if afterID != nil {
		after = int64(*afterID)
	}

	var items []domain.SaleLine
	err := db.WithContext(ctx).Raw(
		`SELECT sl.id, sl.order_id, sl.product_id, sl.merchant_id, sl.subtotal_cents,
			sl.discount_cents, sl.discount_funded_by, sl.payment_stage, sl.ordered_at
		 FROM sale_lines sl
		 LEFT JOIN ledger_entries le
			ON le.source_line_id = sl.id AND le.entry_type = 'sale_credit'
		 WHERE sl.payment_stage = ? AND sl.subtotal_cents > 0 AND sl.id > ? AND le.id IS NULL
		 ORDER BY sl.id ASC
		 LIMIT ?`,
		domain.PaymentStageVerified,
		after,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
