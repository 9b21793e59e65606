package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidLimit = errors.New("invalid_limit")
)

// MerchantFilter selects one keyset page of merchants ordered by id.
type MerchantFilter struct {
	AfterID *snowflake.ID
	IDs     []snowflake.ID
	Limit   int
}

type Repository interface {
	ListMerchants(ctx context.Context, db *gorm.DB, filter MerchantFilter) ([]Merchant, error)
	FindMerchant(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Merchant, error)
	// ListUncreditedSaleLines returns verified, positive lines with no
	// sale_credit ledger row yet, in id order after afterID.
	ListUncreditedSaleLines(ctx context.Context, db *gorm.DB, afterID *snowflake.ID, limit int) ([]SaleLine, error)
}
