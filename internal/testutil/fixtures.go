package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func SeedMerchant(t *testing.T, db *gorm.DB, node *snowflake.Node, name string) marketplacedomain.Merchant {
	t.Helper()
	merchant := marketplacedomain.Merchant{
		ID:         node.Generate(),
		Name:       name,
		Email:      name + "@example.com",
		IsMerchant: true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(&merchant).Error)
	return merchant
}

// SaleOption tweaks a seeded sale line.
type SaleOption func(*marketplacedomain.SaleLine)

func WithDiscount(cents int64, fundedBy marketplacedomain.DiscountFunding) SaleOption {
	return func(l *marketplacedomain.SaleLine) {
		l.DiscountCents = cents
		l.DiscountFundedBy = fundedBy
	}
}

func WithStage(stage marketplacedomain.PaymentStage) SaleOption {
	return func(l *marketplacedomain.SaleLine) {
		l.PaymentStage = stage
	}
}

func SeedSaleLine(t *testing.T, db *gorm.DB, node *snowflake.Node, merchantID snowflake.ID, subtotalCents int64, orderedAt time.Time, opts ...SaleOption) marketplacedomain.SaleLine {
	t.Helper()
	line := marketplacedomain.SaleLine{
		ID:            node.Generate(),
		OrderID:       node.Generate(),
		ProductID:     node.Generate(),
		MerchantID:    merchantID,
		SubtotalCents: subtotalCents,
		PaymentStage:  marketplacedomain.PaymentStageVerified,
		OrderedAt:     orderedAt.UTC(),
	}
	for _, opt := range opts {
		opt(&line)
	}
	require.NoError(t, db.Create(&line).Error)
	return line
}
