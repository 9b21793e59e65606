package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentStage is the settlement state of the order behind a sale line.
type PaymentStage string

const (
	PaymentStagePending  PaymentStage = "pending"
	PaymentStageVerified PaymentStage = "verified"
	PaymentStageFailed   PaymentStage = "failed"
	PaymentStageRefunded PaymentStage = "refunded"
)

// DiscountFunding says who absorbs a coupon's cost.
type DiscountFunding string

const (
	DiscountFundingNone     DiscountFunding = ""
	DiscountFundingPlatform DiscountFunding = "platform"
	DiscountFundingMerchant DiscountFunding = "merchant"
)

// Merchant is owned by the marketplace registry and read-only here.
type Merchant struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Email      string       `gorm:"type:text;not null" json:"email"`
	IsMerchant bool         `gorm:"not null;default:false;index" json:"is_merchant"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Merchant) TableName() string { return "merchants" }

// SaleLine is one order line item from the checkout feed.
type SaleLine struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrderID          snowflake.ID    `gorm:"not null;index" json:"order_id"`
	ProductID        snowflake.ID    `gorm:"not null" json:"product_id"`
	MerchantID       snowflake.ID    `gorm:"not null;index:ix_sale_lines_merchant_ordered,priority:1" json:"merchant_id"`
	SubtotalCents    int64           `gorm:"not null" json:"subtotal_cents"`
	DiscountCents    int64           `gorm:"not null;default:0" json:"discount_cents"`
	DiscountFundedBy DiscountFunding `gorm:"type:text;not null;default:''" json:"discount_funded_by"`
	PaymentStage     PaymentStage    `gorm:"type:text;not null;index" json:"payment_stage"`
	OrderedAt        time.Time       `gorm:"not null;index:ix_sale_lines_merchant_ordered,priority:2" json:"ordered_at"`
}

func (SaleLine) TableName() string { return "sale_lines" }

// IsSuccessful reports whether the line counts as an earned sale.
func (l SaleLine) IsSuccessful() bool {
	return l.PaymentStage == PaymentStageVerified
}
