package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
	PayoutStatusCancelled PayoutStatus = "cancelled"
)

// IsReversible reports whether a payout in this status releases its window.
func (s PayoutStatus) IsReversible() bool {
	return s == PayoutStatusFailed || s == PayoutStatusCancelled
}

// SettlementWindowClaim reserves an inclusive date range of a merchant's sales
// for one payout. At most one active claim may cover a given window.
type SettlementWindowClaim struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	RecipientID    snowflake.ID  `gorm:"not null;index:ix_settlement_window_claims_recipient,priority:1" json:"recipient_id"`
	SettlementFrom time.Time     `gorm:"type:date;not null" json:"settlement_from"`
	SettlementTo   time.Time     `gorm:"type:date;not null;index:ix_settlement_window_claims_recipient,priority:2" json:"settlement_to"`
	IsActive       bool          `gorm:"not null;default:true" json:"is_active"`
	LinkedPayoutID *snowflake.ID `gorm:"index" json:"linked_payout_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	DeactivatedAt  *time.Time    `json:"deactivated_at,omitempty"`
}

func (SettlementWindowClaim) TableName() string { return "settlement_window_claims" }

// PayoutTransaction is the payable record handed to the payment collaborator.
type PayoutTransaction struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	RecipientID snowflake.ID `gorm:"not null;index" json:"recipient_id"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	Currency    string       `gorm:"type:text;not null" json:"currency"`
	Status      PayoutStatus `gorm:"type:text;not null;index" json:"status"`
	Provider    string       `gorm:"type:text;not null" json:"provider"`
	Reference   string       `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	Note        string       `gorm:"type:text;not null;default:''" json:"note"`
	CreatedBy   string       `gorm:"type:text;not null" json:"created_by"`
	CreatedVia  string       `gorm:"type:text;not null" json:"created_via"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PayoutTransaction) TableName() string { return "payout_transactions" }
