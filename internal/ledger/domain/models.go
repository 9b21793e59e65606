package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryType classifies a ledger row. The sign of AmountCents follows the type.
type EntryType string

const (
	EntryTypeSaleCredit          EntryType = "sale_credit"
	EntryTypePayoutDebit         EntryType = "payout_debit"
	EntryTypePayoutDebitReversal EntryType = "payout_debit_reversal"
)

// LedgerEntry is an immutable record of money earned by or paid to a merchant.
// Rows are never updated or deleted; corrections are offsetting reversals.
type LedgerEntry struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	RecipientID    snowflake.ID  `gorm:"not null;index:ix_ledger_entries_recipient_earned,priority:1" json:"recipient_id"`
	EntryType      EntryType     `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source_line,priority:1;uniqueIndex:ux_ledger_entries_payout,priority:1" json:"entry_type"`
	AmountCents    int64         `gorm:"not null" json:"amount_cents"`
	Currency       string        `gorm:"type:text;not null" json:"currency"`
	EarnedAt       time.Time     `gorm:"type:date;not null;index:ix_ledger_entries_recipient_earned,priority:2" json:"earned_at"`
	LinkedPayoutID *snowflake.ID `gorm:"uniqueIndex:ux_ledger_entries_payout,priority:2" json:"linked_payout_id,omitempty"`
	LinkedClaimID  *snowflake.ID `gorm:"index" json:"linked_claim_id,omitempty"`
	SourceLineID   *snowflake.ID `gorm:"uniqueIndex:ux_ledger_entries_source_line,priority:2" json:"source_line_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// WindowSales aggregates credited sales in a date window together with the
// discount attribution of the underlying sale lines.
type WindowSales struct {
	GrossCents            int64
	PlatformDiscountCents int64
	MerchantDiscountCents int64
	LineCount             int64
}

// SaleRange bounds the credited sales after a given date. Both ends are nil
// when there are none.
type SaleRange struct {
	First *time.Time
	Last  *time.Time
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
