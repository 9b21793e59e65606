package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreditInput struct {
	RecipientID  snowflake.ID
	AmountCents  int64
	Currency     string
	EarnedAt     time.Time
	SourceLineID *snowflake.ID
}

// PayoutEntryInput describes a debit or its reversal. AmountCents is the
// positive magnitude; the service applies the sign.
type PayoutEntryInput struct {
	RecipientID snowflake.ID
	PayoutID    snowflake.ID
	ClaimID     snowflake.ID
	AmountCents int64
	Currency    string
	EarnedAt    time.Time
}

type SyncResult struct {
	Scanned  int `json:"scanned"`
	Credited int `json:"credited"`
	Failed   int `json:"failed"`
}

type Repository interface {
	// Insert fails with a duplicate-key error on a second debit or reversal for the same payout.
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	// InsertCredit is idempotent per source line and reports whether a row was written.
	InsertCredit(ctx context.Context, db *gorm.DB, entry *LedgerEntry) (bool, error)
	SumCredits(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (int64, error)
	SumForClaim(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (int64, error)
	SumForClaims(ctx context.Context, db *gorm.DB, claimIDs []snowflake.ID) (int64, error)
	UnsettledSaleRange(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, after *time.Time) (SaleRange, error)
	WindowSales(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (WindowSales, error)
	FindPayoutEntry(ctx context.Context, db *gorm.DB, payoutID snowflake.ID, entryType EntryType) (*LedgerEntry, error)
	ListByRecipient(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, afterID *snowflake.ID, limit int) ([]LedgerEntry, error)
}

// Service is the append-only ledger store. Append methods take an optional
// transaction handle; a nil tx writes through the service's own connection.
type Service interface {
	AppendCredit(ctx context.Context, tx *gorm.DB, in CreditInput) (*LedgerEntry, bool, error)
	AppendDebit(ctx context.Context, tx *gorm.DB, in PayoutEntryInput) (*LedgerEntry, error)
	AppendReversal(ctx context.Context, tx *gorm.DB, in PayoutEntryInput) (*LedgerEntry, error)

	SumCredits(ctx context.Context, recipientID snowflake.ID, from, to time.Time) (int64, error)
	// SumDebitsForClaim nets payout_debit and payout_debit_reversal rows linked to the claim.
	SumDebitsForClaim(ctx context.Context, claimID snowflake.ID) (int64, error)

	ListEntries(ctx context.Context, recipientID snowflake.ID, pageToken string, limit int) ([]LedgerEntry, string, bool, error)
	SyncSaleCredits(ctx context.Context, limit int) (*SyncResult, error)
}
