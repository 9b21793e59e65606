package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ClaimFilter selects claims of one merchant intersecting [From, To].
type ClaimFilter struct {
	RecipientID snowflake.ID
	From        time.Time
	To          time.Time
	ActiveOnly  bool
}

type ClaimRepository interface {
	// LockRecipient serializes claim writers for one merchant until db's
	// transaction ends.
	LockRecipient(ctx context.Context, db *gorm.DB, recipientID snowflake.ID) error
	Insert(ctx context.Context, db *gorm.DB, claim *SettlementWindowClaim) error
	LinkPayout(ctx context.Context, db *gorm.DB, claimID, payoutID snowflake.ID) error
	// Deactivate reports false when the claim was already inactive.
	Deactivate(ctx context.Context, db *gorm.DB, claimID snowflake.ID, at time.Time) (bool, error)
	LastActiveSettledTo(ctx context.Context, db *gorm.DB, recipientID snowflake.ID) (*time.Time, error)
	FindActiveExact(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, from, to time.Time) (*SettlementWindowClaim, error)
	ListOverlapping(ctx context.Context, db *gorm.DB, filter ClaimFilter) ([]SettlementWindowClaim, error)
	FindByPayout(ctx context.Context, db *gorm.DB, payoutID snowflake.ID) (*SettlementWindowClaim, error)
}

type PayoutFilter struct {
	RecipientID *snowflake.ID
	Status      PayoutStatus
	AfterID     *snowflake.ID
	Limit       int
}

type PayoutRepository interface {
	Insert(ctx context.Context, db *gorm.DB, payout *PayoutTransaction) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PayoutTransaction, error)
	// UpdateStatus only moves a payout currently in from; it reports false otherwise.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to PayoutStatus, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter PayoutFilter) ([]PayoutTransaction, error)
}

type Service interface {
	ResolveEligibility(ctx context.Context, recipientID snowflake.ID) (*Eligibility, error)
	Apportion(ctx context.Context, recipientID snowflake.ID, from, to time.Time) (*Apportionment, error)
	PreviewBatch(ctx context.Context, req PreviewRequest) (*PreviewResult, error)

	CreatePayout(ctx context.Context, req CreatePayoutRequest) (*PayoutTransaction, error)
	CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)

	ReverseFailedPayout(ctx context.Context, payoutID snowflake.ID) error
	TransitionPayout(ctx context.Context, payoutID snowflake.ID, status PayoutStatus) (*PayoutTransaction, error)

	GetPayout(ctx context.Context, payoutID snowflake.ID) (*PayoutTransaction, error)
	ListPayouts(ctx context.Context, req ListPayoutsRequest) (*ListPayoutsResponse, error)
}
