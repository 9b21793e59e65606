package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeSettleAll Mode = "settle_all"
	ModeCutoff    Mode = "cutoff"
)

// Reasons a merchant cannot be settled.
const (
	ReasonNoSales           = "no_sales"
	ReasonNoUnsettledSales  = "no_unsettled_sales"
	ReasonStoreUnavailable  = "store_unavailable"
	ReasonWindowAfterCutoff = "window_after_cutoff"
)

const (
	CreatedViaAdminAPI = "admin_api"
	CreatedViaCLI      = "cli"
	CreatedViaBatch    = "batch"
)

// Eligibility is the next window a merchant can be paid for.
type Eligibility struct {
	RecipientID  snowflake.ID `json:"recipient_id"`
	EligibleFrom *time.Time   `json:"eligible_from"`
	MaxTo        *time.Time   `json:"max_to"`
	CanSettle    bool         `json:"can_settle"`
	Reason       string       `json:"reason,omitempty"`
}

// Apportionment is the fee and discount breakdown of a window, in cents.
type Apportionment struct {
	GrossCents                  int64 `json:"gross_cents"`
	DiscountTotalCents          int64 `json:"discount_total_cents"`
	DiscountCrowdpenFundedCents int64 `json:"discount_crowdpen_funded_cents"`
	DiscountMerchantFundedCents int64 `json:"discount_merchant_funded_cents"`
	CrowdpenFeeCents            int64 `json:"crowdpen_fee_cents"`
	StartbuttonFeeCents         int64 `json:"startbutton_fee_cents"`
	NetPayoutCents              int64 `json:"net_payout_cents"`
}

type PreviewRequest struct {
	Mode        Mode           `validate:"required,oneof=settle_all cutoff"`
	CutoffDate  *time.Time     `validate:"required_if=Mode cutoff"`
	MerchantIDs []snowflake.ID `validate:"omitempty,max=1000"`
	Cursor      string
	Limit       int `validate:"gte=0"`
}

type PreviewRow struct {
	RecipientID      snowflake.ID  `json:"recipient_id"`
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	From             time.Time     `json:"from"`
	To               time.Time     `json:"to"`
	Currency         string        `json:"currency"`
	ExpectedCents    int64         `json:"expected_cents"`
	AlreadyPaidCents int64         `json:"already_paid_cents"`
	RemainingCents   int64         `json:"remaining_cents"`
	Breakdown        Apportionment `json:"breakdown"`
}

// RowError is a merchant the previewer could not evaluate.
type RowError struct {
	RecipientID snowflake.ID `json:"recipient_id"`
	Code        string       `json:"code"`
	Message     string       `json:"message"`
}

type PreviewResult struct {
	Rows       []PreviewRow `json:"rows"`
	Errors     []RowError   `json:"errors"`
	NextCursor string       `json:"next_cursor"`
	HasMore    bool         `json:"has_more"`
}

type CreatePayoutRequest struct {
	RecipientID snowflake.ID `validate:"required"`
	From        time.Time
	To          time.Time
	Currency    string       `validate:"omitempty,len=3,alpha"`
	Provider    string       `validate:"omitempty,max=64"`
	Reference   string       `validate:"omitempty,max=128"`
	Note        string       `validate:"omitempty,max=1024"`
	// ExpectedCents is the previewed remaining amount. When set the payout is
	// refused as stale unless the recomputed amount matches to the cent.
	ExpectedCents *int64
	CreatedBy     string
	CreatedVia    string
}

type BatchRequest struct {
	PreviewRequest
	Currency   string `validate:"omitempty,len=3,alpha"`
	Provider   string `validate:"omitempty,max=64"`
	CreatedBy  string
	CreatedVia string
}

const (
	RowStatusCreated = "created"
	RowStatusFailed  = "failed"
)

type BatchRowResult struct {
	RecipientID snowflake.ID  `json:"recipient_id"`
	From        *time.Time    `json:"from,omitempty"`
	To          *time.Time    `json:"to,omitempty"`
	AmountCents int64         `json:"amount_cents"`
	Status      string        `json:"status"`
	PayoutID    *snowflake.ID `json:"payout_id,omitempty"`
	ErrorCode   string        `json:"error_code,omitempty"`
	Message     string        `json:"message,omitempty"`
}

type BatchResult struct {
	Attempted  int              `json:"attempted"`
	Created    int              `json:"created"`
	Failed     int              `json:"failed"`
	Results    []BatchRowResult `json:"results"`
	NextCursor string           `json:"next_cursor"`
	HasMore    bool             `json:"has_more"`
}

type ListPayoutsRequest struct {
	RecipientID *snowflake.ID
	Status      PayoutStatus
	PageToken   string
	Limit       int
}

type ListPayoutsResponse struct {
	Payouts       []PayoutTransaction `json:"payouts"`
	NextPageToken string              `json:"next_page_token"`
	HasMore       bool                `json:"has_more"`
}

// FormatCents renders integer cents with two decimals, e.g. 8000 -> "80.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
