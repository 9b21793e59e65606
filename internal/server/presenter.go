package server

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
)

// Amounts go out twice: integer cents for machines, a 2dp string for people.

type eligibilityView struct {
	RecipientID  string  `json:"recipient_id"`
	EligibleFrom *string `json:"eligible_from"`
	MaxTo        *string `json:"max_to"`
	CanSettle    bool    `json:"can_settle"`
	Reason       string  `json:"reason,omitempty"`
}

type apportionmentView struct {
	GrossCents                  int64  `json:"gross_cents"`
	Gross                       string `json:"gross"`
	DiscountTotalCents          int64  `json:"discount_total_cents"`
	DiscountTotal               string `json:"discount_total"`
	DiscountCrowdpenFundedCents int64  `json:"discount_crowdpen_funded_cents"`
	DiscountCrowdpenFunded      string `json:"discount_crowdpen_funded"`
	DiscountMerchantFundedCents int64  `json:"discount_merchant_funded_cents"`
	DiscountMerchantFunded      string `json:"discount_merchant_funded"`
	CrowdpenFeeCents            int64  `json:"crowdpen_fee_cents"`
	CrowdpenFee                 string `json:"crowdpen_fee"`
	StartbuttonFeeCents         int64  `json:"startbutton_fee_cents"`
	StartbuttonFee              string `json:"startbutton_fee"`
	NetPayoutCents              int64  `json:"net_payout_cents"`
	NetPayout                   string `json:"net_payout"`
}

type previewRowView struct {
	RecipientID      string            `json:"recipient_id"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	From             string            `json:"from"`
	To               string            `json:"to"`
	Currency         string            `json:"currency"`
	ExpectedCents    int64             `json:"expected_cents"`
	Expected         string            `json:"expected"`
	AlreadyPaidCents int64             `json:"already_paid_cents"`
	AlreadyPaid      string            `json:"already_paid"`
	RemainingCents   int64             `json:"remaining_cents"`
	Remaining        string            `json:"remaining"`
	Breakdown        apportionmentView `json:"breakdown"`
}

type rowErrorView struct {
	RecipientID string `json:"recipient_id"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

type previewView struct {
	Rows       []previewRowView `json:"rows"`
	Errors     []rowErrorView   `json:"errors"`
	NextCursor string           `json:"next_cursor"`
	HasMore    bool             `json:"has_more"`
}

type payoutView struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	Provider    string    `json:"provider"`
	Reference   string    `json:"reference"`
	Note        string    `json:"note,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedVia  string    `json:"created_via"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type batchRowView struct {
	RecipientID string  `json:"recipient_id"`
	From        *string `json:"from,omitempty"`
	To          *string `json:"to,omitempty"`
	AmountCents int64   `json:"amount_cents"`
	Amount      string  `json:"amount"`
	Status      string  `json:"status"`
	PayoutID    *string `json:"payout_id,omitempty"`
	ErrorCode   string  `json:"error_code,omitempty"`
	Message     string  `json:"message,omitempty"`
}

type batchView struct {
	Attempted  int            `json:"attempted"`
	Created    int            `json:"created"`
	Failed     int            `json:"failed"`
	Results    []batchRowView `json:"results"`
	NextCursor string         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

type ledgerEntryView struct {
	ID             string    `json:"id"`
	RecipientID    string    `json:"recipient_id"`
	EntryType      string    `json:"entry_type"`
	AmountCents    int64     `json:"amount_cents"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	EarnedAt       string    `json:"earned_at"`
	LinkedPayoutID *string   `json:"linked_payout_id,omitempty"`
	LinkedClaimID  *string   `json:"linked_claim_id,omitempty"`
	SourceLineID   *string   `json:"source_line_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateOnlyLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func formatOptionalID(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toEligibilityView(e *settlementdomain.Eligibility) eligibilityView {
	return eligibilityView{
		RecipientID:  e.RecipientID.String(),
		EligibleFrom: formatOptionalDate(e.EligibleFrom),
		MaxTo:        formatOptionalDate(e.MaxTo),
		CanSettle:    e.CanSettle,
		Reason:       e.Reason,
	}
}

func toApportionmentView(a settlementdomain.Apportionment) apportionmentView {
	return apportionmentView{
		GrossCents:                  a.GrossCents,
		Gross:                       settlementdomain.FormatCents(a.GrossCents),
		DiscountTotalCents:          a.DiscountTotalCents,
		DiscountTotal:               settlementdomain.FormatCents(a.DiscountTotalCents),
		DiscountCrowdpenFundedCents: a.DiscountCrowdpenFundedCents,
		DiscountCrowdpenFunded:      settlementdomain.FormatCents(a.DiscountCrowdpenFundedCents),
		DiscountMerchantFundedCents: a.DiscountMerchantFundedCents,
		DiscountMerchantFunded:      settlementdomain.FormatCents(a.DiscountMerchantFundedCents),
		CrowdpenFeeCents:            a.CrowdpenFeeCents,
		CrowdpenFee:                 settlementdomain.FormatCents(a.CrowdpenFeeCents),
		StartbuttonFeeCents:         a.StartbuttonFeeCents,
		StartbuttonFee:              settlementdomain.FormatCents(a.StartbuttonFeeCents),
		NetPayoutCents:              a.NetPayoutCents,
		NetPayout:                   settlementdomain.FormatCents(a.NetPayoutCents),
	}
}

func toPreviewView(res *settlementdomain.PreviewResult) previewView {
	out := previewView{
		Rows:       make([]previewRowView, 0, len(res.Rows)),
		Errors:     make([]rowErrorView, 0, len(res.Errors)),
		NextCursor: res.NextCursor,
		HasMore:    res.HasMore,
	}
	for _, row := range res.Rows {
		out.Rows = append(out.Rows, previewRowView{
			RecipientID:      row.RecipientID.String(),
			Name:             row.Name,
			Email:            row.Email,
			From:             formatDate(row.From),
			To:               formatDate(row.To),
			Currency:         row.Currency,
			ExpectedCents:    row.ExpectedCents,
			Expected:         settlementdomain.FormatCents(row.ExpectedCents),
			AlreadyPaidCents: row.AlreadyPaidCents,
			AlreadyPaid:      settlementdomain.FormatCents(row.AlreadyPaidCents),
			RemainingCents:   row.RemainingCents,
			Remaining:        settlementdomain.FormatCents(row.RemainingCents),
			Breakdown:        toApportionmentView(row.Breakdown),
		})
	}
	for _, rowErr := range res.Errors {
		out.Errors = append(out.Errors, rowErrorView{
			RecipientID: rowErr.RecipientID.String(),
			Code:        rowErr.Code,
			Message:     rowErr.Message,
		})
	}
	return out
}

func toPayoutView(p *settlementdomain.PayoutTransaction) payoutView {
	return payoutView{
		ID:          p.ID.String(),
		RecipientID: p.RecipientID.String(),
		AmountCents: p.AmountCents,
		Amount:      settlementdomain.FormatCents(p.AmountCents),
		Currency:    p.Currency,
		Status:      string(p.Status),
		Provider:    p.Provider,
		Reference:   p.Reference,
		Note:        p.Note,
		CreatedBy:   p.CreatedBy,
		CreatedVia:  p.CreatedVia,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toBatchView(res *settlementdomain.BatchResult) batchView {
	out := batchView{
		Attempted:  res.Attempted,
		Created:    res.Created,
		Failed:     res.Failed,
		Results:    make([]batchRowView, 0, len(res.Results)),
		NextCursor: res.NextCursor,
		HasMore:    res.HasMore,
	}
	for _, row := range res.Results {
		out.Results = append(out.Results, batchRowView{
			RecipientID: row.RecipientID.String(),
			From:        formatOptionalDate(row.From),
			To:          formatOptionalDate(row.To),
			AmountCents: row.AmountCents,
			Amount:      settlementdomain.FormatCents(row.AmountCents),
			Status:      row.Status,
			PayoutID:    formatOptionalID(row.PayoutID),
			ErrorCode:   row.ErrorCode,
			Message:     row.Message,
		})
	}
	return out
}

func toLedgerEntryView(e ledgerdomain.LedgerEntry) ledgerEntryView {
	return ledgerEntryView{
		ID:             e.ID.String(),
		RecipientID:    e.RecipientID.String(),
		EntryType:      string(e.EntryType),
		AmountCents:    e.AmountCents,
		Amount:         settlementdomain.FormatCents(e.AmountCents),
		Currency:       e.Currency,
		EarnedAt:       formatDate(e.EarnedAt),
		LinkedPayoutID: formatOptionalID(e.LinkedPayoutID),
		LinkedClaimID:  formatOptionalID(e.LinkedClaimID),
		SourceLineID:   formatOptionalID(e.SourceLineID),
		CreatedAt:      e.CreatedAt,
	}
}
