package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	"github.com/smallbiznis/settlement/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/internal/observability/tracing"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// previewPlan is a validated preview request.
type previewPlan struct {
	runMaxTo    time.Time
	afterID     *snowflake.ID
	merchantIDs []snowflake.ID
	limit       int
	currency    string
}

type rowOutcome struct {
	row     *domain.PreviewRow
	err     *domain.RowError
	outcome string
}

func (s *Service) PreviewBatch(ctx context.Context, req domain.PreviewRequest) (_ *domain.PreviewResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.preview_batch",
		attribute.String("mode", string(req.Mode)),
		attribute.Int("limit", req.Limit),
	)
	defer func() { tracing.EndSpan(span, err) }()

	plan, err := s.planPreview(req)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, plan)
}

func (s *Service) planPreview(req domain.PreviewRequest) (previewPlan, error) {
	if err := s.validate.Struct(req); err != nil {
		return previewPlan{}, previewValidationError(req, err)
	}

	cfg := s.settings.Get()
	today := s.today()
	plan := previewPlan{
		runMaxTo:    today,
		merchantIDs: req.MerchantIDs,
		limit:       req.Limit,
		currency:    cfg.Payout.DefaultCurrency,
	}

	if req.Mode == domain.ModeCutoff {
		cutoff := dateOf(*req.CutoffDate)
		if cutoff.After(today) {
			return previewPlan{}, domain.NewWindowError("cutoff_date", "after today")
		}
		plan.runMaxTo = cutoff
	}

	if plan.limit == 0 {
		plan.limit = cfg.Batch.DefaultLimit
	}
	if plan.limit < 1 || plan.limit > cfg.Batch.MaxLimit {
		return previewPlan{}, domain.ErrInvalidLimit
	}

	cursor, err := pagination.DecodeCursor(req.Cursor)
	if err != nil {
		return previewPlan{}, domain.ErrInvalidCursor
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return previewPlan{}, domain.ErrInvalidCursor
		}
		plan.afterID = &afterID
	}
	return plan, nil
}

func previewValidationError(req domain.PreviewRequest, err error) error {
	switch {
	case req.Mode != domain.ModeSettleAll && req.Mode != domain.ModeCutoff:
		return domain.ErrInvalidMode
	case req.Mode == domain.ModeCutoff && req.CutoffDate == nil:
		return domain.NewWindowError("cutoff_date", "required for cutoff mode")
	case req.Limit < 0:
		return domain.ErrInvalidLimit
	case len(req.MerchantIDs) > 0:
		return domain.ErrInvalidRecipient
	default:
		return err
	}
}

func (s *Service) preview(ctx context.Context, plan previewPlan) (*domain.PreviewResult, error) {
	listCtx, cancel := s.withStatementTimeout(ctx)
	merchants, err := s.marketplace.ListMerchants(listCtx, s.db, marketplacedomain.MerchantFilter{
		AfterID: plan.afterID,
		IDs:     plan.merchantIDs,
		Limit:   plan.limit + 1,
	})
	cancel()
	if err != nil {
		return nil, err
	}

	page, pageInfo := pagination.BuildCursorPageInfo(merchants, plan.limit, func(m marketplacedomain.Merchant) string {
		return m.ID.String()
	})

	outcomes := make([]rowOutcome, len(page))
	g, gctx := errgroup.WithContext(ctx)
	concurrency := s.settings.Get().Batch.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)
	for i := range page {
		merchant := page[i]
		g.Go(func() error {
			outcomes[i] = s.previewRow(gctx, merchant, plan)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.PreviewResult{
		Rows:       []domain.PreviewRow{},
		Errors:     []domain.RowError{},
		NextCursor: pageInfo.NextPageToken,
		HasMore:    pageInfo.HasMore,
	}
	for _, o := range outcomes {
		s.metrics.IncPreviewRow(o.outcome)
		switch {
		case o.row != nil:
			result.Rows = append(result.Rows, *o.row)
		case o.err != nil:
			result.Errors = append(result.Errors, *o.err)
		}
	}
	return result, nil
}

// previewRow evaluates one merchant under its own statement timeout. Errors
// are returned as row errors so one slow merchant never fails the page.
func (s *Service) previewRow(ctx context.Context, merchant marketplacedomain.Merchant, plan previewPlan) rowOutcome {
	defer s.observe(obsmetrics.OperationPreview, time.Now())

	rowCtx, cancel := s.withStatementTimeout(ctx)
	defer cancel()

	row, err := s.evaluate(rowCtx, merchant, plan)
	if err != nil {
		code := domain.ErrorCode(err)
		if errors.Is(rowCtx.Err(), context.DeadlineExceeded) {
			code = domain.CodeTimeout
		}
		logger.WithRecipient(logger.WithContext(ctx, s.log), merchant.ID.String()).
			Warn("preview row failed", zap.String("code", code), zap.Error(err))
		return rowOutcome{
			err: &domain.RowError{
				RecipientID: merchant.ID,
				Code:        code,
				Message:     err.Error(),
			},
			outcome: obsmetrics.PreviewOutcomeError,
		}
	}
	if row == nil {
		return rowOutcome{outcome: obsmetrics.PreviewOutcomeNotEligible}
	}
	if row.RemainingCents == 0 {
		return rowOutcome{outcome: obsmetrics.PreviewOutcomeSettled}
	}
	return rowOutcome{row: row, outcome: obsmetrics.PreviewOutcomeEmitted}
}

// evaluate returns nil when the merchant has nothing to settle up to runMaxTo.
func (s *Service) evaluate(ctx context.Context, merchant marketplacedomain.Merchant, plan previewPlan) (*domain.PreviewRow, error) {
	eligibility, err := s.resolve(ctx, s.db, merchant.ID, s.today())
	if err != nil {
		return nil, err
	}
	if !eligibility.CanSettle {
		return nil, nil
	}

	from := *eligibility.EligibleFrom
	to := minDate(*eligibility.MaxTo, plan.runMaxTo)
	if from.After(to) {
		return nil, nil
	}

	breakdown, err := s.apportion(ctx, s.db, merchant.ID, from, to)
	if err != nil {
		return nil, err
	}

	var alreadyPaid int64
	claim, err := s.claims.FindActiveExact(ctx, s.db, merchant.ID, from, to)
	if err != nil {
		return nil, err
	}
	if claim != nil {
		netDebits, err := s.ledger.SumDebitsForClaim(ctx, claim.ID)
		if err != nil {
			return nil, err
		}
		alreadyPaid = -netDebits
	}

	remaining := breakdown.NetPayoutCents - alreadyPaid
	if remaining < 0 {
		remaining = 0
	}
	return &domain.PreviewRow{
		RecipientID:      merchant.ID,
		Name:             merchant.Name,
		Email:            merchant.Email,
		From:             from,
		To:               to,
		Currency:         plan.currency,
		ExpectedCents:    breakdown.NetPayoutCents,
		AlreadyPaidCents: alreadyPaid,
		RemainingCents:   remaining,
		Breakdown:        breakdown,
	}, nil
}
