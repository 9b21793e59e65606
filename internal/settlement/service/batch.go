package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/settlement/internal/observability/logger"
	"github.com/smallbiznis/settlement/internal/observability/tracing"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const merchantLockTTL = 30 * time.Second

// CreateBatch previews one page of merchants and attempts a payout for every
// previewed row. Rows succeed or fail independently.
func (s *Service) CreateBatch(ctx context.Context, req domain.BatchRequest) (_ *domain.BatchResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.create_batch",
		attribute.String("mode", string(req.Mode)),
		attribute.Int("limit", req.Limit),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if err := s.validate.Struct(req); err != nil {
		if len(req.Currency) != 0 && len(req.Currency) != 3 {
			return nil, domain.ErrInvalidCurrency
		}
		return nil, previewValidationError(req.PreviewRequest, err)
	}
	plan, err := s.planPreview(req.PreviewRequest)
	if err != nil {
		return nil, err
	}
	preview, err := s.preview(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.metrics.IncBatchRun(string(req.Mode))

	createdVia := req.CreatedVia
	if createdVia == "" {
		createdVia = domain.CreatedViaBatch
	}

	result := &domain.BatchResult{
		Results:    make([]domain.BatchRowResult, 0, len(preview.Rows)+len(preview.Errors)),
		NextCursor: preview.NextCursor,
		HasMore:    preview.HasMore,
	}
	for _, rowErr := range preview.Errors {
		result.Results = append(result.Results, domain.BatchRowResult{
			RecipientID: rowErr.RecipientID,
			Status:      domain.RowStatusFailed,
			ErrorCode:   rowErr.Code,
			Message:     rowErr.Message,
		})
	}

	for _, row := range preview.Rows {
		from, to := row.From, row.To
		outcome := domain.BatchRowResult{
			RecipientID: row.RecipientID,
			From:        &from,
			To:          &to,
			AmountCents: row.RemainingCents,
		}

		expected := row.RemainingCents
		payout, err := s.createLocked(ctx, domain.CreatePayoutRequest{
			RecipientID:   row.RecipientID,
			From:          row.From,
			To:            row.To,
			Currency:      req.Currency,
			Provider:      req.Provider,
			ExpectedCents: &expected,
			CreatedBy:     req.CreatedBy,
			CreatedVia:    createdVia,
		})
		if err != nil {
			outcome.Status = domain.RowStatusFailed
			outcome.ErrorCode = domain.ErrorCode(err)
			outcome.Message = err.Error()
		} else {
			outcome.Status = domain.RowStatusCreated
			outcome.PayoutID = &payout.ID
			outcome.AmountCents = payout.AmountCents
		}
		result.Results = append(result.Results, outcome)
	}

	result.Attempted = len(result.Results)
	for _, r := range result.Results {
		if r.Status == domain.RowStatusCreated {
			result.Created++
		} else {
			result.Failed++
		}
	}

	logger.WithContext(ctx, s.log).Info("payout batch finished",
		zap.String("mode", string(req.Mode)),
		zap.Int("attempted", result.Attempted),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
		zap.Bool("has_more", result.HasMore),
	)
	return result, nil
}

// createLocked serializes bulk runs per merchant when a lock backend is
// configured. A lock backend error is logged and the row proceeds unlocked.
func (s *Service) createLocked(ctx context.Context, req domain.CreatePayoutRequest) (*domain.PayoutTransaction, error) {
	if s.locker == nil {
		return s.CreatePayout(ctx, req)
	}

	key := fmt.Sprintf("payout:%s", req.RecipientID)
	token, ok, err := s.locker.TryLock(ctx, key, merchantLockTTL)
	if err != nil {
		logger.WithRecipient(logger.WithContext(ctx, s.log), req.RecipientID.String()).
			Warn("merchant lock unavailable, continuing without it", zap.Error(err))
		return s.CreatePayout(ctx, req)
	}
	if !ok {
		s.metrics.IncPayoutFailure(domain.CodeLocked)
		return nil, domain.ErrLocked
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("failed to release merchant lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return s.CreatePayout(ctx, req)
}
