package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/internal/observability/tracing"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ResolveEligibility(ctx context.Context, recipientID snowflake.ID) (_ *domain.Eligibility, err error) {
	if recipientID == 0 {
		return nil, domain.ErrInvalidRecipient
	}
	ctx, span := tracing.StartSpan(ctx, "settlement.resolve_eligibility",
		attribute.String("recipient_id", recipientID.String()),
	)
	defer func() { tracing.EndSpan(span, err) }()
	defer s.observe(obsmetrics.OperationResolve, time.Now())

	readCtx, cancel := s.withStatementTimeout(ctx)
	defer cancel()

	return s.resolve(readCtx, s.db, recipientID, s.today())
}

// resolve computes the next unpaid window of a merchant. A missing claim or
// ledger table degrades to canSettle=false instead of failing the caller.
func (s *Service) resolve(ctx context.Context, handle *gorm.DB, recipientID snowflake.ID, today time.Time) (*domain.Eligibility, error) {
	out := &domain.Eligibility{RecipientID: recipientID}

	lastSettledTo, err := s.claims.LastActiveSettledTo(ctx, handle, recipientID)
	if err != nil {
		return s.degrade(ctx, out, err)
	}

	sales, err := s.ledgerRepo.UnsettledSaleRange(ctx, handle, recipientID, lastSettledTo)
	if err != nil {
		return s.degrade(ctx, out, err)
	}
	if sales.First == nil {
		if lastSettledTo == nil {
			out.Reason = domain.ReasonNoSales
		} else {
			out.Reason = domain.ReasonNoUnsettledSales
		}
		return out, nil
	}

	from := *sales.First
	maxTo := minDate(today, *sales.Last)
	out.EligibleFrom = &from
	out.MaxTo = &maxTo
	out.CanSettle = !from.After(maxTo)
	if !out.CanSettle {
		out.Reason = domain.ReasonNoUnsettledSales
	}
	return out, nil
}

func (s *Service) degrade(ctx context.Context, out *domain.Eligibility, err error) (*domain.Eligibility, error) {
	if !db.IsUndefinedTableErr(err) {
		return nil, err
	}
	s.metrics.IncResolverDegraded(domain.ReasonStoreUnavailable)
	logger.WithRecipient(logger.WithContext(ctx, s.log), out.RecipientID.String()).
		Warn("settlement store unavailable, eligibility degraded", zap.Error(err))
	out.CanSettle = false
	out.Reason = domain.ReasonStoreUnavailable
	return out, nil
}
