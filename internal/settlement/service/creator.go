package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/internal/observability/tracing"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultProvider   = "manual"
	defaultCreatedBy  = "system"
	defaultCreatedVia = "api"
)

// CreatePayout commits one window as a pending payout. The claim, the payout
// and its debit are written in a single transaction.
func (s *Service) CreatePayout(ctx context.Context, req domain.CreatePayoutRequest) (_ *domain.PayoutTransaction, err error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.create_payout",
		attribute.String("recipient_id", req.RecipientID.String()),
	)
	defer func() { tracing.EndSpan(span, err) }()
	defer s.observe(obsmetrics.OperationCreate, time.Now())

	payout, err := s.createPayout(ctx, req)
	if err != nil {
		s.metrics.IncPayoutFailure(failureReason(err))
		return nil, err
	}
	return payout, nil
}

func (s *Service) createPayout(ctx context.Context, req domain.CreatePayoutRequest) (*domain.PayoutTransaction, error) {
	req, err := s.normalizeCreate(req)
	if err != nil {
		return nil, err
	}

	merchant, err := s.marketplace.FindMerchant(ctx, s.db, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if merchant == nil || !merchant.IsMerchant {
		return nil, domain.ErrRecipientNotFound
	}

	log := logger.WithRecipient(logger.WithContext(ctx, s.log), req.RecipientID.String())
	today := s.today()
	timeout := s.settings.Get().Store.StatementTimeout

	var (
		payout *domain.PayoutTransaction
		claim  *domain.SettlementWindowClaim
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.SetLocalStatementTimeout(ctx, tx, timeout); err != nil {
			return err
		}
		if err := s.claims.LockRecipient(ctx, tx, req.RecipientID); err != nil {
			return err
		}

		overlapping, err := s.claims.ListOverlapping(ctx, tx, domain.ClaimFilter{
			RecipientID: req.RecipientID,
			From:        req.From,
			To:          req.To,
			ActiveOnly:  true,
		})
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return domain.ErrWindowAlreadyClaimed
		}

		eligibility, err := s.resolve(ctx, tx, req.RecipientID, today)
		if err != nil {
			return err
		}
		if eligibility.Reason == domain.ReasonStoreUnavailable {
			return domain.ErrStoreUnavailable
		}
		if !eligibility.CanSettle {
			return domain.ErrNotEligible
		}
		if !eligibility.EligibleFrom.Equal(req.From) {
			return domain.ErrStale
		}

		breakdown, err := s.apportion(ctx, tx, req.RecipientID, req.From, req.To)
		if err != nil {
			return err
		}
		remaining := breakdown.NetPayoutCents
		if remaining <= 0 {
			return domain.ErrNotEligible
		}
		if req.ExpectedCents != nil && *req.ExpectedCents != remaining {
			log.Info("payout amount changed since preview",
				zap.Int64("expected_cents", *req.ExpectedCents),
				zap.Int64("remaining_cents", remaining),
			)
			return domain.ErrStale
		}

		now := s.clock.Now().UTC()
		claim = &domain.SettlementWindowClaim{
			ID:             s.genID.Generate(),
			RecipientID:    req.RecipientID,
			SettlementFrom: req.From,
			SettlementTo:   req.To,
			IsActive:       true,
			CreatedAt:      now,
		}
		if err := s.claims.Insert(ctx, tx, claim); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrWindowAlreadyClaimed
			}
			return err
		}

		payout = &domain.PayoutTransaction{
			ID:          s.genID.Generate(),
			RecipientID: req.RecipientID,
			AmountCents: remaining,
			Currency:    req.Currency,
			Status:      domain.PayoutStatusPending,
			Provider:    req.Provider,
			Reference:   req.Reference,
			Note:        req.Note,
			CreatedBy:   req.CreatedBy,
			CreatedVia:  req.CreatedVia,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.payouts.Insert(ctx, tx, payout); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateReference
			}
			return err
		}

		if err := s.claims.LinkPayout(ctx, tx, claim.ID, payout.ID); err != nil {
			return err
		}
		claim.LinkedPayoutID = &payout.ID

		if _, err := s.ledger.AppendDebit(ctx, tx, ledgerdomain.PayoutEntryInput{
			RecipientID: req.RecipientID,
			PayoutID:    payout.ID,
			ClaimID:     claim.ID,
			AmountCents: remaining,
			Currency:    req.Currency,
			EarnedAt:    now,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if !isExpectedRejection(err) {
			log.Error("payout creation rolled back", zap.Error(err))
		}
		return nil, err
	}

	log.Info("payout created",
		zap.String("payout_id", payout.ID.String()),
		zap.String("claim_id", claim.ID.String()),
		zap.Int64("amount_cents", payout.AmountCents),
		zap.Time("from", req.From),
		zap.Time("to", req.To),
	)
	s.metrics.IncPayoutCreated(payout.CreatedVia)
	s.obsMetrics.RecordPayoutCreated(ctx, payout.Currency, payout.CreatedVia, payout.AmountCents)
	s.publish(ctx, events.Event{
		Type:        events.EventPayoutCreated,
		RecipientID: payout.RecipientID,
		AggregateID: payout.ID,
		Payload: map[string]any{
			"payout_id":    payout.ID.String(),
			"claim_id":     claim.ID.String(),
			"recipient_id": payout.RecipientID.String(),
			"amount_cents": payout.AmountCents,
			"amount":       domain.FormatCents(payout.AmountCents),
			"currency":     payout.Currency,
			"from":         req.From.Format(time.DateOnly),
			"to":           req.To.Format(time.DateOnly),
			"reference":    payout.Reference,
			"created_via":  payout.CreatedVia,
		},
	})
	return payout, nil
}

func (s *Service) normalizeCreate(req domain.CreatePayoutRequest) (domain.CreatePayoutRequest, error) {
	if req.RecipientID == 0 {
		return req, domain.ErrInvalidRecipient
	}
	if req.From.IsZero() {
		return req, domain.NewWindowError("from", "is required")
	}
	if req.To.IsZero() {
		return req, domain.NewWindowError("to", "is required")
	}
	req.From = dateOf(req.From)
	req.To = dateOf(req.To)
	if req.From.After(req.To) {
		return req, domain.NewWindowError("from", "after to")
	}
	if req.To.After(s.today()) {
		return req, domain.NewWindowError("to", "after today")
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = s.settings.Get().Payout.DefaultCurrency
	}
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Provider == "" {
		req.Provider = defaultProvider
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Reference == "" {
		req.Reference = "PO-" + ulid.Make().String()
	}
	req.Note = strings.TrimSpace(req.Note)
	req.CreatedBy = strings.TrimSpace(req.CreatedBy)
	if req.CreatedBy == "" {
		req.CreatedBy = defaultCreatedBy
	}
	req.CreatedVia = strings.TrimSpace(req.CreatedVia)
	if req.CreatedVia == "" {
		req.CreatedVia = defaultCreatedVia
	}

	if err := s.validate.Struct(req); err != nil {
		switch {
		case len(req.Currency) != 3:
			return req, domain.ErrInvalidCurrency
		case len(req.Provider) > 64:
			return req, domain.ErrInvalidProvider
		default:
			return req, err
		}
	}
	return req, nil
}

func isExpectedRejection(err error) bool {
	return errors.Is(err, domain.ErrWindowAlreadyClaimed) ||
		errors.Is(err, domain.ErrNotEligible) ||
		errors.Is(err, domain.ErrStale) ||
		errors.Is(err, domain.ErrDuplicateReference) ||
		errors.Is(err, domain.ErrStoreUnavailable)
}

func failureReason(err error) string {
	if isExpectedRejection(err) || errors.Is(err, domain.ErrInvalidWindow) {
		return domain.ErrorCode(err)
	}
	return obsmetrics.ClassifyStoreReason(err)
}

