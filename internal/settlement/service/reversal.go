package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
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

type reversal struct {
	payout *domain.PayoutTransaction
	claim  *domain.SettlementWindowClaim
	entry  *ledgerdomain.LedgerEntry
}

// ReverseFailedPayout releases the window of a failed or cancelled payout:
// its claim is deactivated and the debit is offset by a reversal entry.
func (s *Service) ReverseFailedPayout(ctx context.Context, payoutID snowflake.ID) (err error) {
	if payoutID == 0 {
		return domain.ErrInvalidPayout
	}
	ctx, span := tracing.StartSpan(ctx, "settlement.reverse_payout",
		attribute.String("payout_id", payoutID.String()),
	)
	defer func() { tracing.EndSpan(span, err) }()
	defer s.observe(obsmetrics.OperationReverse, time.Now())

	var rev *reversal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.payouts.FindByID(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return domain.ErrPayoutNotFound
		}
		if !payout.Status.IsReversible() {
			return domain.ErrPayoutNotReversible
		}
		rev, err = s.reverseTx(ctx, tx, payout)
		return err
	})
	if err != nil {
		return err
	}
	s.afterReversal(ctx, rev)
	return nil
}

// TransitionPayout moves a pending payout to a terminal status. Failed and
// cancelled payouts are reversed in the same transaction.
func (s *Service) TransitionPayout(ctx context.Context, payoutID snowflake.ID, status domain.PayoutStatus) (_ *domain.PayoutTransaction, err error) {
	if payoutID == 0 {
		return nil, domain.ErrInvalidPayout
	}
	status = domain.PayoutStatus(strings.ToLower(strings.TrimSpace(string(status))))
	switch status {
	case domain.PayoutStatusCompleted, domain.PayoutStatusFailed, domain.PayoutStatusCancelled:
	case domain.PayoutStatusPending:
		return nil, domain.ErrInvalidStatusTransition
	default:
		return nil, domain.ErrInvalidStatus
	}

	ctx, span := tracing.StartSpan(ctx, "settlement.transition_payout",
		attribute.String("payout_id", payoutID.String()),
	)
	defer func() { tracing.EndSpan(span, err) }()

	var (
		updated *domain.PayoutTransaction
		rev     *reversal
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.payouts.FindByID(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return domain.ErrPayoutNotFound
		}
		if payout.Status != domain.PayoutStatusPending {
			return domain.ErrInvalidStatusTransition
		}

		now := s.clock.Now().UTC()
		ok, err := s.payouts.UpdateStatus(ctx, tx, payoutID, domain.PayoutStatusPending, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidStatusTransition
		}
		payout.Status = status
		payout.UpdatedAt = now
		updated = payout

		if status.IsReversible() {
			rev, err = s.reverseTx(ctx, tx, payout)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithRecipient(logger.WithContext(ctx, s.log), updated.RecipientID.String()).
		Info("payout status changed",
			zap.String("payout_id", updated.ID.String()),
			zap.String("status", string(updated.Status)),
		)
	if rev != nil {
		s.afterReversal(ctx, rev)
	}
	return updated, nil
}

func (s *Service) reverseTx(ctx context.Context, tx *gorm.DB, payout *domain.PayoutTransaction) (*reversal, error) {
	claim, err := s.claims.FindByPayout(ctx, tx, payout.ID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrPayoutNotFound
	}

	now := s.clock.Now().UTC()
	deactivated, err := s.claims.Deactivate(ctx, tx, claim.ID, now)
	if err != nil {
		return nil, err
	}
	if !deactivated {
		return nil, domain.ErrPayoutAlreadyReversed
	}
	claim.IsActive = false
	claim.DeactivatedAt = &now

	amount := payout.AmountCents
	debit, err := s.ledgerRepo.FindPayoutEntry(ctx, tx, payout.ID, ledgerdomain.EntryTypePayoutDebit)
	if err != nil {
		return nil, err
	}
	if debit != nil {
		amount = -debit.AmountCents
	}

	entry, err := s.ledger.AppendReversal(ctx, tx, ledgerdomain.PayoutEntryInput{
		RecipientID: payout.RecipientID,
		PayoutID:    payout.ID,
		ClaimID:     claim.ID,
		AmountCents: amount,
		Currency:    payout.Currency,
		EarnedAt:    now,
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrDuplicateEntry) || db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrPayoutAlreadyReversed
		}
		return nil, err
	}
	return &reversal{payout: payout, claim: claim, entry: entry}, nil
}

func (s *Service) afterReversal(ctx context.Context, rev *reversal) {
	logger.WithRecipient(logger.WithContext(ctx, s.log), rev.payout.RecipientID.String()).
		Info("payout reversed",
			zap.String("payout_id", rev.payout.ID.String()),
			zap.String("claim_id", rev.claim.ID.String()),
			zap.Int64("amount_cents", rev.entry.AmountCents),
		)
	s.metrics.IncReversal()
	s.publish(ctx, events.Event{
		Type:        events.EventPayoutReversed,
		RecipientID: rev.payout.RecipientID,
		AggregateID: rev.payout.ID,
		Payload: map[string]any{
			"payout_id":    rev.payout.ID.String(),
			"claim_id":     rev.claim.ID.String(),
			"recipient_id": rev.payout.RecipientID.String(),
			"amount_cents": rev.entry.AmountCents,
			"amount":       domain.FormatCents(rev.entry.AmountCents),
			"currency":     rev.payout.Currency,
			"status":       string(rev.payout.Status),
			"from":         rev.claim.SettlementFrom.Format(time.DateOnly),
			"to":           rev.claim.SettlementTo.Format(time.DateOnly),
		},
	})
}
