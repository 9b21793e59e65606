package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/pkg/db/pagination"
)

const (
	defaultListLimit = 50
	maxListLimit     = 250
)

func (s *Service) GetPayout(ctx context.Context, payoutID snowflake.ID) (*domain.PayoutTransaction, error) {
	if payoutID == 0 {
		return nil, domain.ErrInvalidPayout
	}
	payout, err := s.payouts.FindByID(ctx, s.db, payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, domain.ErrPayoutNotFound
	}
	return payout, nil
}

func (s *Service) ListPayouts(ctx context.Context, req domain.ListPayoutsRequest) (*domain.ListPayoutsResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 0 || limit > maxListLimit {
		return nil, domain.ErrInvalidLimit
	}

	switch req.Status {
	case "", domain.PayoutStatusPending, domain.PayoutStatusCompleted, domain.PayoutStatusFailed, domain.PayoutStatusCancelled:
	default:
		return nil, domain.ErrInvalidStatus
	}

	filter := domain.PayoutFilter{
		RecipientID: req.RecipientID,
		Status:      req.Status,
		Limit:       limit + 1,
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidCursor
		}
		filter.AfterID = &afterID
	}

	items, err := s.payouts.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	page, info := pagination.BuildCursorPageInfo(items, limit, func(p domain.PayoutTransaction) string {
		return p.ID.String()
	})
	if page == nil {
		page = []domain.PayoutTransaction{}
	}
	return &domain.ListPayoutsResponse{
		Payouts:       page,
		NextPageToken: info.NextPageToken,
		HasMore:       info.HasMore,
	}, nil
}
