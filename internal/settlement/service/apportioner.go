package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlement/internal/config"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"gorm.io/gorm"
)

// Apportion splits window sales into discounts, platform fees and the net
// merchant payout. Both fees apply to gross minus platform-funded discounts and
// are rounded half-up to the cent once, at the end.
func Apportion(sales ledgerdomain.WindowSales, fees config.FeeConfig) domain.Apportionment {
	gross := sales.GrossCents
	platformFunded := sales.PlatformDiscountCents
	merchantFunded := sales.MerchantDiscountCents
	discountTotal := platformFunded + merchantFunded

	feeBase := gross - platformFunded
	if feeBase < 0 {
		feeBase = 0
	}
	crowdpenFee := feeCents(feeBase, fees.CrowdpenRate)
	startbuttonFee := feeCents(feeBase, fees.StartbuttonRate)

	net := gross - discountTotal - crowdpenFee - startbuttonFee
	if net < 0 {
		net = 0
	}

	return domain.Apportionment{
		GrossCents:                  gross,
		DiscountTotalCents:          discountTotal,
		DiscountCrowdpenFundedCents: platformFunded,
		DiscountMerchantFundedCents: merchantFunded,
		CrowdpenFeeCents:            crowdpenFee,
		StartbuttonFeeCents:         startbuttonFee,
		NetPayoutCents:              net,
	}
}

func feeCents(base int64, rate decimal.Decimal) int64 {
	if base <= 0 || rate.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(base).Mul(rate).Round(0).IntPart()
}

func (s *Service) Apportion(ctx context.Context, recipientID snowflake.ID, from, to time.Time) (*domain.Apportionment, error) {
	if recipientID == 0 {
		return nil, domain.ErrInvalidRecipient
	}
	from, to = dateOf(from), dateOf(to)
	if from.After(to) {
		return nil, domain.NewWindowError("from", "after to")
	}

	readCtx, cancel := s.withStatementTimeout(ctx)
	defer cancel()

	out, err := s.apportion(readCtx, s.db, recipientID, from, to)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) apportion(ctx context.Context, handle *gorm.DB, recipientID snowflake.ID, from, to time.Time) (domain.Apportionment, error) {
	sales, err := s.ledgerRepo.WindowSales(ctx, handle, recipientID, from, to)
	if err != nil {
		return domain.Apportionment{}, err
	}
	return Apportion(sales, s.settings.Get().Fees), nil
}
