package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/settlement/internal/config"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultFees() config.FeeConfig {
	return config.DefaultSettlementConfig().Fees
}

func TestApportionFeeSplit(t *testing.T) {
	got := Apportion(ledgerdomain.WindowSales{
		GrossCents:            1000,
		PlatformDiscountCents: 100,
		MerchantDiscountCents: 50,
	}, defaultFees())

	assert.Equal(t, domain.Apportionment{
		GrossCents:                  1000,
		DiscountTotalCents:          150,
		DiscountCrowdpenFundedCents: 100,
		DiscountMerchantFundedCents: 50,
		CrowdpenFeeCents:            135,
		StartbuttonFeeCents:         45,
		NetPayoutCents:              670,
	}, got)
}

func TestApportionWithoutDiscounts(t *testing.T) {
	got := Apportion(ledgerdomain.WindowSales{GrossCents: 10000}, defaultFees())

	assert.Equal(t, int64(1500), got.CrowdpenFeeCents)
	assert.Equal(t, int64(500), got.StartbuttonFeeCents)
	assert.Equal(t, int64(8000), got.NetPayoutCents)
	assert.Equal(t, "80.00", domain.FormatCents(got.NetPayoutCents))
}

func TestApportionRoundsHalfUpAtTheCent(t *testing.T) {
	fees := config.FeeConfig{
		CrowdpenRate:    decimal.RequireFromString("0.15"),
		StartbuttonRate: decimal.RequireFromString("0.05"),
	}

	// 10 * 0.15 = 1.5 -> 2, 10 * 0.05 = 0.5 -> 1
	got := Apportion(ledgerdomain.WindowSales{GrossCents: 10}, fees)
	assert.Equal(t, int64(2), got.CrowdpenFeeCents)
	assert.Equal(t, int64(1), got.StartbuttonFeeCents)
	assert.Equal(t, int64(7), got.NetPayoutCents)

	// 3 * 0.15 = 0.45 -> 0
	got = Apportion(ledgerdomain.WindowSales{GrossCents: 3}, fees)
	assert.Zero(t, got.CrowdpenFeeCents)
}

func TestApportionUsesInjectedRates(t *testing.T) {
	fees := config.FeeConfig{
		CrowdpenRate:    decimal.RequireFromString("0.10"),
		StartbuttonRate: decimal.Zero,
	}
	got := Apportion(ledgerdomain.WindowSales{GrossCents: 10000}, fees)
	assert.Equal(t, int64(1000), got.CrowdpenFeeCents)
	assert.Zero(t, got.StartbuttonFeeCents)
	assert.Equal(t, int64(9000), got.NetPayoutCents)
}

func TestApportionFloorsNetAtZero(t *testing.T) {
	got := Apportion(ledgerdomain.WindowSales{
		GrossCents:            100,
		MerchantDiscountCents: 500,
	}, defaultFees())
	assert.Zero(t, got.NetPayoutCents)
}

func TestApportionReadsDiscountAttributionFromSaleLines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.merchant(t, "discounts")

	h.sale(t, m.ID, 600, day(2), testutil.WithDiscount(100, marketplacedomain.DiscountFundingPlatform))
	h.sale(t, m.ID, 400, day(3), testutil.WithDiscount(50, marketplacedomain.DiscountFundingMerchant))

	got, err := h.svc.Apportion(ctx, m.ID, day(1), day(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.GrossCents)
	assert.Equal(t, int64(100), got.DiscountCrowdpenFundedCents)
	assert.Equal(t, int64(50), got.DiscountMerchantFundedCents)
	assert.Equal(t, int64(670), got.NetPayoutCents)

	_, err = h.svc.Apportion(ctx, m.ID, day(5), day(1))
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}
