package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/settlement/internal/clock"
	"github.com/smallbiznis/settlement/internal/config"
	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/settlement/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/settlement/internal/ledger/service"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	marketplacerepo "github.com/smallbiznis/settlement/internal/marketplace/repository"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"github.com/smallbiznis/settlement/internal/settlement/repository"
	"github.com/smallbiznis/settlement/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testToday = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	svc      domain.Service
	ledger   ledgerdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	outbox   *events.Outbox
	registry *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testSettings())
}

func testSettings() config.SettlementConfig {
	cfg := config.DefaultSettlementConfig()
	cfg.Store.StatementTimeout = 5 * time.Second
	return cfg
}

func newHarnessWithConfig(t *testing.T, cfg config.SettlementConfig) *harness {
	t.Helper()
	return newHarnessWithClaims(t, cfg, repository.NewClaimRepository())
}

func newHarnessWithClaims(t *testing.T, cfg config.SettlementConfig, claims domain.ClaimRepository) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	node := testutil.NewNode(t)
	fake := clock.NewFakeClock(testToday)
	settings := config.NewStaticSettlementConfig(cfg)
	log := zap.NewNop()
	ledgerRepo := ledgerrepo.NewRepository()
	marketplace := marketplacerepo.NewRepository()

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Repo:        ledgerRepo,
		Marketplace: marketplace,
		Settings:    settings,
	})
	outbox := events.NewOutbox(events.Params{DB: db, Log: log, GenID: node})
	registry := prometheus.NewRegistry()

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Settings:    settings,
		Ledger:      ledger,
		LedgerRepo:  ledgerRepo,
		Marketplace: marketplace,
		Claims:      claims,
		Payouts:     repository.NewPayoutRepository(),
		Outbox:      outbox,
		Metrics:     obsmetrics.NewSettlementMetricsForRegistry(registry),
	})

	return &harness{
		svc:      svc,
		ledger:   ledger,
		db:       db,
		node:     node,
		clock:    fake,
		outbox:   outbox,
		registry: registry,
	}
}

// sale seeds a verified sale line and credits it to the ledger.
func (h *harness) sale(t *testing.T, merchantID snowflake.ID, cents int64, at time.Time, opts ...testutil.SaleOption) marketplacedomain.SaleLine {
	t.Helper()
	line := testutil.SeedSaleLine(t, h.db, h.node, merchantID, cents, at, opts...)
	_, err := h.ledger.SyncSaleCredits(context.Background(), 100)
	require.NoError(t, err)
	return line
}

func (h *harness) merchant(t *testing.T, name string) marketplacedomain.Merchant {
	t.Helper()
	return testutil.SeedMerchant(t, h.db, h.node, name)
}

func (h *harness) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if matchLabels(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func day(n int) time.Time {
	return testutil.Day(2024, 3, n)
}

func ptr[T any](v T) *T {
	return &v
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
