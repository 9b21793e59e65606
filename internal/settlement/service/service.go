package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/settlement/internal/clock"
	"github.com/smallbiznis/settlement/internal/config"
	"github.com/smallbiznis/settlement/internal/events"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	"github.com/smallbiznis/settlement/internal/locker"
	marketplacedomain "github.com/smallbiznis/settlement/internal/marketplace/domain"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Settings    *config.SettlementConfigHolder
	Ledger      ledgerdomain.Service
	LedgerRepo  ledgerdomain.Repository
	Marketplace marketplacedomain.Repository
	Claims      domain.ClaimRepository
	Payouts     domain.PayoutRepository
	Outbox      *events.Outbox                `optional:"true"`
	Locker      *locker.Locker                `optional:"true"`
	Metrics     *obsmetrics.SettlementMetrics `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	settings    *config.SettlementConfigHolder
	ledger      ledgerdomain.Service
	ledgerRepo  ledgerdomain.Repository
	marketplace marketplacedomain.Repository
	claims      domain.ClaimRepository
	payouts     domain.PayoutRepository
	outbox      *events.Outbox
	locker      *locker.Locker
	metrics     *obsmetrics.SettlementMetrics
	obsMetrics  *obsmetrics.Metrics
	validate    *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("settlement.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		settings:    p.Settings,
		ledger:      p.Ledger,
		ledgerRepo:  p.LedgerRepo,
		marketplace: p.Marketplace,
		claims:      p.Claims,
		payouts:     p.Payouts,
		outbox:      p.Outbox,
		locker:      p.Locker,
		metrics:     p.Metrics,
		obsMetrics:  p.ObsMetrics,
		validate:    validator.New(),
	}
}

func (s *Service) today() time.Time {
	return clock.Today(s.clock)
}

// withStatementTimeout bounds one store round trip by store.statement_timeout.
func (s *Service) withStatementTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.settings.Get().Store.StatementTimeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) observe(operation string, start time.Time) {
	s.metrics.ObserveOperation(operation, time.Since(start))
}

// publish appends an outbox event after commit. Failures never reach the caller.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warn("failed to append outbox event",
			zap.String("event_type", event.Type),
			zap.String("aggregate_id", event.AggregateID.String()),
			zap.Error(err),
		)
	}
}

func dateOf(t time.Time) time.Time {
	return ledgerdomain.DateOf(t)
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
