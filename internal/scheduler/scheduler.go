package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/settlement/internal/clock"
	ledgerdomain "github.com/smallbiznis/settlement/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/settlement/internal/observability/metrics"
	"github.com/smallbiznis/settlement/internal/observability/obscontext"
	settlementdomain "github.com/smallbiznis/settlement/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const schedulerActor = "scheduler"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	LedgerSvc     ledgerdomain.Service
	SettlementSvc settlementdomain.Service
	Config        Config                        `optional:"true"`
	Metrics       *obsmetrics.SettlementMetrics `optional:"true"`
}

// Scheduler runs the periodic settlement jobs of a single process.
type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	ledgerSvc     ledgerdomain.Service
	settlementSvc settlementdomain.Service
	metrics       *obsmetrics.SettlementMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.LedgerSvc == nil || p.SettlementSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		ledgerSvc:     p.LedgerSvc,
		settlementSvc: p.SettlementSvc,
		metrics:       p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	ctx = obscontext.WithActor(ctx, "system", schedulerActor)

	s.metrics.IncJobRun(name)
	err := fn(ctx)
	s.metrics.ObserveOperation("job_"+name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	// deadline is a soft timeout, the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobSyncCredits, s.SyncCreditsJob},
		{JobSettleAll, s.SettleAllJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.RunInterval),
		zap.Strings("jobs", s.cfg.EnabledJobs),
	)
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// SyncCreditsJob credits verified sale lines until a run scans fewer lines than the limit.
func (s *Scheduler) SyncCreditsJob(ctx context.Context) error {
	total := 0
	for {
		res, err := s.ledgerSvc.SyncSaleCredits(ctx, s.cfg.SyncLimit)
		if err != nil {
			return err
		}
		total += res.Credited
		if res.Scanned < s.cfg.SyncLimit || res.Credited == 0 {
			break
		}
	}
	if total > 0 {
		s.log.Info("sale credits synced", zap.Int("credited", total))
	}
	return nil
}

// SettleAllJob pays every eligible merchant, one preview page at a time.
func (s *Scheduler) SettleAllJob(ctx context.Context) error {
	req := settlementdomain.BatchRequest{
		PreviewRequest: settlementdomain.PreviewRequest{
			Mode: settlementdomain.ModeSettleAll,
		},
		CreatedBy:  schedulerActor,
		CreatedVia: settlementdomain.CreatedViaBatch,
	}

	var created, failed int
	for {
		res, err := s.settlementSvc.CreateBatch(ctx, req)
		if err != nil {
			return err
		}
		created += res.Created
		failed += res.Failed
		if !res.HasMore || res.NextCursor == "" {
			break
		}
		req.Cursor = res.NextCursor
	}

	if created > 0 || failed > 0 {
		s.log.Info("scheduled settlement run finished",
			zap.Int("created", created),
			zap.Int("failed", failed),
		)
	}
	return nil
}
