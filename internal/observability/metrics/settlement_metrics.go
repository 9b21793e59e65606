package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/settlement/pkg/db"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUndefinedTable       = "undefined_table"
	ReasonUnknown              = "unknown"
)

const (
	PreviewOutcomeEmitted     = "emitted"
	PreviewOutcomeNotEligible = "not_eligible"
	PreviewOutcomeSettled     = "settled"
	PreviewOutcomeError       = "error"
)

const (
	OperationResolve = "resolve"
	OperationPreview = "preview_row"
	OperationCreate  = "create_payout"
	OperationReverse = "reverse_payout"
)

// SettlementMetrics captures payout engine health signals.
type SettlementMetrics struct {
	payoutsCreated   *prometheus.CounterVec
	payoutFailures   *prometheus.CounterVec
	reversals        prometheus.Counter
	previewRows      *prometheus.CounterVec
	resolverDegraded *prometheus.CounterVec
	batchRuns        *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec
	jobRuns          *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	rateLimit        *prometheus.CounterVec
	previewCounters  map[string]prometheus.Counter
}

var (
	settlementMetricsOnce sync.Once
	settlementMetrics     *SettlementMetrics
)

// Settlement returns the singleton settlement metrics registry using config labels.
func Settlement(cfg Config) *SettlementMetrics {
	settlementMetricsOnce.Do(func() {
		settlementMetrics = newSettlementMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return settlementMetrics
}

// ResetSettlementMetricsForTest resets the settlement metrics singleton for tests.
func ResetSettlementMetricsForTest() {
	settlementMetricsOnce = sync.Once{}
	settlementMetrics = nil
}

// NewSettlementMetricsForRegistry builds an unshared instance, for tests.
func NewSettlementMetricsForRegistry(registerer prometheus.Registerer) *SettlementMetrics {
	return newSettlementMetrics(registerer, Config{ServiceName: "settlement", Environment: "test"})
}

func newSettlementMetrics(registerer prometheus.Registerer, cfg Config) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "settlement"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	payoutsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_payouts_created_total",
		Help:        "Payout transactions committed by entry point.",
		ConstLabels: constLabels,
	}, []string{"created_via"})
	payoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_payout_failures_total",
		Help:        "Payout creation attempts rejected or rolled back, by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	reversals := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "settlement_payout_reversals_total",
		Help:        "Failed or cancelled payouts whose window was released.",
		ConstLabels: constLabels,
	})
	previewRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_preview_rows_total",
		Help:        "Merchants evaluated by the batch previewer, by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	resolverDegraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_resolver_degraded_total",
		Help:        "Eligibility checks that degraded to not settleable, by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	batchRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_batch_runs_total",
		Help:        "Bulk payout runs by mode.",
		ConstLabels: constLabels,
	}, []string{"mode"})
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "settlement_operation_duration_seconds",
		Help:        "Latency of settlement operations.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_scheduler_job_runs_total",
		Help:        "Scheduled job executions.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_scheduler_job_errors_total",
		Help:        "Scheduled job failures by reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	rateLimit := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "settlement_admin_rate_limit_total",
		Help:        "Admin write requests checked against the rate limiter.",
		ConstLabels: constLabels,
	}, []string{"route", "outcome"})

	registerer.MustRegister(
		payoutsCreated,
		payoutFailures,
		reversals,
		previewRows,
		resolverDegraded,
		batchRuns,
		opDuration,
		jobRuns,
		jobErrors,
		rateLimit,
	)

	previewCounters := map[string]prometheus.Counter{}
	for _, outcome := range []string{
		PreviewOutcomeEmitted,
		PreviewOutcomeNotEligible,
		PreviewOutcomeSettled,
		PreviewOutcomeError,
	} {
		previewCounters[outcome] = previewRows.WithLabelValues(outcome)
	}

	return &SettlementMetrics{
		payoutsCreated:   payoutsCreated,
		payoutFailures:   payoutFailures,
		reversals:        reversals,
		previewRows:      previewRows,
		resolverDegraded: resolverDegraded,
		batchRuns:        batchRuns,
		opDuration:       opDuration,
		jobRuns:          jobRuns,
		jobErrors:        jobErrors,
		rateLimit:        rateLimit,
		previewCounters:  previewCounters,
	}
}

func (m *SettlementMetrics) IncPayoutCreated(createdVia string) {
	if m == nil {
		return
	}
	m.payoutsCreated.WithLabelValues(createdVia).Inc()
}

// IncPayoutFailure records a rejected creation attempt. reason must be low-cardinality.
func (m *SettlementMetrics) IncPayoutFailure(reason string) {
	if m == nil {
		return
	}
	m.payoutFailures.WithLabelValues(reason).Inc()
}

func (m *SettlementMetrics) IncReversal() {
	if m == nil {
		return
	}
	m.reversals.Inc()
}

func (m *SettlementMetrics) IncPreviewRow(outcome string) {
	if m == nil {
		return
	}
	if counter, ok := m.previewCounters[outcome]; ok {
		counter.Inc()
		return
	}
	m.previewRows.WithLabelValues(outcome).Inc()
}

func (m *SettlementMetrics) IncResolverDegraded(reason string) {
	if m == nil {
		return
	}
	m.resolverDegraded.WithLabelValues(reason).Inc()
}

func (m *SettlementMetrics) IncBatchRun(mode string) {
	if m == nil {
		return
	}
	m.batchRuns.WithLabelValues(mode).Inc()
}

// ObserveOperation records operation latency in seconds.
func (m *SettlementMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *SettlementMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SettlementMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyStoreReason(err)).Inc()
}

// IncRateLimit counts a limiter decision. outcome is "allowed" or "denied".
func (m *SettlementMetrics) IncRateLimit(route, outcome string) {
	if m == nil {
		return
	}
	m.rateLimit.WithLabelValues(route, outcome).Inc()
}

// ClassifyStoreReason maps persistence errors to low-cardinality reasons.
func ClassifyStoreReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), db.IsStatementTimeoutErr(err):
		return ReasonDeadlineExceeded
	case db.IsLockTimeoutErr(err):
		return ReasonDBLockTimeout
	case db.IsSerializationErr(err):
		return ReasonSerializationFailure
	case db.IsDuplicateKeyErr(err):
		return ReasonUniqueViolation
	case db.IsUndefinedTableErr(err):
		return ReasonUndefinedTable
	default:
		return ReasonUnknown
	}
}
