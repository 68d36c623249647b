package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/spotlight/internal/authorization"
	"github.com/smallbiznis/spotlight/pkg/db"
	"gorm.io/gorm"
)

// Error types used in scheduler log lines.
const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeAuthorization    = "authorization"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

// Reasons on spotlight_scheduler_job_errors_total.
const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonForbidden            = "forbidden"
	SchedulerJobReasonUnknown              = "unknown"
)

// Row-lock resources timed by ObserveDBLockWait.
const (
	LockResourceOutboxForPublish = "outbox_for_publish"
	LockResourcePlacement        = "placement"
	LockResourceLedgerAccount    = "ledger_account"
)

var sqlStateReasons = map[string]string{
	"55P03": SchedulerJobReasonDBLockTimeout,
	"40001": SchedulerJobReasonSerializationFailure,
	"40P01": SchedulerJobReasonSerializationFailure,
	"23505": SchedulerJobReasonUniqueViolation,
}

var (
	secondsBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	lockBuckets    = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// SchedulerMetrics covers the status sweeper, the outbox relay, and row-lock
// contention on the reserve path. It is process-global because lock waits
// are observed from services that are not fx-wired to a metrics instance.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	stageErrors    *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	dbLockWait     *prometheus.HistogramVec
	runLoopLag     prometheus.Histogram
}

var (
	schedulerOnce    sync.Once
	schedulerMetrics *SchedulerMetrics
)

func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig builds the singleton on first call; later configs are
// ignored.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(reg prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{
		"service": orDefault(cfg.ServiceName, "spotlight"),
		"env":     orDefault(cfg.Environment, "unknown"),
	}
	counter := func(subsystem, name, help string, vars ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlight", Subsystem: subsystem, Name: name, Help: help, ConstLabels: labels,
		}, vars)
	}
	histogram := func(subsystem, name, help string, buckets []float64, vars ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spotlight", Subsystem: subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: labels,
		}, vars)
	}

	m := &SchedulerMetrics{
		jobRuns:        counter("scheduler", "job_runs_total", "Scheduler job runs.", "job"),
		jobDuration:    histogram("scheduler", "job_duration_seconds", "Scheduler job latency.", secondsBuckets, "job"),
		jobTimeouts:    counter("scheduler", "job_timeouts_total", "Scheduler jobs cut off by their timeout.", "job"),
		jobErrors:      counter("scheduler", "job_errors_total", "Scheduler job failures by reason.", "job", "reason"),
		batchProcessed: counter("scheduler", "batch_processed_total", "Rows handled per job and resource.", "job", "resource"),
		batchDeferred:  counter("scheduler", "batch_deferred_total", "Runs that stopped with work left over.", "job", "reason"),
		stageErrors:    counter("scheduler", "stage_error_total", "Scheduler stage errors by type.", "stage", "error_type"),
		transitions:    counter("reservation", "transition_total", "Reservation status transitions written by sweeps.", "from", "to"),
		dbLockWait:     histogram("db", "lock_wait_seconds", "Time spent waiting on SELECT FOR UPDATE.", lockBuckets, "resource"),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotlight", Subsystem: "scheduler", Name: "runloop_lag_seconds",
			Help: "Delay between a scheduled tick and the run starting.", Buckets: secondsBuckets, ConstLabels: labels,
		}),
	}
	reg.MustRegister(
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors,
		m.batchProcessed, m.batchDeferred, m.stageErrors,
		m.transitions, m.dbLockWait, m.runLoopLag,
	)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, n int) {
	if m != nil && n > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(n))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

func (m *SchedulerMetrics) IncStageError(stage string, err error) {
	if m != nil && err != nil {
		m.stageErrors.WithLabelValues(stage, ClassifySchedulerErrorType(err)).Inc()
	}
}

func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(d, 0).Seconds())
	}
}

// AddReservationTransition counts rows a sweep moved from one stored status
// to another.
func (m *SchedulerMetrics) AddReservationTransition(from, to string, n int) {
	if m != nil && n > 0 {
		m.transitions.WithLabelValues(from, to).Add(float64(n))
	}
}

func (m *SchedulerMetrics) ObserveDBLockWait(resource string, d time.Duration) {
	if m != nil {
		m.dbLockWait.WithLabelValues(resource).Observe(d.Seconds())
	}
}

// ClassifySchedulerErrorType buckets err for log lines.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case isCancellation(err):
		return SchedulerErrorTypeDeadlineExceeded
	case isAuthorizationError(err):
		return SchedulerErrorTypeAuthorization
	case isDBError(err):
		return SchedulerErrorTypeDB
	default:
		return SchedulerErrorTypeBusinessRule
	}
}

// IsSchedulerErrorRetryable is true for timeouts and database failures; the
// next tick picks the work up again.
func IsSchedulerErrorRetryable(err error) bool {
	return err != nil && (isCancellation(err) || isDBError(err))
}

func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case isCancellation(err):
		return SchedulerJobReasonDeadlineExceeded
	case isAuthorizationError(err):
		return SchedulerJobReasonForbidden
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return SchedulerJobReasonUniqueViolation
	}
	if reason, ok := sqlStateReasons[db.SQLState(err)]; ok {
		return reason
	}
	return SchedulerJobReasonUnknown
}

func isCancellation(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidObject) ||
		errors.Is(err, authorization.ErrInvalidAction)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return db.SQLState(err) != "" ||
		errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrDuplicatedKey)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
