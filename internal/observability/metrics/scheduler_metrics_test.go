package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/spotlight/internal/authorization"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "forbidden",
			err:  authorization.ErrForbidden,
			want: SchedulerJobReasonForbidden,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "deadlock",
			err:  fmt.Errorf("sweep: %w", &pgconn.PgError{Code: "40P01"}),
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "spotlight",
		Environment: "test",
	})

	metrics.AddBatchProcessed("sync_reservation_statuses", "reservations", 3)
	metrics.AddBatchProcessed("sync_reservation_statuses", "reservations", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("sync_reservation_statuses", "reservations"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestAddReservationTransition(t *testing.T) {
	metrics := newSchedulerMetrics(prometheus.NewRegistry(), Config{Environment: "test"})

	metrics.AddReservationTransition("active", "expired", 2)
	metrics.AddReservationTransition("cancelled", "expired", 1)

	if got := testutil.ToFloat64(metrics.transitions.WithLabelValues("active", "expired")); got != 2 {
		t.Fatalf("expected 2 active->expired transitions, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.transitions.WithLabelValues("cancelled", "expired")); got != 1 {
		t.Fatalf("expected 1 cancelled->expired transition, got %v", got)
	}
}

func TestNilSchedulerMetricsIsNoop(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("sweep")
	m.IncJobError("sweep", errors.New("boom"))
	m.AddReservationTransition("active", "expired", 1)
	m.ObserveDBLockWait(LockResourcePlacement, 0)
}
