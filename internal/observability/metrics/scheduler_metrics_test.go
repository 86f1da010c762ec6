package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/eroom/internal/errs"
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
			name: "panic",
			err:  fmt.Errorf("%w: nil map", ErrJobPanic),
			want: SchedulerJobReasonPanic,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  errs.Transient(&pgconn.PgError{Code: "40001"}),
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

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(errs.Transient(errors.New("conn reset"))); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %q", got)
	}
	if got := ClassifySchedulerErrorType(errs.BusinessRule(errors.New("invalid_transition"), "")); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("expected business_rule, got %q", got)
	}
	if IsSchedulerErrorRetryable(errors.New("boom")) {
		t.Fatal("plain errors are not retryable")
	}
	if !IsSchedulerErrorRetryable(context.Canceled) {
		t.Fatal("cancellation is retryable")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "eroom",
		Environment: "test",
	})

	metrics.AddBatchProcessed("expire_contracts", "terminated", 3)
	metrics.AddBatchProcessed("expire_contracts", "terminated", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("expire_contracts", "terminated"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestSchedulerMetricsNilSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("job")
	m.IncJobSkipped("job", SchedulerSkipReasonLockHeld)
	m.IncJobError("job", errors.New("boom"))
	m.ObserveRunLoopLag(-1)
}
