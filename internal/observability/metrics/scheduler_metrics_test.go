package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "wrapped_deadline", err: fmt.Errorf("reminder: %w", context.DeadlineExceeded), want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
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
	if got := ClassifySchedulerErrorType(&pgconn.PgError{Code: "23505"}); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %q", got)
	}
	if got := ClassifySchedulerErrorType(errors.New("notify failed")); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("expected business_rule, got %q", got)
	}
	if !IsSchedulerErrorRetryable(context.DeadlineExceeded) {
		t.Fatalf("deadline errors should be retryable")
	}
}

func TestSchedulerItemCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "tablebill", Environment: "test"})

	m.IncItem("renewal_reminder", ItemResultCreated)
	m.IncItem("renewal_reminder", ItemResultCreated)
	m.IncItem("renewal_reminder", ItemResultFailed)

	if got := testutil.ToFloat64(m.items.WithLabelValues("renewal_reminder", ItemResultCreated)); got != 2 {
		t.Fatalf("expected 2 created items, got %v", got)
	}
	if got := testutil.ToFloat64(m.items.WithLabelValues("renewal_reminder", ItemResultFailed)); got != 1 {
		t.Fatalf("expected 1 failed item, got %v", got)
	}
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	m.IncInvoiceCreated("RENEWAL")
	m.IncSettlement("paid")

	registry := prometheus.NewRegistry()
	m = NewBillingMetrics(registry, Config{})
	m.IncSettlement("paid")
	m.IncNotification(errors.New("smtp down"))

	if got := testutil.ToFloat64(m.settlements.WithLabelValues("paid")); got != 1 {
		t.Fatalf("expected 1 paid settlement, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed notification, got %v", got)
	}
}
