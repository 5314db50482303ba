package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}

	m.RecordCommit("create", OutcomeOK, time.Millisecond)
	m.RecordCommit("create", OutcomeOK, time.Millisecond)
	m.RecordRetry("create")
	m.RecordBudget(BudgetCreated)

	if got := testutil.ToFloat64(m.commits.WithLabelValues("create", OutcomeOK)); got != 2 {
		t.Fatalf("expected 2 commits, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("create")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.budgets.WithLabelValues(BudgetCreated)); got != 1 {
		t.Fatalf("expected 1 created budget, got %v", got)
	}

	if _, err := New(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCommit("create", OutcomeOK, time.Second)
	m.RecordRetry("create")
	m.RecordBudget(BudgetFound)
	m.RecordEvent("ok")
	m.RecordExport("ok")
	m.RecordBreakerState("events", 2)
}
