package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/resilience"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *observability.Metrics, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker("supabase-test")
	cfg := resilience.Config{MaxRetries: 0}
	c := NewClient(srv.Client(), srv.URL, "anon", "service", cb, cfg, metrics, zap.NewNop())
	return c, metrics, srv.Close
}

func TestExecRead_CountsBackendFailures(t *testing.T) {
	c, metrics, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	})
	defer done()

	_, err := c.ListAccounts(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %T", err)
	}
	if got := metrics.ExternalErrorCount("supabase/accounts"); got != 1 {
		t.Errorf("expected 1 external error, got %v", got)
	}
}

func TestExecRead_NotFoundIsNotABackendFailure(t *testing.T) {
	c, metrics, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})
	defer done()

	_, err := c.GetAccount(context.Background(), "user-1", "acc-missing")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := metrics.ExternalErrorCount("supabase/accounts"); got != 0 {
		t.Errorf("expected no external errors for a missing row, got %v", got)
	}
}

func TestExecWrite_CountsBackendFailures(t *testing.T) {
	c, metrics, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"connection reset"}`)
	})
	defer done()

	_, err := c.InsertTransaction(context.Background(), "user-1", map[string]any{
		"account_id": "acc-1", "amount": 10.0, "type": "expense", "date": "2026-08-20",
	})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %T", err)
	}
	if got := metrics.ExternalErrorCount("supabase/transactions"); got != 1 {
		t.Errorf("expected 1 external error, got %v", got)
	}
}

func TestExecWrite_PlanLimitNotCountedAsBackendFailure(t *testing.T) {
	c, metrics, done := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"TRANSACTION_LIMIT_EXCEEDED: upgrade required"}`)
	})
	defer done()

	_, err := c.InsertTransaction(context.Background(), "user-1", map[string]any{
		"account_id": "acc-1", "amount": 10.0, "type": "expense", "date": "2026-08-20",
	})
	var pl *domain.ErrPlanLimit
	if !errors.As(err, &pl) {
		t.Fatalf("expected ErrPlanLimit, got %v", err)
	}
	if got := metrics.ExternalErrorCount("supabase/transactions"); got != 0 {
		t.Errorf("expected no external errors for a plan-limit rejection, got %v", got)
	}
}
