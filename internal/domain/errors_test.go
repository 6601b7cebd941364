package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
)

func TestClassifyPlanLimit_RecognizedCodes(t *testing.T) {
	cases := []struct {
		raw  string
		code string
	}{
		{"insert failed: ACCOUNT_LIMIT_EXCEEDED for plan free", domain.PlanLimitAccount},
		{"CURRENCY_LIMIT_EXCEEDED", domain.PlanLimitCurrency},
		{"pg trigger: TRANSACTION_LIMIT_EXCEEDED (max 100)", domain.PlanLimitTransaction},
		{"MONTHLY_TRANSACTION_LIMIT_EXCEEDED: 500/500 used", domain.PlanLimitMonthlyTransaction},
		{"supabase POST purchases returned 400: PURCHASE_LIMIT_EXCEEDED", domain.PlanLimitPurchase},
		{"FEATURE_NOT_AVAILABLE on current plan", domain.PlanLimitFeature},
	}

	for _, tc := range cases {
		pl := domain.ClassifyPlanLimit(errors.New(tc.raw))
		if pl == nil {
			t.Fatalf("expected plan-limit classification for %q", tc.raw)
		}
		if pl.Code != tc.code {
			t.Errorf("expected code %s, got %s", tc.code, pl.Code)
		}
		if pl.Message != tc.raw {
			t.Errorf("expected message preserved verbatim, got %q", pl.Message)
		}
	}
}

func TestClassifyPlanLimit_MonthlyWinsOverPlain(t *testing.T) {
	// MONTHLY_TRANSACTION_LIMIT_EXCEEDED contains TRANSACTION_LIMIT_EXCEEDED
	// as a substring; the more specific code must win.
	pl := domain.ClassifyPlanLimit(errors.New("MONTHLY_TRANSACTION_LIMIT_EXCEEDED"))
	if pl == nil {
		t.Fatal("expected classification")
	}
	if pl.Code != domain.PlanLimitMonthlyTransaction {
		t.Errorf("expected monthly code, got %s", pl.Code)
	}
}

func TestClassifyPlanLimit_Unrecognized(t *testing.T) {
	if domain.ClassifyPlanLimit(errors.New("connection refused")) != nil {
		t.Error("expected nil for generic error")
	}
	if domain.ClassifyPlanLimit(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestClassifyPlanLimit_SurvivesWrapping(t *testing.T) {
	inner := errors.New("TRANSACTION_LIMIT_EXCEEDED")
	wrapped := &domain.ErrExternalService{Service: "supabase/transactions", Err: fmt.Errorf("retry exhausted: %w", inner)}

	pl := domain.ClassifyPlanLimit(wrapped)
	if pl == nil {
		t.Fatal("expected classification through wrapped error text")
	}
	if pl.Code != domain.PlanLimitTransaction {
		t.Errorf("expected transaction code, got %s", pl.Code)
	}
}

func TestGenerateTransactionID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := domain.GenerateTransactionID()
		if len(id) != 9 {
			t.Fatalf("expected 9 chars, got %d (%s)", len(id), id)
		}
		if id[0] < 'A' || id[0] > 'Z' {
			t.Errorf("expected uppercase letter prefix, got %q", id[0])
		}
		for _, c := range id[1:] {
			if c < '0' || c > '9' {
				t.Errorf("expected digits after prefix, got %q in %s", c, id)
			}
		}
		seen[id] = true
	}
	// 100 draws from a 2.6e9 space; a collision here means the generator
	// is not actually random.
	if len(seen) < 95 {
		t.Errorf("expected near-unique ids, got %d distinct of 100", len(seen))
	}
}
