package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAccountService(accounts *fakeAccountStore, ledger *fakeLedgerStore) *AccountService {
	return NewAccountService(accounts, ledger, newTestState(), observability.NewMetrics(), zap.NewNop())
}

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

// ============================================================
// CreateAccount + DPS provisioning
// ============================================================

func TestCreateAccount_WithDPSCreatesLinkedSavings(t *testing.T) {
	var creates []map[string]any
	var linkAccountID string
	var linkFields map[string]any
	accounts := &fakeAccountStore{
		createAccount: func(_ context.Context, _ string, fields map[string]any) (*domain.Account, error) {
			creates = append(creates, fields)
			if len(creates) == 1 {
				return &domain.Account{ID: "acc-main", Name: "Salary", Currency: "EUR"}, nil
			}
			return &domain.Account{ID: "acc-savings"}, nil
		},
		updateAccount: func(_ context.Context, _, accountID string, fields map[string]any) error {
			linkAccountID = accountID
			linkFields = fields
			return nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	_, err := svc.CreateAccount(context.Background(), "user-1", domain.AccountInput{
		Name:              "Salary",
		Type:              "checking",
		Currency:          "EUR",
		HasDPS:            boolPtr(true),
		DPSInitialBalance: floatPtr(25),
	})
	require.NoError(t, err)
	require.Len(t, creates, 2)

	savings := creates[1]
	assert.Equal(t, "Salary (DPS)", savings["name"])
	assert.Equal(t, "savings", savings["type"])
	assert.Equal(t, "EUR", savings["currency"])
	assert.Equal(t, 25.0, savings["initial_balance"])

	// The main account is linked to its savings counterpart.
	assert.Equal(t, "acc-main", linkAccountID)
	assert.Equal(t, "acc-savings", linkFields["dps_savings_account_id"])
}

func TestCreateAccount_DPSRecyclesExistingSavings(t *testing.T) {
	savingsID := "acc-old-savings"
	var wipedAccount string
	var resetFields map[string]any
	accounts := &fakeAccountStore{
		createAccount: func(_ context.Context, _ string, _ map[string]any) (*domain.Account, error) {
			return &domain.Account{ID: "acc-main", Name: "Salary", DPSSavingsAccountID: &savingsID}, nil
		},
		updateAccount: func(_ context.Context, _, accountID string, fields map[string]any) error {
			assert.Equal(t, savingsID, accountID)
			resetFields = fields
			return nil
		},
	}
	ledger := &fakeLedgerStore{
		deleteByAccount: func(_ context.Context, _, accountID string) error {
			wipedAccount = accountID
			return nil
		},
	}
	svc := newAccountService(accounts, ledger)

	_, err := svc.CreateAccount(context.Background(), "user-1", domain.AccountInput{
		Name:              "Salary",
		Type:              "checking",
		Currency:          "USD",
		HasDPS:            boolPtr(true),
		DPSInitialBalance: floatPtr(10),
	})
	require.NoError(t, err)

	// Recycling wipes the savings history and resets its opening
	// balance instead of creating a second savings account.
	assert.Equal(t, savingsID, wipedAccount)
	assert.Equal(t, 10.0, resetFields["initial_balance"])
}

func TestCreateAccount_Validation(t *testing.T) {
	svc := newAccountService(&fakeAccountStore{}, &fakeLedgerStore{})

	cases := []struct {
		name  string
		input domain.AccountInput
	}{
		{"missing name", domain.AccountInput{Type: "checking", Currency: "USD"}},
		{"unknown type", domain.AccountInput{Name: "A", Type: "brokerage", Currency: "USD"}},
		{"missing currency", domain.AccountInput{Name: "A", Type: "checking"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(context.Background(), "user-1", tc.input)
			var validation *domain.ErrValidation
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestCreateAccount_PlanLimitPassthrough(t *testing.T) {
	accounts := &fakeAccountStore{
		createAccount: func(_ context.Context, _ string, _ map[string]any) (*domain.Account, error) {
			return nil, errors.New("ACCOUNT_LIMIT_EXCEEDED: free plan allows 3 accounts")
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	_, err := svc.CreateAccount(context.Background(), "user-1", domain.AccountInput{
		Name: "Fourth", Type: "checking", Currency: "USD",
	})

	var planLimit *domain.ErrPlanLimit
	require.ErrorAs(t, err, &planLimit)
	assert.Equal(t, domain.PlanLimitAccount, planLimit.Code)
	assert.Equal(t, "ACCOUNT_LIMIT_EXCEEDED: free plan allows 3 accounts", planLimit.Message)
}

// ============================================================
// UpdateAccount
// ============================================================

func TestUpdateAccount_EnablingDPSProvisionsBeforePatch(t *testing.T) {
	var savingsCreated bool
	var patchFields map[string]any
	accounts := &fakeAccountStore{
		getAccount: func(_ context.Context, _, accountID string) (*domain.Account, error) {
			return &domain.Account{ID: accountID, Name: "Main", Currency: "USD", HasDPS: false}, nil
		},
		createAccount: func(_ context.Context, _ string, fields map[string]any) (*domain.Account, error) {
			savingsCreated = true
			assert.Equal(t, "Main (DPS)", fields["name"])
			return &domain.Account{ID: "acc-savings"}, nil
		},
		updateAccount: func(_ context.Context, _, accountID string, fields map[string]any) error {
			if accountID == "acc-main" && fields["dps_savings_account_id"] == nil {
				patchFields = fields
			}
			return nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	err := svc.UpdateAccount(context.Background(), "user-1", "acc-main", domain.AccountInput{
		HasDPS:  boolPtr(true),
		DPSType: "monthly",
	})
	require.NoError(t, err)
	assert.True(t, savingsCreated)
	require.NotNil(t, patchFields)
	assert.Equal(t, true, patchFields["has_dps"])
	assert.Equal(t, "monthly", patchFields["dps_type"])
}

func TestUpdateAccount_AlreadyDPSSkipsProvisioning(t *testing.T) {
	accounts := &fakeAccountStore{
		getAccount: func(_ context.Context, _, accountID string) (*domain.Account, error) {
			return &domain.Account{ID: accountID, HasDPS: true}, nil
		},
		createAccount: func(_ context.Context, _ string, _ map[string]any) (*domain.Account, error) {
			t.Fatal("provisioning must not run for an account that already has DPS")
			return nil, nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	err := svc.UpdateAccount(context.Background(), "user-1", "acc-main", domain.AccountInput{
		HasDPS: boolPtr(true),
	})
	assert.NoError(t, err)
}

func TestUpdateAccount_NoFieldsRejected(t *testing.T) {
	svc := newAccountService(&fakeAccountStore{}, &fakeLedgerStore{})

	err := svc.UpdateAccount(context.Background(), "user-1", "acc-1", domain.AccountInput{})
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

// ============================================================
// Reorder
// ============================================================

func TestReorderAccount(t *testing.T) {
	var patched map[string]any
	accounts := &fakeAccountStore{
		updateAccount: func(_ context.Context, _, _ string, fields map[string]any) error {
			patched = fields
			return nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	require.NoError(t, svc.ReorderAccount(context.Background(), "user-1", "acc-1", 3))
	assert.Equal(t, 3, patched["position"])

	err := svc.ReorderAccount(context.Background(), "user-1", "acc-1", -1)
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

// ============================================================
// Default cash account
// ============================================================

func TestEnsureDefaultCashAccount_SkipsWhenAccountsExist(t *testing.T) {
	accounts := &fakeAccountStore{
		listAccounts: func(_ context.Context, _ string) ([]domain.Account, error) {
			return []domain.Account{{ID: "acc-1"}}, nil
		},
		createCashAccount: func(_ context.Context, _, _ string) (string, error) {
			t.Fatal("cash account must not be created when accounts exist")
			return "", nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	id, err := svc.EnsureDefaultCashAccount(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestEnsureDefaultCashAccount_CreatesThroughProcedure(t *testing.T) {
	var usedCurrency string
	accounts := &fakeAccountStore{
		createCashAccount: func(_ context.Context, _, currency string) (string, error) {
			usedCurrency = currency
			return "acc-cash-1", nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	id, err := svc.EnsureDefaultCashAccount(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, "acc-cash-1", id)
	assert.Equal(t, "USD", usedCurrency, "missing currency defaults to USD")
}

// ============================================================
// ListAccounts cache behavior
// ============================================================

func TestListAccounts_CachesResult(t *testing.T) {
	fetches := 0
	accounts := &fakeAccountStore{
		listAccounts: func(_ context.Context, _ string) ([]domain.Account, error) {
			fetches++
			return []domain.Account{{ID: "acc-1"}}, nil
		},
	}
	svc := newAccountService(accounts, &fakeLedgerStore{})

	_, err := svc.ListAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = svc.ListAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}
