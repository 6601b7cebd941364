package service

import (
	"context"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var accountTracer = otel.Tracer("service/account")

// AccountService implements account lifecycle: CRUD over the balance
// view, DPS (automatic savings) provisioning and the onboarding cash
// account.
type AccountService struct {
	accounts port.AccountStore
	ledger   port.LedgerStore
	state    *StateCache
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	accounts port.AccountStore,
	ledger port.LedgerStore,
	state *StateCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		ledger:   ledger,
		state:    state,
		metrics:  metrics,
		logger:   logger,
	}
}

// ============================================================
// Reads
// ============================================================

// ListAccounts returns the user's accounts with server-computed
// balances, ordered by position, served from cache when warm.
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.ListAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("list_accounts", time.Since(start))
	}()

	if cached, ok := s.state.Accounts(userID); ok {
		s.metrics.IncrCacheHit("accounts")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("accounts")

	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.state.SetAccounts(userID, accounts)
	return accounts, nil
}

// GetAccount returns a single account.
func (s *AccountService) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return s.accounts.GetAccount(ctx, userID, accountID)
}

// ============================================================
// Create
// ============================================================

// CreateAccount creates an account and, when DPS is requested,
// provisions its linked savings account.
func (s *AccountService) CreateAccount(ctx context.Context, userID string, input domain.AccountInput) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.CreateAccount")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("account.type", input.Type),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("create_account", time.Since(start))
	}()

	if err := validateAccountInput(input); err != nil {
		return nil, err
	}

	account, err := s.accounts.CreateAccount(ctx, userID, accountFields(input))
	if err != nil {
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}

	if input.HasDPS != nil && *input.HasDPS {
		if err := s.provisionDPS(ctx, userID, account, input); err != nil {
			return nil, err
		}
	}

	s.state.InvalidateAccounts(userID)
	return account, nil
}

func validateAccountInput(input domain.AccountInput) error {
	if input.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	switch input.Type {
	case "checking", "savings", "credit", "cash", "investment":
	default:
		return &domain.ErrValidation{Field: "type", Message: "unknown account type"}
	}
	if input.Currency == "" {
		return &domain.ErrValidation{Field: "currency", Message: "currency is required"}
	}
	return nil
}

func accountFields(input domain.AccountInput) map[string]any {
	fields := map[string]any{
		"name":     input.Name,
		"type":     input.Type,
		"currency": input.Currency,
	}
	if input.InitialBalance != nil {
		fields["initial_balance"] = *input.InitialBalance
	}
	if input.IsActive != nil {
		fields["isActive"] = *input.IsActive
	}
	if input.Description != "" {
		fields["description"] = input.Description
	}
	if input.HasDPS != nil {
		fields["has_dps"] = *input.HasDPS
	}
	if input.DPSType != "" {
		fields["dps_type"] = input.DPSType
	}
	if input.DPSAmountType != "" {
		fields["dps_amount_type"] = input.DPSAmountType
	}
	if input.DPSFixedAmount != nil {
		fields["dps_fixed_amount"] = *input.DPSFixedAmount
	}
	if input.DonationPreference != nil {
		fields["donation_preference"] = *input.DonationPreference
	}
	return fields
}

// provisionDPS gives a DPS-enabled account its savings counterpart. An
// existing linked savings account is recycled: its history is wiped and
// its opening balance reset. Otherwise a fresh "<name> (DPS)" savings
// account is created and linked.
func (s *AccountService) provisionDPS(ctx context.Context, userID string, account *domain.Account, input domain.AccountInput) error {
	dpsInitial := 0.0
	if input.DPSInitialBalance != nil {
		dpsInitial = *input.DPSInitialBalance
	}

	if account.DPSSavingsAccountID != nil && *account.DPSSavingsAccountID != "" {
		savingsID := *account.DPSSavingsAccountID
		if err := s.ledger.DeleteTransactionsByAccount(ctx, userID, savingsID); err != nil {
			return err
		}
		return s.accounts.UpdateAccount(ctx, userID, savingsID, map[string]any{
			"initial_balance": dpsInitial,
		})
	}

	savings, err := s.accounts.CreateAccount(ctx, userID, map[string]any{
		"name":            account.Name + " (DPS)",
		"type":            "savings",
		"currency":        account.Currency,
		"initial_balance": dpsInitial,
	})
	if err != nil {
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return pl
		}
		return err
	}

	return s.accounts.UpdateAccount(ctx, userID, account.ID, map[string]any{
		"dps_savings_account_id": savings.ID,
	})
}

// ============================================================
// Update / delete
// ============================================================

// UpdateAccount patches account fields. Turning DPS on provisions the
// savings counterpart before the patch lands.
func (s *AccountService) UpdateAccount(ctx context.Context, userID, accountID string, input domain.AccountInput) error {
	ctx, span := accountTracer.Start(ctx, "AccountService.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("update_account", time.Since(start))
	}()

	if input.HasDPS != nil && *input.HasDPS {
		account, err := s.accounts.GetAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		if !account.HasDPS {
			if err := s.provisionDPS(ctx, userID, account, input); err != nil {
				return err
			}
		}
	}

	fields := map[string]any{}
	if input.Name != "" {
		fields["name"] = input.Name
	}
	if input.Type != "" {
		fields["type"] = input.Type
	}
	if input.Currency != "" {
		fields["currency"] = input.Currency
	}
	if input.InitialBalance != nil {
		fields["initial_balance"] = *input.InitialBalance
	}
	if input.IsActive != nil {
		fields["isActive"] = *input.IsActive
	}
	if input.Description != "" {
		fields["description"] = input.Description
	}
	if input.HasDPS != nil {
		fields["has_dps"] = *input.HasDPS
	}
	if input.DPSType != "" {
		fields["dps_type"] = input.DPSType
	}
	if input.DPSAmountType != "" {
		fields["dps_amount_type"] = input.DPSAmountType
	}
	if input.DPSFixedAmount != nil {
		fields["dps_fixed_amount"] = *input.DPSFixedAmount
	}
	if input.DonationPreference != nil {
		fields["donation_preference"] = *input.DonationPreference
	}
	if len(fields) == 0 {
		return &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	if err := s.accounts.UpdateAccount(ctx, userID, accountID, fields); err != nil {
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return pl
		}
		return err
	}

	s.state.InvalidateAccounts(userID)
	return nil
}

// DeleteAccount removes an account.
func (s *AccountService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	ctx, span := accountTracer.Start(ctx, "AccountService.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if err := s.accounts.DeleteAccount(ctx, userID, accountID); err != nil {
		return err
	}
	s.state.InvalidateAccounts(userID)
	s.state.InvalidateTransactions(userID)
	return nil
}

// ReorderAccount moves an account to a new list position.
func (s *AccountService) ReorderAccount(ctx context.Context, userID, accountID string, position int) error {
	ctx, span := accountTracer.Start(ctx, "AccountService.ReorderAccount")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("account.position", position),
	)

	if position < 0 {
		return &domain.ErrValidation{Field: "position", Message: "position must not be negative"}
	}
	if err := s.accounts.UpdateAccount(ctx, userID, accountID, map[string]any{
		"position": position,
	}); err != nil {
		return err
	}
	s.state.InvalidateAccounts(userID)
	return nil
}

// ============================================================
// Onboarding
// ============================================================

// EnsureDefaultCashAccount creates the onboarding cash wallet through
// the create_cash_account procedure when the user has no accounts yet.
// Returns the new account id, or "" if the user already has accounts.
func (s *AccountService) EnsureDefaultCashAccount(ctx context.Context, userID, currency string) (string, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.EnsureDefaultCashAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if currency == "" {
		currency = "USD"
	}

	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(accounts) > 0 {
		return "", nil
	}

	id, err := s.accounts.CreateCashAccount(ctx, userID, currency)
	if err != nil {
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return "", pl
		}
		return "", err
	}

	s.state.InvalidateAccounts(userID)
	s.logger.Info("default cash account created",
		zap.String("user_id", userID),
		zap.String("account_id", id),
	)
	return id, nil
}
