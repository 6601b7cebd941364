package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// FetchLimits caps collection reads, mirroring the client app's defaults.
type FetchLimits struct {
	Transactions int
	Purchases    int
	Accounts     int
}

var defaultFetchLimits = FetchLimits{Transactions: 1000, Purchases: 500, Accounts: 50}

// SetFetchLimits overrides the default collection fetch limits.
func (c *Client) SetFetchLimits(l FetchLimits) {
	if l.Transactions > 0 {
		c.limits.Transactions = l.Transactions
	}
	if l.Purchases > 0 {
		c.limits.Purchases = l.Purchases
	}
	if l.Accounts > 0 {
		c.limits.Accounts = l.Accounts
	}
}

// numeric tolerates PostgREST returning numeric columns as either JSON
// numbers or quoted strings (views with ::numeric casts do the latter).
type numeric float64

func (n *numeric) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = numeric(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = numeric(f)
	return nil
}

// accountRow maps the account_balances view's columns.
type accountRow struct {
	AccountID           string   `json:"account_id"`
	ID                  string   `json:"id"` // set when reading the accounts table directly
	UserID              string   `json:"user_id"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	InitialBalance      numeric  `json:"initial_balance"`
	CalculatedBalance   numeric  `json:"calculated_balance"`
	Currency            string   `json:"currency"`
	IsActive            bool     `json:"is_active"`
	Position            int      `json:"position"`
	Description         string   `json:"description"`
	HasDPS              bool     `json:"has_dps"`
	DPSType             string   `json:"dps_type"`
	DPSAmountType       string   `json:"dps_amount_type"`
	DPSFixedAmount      numeric  `json:"dps_fixed_amount"`
	DPSSavingsAccountID *string  `json:"dps_savings_account_id"`
	DonationPreference  *float64 `json:"donation_preference"`
	CreatedAt           string   `json:"created_at"`
}

func (r accountRow) toDomain() domain.Account {
	id := r.AccountID
	if id == "" {
		id = r.ID
	}
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Account{
		ID:                  id,
		UserID:              r.UserID,
		Name:                r.Name,
		Type:                r.Type,
		InitialBalance:      float64(r.InitialBalance),
		CalculatedBalance:   float64(r.CalculatedBalance),
		Currency:            r.Currency,
		IsActive:            r.IsActive,
		Position:            r.Position,
		Description:         r.Description,
		HasDPS:              r.HasDPS,
		DPSType:             r.DPSType,
		DPSAmountType:       r.DPSAmountType,
		DPSFixedAmount:      float64(r.DPSFixedAmount),
		DPSSavingsAccountID: r.DPSSavingsAccountID,
		DonationPreference:  r.DonationPreference,
		CreatedAt:           created,
	}
}

// ListAccounts reads the account_balances view: balances are computed
// server-side, ordered by user-defined position then creation time.
func (c *Client) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var accounts []domain.Account

	err := c.execRead(ctx, "supabase/accounts", func() error {
		path := fmt.Sprintf("account_balances?user_id=eq.%s&order=position.asc,created_at.desc&limit=%d", userID, c.limits.Accounts)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			accounts = []domain.Account{}
			return nil
		}

		var rows []accountRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode accounts: %w", err)
		}

		accounts = make([]domain.Account, 0, len(rows))
		for _, r := range rows {
			accounts = append(accounts, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAccount fetches a single account from the account_balances view.
func (c *Client) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var account *domain.Account

	err := c.execRead(ctx, "supabase/accounts", func() error {
		path := fmt.Sprintf("account_balances?user_id=eq.%s&account_id=eq.%s&limit=1", userID, accountID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return notFound("account", accountID)
		}

		var rows []accountRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode account: %w", err)
		}
		if len(rows) == 0 {
			return notFound("account", accountID)
		}

		a := rows[0].toDomain()
		account = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CreateAccount inserts a row into accounts and returns the representation.
// Plan-limit rejections (ACCOUNT_LIMIT_EXCEEDED, CURRENCY_LIMIT_EXCEEDED)
// pass through typed.
func (c *Client) CreateAccount(ctx context.Context, userID string, fields map[string]any) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	fields["user_id"] = userID

	var account *domain.Account
	err := c.execWrite("supabase/accounts", func() error {
		body, err := c.doPost(ctx, "accounts", fields)
		if err != nil {
			return err
		}

		var rows []accountRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created account: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("account insert returned no representation")
		}

		a := rows[0].toDomain()
		account = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount patches account fields.
func (c *Client) UpdateAccount(ctx context.Context, userID, accountID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return c.execWrite("supabase/accounts", func() error {
		path := fmt.Sprintf("accounts?id=eq.%s&user_id=eq.%s", accountID, userID)
		_, err := c.doPatch(ctx, path, fields, false)
		return err
	})
}

// DeleteAccount removes an account row.
func (c *Client) DeleteAccount(ctx context.Context, userID, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return c.execWrite("supabase/accounts", func() error {
		path := fmt.Sprintf("accounts?id=eq.%s&user_id=eq.%s", accountID, userID)
		return c.doDelete(ctx, path)
	})
}

// UpdateAccountBalance writes calculated_balance directly. Only the
// transfer protocol uses this; everything else trusts the server view.
func (c *Client) UpdateAccountBalance(ctx context.Context, userID, accountID string, newBalance float64) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateAccountBalance")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Float64("balance.new", newBalance),
	)

	return c.execWrite("supabase/accounts", func() error {
		path := fmt.Sprintf("accounts?id=eq.%s&user_id=eq.%s", accountID, userID)
		_, err := c.doPatch(ctx, path, map[string]any{"calculated_balance": newBalance}, false)
		return err
	})
}

// CreateCashAccount calls the create_cash_account stored procedure used
// during onboarding to provision the default "Cash Wallet" account.
func (c *Client) CreateCashAccount(ctx context.Context, userID, currency string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCashAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var accountID string
	err := c.execWrite("supabase/accounts", func() error {
		body, err := c.doRPC(ctx, "create_cash_account", map[string]any{
			"p_user_id":  userID,
			"p_currency": currency,
		})
		if err != nil {
			return err
		}
		// The procedure returns the new account id as a JSON string.
		if err := json.Unmarshal(body, &accountID); err != nil {
			return fmt.Errorf("failed to decode create_cash_account result: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return accountID, nil
}

