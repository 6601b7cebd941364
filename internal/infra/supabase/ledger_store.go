package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// transactionRow maps the transactions table's columns.
type transactionRow struct {
	ID                   string   `json:"id"`
	UserID               string   `json:"user_id"`
	AccountID            string   `json:"account_id"`
	Amount               numeric  `json:"amount"`
	Type                 string   `json:"type"`
	Category             string   `json:"category"`
	Description          string   `json:"description"`
	Date                 string   `json:"date"`
	TransactionID        string   `json:"transaction_id"`
	Tags                 []string `json:"tags"`
	BalanceAfterTransfer *float64 `json:"balance_after_transfer"`
	TransferTime         string   `json:"transfer_time"`
	DonationAmount       *float64 `json:"donation_amount"`
	IsRecurring          bool     `json:"is_recurring"`
	RecurringFrequency   string   `json:"recurring_frequency"`
	CreatedAt            string   `json:"created_at"`
}

func (r transactionRow) toDomain() domain.Transaction {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Transaction{
		ID:                   r.ID,
		UserID:               r.UserID,
		AccountID:            r.AccountID,
		Amount:               float64(r.Amount),
		Type:                 r.Type,
		Category:             r.Category,
		Description:          r.Description,
		Date:                 r.Date,
		TransactionID:        r.TransactionID,
		Tags:                 r.Tags,
		BalanceAfterTransfer: r.BalanceAfterTransfer,
		TransferTime:         r.TransferTime,
		DonationAmount:       r.DonationAmount,
		IsRecurring:          r.IsRecurring,
		RecurringFrequency:   r.RecurringFrequency,
		CreatedAt:            created,
	}
}

// tagsFilter builds a PostgREST "array contains" predicate for the tags
// column: tags=cs.{"transfer","<correlation-id>"}.
func tagsFilter(tags []string) string {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = `"` + t + `"`
	}
	return "cs." + url.QueryEscape("{"+strings.Join(quoted, ",")+"}")
}

// ListTransactions fetches the user's transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if limit <= 0 {
		limit = c.limits.Transactions
	}

	var transactions []domain.Transaction
	err := c.execRead(ctx, "supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?user_id=eq.%s&order=date.desc,created_at.desc&limit=%d", userID, limit)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			transactions = []domain.Transaction{}
			return nil
		}

		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode transactions: %w", err)
		}

		transactions = make([]domain.Transaction, 0, len(rows))
		for _, r := range rows {
			transactions = append(transactions, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// GetTransactionRef reads the minimal projection (human id, account id,
// type) needed before dependent writes.
func (c *Client) GetTransactionRef(ctx context.Context, userID, id string) (*domain.TransactionRef, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransactionRef")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	var ref *domain.TransactionRef
	err := c.execRead(ctx, "supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?id=eq.%s&user_id=eq.%s&select=id,transaction_id,account_id,type&limit=1", id, userID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return notFound("transaction", id)
		}

		var refs []domain.TransactionRef
		if err := json.Unmarshal(body, &refs); err != nil {
			return fmt.Errorf("failed to decode transaction ref: %w", err)
		}
		if len(refs) == 0 {
			return notFound("transaction", id)
		}
		ref = &refs[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// InsertTransaction inserts one ledger row and returns the representation.
// Raw backend error text is preserved so plan-limit signatures
// (TRANSACTION_LIMIT_EXCEEDED et al.) reach the service layer intact.
func (c *Client) InsertTransaction(ctx context.Context, userID string, fields map[string]any) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	fields["user_id"] = userID

	var tx *domain.Transaction
	err := c.execWrite("supabase/transactions", func() error {
		body, err := c.doPost(ctx, "transactions", fields)
		if err != nil {
			return err
		}

		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created transaction: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("transaction insert returned no representation")
		}

		t := rows[0].toDomain()
		tx = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransaction patches a single row and returns the authoritative
// post-update representation.
func (c *Client) UpdateTransaction(ctx context.Context, userID, id string, fields map[string]any) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	var tx *domain.Transaction
	err := c.execWrite("supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?id=eq.%s&user_id=eq.%s", id, userID)
		body, err := c.doPatch(ctx, path, fields, true)
		if err != nil {
			return err
		}

		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode updated transaction: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("transaction update matched no rows: %s", id)
		}

		t := rows[0].toDomain()
		tx = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransactionByHumanID patches rows addressed by the client-visible
// human id. Purchases store that id in their link column, so mirror writes
// arrive through here.
func (c *Client) UpdateTransactionByHumanID(ctx context.Context, userID, humanID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransactionByHumanID")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.human_id", humanID))

	return c.execWrite("supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?transaction_id=eq.%s&user_id=eq.%s", humanID, userID)
		_, err := c.doPatch(ctx, path, fields, false)
		return err
	})
}

// DeleteTransactionByHumanID removes rows addressed by the human id.
func (c *Client) DeleteTransactionByHumanID(ctx context.Context, userID, humanID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransactionByHumanID")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.human_id", humanID))

	return c.execWrite("supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?transaction_id=eq.%s&user_id=eq.%s", humanID, userID)
		return c.doDelete(ctx, path)
	})
}

// DeleteTransaction removes one ledger row.
func (c *Client) DeleteTransaction(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	return c.execWrite("supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?id=eq.%s&user_id=eq.%s", id, userID)
		return c.doDelete(ctx, path)
	})
}

// DeleteTransactionsByTags deletes every row whose tag array contains all
// given tags. This is the compensation primitive for transfer legs.
func (c *Client) DeleteTransactionsByTags(ctx context.Context, userID string, tags []string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransactionsByTags")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("tags", tags))

	return c.execWrite("supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?user_id=eq.%s&tags=%s", userID, tagsFilter(tags))
		return c.doDelete(ctx, path)
	})
}

// DeleteTransactionsByAccount wipes an account's transaction history.
// Used when a DPS savings account is recycled.
func (c *Client) DeleteTransactionsByAccount(ctx context.Context, userID, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransactionsByAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return c.execWrite("supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?user_id=eq.%s&account_id=eq.%s", userID, accountID)
		return c.doDelete(ctx, path)
	})
}

// InsertDPSTransfer records a DPS movement in the dps_transfers ledger.
func (c *Client) InsertDPSTransfer(ctx context.Context, row *domain.DPSTransfer) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertDPSTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.transaction_id", row.TransactionID))

	return c.execWrite("supabase/dps_transfers", func() error {
		_, err := c.doPost(ctx, "dps_transfers", map[string]any{
			"user_id":         row.UserID,
			"from_account_id": row.FromAccountID,
			"to_account_id":   row.ToAccountID,
			"amount":          row.Amount,
			"date":            row.Date,
			"transaction_id":  row.TransactionID,
		})
		return err
	})
}
