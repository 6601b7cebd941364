package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// purchaseRow maps the purchases table's columns.
type purchaseRow struct {
	ID                     string  `json:"id"`
	UserID                 string  `json:"user_id"`
	TransactionID          *string `json:"transaction_id"`
	ItemName               string  `json:"item_name"`
	Category               string  `json:"category"`
	Price                  numeric `json:"price"`
	PurchaseDate           string  `json:"purchase_date"`
	Status                 string  `json:"status"`
	Priority               string  `json:"priority"`
	Notes                  string  `json:"notes"`
	Currency               string  `json:"currency"`
	AccountID              string  `json:"account_id"`
	ExcludeFromCalculation bool    `json:"exclude_from_calculation"`
	CreatedAt              string  `json:"created_at"`
	UpdatedAt              string  `json:"updated_at"`
}

func (r purchaseRow) toDomain() domain.Purchase {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return domain.Purchase{
		ID:                     r.ID,
		UserID:                 r.UserID,
		TransactionID:          r.TransactionID,
		ItemName:               r.ItemName,
		Category:               r.Category,
		Price:                  float64(r.Price),
		PurchaseDate:           r.PurchaseDate,
		Status:                 r.Status,
		Priority:               r.Priority,
		Notes:                  r.Notes,
		Currency:               r.Currency,
		AccountID:              r.AccountID,
		ExcludeFromCalculation: r.ExcludeFromCalculation,
		CreatedAt:              created,
		UpdatedAt:              updated,
	}
}

// ListPurchases fetches the user's purchases, newest first.
func (c *Client) ListPurchases(ctx context.Context, userID string, limit int) ([]domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPurchases")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if limit <= 0 {
		limit = c.limits.Purchases
	}

	var purchases []domain.Purchase
	err := c.execRead(ctx, "supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?user_id=eq.%s&order=purchase_date.desc,created_at.desc&limit=%d", userID, limit)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			purchases = []domain.Purchase{}
			return nil
		}

		var rows []purchaseRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode purchases: %w", err)
		}

		purchases = make([]domain.Purchase, 0, len(rows))
		for _, r := range rows {
			purchases = append(purchases, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

// GetPurchase fetches a single purchase row.
func (c *Client) GetPurchase(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	var purchase *domain.Purchase
	err := c.execRead(ctx, "supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?id=eq.%s&user_id=eq.%s&limit=1", purchaseID, userID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return notFound("purchase", purchaseID)
		}

		var rows []purchaseRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode purchase: %w", err)
		}
		if len(rows) == 0 {
			return notFound("purchase", purchaseID)
		}

		p := rows[0].toDomain()
		purchase = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// InsertPurchase inserts a row and returns the representation. Plan-limit
// rejections (PURCHASE_LIMIT_EXCEEDED et al.) pass through typed.
func (c *Client) InsertPurchase(ctx context.Context, userID string, fields map[string]any) (*domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertPurchase")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	fields["user_id"] = userID

	var purchase *domain.Purchase
	err := c.execWrite("supabase/purchases", func() error {
		body, err := c.doPost(ctx, "purchases", fields)
		if err != nil {
			return err
		}

		var rows []purchaseRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created purchase: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("purchase insert returned no representation")
		}

		p := rows[0].toDomain()
		purchase = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// UpdatePurchase patches purchase fields.
func (c *Client) UpdatePurchase(ctx context.Context, userID, purchaseID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	return c.execWrite("supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?id=eq.%s&user_id=eq.%s", purchaseID, userID)
		_, err := c.doPatch(ctx, path, fields, false)
		return err
	})
}

// DeletePurchase removes a purchase row.
func (c *Client) DeletePurchase(ctx context.Context, userID, purchaseID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeletePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	return c.execWrite("supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?id=eq.%s&user_id=eq.%s", purchaseID, userID)
		return c.doDelete(ctx, path)
	})
}

// UpdatePurchasesByTransactionID mirrors parent-transaction fields onto
// every purchase linked to the given transaction primary key.
func (c *Client) UpdatePurchasesByTransactionID(ctx context.Context, userID, transactionID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePurchasesByTransactionID")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	return c.execWrite("supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?transaction_id=eq.%s&user_id=eq.%s", transactionID, userID)
		_, err := c.doPatch(ctx, path, fields, false)
		return err
	})
}

// DeletePurchasesByTransactionID removes purchases linked to a
// transaction's human id (the link column stores the human id on the
// add-transaction path).
func (c *Client) DeletePurchasesByTransactionID(ctx context.Context, userID, humanID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeletePurchasesByTransactionID")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.human_id", humanID))

	return c.execWrite("supabase/purchases", func() error {
		path := fmt.Sprintf("purchases?transaction_id=eq.%s&user_id=eq.%s", humanID, userID)
		return c.doDelete(ctx, path)
	})
}

// ListPurchaseCategories fetches the user's purchase categories.
func (c *Client) ListPurchaseCategories(ctx context.Context, userID string) ([]domain.PurchaseCategory, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPurchaseCategories")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var categories []domain.PurchaseCategory
	err := c.execRead(ctx, "supabase/purchase_categories", func() error {
		path := fmt.Sprintf("purchase_categories?user_id=eq.%s&order=category_name.asc", userID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			categories = []domain.PurchaseCategory{}
			return nil
		}

		if err := json.Unmarshal(body, &categories); err != nil {
			return fmt.Errorf("failed to decode purchase categories: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}
