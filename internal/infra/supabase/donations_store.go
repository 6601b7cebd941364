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

// donationRow maps the donation_saving_records table's columns.
type donationRow struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	TransactionID *string `json:"transaction_id"`
	Amount        numeric `json:"amount"`
	Mode          string  `json:"mode"`
	ModeValue     numeric `json:"mode_value"`
	Status        string  `json:"status"`
	Note          string  `json:"note"`
	CreatedAt     string  `json:"created_at"`
}

func (r donationRow) toDomain() domain.DonationSavingRecord {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.DonationSavingRecord{
		ID:            r.ID,
		UserID:        r.UserID,
		TransactionID: r.TransactionID,
		Amount:        float64(r.Amount),
		Mode:          r.Mode,
		ModeValue:     float64(r.ModeValue),
		Status:        r.Status,
		Note:          r.Note,
		CreatedAt:     created,
	}
}

// ListDonationRecords fetches the user's donation/saving records.
func (c *Client) ListDonationRecords(ctx context.Context, userID string) ([]domain.DonationSavingRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDonationRecords")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var records []domain.DonationSavingRecord
	err := c.execRead(ctx, "supabase/donation_saving_records", func() error {
		path := fmt.Sprintf("donation_saving_records?user_id=eq.%s&order=created_at.desc", userID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			records = []domain.DonationSavingRecord{}
			return nil
		}

		var rows []donationRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode donation records: %w", err)
		}

		records = make([]domain.DonationSavingRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetDonationRecord fetches a single donation/saving record.
func (c *Client) GetDonationRecord(ctx context.Context, userID, recordID string) (*domain.DonationSavingRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDonationRecord")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", recordID))

	var record *domain.DonationSavingRecord
	err := c.execRead(ctx, "supabase/donation_saving_records", func() error {
		path := fmt.Sprintf("donation_saving_records?id=eq.%s&user_id=eq.%s&limit=1", recordID, userID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return notFound("donation record", recordID)
		}

		var rows []donationRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode donation record: %w", err)
		}
		if len(rows) == 0 {
			return notFound("donation record", recordID)
		}

		rec := rows[0].toDomain()
		record = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateDonationRecord patches record fields (status toggling).
func (c *Client) UpdateDonationRecord(ctx context.Context, userID, recordID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateDonationRecord")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", recordID))

	return c.execWrite("supabase/donation_saving_records", func() error {
		path := fmt.Sprintf("donation_saving_records?id=eq.%s&user_id=eq.%s", recordID, userID)
		_, err := c.doPatch(ctx, path, fields, false)
		return err
	})
}

// DeleteDonationRecord removes a record row. The linked-record guard
// lives in the service layer, not here.
func (c *Client) DeleteDonationRecord(ctx context.Context, userID, recordID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteDonationRecord")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", recordID))

	return c.execWrite("supabase/donation_saving_records", func() error {
		path := fmt.Sprintf("donation_saving_records?id=eq.%s&user_id=eq.%s", recordID, userID)
		return c.doDelete(ctx, path)
	})
}
