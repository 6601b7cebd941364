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

// attachmentRow maps the purchase_attachments table's columns.
type attachmentRow struct {
	ID         string `json:"id"`
	PurchaseID string `json:"purchase_id"`
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `json:"mime_type"`
	CreatedAt  string `json:"created_at"`
}

func (r attachmentRow) toDomain() domain.PurchaseAttachment {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.PurchaseAttachment{
		ID:         r.ID,
		PurchaseID: r.PurchaseID,
		FileName:   r.FileName,
		FilePath:   r.FilePath,
		FileSize:   r.FileSize,
		MimeType:   r.MimeType,
		CreatedAt:  created,
	}
}

// ListAttachments fetches the attachment rows for a purchase.
func (c *Client) ListAttachments(ctx context.Context, purchaseID string) ([]domain.PurchaseAttachment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAttachments")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	var attachments []domain.PurchaseAttachment
	err := c.execRead(ctx, "supabase/purchase_attachments", func() error {
		path := fmt.Sprintf("purchase_attachments?purchase_id=eq.%s&order=created_at.desc", purchaseID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			attachments = []domain.PurchaseAttachment{}
			return nil
		}

		var rows []attachmentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode attachments: %w", err)
		}

		attachments = make([]domain.PurchaseAttachment, 0, len(rows))
		for _, r := range rows {
			attachments = append(attachments, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// GetAttachment fetches a single attachment row.
func (c *Client) GetAttachment(ctx context.Context, attachmentID string) (*domain.PurchaseAttachment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("attachment.id", attachmentID))

	var attachment *domain.PurchaseAttachment
	err := c.execRead(ctx, "supabase/purchase_attachments", func() error {
		path := fmt.Sprintf("purchase_attachments?id=eq.%s&limit=1", attachmentID)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return notFound("attachment", attachmentID)
		}

		var rows []attachmentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode attachment: %w", err)
		}
		if len(rows) == 0 {
			return notFound("attachment", attachmentID)
		}

		a := rows[0].toDomain()
		attachment = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// InsertAttachment inserts attachment metadata after the file upload.
func (c *Client) InsertAttachment(ctx context.Context, fields map[string]any) (*domain.PurchaseAttachment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertAttachment")
	defer span.End()

	var attachment *domain.PurchaseAttachment
	err := c.execWrite("supabase/purchase_attachments", func() error {
		body, err := c.doPost(ctx, "purchase_attachments", fields)
		if err != nil {
			return err
		}

		var rows []attachmentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created attachment: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("attachment insert returned no representation")
		}

		a := rows[0].toDomain()
		attachment = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// DeleteAttachment removes an attachment row.
func (c *Client) DeleteAttachment(ctx context.Context, attachmentID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("attachment.id", attachmentID))

	return c.execWrite("supabase/purchase_attachments", func() error {
		path := fmt.Sprintf("purchase_attachments?id=eq.%s", attachmentID)
		return c.doDelete(ctx, path)
	})
}
