package supabase

import (
	"context"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// LogActivity writes one audit row to activity_history. Callers treat
// this as fire-and-forget; the error is returned only so they can log it.
func (c *Client) LogActivity(ctx context.Context, entry *domain.ActivityLog) error {
	ctx, span := tracer.Start(ctx, "Supabase.LogActivity")
	defer span.End()
	span.SetAttributes(attribute.String("activity.type", entry.ActivityType))

	fields := map[string]any{
		"user_id":       entry.UserID,
		"activity_type": entry.ActivityType,
		"entity_type":   entry.EntityType,
		"description":   entry.Description,
	}
	if entry.EntityID != "" {
		fields["entity_id"] = entry.EntityID
	}
	if entry.Details != nil {
		fields["details"] = entry.Details
	}

	return c.execWrite("supabase/activity_history", func() error {
		_, err := c.doPost(ctx, "activity_history", fields)
		return err
	})
}
