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

var donationTracer = otel.Tracer("service/donation")

// DonationService manages donation/saving records. Records created by
// ledger writes are linked to their transaction and can only be removed
// by deleting that transaction; manual records can be deleted directly.
type DonationService struct {
	donations port.DonationStore
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewDonationService creates a DonationService.
func NewDonationService(donations port.DonationStore, metrics *observability.Metrics, logger *zap.Logger) *DonationService {
	return &DonationService{donations: donations, metrics: metrics, logger: logger}
}

// ListDonationRecords returns the user's donation/saving records.
func (s *DonationService) ListDonationRecords(ctx context.Context, userID string) ([]domain.DonationSavingRecord, error) {
	ctx, span := donationTracer.Start(ctx, "DonationService.ListDonationRecords")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("list_donations", time.Since(start))
	}()

	return s.donations.ListDonationRecords(ctx, userID)
}

// ToggleDonationStatus flips a record between pending and donated.
func (s *DonationService) ToggleDonationStatus(ctx context.Context, userID, recordID string) error {
	ctx, span := donationTracer.Start(ctx, "DonationService.ToggleDonationStatus")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", recordID))

	record, err := s.donations.GetDonationRecord(ctx, userID, recordID)
	if err != nil {
		return err
	}

	next := "donated"
	if record.Status == "donated" {
		next = "pending"
	}
	return s.donations.UpdateDonationRecord(ctx, userID, recordID, map[string]any{
		"status": next,
	})
}

// DeleteDonationRecord removes a manual record. Ledger-linked records
// are refused: they disappear with their transaction, not on their own.
func (s *DonationService) DeleteDonationRecord(ctx context.Context, userID, recordID string) error {
	ctx, span := donationTracer.Start(ctx, "DonationService.DeleteDonationRecord")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", recordID))

	record, err := s.donations.GetDonationRecord(ctx, userID, recordID)
	if err != nil {
		return err
	}
	if record.TransactionID != nil && *record.TransactionID != "" {
		return &domain.ErrConflict{
			Message: "Cannot delete donations linked to transactions. Only manual donations can be deleted.",
		}
	}

	if err := s.donations.DeleteDonationRecord(ctx, userID, recordID); err != nil {
		return err
	}
	s.logger.Debug("manual donation record deleted",
		zap.String("user_id", userID),
		zap.String("record_id", recordID),
	)
	return nil
}
