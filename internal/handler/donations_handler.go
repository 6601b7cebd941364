package handler

import (
	"net/http"

	"github.com/shalconnects/balanze-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Donation / saving records
// ============================================================

func listDonationsHandler(svc *service.DonationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/donations")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		records, err := svc.ListDonationRecords(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": records})
	}
}

func toggleDonationHandler(svc *service.DonationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/donations/{recordId}/toggle")
		defer span.End()

		userID := UserIDFromContext(ctx)
		recordID := chi.URLParam(r, "recordId")
		span.SetAttributes(attribute.String("record.id", recordID))

		if err := svc.ToggleDonationStatus(ctx, userID, recordID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteDonationHandler(svc *service.DonationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/donations/{recordId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		recordID := chi.URLParam(r, "recordId")
		span.SetAttributes(attribute.String("record.id", recordID))

		if err := svc.DeleteDonationRecord(ctx, userID, recordID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
