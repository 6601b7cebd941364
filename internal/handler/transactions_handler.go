package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions
// ============================================================

func listTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		transactions, err := svc.ListTransactions(ctx, userID, parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
	}
}

// addTransactionRequest is the transaction body plus the optional
// purchase satellite details.
type addTransactionRequest struct {
	domain.TransactionInput
	PurchaseDetails *domain.PurchaseDetails `json:"purchase_details,omitempty"`
}

func addTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		var req addTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.AddTransaction(ctx, userID, req.TransactionInput, req.PurchaseDetails)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/transactions/{transactionId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		id := chi.URLParam(r, "transactionId")
		if id == "" {
			writeError(w, http.StatusBadRequest, "transactionId is required")
			return
		}
		span.SetAttributes(attribute.String("transaction.id", id))

		var req struct {
			domain.TransactionUpdate
			PurchaseDetails *domain.PurchaseDetails `json:"purchase_details,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		updated, err := svc.UpdateTransaction(ctx, userID, id, req.TransactionUpdate, req.PurchaseDetails)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{transactionId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		id := chi.URLParam(r, "transactionId")
		if id == "" {
			writeError(w, http.StatusBadRequest, "transactionId is required")
			return
		}
		span.SetAttributes(attribute.String("transaction.id", id))

		if err := svc.DeleteTransaction(ctx, userID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/import")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		var req struct {
			Transactions []domain.TransactionInput `json:"transactions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.ImportTransactions(ctx, userID, req.Transactions)
		if err != nil {
			// Rows committed before the failure stay committed; surface
			// the error, the client can inspect the counts on retry.
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}
