package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Purchases
// ============================================================

func listPurchasesHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchases")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		purchases, err := svc.ListPurchases(ctx, userID, parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
	}
}

func getPurchaseHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchases/{purchaseId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		purchaseID := chi.URLParam(r, "purchaseId")
		span.SetAttributes(attribute.String("purchase.id", purchaseID))

		purchase, err := svc.GetPurchase(ctx, userID, purchaseID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, purchase)
	}
}

func listPurchaseCategoriesHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchases/categories")
		defer span.End()

		userID := UserIDFromContext(ctx)
		categories, err := svc.ListPurchaseCategories(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	}
}

func addPurchaseHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/purchases")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		var input domain.PurchaseInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		purchase, err := svc.AddPurchase(ctx, userID, input)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, purchase)
	}
}

func updatePurchaseHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/purchases/{purchaseId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		purchaseID := chi.URLParam(r, "purchaseId")
		span.SetAttributes(attribute.String("purchase.id", purchaseID))

		var partial domain.PurchaseUpdate
		if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdatePurchase(ctx, userID, purchaseID, partial); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "purchase updated", ID: purchaseID})
	}
}

func deletePurchaseHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/purchases/{purchaseId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		purchaseID := chi.URLParam(r, "purchaseId")
		span.SetAttributes(attribute.String("purchase.id", purchaseID))

		if err := svc.DeletePurchase(ctx, userID, purchaseID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Attachments
// ============================================================

func listAttachmentsHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/purchases/{purchaseId}/attachments")
		defer span.End()

		userID := UserIDFromContext(ctx)
		purchaseID := chi.URLParam(r, "purchaseId")
		span.SetAttributes(attribute.String("purchase.id", purchaseID))

		attachments, err := svc.ListAttachments(ctx, userID, purchaseID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		type attachmentResponse struct {
			domain.PurchaseAttachment
			URL string `json:"url"`
		}
		resp := make([]attachmentResponse, 0, len(attachments))
		for i := range attachments {
			resp = append(resp, attachmentResponse{
				PurchaseAttachment: attachments[i],
				URL:                svc.AttachmentURL(&attachments[i]),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"attachments": resp})
	}
}

func uploadAttachmentHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/purchases/{purchaseId}/attachments")
		defer span.End()

		userID := UserIDFromContext(ctx)
		purchaseID := chi.URLParam(r, "purchaseId")
		span.SetAttributes(attribute.String("purchase.id", purchaseID))

		// One megabyte of slack for the multipart envelope around the
		// 5MB payload cap enforced in the service.
		r.Body = http.MaxBytesReader(w, r.Body, 6*1024*1024)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read file")
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		attachment, err := svc.UploadAttachment(ctx, userID, purchaseID, domain.AttachmentInput{
			FileName: header.Filename,
			MimeType: mimeType,
			Data:     data,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, attachment)
	}
}

func deleteAttachmentHandler(svc *service.PurchaseService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/attachments/{attachmentId}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		attachmentID := chi.URLParam(r, "attachmentId")
		span.SetAttributes(attribute.String("attachment.id", attachmentID))

		if err := svc.DeleteAttachment(ctx, userID, attachmentID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
