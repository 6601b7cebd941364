package handler

import (
	"net/http"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the service-layer dependencies the router wires up.
type Services struct {
	Ledger    *service.LedgerService
	Transfers *service.TransferService
	Purchases *service.PurchaseService
	Accounts  *service.AccountService
	Donations *service.DonationService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 requires a valid Supabase JWT.
func NewRouter(svcs Services, jwtSecret string, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Accounts, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 (protected) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, logger))

		// =============================================
		// Transactions
		// =============================================
		r.Get("/transactions", listTransactionsHandler(svcs.Ledger, logger))
		r.Post("/transactions", addTransactionHandler(svcs.Ledger, logger))
		r.Post("/transactions/import", importTransactionsHandler(svcs.Ledger, logger))
		r.Patch("/transactions/{transactionId}", updateTransactionHandler(svcs.Ledger, logger))
		r.Delete("/transactions/{transactionId}", deleteTransactionHandler(svcs.Ledger, logger))

		// =============================================
		// Transfers
		// =============================================
		r.Post("/transfers", transferHandler(svcs.Transfers, logger))
		r.Post("/transfers/dps", dpsTransferHandler(svcs.Transfers, logger))

		// =============================================
		// Purchases & attachments
		// =============================================
		r.Get("/purchases", listPurchasesHandler(svcs.Purchases, logger))
		r.Post("/purchases", addPurchaseHandler(svcs.Purchases, logger))
		r.Get("/purchases/categories", listPurchaseCategoriesHandler(svcs.Purchases, logger))
		r.Get("/purchases/{purchaseId}", getPurchaseHandler(svcs.Purchases, logger))
		r.Patch("/purchases/{purchaseId}", updatePurchaseHandler(svcs.Purchases, logger))
		r.Delete("/purchases/{purchaseId}", deletePurchaseHandler(svcs.Purchases, logger))
		r.Get("/purchases/{purchaseId}/attachments", listAttachmentsHandler(svcs.Purchases, logger))
		r.Post("/purchases/{purchaseId}/attachments", uploadAttachmentHandler(svcs.Purchases, logger))
		r.Delete("/attachments/{attachmentId}", deleteAttachmentHandler(svcs.Purchases, logger))

		// =============================================
		// Accounts
		// =============================================
		r.Get("/accounts", listAccountsHandler(svcs.Accounts, logger))
		r.Post("/accounts", createAccountHandler(svcs.Accounts, logger))
		r.Post("/accounts/default-cash", ensureDefaultCashHandler(svcs.Accounts, logger))
		r.Get("/accounts/{accountId}", getAccountHandler(svcs.Accounts, logger))
		r.Patch("/accounts/{accountId}", updateAccountHandler(svcs.Accounts, logger))
		r.Delete("/accounts/{accountId}", deleteAccountHandler(svcs.Accounts, logger))
		r.Post("/accounts/{accountId}/position", reorderAccountHandler(svcs.Accounts, logger))

		// =============================================
		// Donation / saving records
		// =============================================
		r.Get("/donations", listDonationsHandler(svcs.Donations, logger))
		r.Post("/donations/{recordId}/toggle", toggleDonationHandler(svcs.Donations, logger))
		r.Delete("/donations/{recordId}", deleteDonationHandler(svcs.Donations, logger))
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(accountSvc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		status := "healthy"
		var latency int64
		if accountSvc != nil {
			start := time.Now()
			if _, err := accountSvc.ListAccounts(ctx, "health-check"); err != nil {
				status = "degraded"
				logger.Warn("healthz: backend check failed", zap.Error(err))
			}
			latency = time.Since(start).Milliseconds()
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"services": []map[string]any{
				{"name": "balanze-ledger", "status": "healthy", "last_checked": now},
				{"name": "supabase", "status": status, "latency_ms": latency, "last_checked": now},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
