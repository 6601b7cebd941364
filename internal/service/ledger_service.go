package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService implements transaction writes: single adds with their
// optional purchase satellite, partial edits with optimistic caching and
// background mirroring, deletes with linked-purchase cleanup, and bulk
// imports.
type LedgerService struct {
	ledger      port.LedgerStore
	accounts    port.AccountStore
	purchases   port.PurchaseStore
	attachments port.AttachmentStore
	objects     port.ObjectStore
	audit       port.AuditLogger
	state       *StateCache
	metrics     *observability.Metrics
	logger      *zap.Logger
	batchSize   int
}

// NewLedgerService creates a LedgerService. batchSize bounds the number
// of concurrent inserts per import wave.
func NewLedgerService(
	ledger port.LedgerStore,
	accounts port.AccountStore,
	purchases port.PurchaseStore,
	attachments port.AttachmentStore,
	objects port.ObjectStore,
	audit port.AuditLogger,
	state *StateCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
	batchSize int,
) *LedgerService {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &LedgerService{
		ledger:      ledger,
		accounts:    accounts,
		purchases:   purchases,
		attachments: attachments,
		objects:     objects,
		audit:       audit,
		state:       state,
		metrics:     metrics,
		logger:      logger,
		batchSize:   batchSize,
	}
}

// ============================================================
// Reads
// ============================================================

// ListTransactions returns the user's transactions, newest first, served
// from cache when warm.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("list_transactions", time.Since(start))
	}()

	// Custom limits bypass the cache; the default window is what edits
	// keep optimistically up to date.
	if limit <= 0 {
		if cached, ok := s.state.Transactions(userID); ok {
			s.metrics.IncrCacheHit("transactions")
			return cached, nil
		}
		s.metrics.IncrCacheMiss("transactions")
	}

	transactions, err := s.ledger.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		s.state.SetTransactions(userID, transactions)
	}
	return transactions, nil
}

// ============================================================
// Add
// ============================================================

// AddTransaction inserts one ledger row. When the row is an expense in a
// purchase category and purchase details are supplied, a linked purchase
// record (plus attachments) is created best-effort after the insert: a
// satellite failure never fails the transaction.
func (s *LedgerService) AddTransaction(ctx context.Context, userID string, input domain.TransactionInput, details *domain.PurchaseDetails) (*domain.CreatedTransaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AddTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transaction.type", input.Type),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("add_transaction", time.Since(start))
	}()

	if err := validateTransactionInput(input); err != nil {
		return nil, err
	}

	humanID := input.TransactionID
	if humanID == "" {
		humanID = domain.GenerateTransactionID()
	}

	fields := map[string]any{
		"account_id":     input.AccountID,
		"amount":         input.Amount,
		"type":           input.Type,
		"category":       input.Category,
		"description":    input.Description,
		"date":           input.Date,
		"transaction_id": humanID,
	}
	if len(input.Tags) > 0 {
		fields["tags"] = input.Tags
	}
	if input.DonationAmount != nil {
		fields["donation_amount"] = *input.DonationAmount
	}
	if input.IsRecurring {
		fields["is_recurring"] = true
		fields["recurring_frequency"] = input.RecurringFrequency
	}

	tx, err := s.ledger.InsertTransaction(ctx, userID, fields)
	if err != nil {
		s.metrics.IncrLedgerWrite("transaction", "error")
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}
	s.metrics.IncrLedgerWrite("transaction", "success")

	if input.Type == "expense" && details != nil && s.isPurchaseCategory(ctx, userID, input.Category) {
		s.createLinkedPurchase(ctx, userID, tx, input, details)
	}

	s.state.InvalidateTransactions(userID)
	s.state.InvalidateAccounts(userID)

	return &domain.CreatedTransaction{ID: tx.ID, TransactionID: tx.TransactionID}, nil
}

func validateTransactionInput(input domain.TransactionInput) error {
	if input.AccountID == "" {
		return &domain.ErrValidation{Field: "account_id", Message: "account is required"}
	}
	if input.Amount <= 0 {
		return &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if input.Type != "income" && input.Type != "expense" {
		return &domain.ErrValidation{Field: "type", Message: "type must be income or expense"}
	}
	if input.Date == "" {
		return &domain.ErrValidation{Field: "date", Message: "date is required"}
	}
	return nil
}

// isPurchaseCategory reports whether the category matches one of the
// user's purchase categories. Lookup failures disable the satellite
// write rather than failing the transaction.
func (s *LedgerService) isPurchaseCategory(ctx context.Context, userID, category string) bool {
	if category == "" {
		return false
	}
	categories, err := s.purchases.ListPurchaseCategories(ctx, userID)
	if err != nil {
		s.logger.Warn("purchase category lookup failed, skipping satellite",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	for _, c := range categories {
		if c.CategoryName == category {
			return true
		}
	}
	return false
}

// createLinkedPurchase writes the purchase satellite for an expense
// transaction. Every failure here is logged and swallowed.
func (s *LedgerService) createLinkedPurchase(ctx context.Context, userID string, tx *domain.Transaction, input domain.TransactionInput, details *domain.PurchaseDetails) {
	currency := "USD"
	if account, err := s.accounts.GetAccount(ctx, userID, input.AccountID); err == nil {
		currency = account.Currency
	}

	itemName := input.Description
	if itemName == "" {
		itemName = "Purchase"
	}
	priority := details.Priority
	if priority == "" {
		priority = "medium"
	}

	purchase, err := s.purchases.InsertPurchase(ctx, userID, map[string]any{
		"transaction_id": tx.TransactionID,
		"item_name":      itemName,
		"category":       input.Category,
		"price":          input.Amount,
		"purchase_date":  input.Date,
		"status":         "purchased",
		"priority":       priority,
		"notes":          details.Notes,
		"currency":       currency,
		"account_id":     input.AccountID,
	})
	if err != nil {
		s.logger.Error("linked purchase insert failed",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		return
	}

	for _, att := range details.Attachments {
		if err := uploadAttachment(ctx, s.objects, s.attachments, purchase.ID, att); err != nil {
			s.logger.Error("attachment upload failed",
				zap.String("purchase_id", purchase.ID),
				zap.String("file_name", att.FileName),
				zap.Error(err),
			)
		}
	}

	s.state.InvalidatePurchases(userID)
}

// ============================================================
// Update
// ============================================================

// UpdateTransaction applies a partial edit. The cached list is patched
// optimistically before the write and rolled back if it fails; the ref
// read and the patch run concurrently. Purchase mirroring (including
// priority/notes when details are supplied) and account invalidation run
// in the background after commit.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, partial domain.TransactionUpdate, details *domain.PurchaseDetails) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("update_transaction", time.Since(start))
	}()

	fields := transactionUpdateFields(partial)
	if len(fields) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	snapshot, hadCache := s.state.Transactions(userID)
	if hadCache {
		s.state.SetTransactions(userID, applyTransactionUpdate(snapshot, id, partial))
	}

	var (
		ref     *domain.TransactionRef
		updated *domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.ledger.GetTransactionRef(gctx, userID, id)
		if err != nil {
			return err
		}
		ref = r
		return nil
	})
	g.Go(func() error {
		tx, err := s.ledger.UpdateTransaction(gctx, userID, id, fields)
		if err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err := g.Wait(); err != nil {
		if hadCache {
			s.state.SetTransactions(userID, snapshot)
		}
		s.metrics.IncrLedgerWrite("transaction_update", "error")
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}
	s.metrics.IncrLedgerWrite("transaction_update", "success")

	// Replace the optimistic row with the authoritative representation.
	if hadCache {
		if cached, ok := s.state.Transactions(userID); ok {
			s.state.SetTransactions(userID, replaceTransaction(cached, *updated))
		}
	}

	bg := context.WithoutCancel(ctx)
	go s.mirrorTransactionUpdate(bg, userID, ref, partial, details)

	return updated, nil
}

// mirrorTransactionUpdate propagates an edit onto linked purchases and
// invalidates dependent caches. Runs after the transaction edit has
// committed; failures are logged, never surfaced.
func (s *LedgerService) mirrorTransactionUpdate(ctx context.Context, userID string, ref *domain.TransactionRef, partial domain.TransactionUpdate, details *domain.PurchaseDetails) {
	mirror := map[string]any{}
	if partial.Amount != nil {
		mirror["price"] = *partial.Amount
	}
	if partial.Category != nil {
		mirror["category"] = *partial.Category
	}
	if partial.Description != nil {
		mirror["item_name"] = *partial.Description
	}
	if partial.Date != nil {
		mirror["purchase_date"] = *partial.Date
	}
	if partial.AccountID != nil {
		mirror["account_id"] = *partial.AccountID
	}
	if details != nil {
		if details.Priority != "" {
			mirror["priority"] = details.Priority
		}
		if details.Notes != "" {
			mirror["notes"] = details.Notes
		}
	}

	if len(mirror) > 0 {
		if err := s.purchases.UpdatePurchasesByTransactionID(ctx, userID, ref.ID, mirror); err != nil {
			s.logger.Error("purchase mirror update failed",
				zap.String("transaction_id", ref.ID),
				zap.Error(err),
			)
		}
	}

	// Purchases track expense rows only; accounts depend on the amount and
	// the account the row sits in.
	wasExpense := ref.Type == "expense"
	nowExpense := wasExpense
	if partial.Type != nil {
		nowExpense = *partial.Type == "expense"
	}
	if wasExpense || nowExpense {
		s.state.InvalidatePurchases(userID)
	}
	if partial.Amount != nil || partial.AccountID != nil {
		s.state.InvalidateAccounts(userID)
	}
}

func transactionUpdateFields(partial domain.TransactionUpdate) map[string]any {
	fields := map[string]any{}
	if partial.AccountID != nil {
		fields["account_id"] = *partial.AccountID
	}
	if partial.Amount != nil {
		fields["amount"] = *partial.Amount
	}
	if partial.Type != nil {
		fields["type"] = *partial.Type
	}
	if partial.Category != nil {
		fields["category"] = *partial.Category
	}
	if partial.Description != nil {
		fields["description"] = *partial.Description
	}
	if partial.Date != nil {
		fields["date"] = *partial.Date
	}
	if partial.Tags != nil {
		fields["tags"] = partial.Tags
	}
	return fields
}

// applyTransactionUpdate returns a copy of the list with the partial
// applied to the matching row.
func applyTransactionUpdate(list []domain.Transaction, id string, partial domain.TransactionUpdate) []domain.Transaction {
	out := make([]domain.Transaction, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if partial.AccountID != nil {
			out[i].AccountID = *partial.AccountID
		}
		if partial.Amount != nil {
			out[i].Amount = *partial.Amount
		}
		if partial.Type != nil {
			out[i].Type = *partial.Type
		}
		if partial.Category != nil {
			out[i].Category = *partial.Category
		}
		if partial.Description != nil {
			out[i].Description = *partial.Description
		}
		if partial.Date != nil {
			out[i].Date = *partial.Date
		}
		if partial.Tags != nil {
			out[i].Tags = partial.Tags
		}
		break
	}
	return out
}

func replaceTransaction(list []domain.Transaction, tx domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == tx.ID {
			out[i] = tx
			break
		}
	}
	return out
}

// ============================================================
// Delete
// ============================================================

// DeleteTransaction removes a ledger row and any purchases linked to its
// human id. The two deletes are sequential with no transaction boundary:
// a purchase cleanup that succeeds before a failing row delete stays
// deleted.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("delete_transaction", time.Since(start))
	}()

	ref, err := s.ledger.GetTransactionRef(ctx, userID, id)
	if err != nil {
		// Row lookup failing is not fatal: proceed with the delete so a
		// retried request can still clear the row.
		s.logger.Warn("transaction ref lookup failed before delete",
			zap.String("transaction.id", id),
			zap.Error(err),
		)
	}

	if ref != nil && ref.TransactionID != "" {
		if err := s.purchases.DeletePurchasesByTransactionID(ctx, userID, ref.TransactionID); err != nil {
			return err
		}
	}

	if err := s.ledger.DeleteTransaction(ctx, userID, id); err != nil {
		s.metrics.IncrLedgerWrite("transaction_delete", "error")
		return err
	}
	s.metrics.IncrLedgerWrite("transaction_delete", "success")

	s.state.InvalidateTransactions(userID)
	s.state.InvalidateAccounts(userID)
	s.state.InvalidatePurchases(userID)

	if err := s.audit.LogActivity(ctx, &domain.ActivityLog{
		UserID:       userID,
		ActivityType: domain.ActivityTransactionDeleted,
		EntityType:   "transaction",
		EntityID:     id,
		Description:  "Transaction deleted",
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}

	return nil
}

// ============================================================
// Bulk import
// ============================================================

// ImportTransactions inserts rows in fixed-size concurrent waves. Each
// row gets its own human id. A failing row is counted and skipped, not
// retried; a plan-limit rejection aborts the remaining waves since every
// further insert would hit the same quota. Committed rows stay committed
// and are reported in the result.
func (s *LedgerService) ImportTransactions(ctx context.Context, userID string, rows []domain.TransactionInput) (*domain.ImportResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ImportTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("import.rows", len(rows)),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("import_transactions", time.Since(start))
	}()

	if len(rows) == 0 {
		return nil, &domain.ErrValidation{Field: "transactions", Message: "no rows to import"}
	}
	for _, row := range rows {
		if err := validateTransactionInput(row); err != nil {
			return nil, err
		}
	}

	var imported atomic.Int64
	var limitErr error
	for offset := 0; offset < len(rows); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, row := range rows[offset:end] {
			row := row
			g.Go(func() error {
				humanID := row.TransactionID
				if humanID == "" {
					humanID = domain.GenerateTransactionID()
				}
				_, err := s.ledger.InsertTransaction(gctx, userID, map[string]any{
					"account_id":     row.AccountID,
					"amount":         row.Amount,
					"type":           row.Type,
					"category":       row.Category,
					"description":    row.Description,
					"date":           row.Date,
					"transaction_id": humanID,
				})
				if err != nil {
					if pl := domain.ClassifyPlanLimit(err); pl != nil {
						return pl
					}
					s.logger.Warn("import row failed",
						zap.String("user_id", userID),
						zap.Error(err),
					)
					return nil
				}
				imported.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			limitErr = err
			break
		}
	}

	if imported.Load() > 0 {
		s.state.InvalidateTransactions(userID)
		s.state.InvalidateAccounts(userID)
	}

	result := &domain.ImportResult{
		Imported: int(imported.Load()),
		Failed:   len(rows) - int(imported.Load()),
	}
	if limitErr != nil {
		s.metrics.IncrLedgerWrite("import", "error")
		if pl := domain.ClassifyPlanLimit(limitErr); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return result, pl
		}
		return result, limitErr
	}
	s.metrics.IncrLedgerWrite("import", "success")
	return result, nil
}

// uploadAttachment stores the file bytes then inserts the metadata row.
// Shared by the ledger and purchase services.
func uploadAttachment(ctx context.Context, objects port.ObjectStore, attachments port.AttachmentStore, purchaseID string, input domain.AttachmentInput) error {
	path := attachmentPath(purchaseID, input.FileName)
	if err := objects.Upload(ctx, path, input.MimeType, input.Data); err != nil {
		return err
	}
	_, err := attachments.InsertAttachment(ctx, map[string]any{
		"purchase_id": purchaseID,
		"file_name":   input.FileName,
		"file_path":   path,
		"file_size":   int64(len(input.Data)),
		"mime_type":   input.MimeType,
	})
	return err
}
