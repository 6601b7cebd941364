package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/observability"
	"github.com/shalconnects/balanze-ledger-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var purchaseTracer = otel.Tracer("service/purchase")

// maxAttachmentSize caps uploaded attachment files at 5 MiB.
const maxAttachmentSize = 5 * 1024 * 1024

// allowedAttachmentExts is the accepted attachment file extension set.
var allowedAttachmentExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// PurchaseService implements the shopping-record flows: purchases that
// spawn ledger transactions, edits mirrored onto linked transactions,
// and file attachments.
type PurchaseService struct {
	purchases   port.PurchaseStore
	ledger      port.LedgerStore
	accounts    port.AccountStore
	attachments port.AttachmentStore
	objects     port.ObjectStore
	audit       port.AuditLogger
	state       *StateCache
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewPurchaseService creates a PurchaseService.
func NewPurchaseService(
	purchases port.PurchaseStore,
	ledger port.LedgerStore,
	accounts port.AccountStore,
	attachments port.AttachmentStore,
	objects port.ObjectStore,
	audit port.AuditLogger,
	state *StateCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PurchaseService {
	return &PurchaseService{
		purchases:   purchases,
		ledger:      ledger,
		accounts:    accounts,
		attachments: attachments,
		objects:     objects,
		audit:       audit,
		state:       state,
		metrics:     metrics,
		logger:      logger,
	}
}

// ============================================================
// Reads
// ============================================================

// ListPurchases returns the user's purchases, newest first, served from
// cache when warm.
func (s *PurchaseService) ListPurchases(ctx context.Context, userID string, limit int) ([]domain.Purchase, error) {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.ListPurchases")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("list_purchases", time.Since(start))
	}()

	if limit <= 0 {
		if cached, ok := s.state.Purchases(userID); ok {
			s.metrics.IncrCacheHit("purchases")
			return cached, nil
		}
		s.metrics.IncrCacheMiss("purchases")
	}

	purchases, err := s.purchases.ListPurchases(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		s.state.SetPurchases(userID, purchases)
	}
	return purchases, nil
}

// GetPurchase returns a single purchase.
func (s *PurchaseService) GetPurchase(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error) {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.GetPurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	return s.purchases.GetPurchase(ctx, userID, purchaseID)
}

// ListPurchaseCategories returns the user's purchase categories.
func (s *PurchaseService) ListPurchaseCategories(ctx context.Context, userID string) ([]domain.PurchaseCategory, error) {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.ListPurchaseCategories")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.purchases.ListPurchaseCategories(ctx, userID)
}

// ============================================================
// Add
// ============================================================

// AddPurchase creates a purchase. A "purchased" record that counts
// toward balances first creates its expense transaction; if the
// purchase insert then fails, the transaction is compensated away so no
// orphaned expense survives.
func (s *PurchaseService) AddPurchase(ctx context.Context, userID string, input domain.PurchaseInput) (*domain.Purchase, error) {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.AddPurchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("purchase.status", input.Status),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("add_purchase", time.Since(start))
	}()

	if err := validatePurchaseInput(input); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"item_name":                input.ItemName,
		"category":                 input.Category,
		"price":                    input.Price,
		"purchase_date":            input.PurchaseDate,
		"status":                   input.Status,
		"priority":                 defaultPriority(input.Priority),
		"notes":                    input.Notes,
		"currency":                 input.Currency,
		"exclude_from_calculation": input.ExcludeFromCalculation,
	}
	if input.AccountID != "" {
		fields["account_id"] = input.AccountID
	}

	var createdTxID string
	if input.Status == "purchased" && !input.ExcludeFromCalculation {
		humanID, txID, err := s.createPurchaseTransaction(ctx, userID, input)
		if err != nil {
			return nil, err
		}
		fields["transaction_id"] = humanID
		createdTxID = txID
	}

	purchase, err := s.purchases.InsertPurchase(ctx, userID, fields)
	if err != nil {
		if createdTxID != "" {
			s.metrics.IncrCompensation("purchase")
			if delErr := s.ledger.DeleteTransaction(ctx, userID, createdTxID); delErr != nil {
				s.logger.Error("compensating transaction delete failed, orphaned expense",
					zap.String("transaction.id", createdTxID),
					zap.Error(delErr),
				)
			}
		}
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return nil, pl
		}
		return nil, err
	}

	s.state.InvalidatePurchases(userID)
	if createdTxID != "" {
		s.state.InvalidateTransactions(userID)
		s.state.InvalidateAccounts(userID)
	}

	return purchase, nil
}

// createPurchaseTransaction writes the expense row backing a purchased
// record and returns its human id and primary key.
func (s *PurchaseService) createPurchaseTransaction(ctx context.Context, userID string, input domain.PurchaseInput) (humanID, txID string, err error) {
	if input.AccountID == "" {
		return "", "", &domain.ErrValidation{Field: "account_id", Message: "account is required for purchased items"}
	}

	humanID = domain.GenerateTransactionID()
	date := input.PurchaseDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	tx, err := s.ledger.InsertTransaction(ctx, userID, map[string]any{
		"account_id":     input.AccountID,
		"amount":         input.Price,
		"type":           "expense",
		"category":       input.Category,
		"description":    input.ItemName,
		"date":           date,
		"transaction_id": humanID,
		"tags":           []string{"purchase"},
	})
	if err != nil {
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return "", "", pl
		}
		return "", "", err
	}
	return humanID, tx.ID, nil
}

func validatePurchaseInput(input domain.PurchaseInput) error {
	if input.ItemName == "" {
		return &domain.ErrValidation{Field: "item_name", Message: "item name is required"}
	}
	if input.Price < 0 {
		return &domain.ErrValidation{Field: "price", Message: "price must not be negative"}
	}
	switch input.Status {
	case "planned", "purchased", "cancelled":
	default:
		return &domain.ErrValidation{Field: "status", Message: "status must be planned, purchased or cancelled"}
	}
	return nil
}

func defaultPriority(p string) string {
	if p == "" {
		return "medium"
	}
	return p
}

// ============================================================
// Update
// ============================================================

// UpdatePurchase applies a partial edit. A planned record moving to
// purchased gains a backing expense transaction. Edits to an already
// linked purchase are mirrored onto the transaction best-effort: the
// mirror failing never fails the purchase edit.
func (s *PurchaseService) UpdatePurchase(ctx context.Context, userID, purchaseID string, partial domain.PurchaseUpdate) error {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.UpdatePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("update_purchase", time.Since(start))
	}()

	current, err := s.purchases.GetPurchase(ctx, userID, purchaseID)
	if err != nil {
		return err
	}

	fields := purchaseUpdateFields(partial)
	if len(fields) == 0 {
		return &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	becomingPurchased := partial.Status != nil && *partial.Status == "purchased" &&
		current.Status == "planned" && current.TransactionID == nil &&
		!current.ExcludeFromCalculation

	var createdTx bool
	if becomingPurchased {
		humanID, _, err := s.createPurchaseTransaction(ctx, userID, synthesizeInput(current, partial))
		if err != nil {
			return err
		}
		fields["transaction_id"] = humanID
		createdTx = true
	}

	if err := s.purchases.UpdatePurchase(ctx, userID, purchaseID, fields); err != nil {
		if pl := domain.ClassifyPlanLimit(err); pl != nil {
			s.metrics.IncrPlanLimit(pl.Code)
			return pl
		}
		return err
	}

	if current.TransactionID != nil && *current.TransactionID != "" {
		s.mirrorPurchaseUpdate(ctx, userID, *current.TransactionID, partial)
	}

	s.state.InvalidatePurchases(userID)
	if createdTx || current.TransactionID != nil {
		s.state.InvalidateTransactions(userID)
		s.state.InvalidateAccounts(userID)
	}

	return nil
}

// mirrorPurchaseUpdate propagates purchase edits onto the linked
// transaction. Failures are logged and swallowed.
func (s *PurchaseService) mirrorPurchaseUpdate(ctx context.Context, userID, linkedID string, partial domain.PurchaseUpdate) {
	mirror := map[string]any{}
	if partial.Price != nil {
		mirror["amount"] = *partial.Price
	}
	if partial.ItemName != nil {
		mirror["description"] = *partial.ItemName
	}
	if partial.Category != nil {
		mirror["category"] = *partial.Category
	}
	if partial.PurchaseDate != nil {
		mirror["date"] = *partial.PurchaseDate
	}
	if partial.AccountID != nil {
		mirror["account_id"] = *partial.AccountID
	}
	if len(mirror) == 0 {
		return
	}

	if err := s.ledger.UpdateTransactionByHumanID(ctx, userID, linkedID, mirror); err != nil {
		s.logger.Error("transaction mirror update failed",
			zap.String("transaction.human_id", linkedID),
			zap.Error(err),
		)
	}
}

// synthesizeInput builds the transaction-creating input for a planned
// purchase that is becoming purchased, preferring edited values over
// stored ones.
func synthesizeInput(current *domain.Purchase, partial domain.PurchaseUpdate) domain.PurchaseInput {
	input := domain.PurchaseInput{
		ItemName:     current.ItemName,
		Category:     current.Category,
		Price:        current.Price,
		PurchaseDate: current.PurchaseDate,
		Status:       "purchased",
		AccountID:    current.AccountID,
	}
	if partial.ItemName != nil {
		input.ItemName = *partial.ItemName
	}
	if partial.Category != nil {
		input.Category = *partial.Category
	}
	if partial.Price != nil {
		input.Price = *partial.Price
	}
	if partial.PurchaseDate != nil {
		input.PurchaseDate = *partial.PurchaseDate
	}
	if partial.AccountID != nil {
		input.AccountID = *partial.AccountID
	}
	return input
}

func purchaseUpdateFields(partial domain.PurchaseUpdate) map[string]any {
	fields := map[string]any{}
	if partial.ItemName != nil {
		fields["item_name"] = *partial.ItemName
	}
	if partial.Category != nil {
		fields["category"] = *partial.Category
	}
	if partial.Price != nil {
		fields["price"] = *partial.Price
	}
	if partial.PurchaseDate != nil {
		fields["purchase_date"] = *partial.PurchaseDate
	}
	if partial.Status != nil {
		fields["status"] = *partial.Status
	}
	if partial.Priority != nil {
		fields["priority"] = *partial.Priority
	}
	if partial.Notes != nil {
		fields["notes"] = *partial.Notes
	}
	if partial.AccountID != nil {
		fields["account_id"] = *partial.AccountID
	}
	return fields
}

// ============================================================
// Delete
// ============================================================

// DeletePurchase removes a purchase and, if one is linked, the backing
// transaction (matched by human id). The transaction delete failing
// after the purchase is gone is logged, not surfaced. Purchases with no
// link delete cleanly with no transaction side effects.
func (s *PurchaseService) DeletePurchase(ctx context.Context, userID, purchaseID string) error {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.DeletePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("delete_purchase", time.Since(start))
	}()

	current, err := s.purchases.GetPurchase(ctx, userID, purchaseID)
	if err != nil {
		return err
	}

	if err := s.purchases.DeletePurchase(ctx, userID, purchaseID); err != nil {
		return err
	}

	if current.TransactionID != nil && *current.TransactionID != "" {
		if err := s.ledger.DeleteTransactionByHumanID(ctx, userID, *current.TransactionID); err != nil {
			s.logger.Error("linked transaction delete failed",
				zap.String("transaction.human_id", *current.TransactionID),
				zap.Error(err),
			)
		}
		s.state.InvalidateTransactions(userID)
		s.state.InvalidateAccounts(userID)
	}

	s.state.InvalidatePurchases(userID)

	if err := s.audit.LogActivity(ctx, &domain.ActivityLog{
		UserID:       userID,
		ActivityType: domain.ActivityPurchaseDeleted,
		EntityType:   "purchase",
		EntityID:     purchaseID,
		Description:  "Purchase deleted: " + current.ItemName,
	}); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}

	return nil
}

// ============================================================
// Attachments
// ============================================================

// ListAttachments returns the attachment metadata rows for a purchase.
func (s *PurchaseService) ListAttachments(ctx context.Context, userID, purchaseID string) ([]domain.PurchaseAttachment, error) {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.ListAttachments")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", purchaseID))

	if _, err := s.purchases.GetPurchase(ctx, userID, purchaseID); err != nil {
		return nil, err
	}
	return s.attachments.ListAttachments(ctx, purchaseID)
}

// UploadAttachment validates, stores and records one attachment file.
// The metadata row is written only after the upload succeeds.
func (s *PurchaseService) UploadAttachment(ctx context.Context, userID, purchaseID string, input domain.AttachmentInput) (*domain.PurchaseAttachment, error) {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.UploadAttachment")
	defer span.End()
	span.SetAttributes(
		attribute.String("purchase.id", purchaseID),
		attribute.Int("attachment.size", len(input.Data)),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("upload_attachment", time.Since(start))
	}()

	if err := validateAttachment(input); err != nil {
		return nil, err
	}
	if _, err := s.purchases.GetPurchase(ctx, userID, purchaseID); err != nil {
		return nil, err
	}

	path := attachmentPath(purchaseID, input.FileName)
	if err := s.objects.Upload(ctx, path, input.MimeType, input.Data); err != nil {
		return nil, err
	}

	attachment, err := s.attachments.InsertAttachment(ctx, map[string]any{
		"purchase_id": purchaseID,
		"file_name":   input.FileName,
		"file_path":   path,
		"file_size":   int64(len(input.Data)),
		"mime_type":   input.MimeType,
	})
	if err != nil {
		// The stored object without its row is unreachable; try to
		// clean it up.
		if rmErr := s.objects.Remove(ctx, path); rmErr != nil {
			s.logger.Warn("orphaned attachment object",
				zap.String("path", path),
				zap.Error(rmErr),
			)
		}
		return nil, err
	}
	return attachment, nil
}

// DeleteAttachment removes the metadata row and then the stored object.
// A failing object removal is logged, not surfaced.
func (s *PurchaseService) DeleteAttachment(ctx context.Context, userID, attachmentID string) error {
	ctx, span := purchaseTracer.Start(ctx, "PurchaseService.DeleteAttachment")
	defer span.End()
	span.SetAttributes(attribute.String("attachment.id", attachmentID))

	attachment, err := s.attachments.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if _, err := s.purchases.GetPurchase(ctx, userID, attachment.PurchaseID); err != nil {
		return err
	}

	if err := s.attachments.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	if err := s.objects.Remove(ctx, attachment.FilePath); err != nil {
		s.logger.Warn("attachment object removal failed",
			zap.String("path", attachment.FilePath),
			zap.Error(err),
		)
	}
	return nil
}

// AttachmentURL returns the public download URL for a stored attachment.
func (s *PurchaseService) AttachmentURL(attachment *domain.PurchaseAttachment) string {
	return s.objects.PublicURL(attachment.FilePath)
}

func validateAttachment(input domain.AttachmentInput) error {
	if len(input.Data) == 0 {
		return &domain.ErrValidation{Field: "file", Message: "file is empty"}
	}
	if len(input.Data) > maxAttachmentSize {
		return &domain.ErrValidation{Field: "file", Message: "file exceeds the 5MB limit"}
	}
	ext := strings.ToLower(filepath.Ext(input.FileName))
	if !allowedAttachmentExts[ext] {
		return &domain.ErrValidation{Field: "file", Message: "file type not allowed"}
	}
	return nil
}

// attachmentPath builds the object key: one folder per purchase, a
// random file name, the original extension preserved.
func attachmentPath(purchaseID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return purchaseID + "/" + uuid.NewString() + ext
}
