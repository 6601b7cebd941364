// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
)

// Cache provides generic caching with TTL. DeletePrefix invalidates every
// key under a per-user namespace after a write.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}

// AccountStore defines account persistence. Implemented by the Supabase
// adapter (or any other persistence layer).
type AccountStore interface {
	// ListAccounts reads from the account_balances view: server-computed
	// balances, ordered by position then creation time.
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error)
	CreateAccount(ctx context.Context, userID string, fields map[string]any) (*domain.Account, error)
	UpdateAccount(ctx context.Context, userID, accountID string, fields map[string]any) error
	DeleteAccount(ctx context.Context, userID, accountID string) error
	// UpdateAccountBalance writes calculated_balance directly. Used only by
	// the transfer protocol; normal writes rely on the server-side view.
	UpdateAccountBalance(ctx context.Context, userID, accountID string, newBalance float64) error
	// CreateCashAccount calls the create_cash_account stored procedure used
	// once during onboarding.
	CreateCashAccount(ctx context.Context, userID, currency string) (string, error)
}

// LedgerStore defines transaction-row persistence.
type LedgerStore interface {
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	// GetTransactionRef reads the minimal projection (human id + account id)
	// needed before dependent writes.
	GetTransactionRef(ctx context.Context, userID, id string) (*domain.TransactionRef, error)
	InsertTransaction(ctx context.Context, userID string, fields map[string]any) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, fields map[string]any) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	// UpdateTransactionByHumanID / DeleteTransactionByHumanID address the
	// row through the client-visible human id, which is what purchases
	// store in their link column.
	UpdateTransactionByHumanID(ctx context.Context, userID, humanID string, fields map[string]any) error
	DeleteTransactionByHumanID(ctx context.Context, userID, humanID string) error
	// DeleteTransactionsByTags deletes every row whose tag array contains
	// all given tags. This is the compensation primitive for transfer legs.
	DeleteTransactionsByTags(ctx context.Context, userID string, tags []string) error
	// DeleteTransactionsByAccount wipes an account's history. Used when a
	// DPS savings account is recycled.
	DeleteTransactionsByAccount(ctx context.Context, userID, accountID string) error
	InsertDPSTransfer(ctx context.Context, row *domain.DPSTransfer) error
}

// PurchaseStore defines purchase and purchase-category persistence.
type PurchaseStore interface {
	ListPurchases(ctx context.Context, userID string, limit int) ([]domain.Purchase, error)
	GetPurchase(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error)
	InsertPurchase(ctx context.Context, userID string, fields map[string]any) (*domain.Purchase, error)
	UpdatePurchase(ctx context.Context, userID, purchaseID string, fields map[string]any) error
	DeletePurchase(ctx context.Context, userID, purchaseID string) error
	// UpdatePurchasesByTransactionID mirrors parent-transaction fields onto
	// every purchase linked to the given transaction primary key.
	UpdatePurchasesByTransactionID(ctx context.Context, userID, transactionID string, fields map[string]any) error
	// DeletePurchasesByTransactionID removes purchases linked to a
	// transaction's human id (the link column stores the human id).
	DeletePurchasesByTransactionID(ctx context.Context, userID, humanID string) error
	ListPurchaseCategories(ctx context.Context, userID string) ([]domain.PurchaseCategory, error)
}

// AttachmentStore defines purchase-attachment row persistence.
type AttachmentStore interface {
	ListAttachments(ctx context.Context, purchaseID string) ([]domain.PurchaseAttachment, error)
	GetAttachment(ctx context.Context, attachmentID string) (*domain.PurchaseAttachment, error)
	InsertAttachment(ctx context.Context, fields map[string]any) (*domain.PurchaseAttachment, error)
	DeleteAttachment(ctx context.Context, attachmentID string) error
}

// ObjectStore defines blob storage for attachment files.
type ObjectStore interface {
	Upload(ctx context.Context, path, mimeType string, data []byte) error
	Remove(ctx context.Context, path string) error
	PublicURL(path string) string
}

// DonationStore defines donation/saving record persistence.
type DonationStore interface {
	ListDonationRecords(ctx context.Context, userID string) ([]domain.DonationSavingRecord, error)
	GetDonationRecord(ctx context.Context, userID, recordID string) (*domain.DonationSavingRecord, error)
	UpdateDonationRecord(ctx context.Context, userID, recordID string, fields map[string]any) error
	DeleteDonationRecord(ctx context.Context, userID, recordID string) error
}

// AuditLogger writes best-effort audit entries. Implementations must never
// block the caller's success path; failures are logged and swallowed.
type AuditLogger interface {
	LogActivity(ctx context.Context, entry *domain.ActivityLog) error
}
