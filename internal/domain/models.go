// Package domain defines the core business entities for the Balanze ledger.
// These models are independent of external services and represent the
// canonical data structures used throughout the service.
package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// Account represents a user's money account. CalculatedBalance is a
// server-computed view (account_balances); the client never derives it.
type Account struct {
	ID                  string   `json:"id"`
	UserID              string   `json:"user_id"`
	Name                string   `json:"name"`
	Type                string   `json:"type"` // checking, savings, credit, cash, investment
	InitialBalance      float64  `json:"initial_balance"`
	CalculatedBalance   float64  `json:"calculated_balance"`
	Currency            string   `json:"currency"`
	IsActive            bool     `json:"isActive"`
	Position            int      `json:"position"`
	Description         string   `json:"description,omitempty"`
	HasDPS              bool     `json:"has_dps"`
	DPSType             string   `json:"dps_type,omitempty"`        // monthly, flexible
	DPSAmountType       string   `json:"dps_amount_type,omitempty"` // fixed, percentage
	DPSFixedAmount      float64  `json:"dps_fixed_amount,omitempty"`
	DPSSavingsAccountID *string  `json:"dps_savings_account_id,omitempty"`
	DonationPreference  *float64 `json:"donation_preference,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// AccountInput is the payload to create or update an account.
type AccountInput struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	InitialBalance     *float64 `json:"initial_balance,omitempty"`
	Currency           string   `json:"currency"`
	IsActive           *bool    `json:"isActive,omitempty"`
	Description        string   `json:"description,omitempty"`
	HasDPS             *bool    `json:"has_dps,omitempty"`
	DPSType            string   `json:"dps_type,omitempty"`
	DPSAmountType      string   `json:"dps_amount_type,omitempty"`
	DPSFixedAmount     *float64 `json:"dps_fixed_amount,omitempty"`
	DPSInitialBalance  *float64 `json:"dps_initial_balance,omitempty"`
	DonationPreference *float64 `json:"donation_preference,omitempty"`
	TransactionID      string   `json:"transaction_id,omitempty"`
}

// ============================================================
// Transactions
// ============================================================

// Transaction is a single ledger row. Amount is always stored positive;
// the sign is implied by Type. TransactionID is the client-visible human
// id (one letter + digits), distinct from the primary key.
type Transaction struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	AccountID            string    `json:"account_id"`
	Amount               float64   `json:"amount"`
	Type                 string    `json:"type"` // income, expense
	Category             string    `json:"category"`
	Description          string    `json:"description"`
	Date                 string    `json:"date"`
	TransactionID        string    `json:"transaction_id"`
	Tags                 []string  `json:"tags,omitempty"`
	BalanceAfterTransfer *float64  `json:"balance_after_transfer,omitempty"`
	TransferTime         string    `json:"transfer_time,omitempty"`
	DonationAmount       *float64  `json:"donation_amount,omitempty"`
	IsRecurring          bool      `json:"is_recurring,omitempty"`
	RecurringFrequency   string    `json:"recurring_frequency,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// TransactionInput is the payload to create a transaction.
type TransactionInput struct {
	AccountID          string   `json:"account_id"`
	Amount             float64  `json:"amount"`
	Type               string   `json:"type"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	Date               string   `json:"date"`
	TransactionID      string   `json:"transaction_id,omitempty"` // optional pre-generated human id
	Tags               []string `json:"tags,omitempty"`
	DonationAmount     *float64 `json:"donation_amount,omitempty"`
	IsRecurring        bool     `json:"is_recurring,omitempty"`
	RecurringFrequency string   `json:"recurring_frequency,omitempty"`
}

// TransactionUpdate is a partial update; nil fields are left untouched.
type TransactionUpdate struct {
	AccountID   *string  `json:"account_id,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Type        *string  `json:"type,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TransactionRef is the minimal projection read before dependent writes.
type TransactionRef struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`
}

// CreatedTransaction is returned by AddTransaction: primary key + human id.
type CreatedTransaction struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
}

// ImportResult summarizes a bulk transaction import.
type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// ============================================================
// Transfers
// ============================================================

// TransferRequest is the payload to move money between two owned accounts.
type TransferRequest struct {
	FromAccountID string  `json:"from_account_id"`
	ToAccountID   string  `json:"to_account_id"`
	FromAmount    float64 `json:"from_amount"`
	ExchangeRate  float64 `json:"exchange_rate"`
	Note          string  `json:"note,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

// DPSTransferRequest is the payload for an automatic-savings transfer.
type DPSTransferRequest struct {
	FromAccountID string  `json:"from_account_id"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

// TransferResult describes a committed transfer.
type TransferResult struct {
	TransferID       string  `json:"transfer_id"` // correlation id shared by both legs
	TransactionID    string  `json:"transaction_id"`
	FromAccountID    string  `json:"from_account_id"`
	ToAccountID      string  `json:"to_account_id"`
	FromAmount       float64 `json:"from_amount"`
	ToAmount         float64 `json:"to_amount"`
	FromBalanceAfter float64 `json:"from_balance_after"`
	ToBalanceAfter   float64 `json:"to_balance_after"`
	TransferTime     string  `json:"transfer_time"`
}

// DPSTransfer is a row in the dps_transfers ledger table.
type DPSTransfer struct {
	ID            string  `json:"id,omitempty"`
	UserID        string  `json:"user_id"`
	FromAccountID string  `json:"from_account_id"`
	ToAccountID   string  `json:"to_account_id"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	TransactionID string  `json:"transaction_id"`
}

// ============================================================
// Purchases
// ============================================================

// Purchase is a shopping record, optionally linked to a Transaction via
// the transaction's human id.
type Purchase struct {
	ID                     string    `json:"id"`
	UserID                 string    `json:"user_id"`
	TransactionID          *string   `json:"transaction_id,omitempty"`
	ItemName               string    `json:"item_name"`
	Category               string    `json:"category"`
	Price                  float64   `json:"price"`
	PurchaseDate           string    `json:"purchase_date"`
	Status                 string    `json:"status"` // planned, purchased, cancelled
	Priority               string    `json:"priority"`
	Notes                  string    `json:"notes,omitempty"`
	Currency               string    `json:"currency"`
	AccountID              string    `json:"account_id,omitempty"`
	ExcludeFromCalculation bool      `json:"exclude_from_calculation"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// PurchaseInput is the payload to create a purchase.
type PurchaseInput struct {
	ItemName               string  `json:"item_name"`
	Category               string  `json:"category"`
	Price                  float64 `json:"price"`
	PurchaseDate           string  `json:"purchase_date"`
	Status                 string  `json:"status"`
	Priority               string  `json:"priority,omitempty"`
	Notes                  string  `json:"notes,omitempty"`
	Currency               string  `json:"currency,omitempty"`
	AccountID              string  `json:"account_id,omitempty"`
	ExcludeFromCalculation bool    `json:"exclude_from_calculation"`
}

// PurchaseUpdate is a partial update; nil fields are left untouched.
type PurchaseUpdate struct {
	ItemName     *string  `json:"item_name,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	PurchaseDate *string  `json:"purchase_date,omitempty"`
	Status       *string  `json:"status,omitempty"`
	Priority     *string  `json:"priority,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
	AccountID    *string  `json:"account_id,omitempty"`
}

// PurchaseDetails carries the optional satellite data supplied when an
// expense transaction should also create a purchase record.
type PurchaseDetails struct {
	Priority    string            `json:"priority"`
	Notes       string            `json:"notes"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

// PurchaseCategory is a user-defined purchase category with a budget.
type PurchaseCategory struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	CategoryName  string  `json:"category_name"`
	MonthlyBudget float64 `json:"monthly_budget"`
	Currency      string  `json:"currency"`
}

// ============================================================
// Attachments
// ============================================================

// PurchaseAttachment is file metadata for a document attached to a purchase.
// The row is created only after its parent purchase exists.
type PurchaseAttachment struct {
	ID         string    `json:"id"`
	PurchaseID string    `json:"purchase_id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	MimeType   string    `json:"mime_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttachmentInput carries the bytes and metadata of a file to upload.
type AttachmentInput struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// ============================================================
// Donation / Saving records
// ============================================================

// DonationSavingRecord tracks a donation or saving allocation. Records
// with a non-nil TransactionID are ledger-linked and cannot be deleted
// directly; manual records (nil TransactionID) can.
type DonationSavingRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	Amount        float64   `json:"amount"`
	Mode          string    `json:"mode"` // fixed, percent
	ModeValue     float64   `json:"mode_value"`
	Status        string    `json:"status"` // pending, donated
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ============================================================
// Audit log
// ============================================================

// ActivityLog is a best-effort audit entry in activity_history.
type ActivityLog struct {
	ID           string         `json:"id,omitempty"`
	UserID       string         `json:"user_id"`
	ActivityType string         `json:"activity_type"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id,omitempty"`
	Description  string         `json:"description"`
	Details      map[string]any `json:"details,omitempty"`
}

// Activity types written by the services.
const (
	ActivityTransferCreated    = "TRANSFER_CREATED"
	ActivityDPSTransferCreated = "DPS_TRANSFER_CREATED"
	ActivityTransactionDeleted = "TRANSACTION_DELETED"
	ActivityPurchaseDeleted    = "PURCHASE_DELETED"
)

// ============================================================
// API response wrappers
// ============================================================

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
