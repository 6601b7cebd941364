package service

import (
	"context"
	"time"

	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/infra/cache"
)

// Function-field fakes for the store ports. Tests set only the
// functions they need; unset functions return zero values.

type fakeLedgerStore struct {
	listTransactions     func(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	getTransactionRef    func(ctx context.Context, userID, id string) (*domain.TransactionRef, error)
	insertTransaction    func(ctx context.Context, userID string, fields map[string]any) (*domain.Transaction, error)
	updateTransaction    func(ctx context.Context, userID, id string, fields map[string]any) (*domain.Transaction, error)
	deleteTransaction    func(ctx context.Context, userID, id string) error
	updateByHumanID      func(ctx context.Context, userID, humanID string, fields map[string]any) error
	deleteByHumanID      func(ctx context.Context, userID, humanID string) error
	deleteByTags         func(ctx context.Context, userID string, tags []string) error
	deleteByAccount      func(ctx context.Context, userID, accountID string) error
	insertDPSTransfer    func(ctx context.Context, row *domain.DPSTransfer) error
}

func (f *fakeLedgerStore) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if f.listTransactions != nil {
		return f.listTransactions(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakeLedgerStore) GetTransactionRef(ctx context.Context, userID, id string) (*domain.TransactionRef, error) {
	if f.getTransactionRef != nil {
		return f.getTransactionRef(ctx, userID, id)
	}
	return &domain.TransactionRef{ID: id}, nil
}

func (f *fakeLedgerStore) InsertTransaction(ctx context.Context, userID string, fields map[string]any) (*domain.Transaction, error) {
	if f.insertTransaction != nil {
		return f.insertTransaction(ctx, userID, fields)
	}
	return &domain.Transaction{ID: "tx-1"}, nil
}

func (f *fakeLedgerStore) UpdateTransaction(ctx context.Context, userID, id string, fields map[string]any) (*domain.Transaction, error) {
	if f.updateTransaction != nil {
		return f.updateTransaction(ctx, userID, id, fields)
	}
	return &domain.Transaction{ID: id}, nil
}

func (f *fakeLedgerStore) DeleteTransaction(ctx context.Context, userID, id string) error {
	if f.deleteTransaction != nil {
		return f.deleteTransaction(ctx, userID, id)
	}
	return nil
}

func (f *fakeLedgerStore) UpdateTransactionByHumanID(ctx context.Context, userID, humanID string, fields map[string]any) error {
	if f.updateByHumanID != nil {
		return f.updateByHumanID(ctx, userID, humanID, fields)
	}
	return nil
}

func (f *fakeLedgerStore) DeleteTransactionByHumanID(ctx context.Context, userID, humanID string) error {
	if f.deleteByHumanID != nil {
		return f.deleteByHumanID(ctx, userID, humanID)
	}
	return nil
}

func (f *fakeLedgerStore) DeleteTransactionsByTags(ctx context.Context, userID string, tags []string) error {
	if f.deleteByTags != nil {
		return f.deleteByTags(ctx, userID, tags)
	}
	return nil
}

func (f *fakeLedgerStore) DeleteTransactionsByAccount(ctx context.Context, userID, accountID string) error {
	if f.deleteByAccount != nil {
		return f.deleteByAccount(ctx, userID, accountID)
	}
	return nil
}

func (f *fakeLedgerStore) InsertDPSTransfer(ctx context.Context, row *domain.DPSTransfer) error {
	if f.insertDPSTransfer != nil {
		return f.insertDPSTransfer(ctx, row)
	}
	return nil
}

type fakeAccountStore struct {
	listAccounts      func(ctx context.Context, userID string) ([]domain.Account, error)
	getAccount        func(ctx context.Context, userID, accountID string) (*domain.Account, error)
	createAccount     func(ctx context.Context, userID string, fields map[string]any) (*domain.Account, error)
	updateAccount     func(ctx context.Context, userID, accountID string, fields map[string]any) error
	deleteAccount     func(ctx context.Context, userID, accountID string) error
	updateBalance     func(ctx context.Context, userID, accountID string, newBalance float64) error
	createCashAccount func(ctx context.Context, userID, currency string) (string, error)
}

func (f *fakeAccountStore) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	if f.listAccounts != nil {
		return f.listAccounts(ctx, userID)
	}
	return nil, nil
}

func (f *fakeAccountStore) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	if f.getAccount != nil {
		return f.getAccount(ctx, userID, accountID)
	}
	return &domain.Account{ID: accountID, Currency: "USD"}, nil
}

func (f *fakeAccountStore) CreateAccount(ctx context.Context, userID string, fields map[string]any) (*domain.Account, error) {
	if f.createAccount != nil {
		return f.createAccount(ctx, userID, fields)
	}
	return &domain.Account{ID: "acc-new"}, nil
}

func (f *fakeAccountStore) UpdateAccount(ctx context.Context, userID, accountID string, fields map[string]any) error {
	if f.updateAccount != nil {
		return f.updateAccount(ctx, userID, accountID, fields)
	}
	return nil
}

func (f *fakeAccountStore) DeleteAccount(ctx context.Context, userID, accountID string) error {
	if f.deleteAccount != nil {
		return f.deleteAccount(ctx, userID, accountID)
	}
	return nil
}

func (f *fakeAccountStore) UpdateAccountBalance(ctx context.Context, userID, accountID string, newBalance float64) error {
	if f.updateBalance != nil {
		return f.updateBalance(ctx, userID, accountID, newBalance)
	}
	return nil
}

func (f *fakeAccountStore) CreateCashAccount(ctx context.Context, userID, currency string) (string, error) {
	if f.createCashAccount != nil {
		return f.createCashAccount(ctx, userID, currency)
	}
	return "acc-cash", nil
}

type fakePurchaseStore struct {
	listPurchases   func(ctx context.Context, userID string, limit int) ([]domain.Purchase, error)
	getPurchase     func(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error)
	insertPurchase  func(ctx context.Context, userID string, fields map[string]any) (*domain.Purchase, error)
	updatePurchase  func(ctx context.Context, userID, purchaseID string, fields map[string]any) error
	deletePurchase  func(ctx context.Context, userID, purchaseID string) error
	updateByTxID    func(ctx context.Context, userID, transactionID string, fields map[string]any) error
	deleteByHumanID func(ctx context.Context, userID, humanID string) error
	listCategories  func(ctx context.Context, userID string) ([]domain.PurchaseCategory, error)
}

func (f *fakePurchaseStore) ListPurchases(ctx context.Context, userID string, limit int) ([]domain.Purchase, error) {
	if f.listPurchases != nil {
		return f.listPurchases(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakePurchaseStore) GetPurchase(ctx context.Context, userID, purchaseID string) (*domain.Purchase, error) {
	if f.getPurchase != nil {
		return f.getPurchase(ctx, userID, purchaseID)
	}
	return &domain.Purchase{ID: purchaseID}, nil
}

func (f *fakePurchaseStore) InsertPurchase(ctx context.Context, userID string, fields map[string]any) (*domain.Purchase, error) {
	if f.insertPurchase != nil {
		return f.insertPurchase(ctx, userID, fields)
	}
	return &domain.Purchase{ID: "pur-1"}, nil
}

func (f *fakePurchaseStore) UpdatePurchase(ctx context.Context, userID, purchaseID string, fields map[string]any) error {
	if f.updatePurchase != nil {
		return f.updatePurchase(ctx, userID, purchaseID, fields)
	}
	return nil
}

func (f *fakePurchaseStore) DeletePurchase(ctx context.Context, userID, purchaseID string) error {
	if f.deletePurchase != nil {
		return f.deletePurchase(ctx, userID, purchaseID)
	}
	return nil
}

func (f *fakePurchaseStore) UpdatePurchasesByTransactionID(ctx context.Context, userID, transactionID string, fields map[string]any) error {
	if f.updateByTxID != nil {
		return f.updateByTxID(ctx, userID, transactionID, fields)
	}
	return nil
}

func (f *fakePurchaseStore) DeletePurchasesByTransactionID(ctx context.Context, userID, humanID string) error {
	if f.deleteByHumanID != nil {
		return f.deleteByHumanID(ctx, userID, humanID)
	}
	return nil
}

func (f *fakePurchaseStore) ListPurchaseCategories(ctx context.Context, userID string) ([]domain.PurchaseCategory, error) {
	if f.listCategories != nil {
		return f.listCategories(ctx, userID)
	}
	return nil, nil
}

type fakeAttachmentStore struct {
	listAttachments  func(ctx context.Context, purchaseID string) ([]domain.PurchaseAttachment, error)
	getAttachment    func(ctx context.Context, attachmentID string) (*domain.PurchaseAttachment, error)
	insertAttachment func(ctx context.Context, fields map[string]any) (*domain.PurchaseAttachment, error)
	deleteAttachment func(ctx context.Context, attachmentID string) error
}

func (f *fakeAttachmentStore) ListAttachments(ctx context.Context, purchaseID string) ([]domain.PurchaseAttachment, error) {
	if f.listAttachments != nil {
		return f.listAttachments(ctx, purchaseID)
	}
	return nil, nil
}

func (f *fakeAttachmentStore) GetAttachment(ctx context.Context, attachmentID string) (*domain.PurchaseAttachment, error) {
	if f.getAttachment != nil {
		return f.getAttachment(ctx, attachmentID)
	}
	return &domain.PurchaseAttachment{ID: attachmentID}, nil
}

func (f *fakeAttachmentStore) InsertAttachment(ctx context.Context, fields map[string]any) (*domain.PurchaseAttachment, error) {
	if f.insertAttachment != nil {
		return f.insertAttachment(ctx, fields)
	}
	return &domain.PurchaseAttachment{ID: "att-1"}, nil
}

func (f *fakeAttachmentStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if f.deleteAttachment != nil {
		return f.deleteAttachment(ctx, attachmentID)
	}
	return nil
}

type fakeObjectStore struct {
	upload func(ctx context.Context, path, mimeType string, data []byte) error
	remove func(ctx context.Context, path string) error
}

func (f *fakeObjectStore) Upload(ctx context.Context, path, mimeType string, data []byte) error {
	if f.upload != nil {
		return f.upload(ctx, path, mimeType, data)
	}
	return nil
}

func (f *fakeObjectStore) Remove(ctx context.Context, path string) error {
	if f.remove != nil {
		return f.remove(ctx, path)
	}
	return nil
}

func (f *fakeObjectStore) PublicURL(path string) string {
	return "https://storage.test/" + path
}

type fakeDonationStore struct {
	listRecords  func(ctx context.Context, userID string) ([]domain.DonationSavingRecord, error)
	getRecord    func(ctx context.Context, userID, recordID string) (*domain.DonationSavingRecord, error)
	updateRecord func(ctx context.Context, userID, recordID string, fields map[string]any) error
	deleteRecord func(ctx context.Context, userID, recordID string) error
}

func (f *fakeDonationStore) ListDonationRecords(ctx context.Context, userID string) ([]domain.DonationSavingRecord, error) {
	if f.listRecords != nil {
		return f.listRecords(ctx, userID)
	}
	return nil, nil
}

func (f *fakeDonationStore) GetDonationRecord(ctx context.Context, userID, recordID string) (*domain.DonationSavingRecord, error) {
	if f.getRecord != nil {
		return f.getRecord(ctx, userID, recordID)
	}
	return &domain.DonationSavingRecord{ID: recordID}, nil
}

func (f *fakeDonationStore) UpdateDonationRecord(ctx context.Context, userID, recordID string, fields map[string]any) error {
	if f.updateRecord != nil {
		return f.updateRecord(ctx, userID, recordID, fields)
	}
	return nil
}

func (f *fakeDonationStore) DeleteDonationRecord(ctx context.Context, userID, recordID string) error {
	if f.deleteRecord != nil {
		return f.deleteRecord(ctx, userID, recordID)
	}
	return nil
}

type fakeAuditLogger struct {
	entries []domain.ActivityLog
}

func (f *fakeAuditLogger) LogActivity(_ context.Context, entry *domain.ActivityLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func newTestState() *StateCache {
	return NewStateCache(
		cache.New[[]domain.Transaction](time.Minute),
		cache.New[[]domain.Account](time.Minute),
		cache.New[[]domain.Purchase](time.Minute),
	)
}
