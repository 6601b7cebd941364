package service

import (
	"github.com/shalconnects/balanze-ledger-go/internal/domain"
	"github.com/shalconnects/balanze-ledger-go/internal/port"
)

// StateCache holds the per-user cached collections the read endpoints
// serve from. Edits update it optimistically and roll back on failure;
// every other write invalidates the affected namespaces so the next
// read refetches from the backend.
type StateCache struct {
	transactions port.Cache[[]domain.Transaction]
	accounts     port.Cache[[]domain.Account]
	purchases    port.Cache[[]domain.Purchase]
}

// NewStateCache wires the three collection caches together.
func NewStateCache(
	transactions port.Cache[[]domain.Transaction],
	accounts port.Cache[[]domain.Account],
	purchases port.Cache[[]domain.Purchase],
) *StateCache {
	return &StateCache{
		transactions: transactions,
		accounts:     accounts,
		purchases:    purchases,
	}
}

func transactionsKey(userID string) string { return "transactions:" + userID }
func accountsKey(userID string) string     { return "accounts:" + userID }
func purchasesKey(userID string) string    { return "purchases:" + userID }

// Transactions returns the user's cached transaction list, if present.
func (s *StateCache) Transactions(userID string) ([]domain.Transaction, bool) {
	return s.transactions.Get(transactionsKey(userID))
}

// SetTransactions replaces the user's cached transaction list.
func (s *StateCache) SetTransactions(userID string, txs []domain.Transaction) {
	s.transactions.Set(transactionsKey(userID), txs)
}

// InvalidateTransactions drops every cached transaction entry for the user.
func (s *StateCache) InvalidateTransactions(userID string) {
	s.transactions.DeletePrefix(transactionsKey(userID))
}

// Accounts returns the user's cached account list, if present.
func (s *StateCache) Accounts(userID string) ([]domain.Account, bool) {
	return s.accounts.Get(accountsKey(userID))
}

// SetAccounts replaces the user's cached account list.
func (s *StateCache) SetAccounts(userID string, accounts []domain.Account) {
	s.accounts.Set(accountsKey(userID), accounts)
}

// InvalidateAccounts drops every cached account entry for the user.
func (s *StateCache) InvalidateAccounts(userID string) {
	s.accounts.DeletePrefix(accountsKey(userID))
}

// Purchases returns the user's cached purchase list, if present.
func (s *StateCache) Purchases(userID string) ([]domain.Purchase, bool) {
	return s.purchases.Get(purchasesKey(userID))
}

// SetPurchases replaces the user's cached purchase list.
func (s *StateCache) SetPurchases(userID string, purchases []domain.Purchase) {
	s.purchases.Set(purchasesKey(userID), purchases)
}

// InvalidatePurchases drops every cached purchase entry for the user.
func (s *StateCache) InvalidatePurchases(userID string) {
	s.purchases.DeletePrefix(purchasesKey(userID))
}
