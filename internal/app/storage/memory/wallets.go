package memory

import (
	"context"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// WalletStore implementation --------------------------------------------------

func (s *Store) EnsureWallet(_ context.Context, userID string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureWalletLocked(userID), nil
}

func (s *Store) ensureWalletLocked(userID string) wallet.Wallet {
	if w, ok := s.wallets[userID]; ok {
		return w
	}
	ts := now()
	w := wallet.Wallet{ID: newID(), UserID: userID, CreatedAt: ts, UpdatedAt: ts}
	s.wallets[userID] = w
	return w
}

func (s *Store) GetWallet(_ context.Context, userID string) (wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return wallet.Wallet{}, apperrors.NotFound("wallet", userID)
	}
	return w, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]wallet.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, apperrors.NotFound("wallet", userID)
	}
	return append([]wallet.Transaction(nil), s.transactions[w.ID]...), nil
}

func (s *Store) Credit(_ context.Context, entry storage.LedgerEntry) (wallet.Wallet, wallet.Transaction, error) {
	if entry.Amount <= 0 {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.InvalidInput("amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[entry.UserID]
	if !ok {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.NotFound("wallet", entry.UserID)
	}
	w.Available += entry.Amount
	w.Balance += entry.Amount
	tx := s.recordLocked(w, entry)
	return s.wallets[entry.UserID], tx, nil
}

func (s *Store) Debit(_ context.Context, entry storage.LedgerEntry) (wallet.Wallet, wallet.Transaction, error) {
	if entry.Amount <= 0 {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.InvalidInput("amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[entry.UserID]
	if !ok {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.NotFound("wallet", entry.UserID)
	}
	if w.Available < entry.Amount {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.InsufficientFunds(w.Available, entry.Amount)
	}
	w.Available -= entry.Amount
	w.Balance -= entry.Amount
	tx := s.recordLocked(w, entry)
	return s.wallets[entry.UserID], tx, nil
}

// recordLocked stores the updated wallet and appends the ledger entry.
func (s *Store) recordLocked(w wallet.Wallet, entry storage.LedgerEntry) wallet.Transaction {
	ts := now()
	w.UpdatedAt = ts
	s.wallets[w.UserID] = w
	tx := wallet.Transaction{
		ID:           newID(),
		WalletID:     w.ID,
		Type:         entry.Type,
		Amount:       entry.Amount,
		BalanceAfter: w.Balance,
		ReferenceID:  entry.ReferenceID,
		Note:         entry.Note,
		CreatedAt:    ts,
	}
	s.transactions[w.ID] = append(s.transactions[w.ID], tx)
	return tx
}
