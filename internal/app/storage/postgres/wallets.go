package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

const (
	walletColumns      = `id, user_id, balance, available, escrowed, created_at, updated_at`
	transactionColumns = `id, wallet_id, type, amount, balance_after, reference_id, note, created_at`
)

// --- WalletStore ------------------------------------------------------------

func (s *Store) EnsureWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	if err := ensureWallet(ctx, s.db, userID); err != nil {
		return wallet.Wallet{}, err
	}
	return s.GetWallet(ctx, userID)
}

func ensureWallet(ctx context.Context, exec sqlx.ExecerContext, userID string) error {
	ts := now()
	_, err := exec.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, available, escrowed, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, newID(), userID, ts)
	return mapError(err, "wallet", userID)
}

func (s *Store) GetWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	var w wallet.Wallet
	err := s.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return w, mapError(err, "wallet", userID)
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]wallet.Transaction, error) {
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	var result []wallet.Transaction
	err = s.db.SelectContext(ctx, &result, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at, id
	`, w.ID)
	return result, err
}

func (s *Store) Credit(ctx context.Context, entry storage.LedgerEntry) (wallet.Wallet, wallet.Transaction, error) {
	if entry.Amount <= 0 {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.InvalidInput("amount must be positive")
	}
	var (
		w  wallet.Wallet
		tx wallet.Transaction
	)
	err := s.withTx(ctx, func(dbTx *sqlx.Tx) error {
		var err error
		if w, err = lockWallet(ctx, dbTx, entry.UserID); err != nil {
			return err
		}
		w.Available += entry.Amount
		w.Balance += entry.Amount
		tx, err = applyLedger(ctx, dbTx, &w, entry)
		return err
	})
	return w, tx, err
}

func (s *Store) Debit(ctx context.Context, entry storage.LedgerEntry) (wallet.Wallet, wallet.Transaction, error) {
	if entry.Amount <= 0 {
		return wallet.Wallet{}, wallet.Transaction{}, apperrors.InvalidInput("amount must be positive")
	}
	var (
		w  wallet.Wallet
		tx wallet.Transaction
	)
	err := s.withTx(ctx, func(dbTx *sqlx.Tx) error {
		var err error
		if w, err = lockWallet(ctx, dbTx, entry.UserID); err != nil {
			return err
		}
		if w.Available < entry.Amount {
			return apperrors.InsufficientFunds(w.Available, entry.Amount)
		}
		w.Available -= entry.Amount
		w.Balance -= entry.Amount
		tx, err = applyLedger(ctx, dbTx, &w, entry)
		return err
	})
	return w, tx, err
}

func lockWallet(ctx context.Context, tx *sqlx.Tx, userID string) (wallet.Wallet, error) {
	var w wallet.Wallet
	err := tx.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	return w, mapError(err, "wallet", userID)
}

// applyLedger persists the wallet balances and appends the ledger entry.
func applyLedger(ctx context.Context, tx *sqlx.Tx, w *wallet.Wallet, entry storage.LedgerEntry) (wallet.Transaction, error) {
	ts := now()
	w.UpdatedAt = ts
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $2, available = $3, escrowed = $4, updated_at = $5
		WHERE id = $1
	`, w.ID, w.Balance, w.Available, w.Escrowed, w.UpdatedAt); err != nil {
		return wallet.Transaction{}, mapError(err, "wallet", w.UserID)
	}
	record := wallet.Transaction{
		ID:           newID(),
		WalletID:     w.ID,
		Type:         entry.Type,
		Amount:       entry.Amount,
		BalanceAfter: w.Balance,
		ReferenceID:  entry.ReferenceID,
		Note:         entry.Note,
		CreatedAt:    ts,
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO wallet_transactions (`+transactionColumns+`)
		VALUES (:id, :wallet_id, :type, :amount, :balance_after, :reference_id, :note, :created_at)
	`, record); err != nil {
		return wallet.Transaction{}, mapError(err, "transaction", record.ID)
	}
	return record, nil
}
