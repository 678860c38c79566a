package wallets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yassin6up/somoo-sub000/internal/app/domain/wallet"
	"github.com/Yassin6up/somoo-sub000/internal/app/realtime"
	"github.com/Yassin6up/somoo-sub000/internal/app/storage"
	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// MaxSingleMovement caps a single deposit or withdrawal (10M SAR in halalas).
const MaxSingleMovement int64 = 1_000_000_000

// Service manages wallet balances outside of escrow flows.
type Service struct {
	store  storage.WalletStore
	events realtime.Publisher
	log    *logger.Logger
}

// New constructs a wallet service.
func New(store storage.WalletStore, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wallets")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{store: store, events: events, log: log}
}

// EnsureWallet returns the user's wallet, creating it on first use.
func (s *Service) EnsureWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	if strings.TrimSpace(userID) == "" {
		return wallet.Wallet{}, apperrors.InvalidInput("user_id is required")
	}
	return s.store.EnsureWallet(ctx, userID)
}

// ListTransactions returns the user's ledger, oldest first.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]wallet.Transaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

// Deposit credits the available balance.
func (s *Service) Deposit(ctx context.Context, userID string, amount int64, reference string) (wallet.Wallet, wallet.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return wallet.Wallet{}, wallet.Transaction{}, err
	}
	w, tx, err := s.store.Credit(ctx, storage.LedgerEntry{
		UserID:      userID,
		Type:        wallet.TxDeposit,
		Amount:      amount,
		ReferenceID: reference,
	})
	if err != nil {
		return wallet.Wallet{}, wallet.Transaction{}, fmt.Errorf("deposit: %w", err)
	}
	s.log.WithField("user_id", userID).Infof("deposit of %d recorded", amount)
	s.events.Publish(realtime.UserTopic(userID), realtime.EventWalletUpdated, w)
	return w, tx, nil
}

// Withdraw debits the available balance. Escrowed funds are never touched.
func (s *Service) Withdraw(ctx context.Context, userID string, amount int64, reference string) (wallet.Wallet, wallet.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return wallet.Wallet{}, wallet.Transaction{}, err
	}
	w, tx, err := s.store.Debit(ctx, storage.LedgerEntry{
		UserID:      userID,
		Type:        wallet.TxWithdrawal,
		Amount:      amount,
		ReferenceID: reference,
	})
	if err != nil {
		return wallet.Wallet{}, wallet.Transaction{}, fmt.Errorf("withdraw: %w", err)
	}
	s.log.WithField("user_id", userID).Infof("withdrawal of %d recorded", amount)
	s.events.Publish(realtime.UserTopic(userID), realtime.EventWalletUpdated, w)
	return w, tx, nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return apperrors.InvalidInput("amount must be positive")
	}
	if amount > MaxSingleMovement {
		return apperrors.InvalidInput("amount exceeds the per-transaction limit of %d", MaxSingleMovement)
	}
	return nil
}
