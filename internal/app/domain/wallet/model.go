package wallet

import "time"

// PlatformOwnerID owns the wallet that collects the platform share.
const PlatformOwnerID = "platform"

// TxType classifies ledger entries.
type TxType string

const (
	TxDeposit        TxType = "deposit"
	TxWithdrawal     TxType = "withdrawal"
	TxEscrowHold     TxType = "escrow_hold"
	TxEscrowRelease  TxType = "escrow_release"
	TxEscrowRefund   TxType = "escrow_refund"
	TxPayoutLeader   TxType = "payout_leader"
	TxPayoutPlatform TxType = "payout_platform"
	TxPayoutMember   TxType = "payout_member"
)

// Wallet holds a user's funds in minor units. Balance is always
// Available + Escrowed.
type Wallet struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Available int64     `json:"available" db:"available"`
	Escrowed  int64     `json:"escrowed" db:"escrowed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Consistent checks the balance invariant.
func (w Wallet) Consistent() bool {
	return w.Available >= 0 && w.Escrowed >= 0 && w.Balance == w.Available+w.Escrowed
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID           string    `json:"id" db:"id"`
	WalletID     string    `json:"wallet_id" db:"wallet_id"`
	Type         TxType    `json:"type" db:"type"`
	Amount       int64     `json:"amount" db:"amount"`
	BalanceAfter int64     `json:"balance_after" db:"balance_after"`
	ReferenceID  string    `json:"reference_id,omitempty" db:"reference_id"`
	Note         string    `json:"note,omitempty" db:"note"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
