package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies an economic event.
type Kind string

const (
	KindPurchase    Kind = "PURCHASE"
	KindPull        Kind = "PULL"
	KindRefund      Kind = "REFUND"
	KindReward      Kind = "REWARD"
	KindAdminGrant  Kind = "ADMIN_GRANT"
	KindAdminDeduct Kind = "ADMIN_DEDUCT"
)

// IsDebit reports whether the kind removes currency.
func (k Kind) IsDebit() bool { return k == KindPull || k == KindAdminDeduct }

func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindPull, KindRefund, KindReward, KindAdminGrant, KindAdminDeduct:
		return true
	}
	return false
}

// Status of a transaction. PENDING → COMPLETED|FAILED, COMPLETED → REFUNDED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed
	case StatusCompleted:
		return next == StatusRefunded
	}
	return false
}

// Balance is one player's holdings of one currency.
type Balance struct {
	PlayerID       string          `json:"playerId"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	LifetimeEarned decimal.Decimal `json:"lifetimeEarned"`
	LifetimeSpent  decimal.Decimal `json:"lifetimeSpent"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Transaction is one ledger row. Only Status and UpdatedAt change after insert,
// and only along Status.CanTransition.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	PlayerID      string          `json:"playerId"`
	Currency      string          `json:"currency"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Status        Status          `json:"status"`
	RelatedPullID string          `json:"relatedPullId,omitempty"`
	RefundOf      *uuid.UUID      `json:"refundOf,omitempty"`
	Reference     string          `json:"reference,omitempty"` // pack id for purchases
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Tx is the unit of atomic work a Store hands to the ledger.
type Tx interface {
	// Balance returns the row, or a zero balance if the player never held the currency.
	Balance(ctx context.Context, playerID, currency string) (Balance, error)
	PutBalance(ctx context.Context, b Balance) error
	InsertTransaction(ctx context.Context, t Transaction) error
	// Transaction fails with ErrTransactionNotFound for unknown ids.
	Transaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) error
}

// Store persists balances and transactions.
type Store interface {
	// InTx runs fn atomically; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Transactions lists a player's rows newest first.
	Transactions(ctx context.Context, playerID string, limit int) ([]Transaction, error)
	// PurchasedPacks lists pack ids with at least one completed purchase. A later
	// refund does not restore first-time eligibility.
	PurchasedPacks(ctx context.Context, playerID string) ([]string, error)
	// DebitedSince sums completed debits created at or after since.
	DebitedSince(ctx context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error)
}
