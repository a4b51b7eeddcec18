package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/constants"
	"github.com/xtding233/gacha-economy/internal/metrics"
	"github.com/xtding233/gacha-economy/internal/pricing"
)

// Entry describes one credit or debit.
type Entry struct {
	PlayerID      string
	Currency      string
	Amount        decimal.Decimal
	Kind          Kind
	RelatedPullID string
	Reason        string
}

// Ledger owns every balance mutation. Each mutation writes exactly one
// transaction row carrying the balance snapshot before and after.
type Ledger struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func New(store Store, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With().Str("component", "ledger").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Balance returns the current holdings, zero if the player never held the currency.
func (l *Ledger) Balance(ctx context.Context, playerID, currency string) (Balance, error) {
	var out Balance
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Balance(ctx, playerID, currency)
		out = b
		return err
	})
	return out, err
}

// Transactions lists a player's rows newest first. A non-positive limit
// means the default page size.
func (l *Ledger) Transactions(ctx context.Context, playerID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	limit = min(limit, constants.MaxHistoryLimit)
	return l.store.Transactions(ctx, playerID, limit)
}

// Add credits amount unconditionally.
func (l *Ledger) Add(ctx context.Context, e Entry) (Transaction, error) {
	if err := checkEntry(e); err != nil {
		return Transaction{}, err
	}
	if e.Kind.IsDebit() {
		return Transaction{}, fmt.Errorf("%w: %s is a debit", ErrInvalidKind, e.Kind)
	}
	var out Transaction
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		bal, err := tx.Balance(ctx, e.PlayerID, e.Currency)
		if err != nil {
			return err
		}
		out = l.newTransaction(e, bal.Balance)
		l.credit(&bal, e.Amount)
		out.BalanceAfter = bal.Balance
		out.Status = StatusCompleted
		if err := tx.PutBalance(ctx, bal); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, out)
	})
	if err != nil {
		return Transaction{}, err
	}
	l.record(out)
	return out, nil
}

// Deduct debits amount if the balance covers it. Otherwise the balance is left
// unchanged, a FAILED row with BalanceBefore == BalanceAfter is written, and
// ErrInsufficientBalance is returned together with that row.
func (l *Ledger) Deduct(ctx context.Context, e Entry) (Transaction, error) {
	if err := checkEntry(e); err != nil {
		return Transaction{}, err
	}
	if !e.Kind.IsDebit() {
		return Transaction{}, fmt.Errorf("%w: %s is not a debit", ErrInvalidKind, e.Kind)
	}
	var out Transaction
	insufficient := false
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		bal, err := tx.Balance(ctx, e.PlayerID, e.Currency)
		if err != nil {
			return err
		}
		out = l.newTransaction(e, bal.Balance)
		if e.Amount.GreaterThan(bal.Balance) {
			insufficient = true
			out.Status = StatusFailed
			out.BalanceAfter = bal.Balance
			return tx.InsertTransaction(ctx, out)
		}
		bal.Balance = bal.Balance.Sub(e.Amount)
		bal.LifetimeSpent = bal.LifetimeSpent.Add(e.Amount)
		bal.UpdatedAt = out.CreatedAt
		out.BalanceAfter = bal.Balance
		out.Status = StatusCompleted
		if err := tx.PutBalance(ctx, bal); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, out)
	})
	if err != nil {
		return Transaction{}, err
	}
	l.record(out)
	if insufficient {
		l.logger.Info().
			Str("player_id", e.PlayerID).
			Str("tx_id", out.ID.String()).
			Str("amount", e.Amount.String()).
			Str("balance", out.BalanceBefore.String()).
			Msg("deduct refused")
		return out, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, e.Amount, out.BalanceBefore)
	}
	return out, nil
}

// Refund credits back a completed debit and marks it REFUNDED, once.
func (l *Ledger) Refund(ctx context.Context, id uuid.UUID, reason string) (Transaction, error) {
	var out Transaction
	var origKind Kind
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		orig, err := tx.Transaction(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case orig.Status == StatusRefunded:
			return fmt.Errorf("%w: %s", ErrRefundAlreadyApplied, id)
		case !orig.Kind.IsDebit():
			return fmt.Errorf("%w: kind %s", ErrNotRefundable, orig.Kind)
		case !orig.Status.CanTransition(StatusRefunded):
			return fmt.Errorf("%w: status %s", ErrNotRefundable, orig.Status)
		}

		bal, err := tx.Balance(ctx, orig.PlayerID, orig.Currency)
		if err != nil {
			return err
		}
		out = l.newTransaction(Entry{
			PlayerID:      orig.PlayerID,
			Currency:      orig.Currency,
			Amount:        orig.Amount,
			Kind:          KindRefund,
			RelatedPullID: orig.RelatedPullID,
			Reason:        reason,
		}, bal.Balance)
		refundOf := orig.ID
		out.RefundOf = &refundOf
		origKind = orig.Kind

		bal.Balance = bal.Balance.Add(orig.Amount)
		bal.LifetimeSpent = decimal.Max(bal.LifetimeSpent.Sub(orig.Amount), decimal.Zero)
		bal.UpdatedAt = out.CreatedAt
		out.BalanceAfter = bal.Balance
		out.Status = StatusCompleted

		orig.Status = StatusRefunded
		orig.UpdatedAt = out.CreatedAt
		if err := tx.PutBalance(ctx, bal); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, orig); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, out)
	})
	if err != nil {
		return Transaction{}, err
	}
	l.record(out)
	metrics.RecordLedgerTransaction(string(origKind), string(StatusRefunded))
	l.logger.Info().
		Str("player_id", out.PlayerID).
		Str("tx_id", out.ID.String()).
		Str("refund_of", id.String()).
		Str("amount", out.Amount.String()).
		Msg("refund applied")
	return out, nil
}

// Grant is an operator credit.
func (l *Ledger) Grant(ctx context.Context, playerID, currency string, amount decimal.Decimal, reason string) (Transaction, error) {
	return l.Add(ctx, Entry{PlayerID: playerID, Currency: currency, Amount: amount, Kind: KindAdminGrant, Reason: reason})
}

// AdminDeduct is an operator debit.
func (l *Ledger) AdminDeduct(ctx context.Context, playerID, currency string, amount decimal.Decimal, reason string) (Transaction, error) {
	return l.Deduct(ctx, Entry{PlayerID: playerID, Currency: currency, Amount: amount, Kind: KindAdminDeduct, Reason: reason})
}

// Payer settles a purchase with an external payment provider.
type Payer interface {
	Pay(ctx context.Context, tx Transaction, pack pricing.Pack) error
}

// Purchase credits a store pack. The PENDING row is committed before the payer
// runs, so a crash mid-payment leaves it inspectable; the row then moves to
// COMPLETED (crediting the pack) or FAILED.
func (l *Ledger) Purchase(ctx context.Context, playerID, currency string, pack pricing.Pack, payer Payer) (Transaction, error) {
	first, err := l.FirstTimeState(ctx, playerID, []pricing.Pack{pack})
	if err != nil {
		return Transaction{}, err
	}
	amount := decimal.NewFromInt(int64(pack.Granted(first[pack.ID])))
	e := Entry{PlayerID: playerID, Currency: currency, Amount: amount, Kind: KindPurchase, Reason: pack.Name}
	if err := checkEntry(e); err != nil {
		return Transaction{}, err
	}

	var pending Transaction
	err = l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		bal, err := tx.Balance(ctx, playerID, currency)
		if err != nil {
			return err
		}
		pending = l.newTransaction(e, bal.Balance)
		pending.Reference = pack.ID
		pending.BalanceAfter = bal.Balance
		pending.Status = StatusPending
		return tx.InsertTransaction(ctx, pending)
	})
	if err != nil {
		return Transaction{}, err
	}
	l.record(pending)

	if payErr := payer.Pay(ctx, pending, pack); payErr != nil {
		// the payment outcome is settled even if the caller went away
		failed, err := l.settle(context.WithoutCancel(ctx), pending.ID, StatusFailed)
		if err != nil {
			return Transaction{}, errors.Join(fmt.Errorf("%w: %w", ErrPaymentFailed, payErr), err)
		}
		l.logger.Warn().Err(payErr).Str("player_id", playerID).Str("tx_id", pending.ID.String()).Msg("purchase failed")
		return failed, fmt.Errorf("%w: %w", ErrPaymentFailed, payErr)
	}
	return l.settle(context.WithoutCancel(ctx), pending.ID, StatusCompleted)
}

// settle moves a PENDING purchase to its terminal status, crediting on COMPLETED.
func (l *Ledger) settle(ctx context.Context, id uuid.UUID, status Status) (Transaction, error) {
	var out Transaction
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.Transaction(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, t.Status, status)
		}
		bal, err := tx.Balance(ctx, t.PlayerID, t.Currency)
		if err != nil {
			return err
		}
		t.Status = status
		t.UpdatedAt = l.now()
		t.BalanceBefore = bal.Balance
		t.BalanceAfter = bal.Balance
		if status == StatusCompleted {
			l.credit(&bal, t.Amount)
			bal.UpdatedAt = t.UpdatedAt
			t.BalanceAfter = bal.Balance
			if err := tx.PutBalance(ctx, bal); err != nil {
				return err
			}
		}
		out = t
		return tx.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return Transaction{}, err
	}
	l.record(out)
	return out, nil
}

// FirstTimeState reports which packs still carry the first-purchase bonus for a player.
func (l *Ledger) FirstTimeState(ctx context.Context, playerID string, packs []pricing.Pack) (pricing.FirstTimeState, error) {
	bought, err := l.store.PurchasedPacks(ctx, playerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(bought))
	for _, id := range bought {
		seen[id] = true
	}
	state := make(pricing.FirstTimeState, len(packs))
	for _, p := range packs {
		state[p.ID] = p.FirstTimeX2 && !seen[p.ID]
	}
	return state, nil
}

// DebitedSince sums a player's completed debits since a point in time.
func (l *Ledger) DebitedSince(ctx context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error) {
	return l.store.DebitedSince(ctx, playerID, currency, since)
}

func (l *Ledger) newTransaction(e Entry, before decimal.Decimal) Transaction {
	now := l.now()
	return Transaction{
		ID:            uuid.New(),
		PlayerID:      e.PlayerID,
		Currency:      e.Currency,
		Kind:          e.Kind,
		Amount:        e.Amount,
		BalanceBefore: before,
		RelatedPullID: e.RelatedPullID,
		Reason:        e.Reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (l *Ledger) credit(b *Balance, amount decimal.Decimal) {
	b.Balance = b.Balance.Add(amount)
	b.LifetimeEarned = b.LifetimeEarned.Add(amount)
	b.UpdatedAt = l.now()
}

func (l *Ledger) record(t Transaction) {
	metrics.RecordLedgerTransaction(string(t.Kind), string(t.Status))
}

func checkEntry(e Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, e.Amount)
	}
	return nil
}
