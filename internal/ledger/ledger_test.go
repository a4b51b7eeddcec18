package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/pricing"
	"github.com/xtding233/gacha-economy/internal/store"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newLedger(t *testing.T) (*ledger.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return ledger.New(mem, zerolog.Nop()), mem
}

func fund(t *testing.T, l *ledger.Ledger, player string, amount int64) {
	t.Helper()
	_, err := l.Grant(context.Background(), player, "gem", d(amount), "test funding")
	require.NoError(t, err)
}

func TestAddRecordsSnapshot(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	tx, err := l.Add(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(300), Kind: ledger.KindReward})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	assert.Equal(t, "0", tx.BalanceBefore.String())
	assert.Equal(t, "300", tx.BalanceAfter.String())

	bal, err := l.Balance(ctx, "p1", "gem")
	require.NoError(t, err)
	assert.Equal(t, "300", bal.Balance.String())
	assert.Equal(t, "300", bal.LifetimeEarned.String())
}

func TestAddRejectsDebitKindsAndBadAmounts(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.Add(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(1), Kind: ledger.KindPull})
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)
	_, err = l.Add(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(0), Kind: ledger.KindReward})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = l.Add(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(-5), Kind: ledger.KindReward})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = l.Add(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(1), Kind: "BONUS"})
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)
}

func TestDeduct(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	fund(t, l, "p1", 2000)

	tx, err := l.Deduct(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(1440), Kind: ledger.KindPull, RelatedPullID: "pull-1"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	assert.Equal(t, "2000", tx.BalanceBefore.String())
	assert.Equal(t, "560", tx.BalanceAfter.String())
	assert.Equal(t, "pull-1", tx.RelatedPullID)

	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "560", bal.Balance.String())
	assert.Equal(t, "1440", bal.LifetimeSpent.String())
}

func TestDeductInsufficientLeavesBalanceAndLogsFailedRow(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	fund(t, l, "p1", 100)

	tx, err := l.Deduct(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(160), Kind: ledger.KindPull})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, ledger.StatusFailed, tx.Status)
	assert.True(t, tx.BalanceBefore.Equal(tx.BalanceAfter))
	assert.Equal(t, "100", tx.BalanceAfter.String())

	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "100", bal.Balance.String())
	assert.True(t, bal.LifetimeSpent.IsZero())

	txs, err := l.Transactions(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.StatusFailed, txs[0].Status, "newest first")
	assert.Equal(t, tx.ID, txs[0].ID)
}

func TestRefundOnce(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	fund(t, l, "p1", 2000)
	debit, err := l.Deduct(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(1440), Kind: ledger.KindPull, RelatedPullID: "pull-1"})
	require.NoError(t, err)

	refund, err := l.Refund(ctx, debit.ID, "support ticket 42")
	require.NoError(t, err)
	assert.Equal(t, ledger.KindRefund, refund.Kind)
	assert.Equal(t, "1440", refund.Amount.String())
	assert.Equal(t, "560", refund.BalanceBefore.String())
	assert.Equal(t, "2000", refund.BalanceAfter.String())
	assert.Equal(t, "pull-1", refund.RelatedPullID)
	require.NotNil(t, refund.RefundOf)
	assert.Equal(t, debit.ID, *refund.RefundOf)

	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "2000", bal.Balance.String())
	assert.True(t, bal.LifetimeSpent.IsZero())

	_, err = l.Refund(ctx, debit.ID, "again")
	assert.ErrorIs(t, err, ledger.ErrRefundAlreadyApplied)
	bal, _ = l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "2000", bal.Balance.String(), "second refund credits nothing")
}

func TestRefundErrors(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.Refund(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	grant, err := l.Grant(ctx, "p1", "gem", d(100), "")
	require.NoError(t, err)
	_, err = l.Refund(ctx, grant.ID, "")
	assert.ErrorIs(t, err, ledger.ErrNotRefundable)

	failed, err := l.Deduct(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(500), Kind: ledger.KindPull})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	_, err = l.Refund(ctx, failed.ID, "")
	assert.ErrorIs(t, err, ledger.ErrNotRefundable)
}

func TestConcurrentRefundAppliesOnce(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	fund(t, l, "p1", 160)
	debit, err := l.Deduct(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(160), Kind: ledger.KindPull})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.Refund(ctx, debit.ID, "")
		}()
	}
	wg.Wait()

	ok, already := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ledger.ErrRefundAlreadyApplied):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, already)
	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "160", bal.Balance.String())
}

func TestConcurrentDeductNeverOverdraws(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	fund(t, l, "p1", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Deduct(ctx, ledger.Entry{PlayerID: "p1", Currency: "gem", Amount: d(160), Kind: ledger.KindPull})
		}()
	}
	wg.Wait()
	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "40", bal.Balance.String(), "six debits of 160 fit in 1000")
}

type payerFunc func(ctx context.Context, tx ledger.Transaction, pack pricing.Pack) error

func (f payerFunc) Pay(ctx context.Context, tx ledger.Transaction, pack pricing.Pack) error {
	return f(ctx, tx, pack)
}

func TestPurchaseCompletes(t *testing.T) {
	l, mem := newLedger(t)
	ctx := context.Background()
	pack := pricing.Pack{ID: "300", Name: "300 Pack", Tokens: 300, BonusTokens: 30, FirstTimeX2: true, PriceCents: 699}

	var seenPending bool
	payer := payerFunc(func(ctx context.Context, tx ledger.Transaction, _ pricing.Pack) error {
		// the pending row is durable before the provider is called
		txs, err := mem.Transactions(ctx, "p1", 1)
		require.NoError(t, err)
		seenPending = len(txs) == 1 && txs[0].ID == tx.ID && txs[0].Status == ledger.StatusPending
		return nil
	})

	tx, err := l.Purchase(ctx, "p1", "gem", pack, payer)
	require.NoError(t, err)
	assert.True(t, seenPending)
	assert.Equal(t, ledger.StatusCompleted, tx.Status)
	assert.Equal(t, "630", tx.Amount.String(), "first purchase doubles base tokens")

	tx, err = l.Purchase(ctx, "p1", "gem", pack, payer)
	require.NoError(t, err)
	assert.Equal(t, "330", tx.Amount.String())

	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.Equal(t, "960", bal.Balance.String())
}

func TestPurchaseFailedPayment(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	pack := pricing.Pack{ID: "60", Tokens: 60, PriceCents: 139}
	declined := errors.New("card declined")

	tx, err := l.Purchase(ctx, "p1", "gem", pack, payerFunc(func(context.Context, ledger.Transaction, pricing.Pack) error {
		return declined
	}))
	require.ErrorIs(t, err, ledger.ErrPaymentFailed)
	require.ErrorIs(t, err, declined)
	assert.Equal(t, ledger.StatusFailed, tx.Status)

	bal, _ := l.Balance(ctx, "p1", "gem")
	assert.True(t, bal.Balance.IsZero())

	first, err := l.FirstTimeState(ctx, "p1", []pricing.Pack{{ID: "60", FirstTimeX2: true}})
	require.NoError(t, err)
	assert.True(t, first["60"], "a failed purchase keeps the first-time bonus")
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ledger.Status
		ok       bool
	}{
		{ledger.StatusPending, ledger.StatusCompleted, true},
		{ledger.StatusPending, ledger.StatusFailed, true},
		{ledger.StatusCompleted, ledger.StatusRefunded, true},
		{ledger.StatusCompleted, ledger.StatusFailed, false},
		{ledger.StatusFailed, ledger.StatusCompleted, false},
		{ledger.StatusRefunded, ledger.StatusCompleted, false},
		{ledger.StatusPending, ledger.StatusRefunded, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransition(c.to), "%s → %s", c.from, c.to)
	}
}

func TestDebitedSince(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	fund(t, l, "p1", 1000)
	_, err := l.AdminDeduct(ctx, "p1", "gem", d(250), "chargeback")
	require.NoError(t, err)
	spent, err := l.DebitedSince(ctx, "p1", "gem", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "250", spent.String())
}

func TestTransactionsDefaultLimit(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	for range 3 {
		fund(t, l, "p1", 100)
	}

	txs, err := l.Transactions(ctx, "p1", 0)
	require.NoError(t, err)
	assert.Len(t, txs, 3)

	txs, err = l.Transactions(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}
