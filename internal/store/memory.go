package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/pull"
)

type balanceKey struct{ player, currency string }

type grant struct {
	playerID string
	itemID   string
	isNew    bool
}

// Memory implements the same stores as SQLite in process memory. InTx is
// serialized by a single mutex and writes are staged until fn succeeds.
type Memory struct {
	mu       sync.Mutex
	balances map[balanceKey]ledger.Balance
	txs      map[uuid.UUID]ledger.Transaction
	txOrder  []uuid.UUID
	pity     map[pull.PityKey]gacha.PityState
	history  []pull.HistoryRow
	items    map[balanceKey]int // (player, item) -> quantity
	grants   map[string]grant   // source tag
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]ledger.Balance),
		txs:      make(map[uuid.UUID]ledger.Transaction),
		pity:     make(map[pull.PityKey]gacha.PityState),
		items:    make(map[balanceKey]int),
		grants:   make(map[string]grant),
	}
}

// ---- ledger.Store ----

type memTx struct {
	m        *Memory
	balances map[balanceKey]ledger.Balance
	txs      map[uuid.UUID]ledger.Transaction
	inserted []uuid.UUID
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		m:        m,
		balances: make(map[balanceKey]ledger.Balance),
		txs:      make(map[uuid.UUID]ledger.Transaction),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, b := range tx.balances {
		m.balances[k] = b
	}
	for id, t := range tx.txs {
		m.txs[id] = t
	}
	m.txOrder = append(m.txOrder, tx.inserted...)
	return nil
}

func (t *memTx) Balance(_ context.Context, playerID, currency string) (ledger.Balance, error) {
	k := balanceKey{playerID, currency}
	if b, ok := t.balances[k]; ok {
		return b, nil
	}
	if b, ok := t.m.balances[k]; ok {
		return b, nil
	}
	return ledger.Balance{PlayerID: playerID, Currency: currency}, nil
}

func (t *memTx) PutBalance(_ context.Context, b ledger.Balance) error {
	t.balances[balanceKey{b.PlayerID, b.Currency}] = b
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	if _, ok := t.lookup(tx.ID); ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	t.txs[tx.ID] = tx
	t.inserted = append(t.inserted, tx.ID)
	return nil
}

func (t *memTx) Transaction(_ context.Context, id uuid.UUID) (ledger.Transaction, error) {
	if tx, ok := t.lookup(id); ok {
		return tx, nil
	}
	return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
}

func (t *memTx) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	if _, ok := t.lookup(tx.ID); !ok {
		return fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, tx.ID)
	}
	t.txs[tx.ID] = tx
	return nil
}

func (t *memTx) lookup(id uuid.UUID) (ledger.Transaction, bool) {
	if tx, ok := t.txs[id]; ok {
		return tx, true
	}
	tx, ok := t.m.txs[id]
	return tx, ok
}

func (m *Memory) Transactions(_ context.Context, playerID string, limit int) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Transaction
	for i := len(m.txOrder) - 1; i >= 0 && len(out) < limit; i-- {
		if tx := m.txs[m.txOrder[i]]; tx.PlayerID == playerID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) PurchasedPacks(_ context.Context, playerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.txOrder {
		tx := m.txs[id]
		if tx.PlayerID == playerID && tx.Kind == ledger.KindPurchase &&
			(tx.Status == ledger.StatusCompleted || tx.Status == ledger.StatusRefunded) &&
			tx.Reference != "" && !slices.Contains(out, tx.Reference) {
			out = append(out, tx.Reference)
		}
	}
	return out, nil
}

func (m *Memory) DebitedSince(_ context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, tx := range m.txs {
		if tx.PlayerID == playerID && tx.Currency == currency && tx.Status == ledger.StatusCompleted &&
			tx.Kind.IsDebit() && !tx.CreatedAt.Before(since) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// ---- pull.PullStore ----

func (m *Memory) Pity(ctx context.Context, key pull.PityKey) (gacha.PityState, bool, error) {
	if err := ctx.Err(); err != nil {
		return gacha.PityState{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.pity[key]
	return st, ok, nil
}

func (m *Memory) CommitPull(ctx context.Context, rec pull.PullRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pity[rec.Key] = rec.State
	m.history = append(m.history, rec.Rows...)
	return nil
}

func (m *Memory) History(_ context.Context, playerID string, limit int) ([]pull.HistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pull.HistoryRow
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].PlayerID == playerID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

// ---- pull.Inventory ----

func (m *Memory) GrantItem(ctx context.Context, playerID, itemID, sourceTag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grants[sourceTag]; ok {
		return g.isNew, nil
	}
	k := balanceKey{playerID, itemID}
	isNew := m.items[k] == 0
	m.items[k]++
	m.grants[sourceTag] = grant{playerID: playerID, itemID: itemID, isNew: isNew}
	return isNew, nil
}

func (m *Memory) RevokeGrant(ctx context.Context, sourceTag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[sourceTag]
	if !ok {
		return nil
	}
	k := balanceKey{g.playerID, g.itemID}
	if m.items[k] <= 1 {
		delete(m.items, k)
	} else {
		m.items[k]--
	}
	delete(m.grants, sourceTag)
	return nil
}

// Quantity reports how many copies of an item a player holds.
func (m *Memory) Quantity(playerID, itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[balanceKey{playerID, itemID}]
}
