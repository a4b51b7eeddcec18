package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/pull"
)

// SQLite implements the ledger, pull and inventory stores on one database.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewSQLite(db *sql.DB, logger zerolog.Logger) *SQLite {
	return &SQLite{db: db, logger: logger, now: time.Now}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ---- ledger.Store ----

func (s *SQLite) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, ledgerTx{q: tx})
	})
}

const txColumns = `id, player_id, currency, kind, amount, balance_before, balance_after, status,
	related_pull_id, refund_of, reference, reason, created_at, updated_at`

func (s *SQLite) Transactions(ctx context.Context, playerID string, limit int) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM ledger_transactions WHERE player_id = ? ORDER BY rowid DESC LIMIT ?`,
		playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) PurchasedPacks(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT reference FROM ledger_transactions
		 WHERE player_id = ? AND kind = ? AND status IN (?, ?) AND reference != ''`,
		playerID, ledger.KindPurchase, ledger.StatusCompleted, ledger.StatusRefunded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLite) DebitedSince(ctx context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT amount FROM ledger_transactions
		 WHERE player_id = ? AND currency = ? AND status = ? AND kind IN (?, ?) AND created_at >= ?`,
		playerID, currency, ledger.StatusCompleted, ledger.KindPull, ledger.KindAdminDeduct, toNanos(since))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	// amounts are TEXT, so the sum is exact in Go rather than a float in SQL
	total := decimal.Zero
	for rows.Next() {
		var amt decimal.Decimal
		if err := rows.Scan(&amt); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amt)
	}
	return total, rows.Err()
}

type ledgerTx struct {
	q querier
}

func (t ledgerTx) Balance(ctx context.Context, playerID, currency string) (ledger.Balance, error) {
	b := ledger.Balance{PlayerID: playerID, Currency: currency}
	var updated int64
	err := t.q.QueryRowContext(ctx,
		`SELECT balance, lifetime_earned, lifetime_spent, updated_at FROM balances WHERE player_id = ? AND currency = ?`,
		playerID, currency).Scan(&b.Balance, &b.LifetimeEarned, &b.LifetimeSpent, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return b, nil
	}
	if err != nil {
		return ledger.Balance{}, err
	}
	b.UpdatedAt = fromNanos(updated)
	return b, nil
}

func (t ledgerTx) PutBalance(ctx context.Context, b ledger.Balance) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO balances (player_id, currency, balance, lifetime_earned, lifetime_spent, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (player_id, currency) DO UPDATE SET
		   balance = excluded.balance,
		   lifetime_earned = excluded.lifetime_earned,
		   lifetime_spent = excluded.lifetime_spent,
		   updated_at = excluded.updated_at`,
		b.PlayerID, b.Currency, b.Balance.String(), b.LifetimeEarned.String(), b.LifetimeSpent.String(), toNanos(b.UpdatedAt))
	return err
}

func (t ledgerTx) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	var refundOf any
	if tx.RefundOf != nil {
		refundOf = tx.RefundOf.String()
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO ledger_transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.PlayerID, tx.Currency, string(tx.Kind), tx.Amount.String(),
		tx.BalanceBefore.String(), tx.BalanceAfter.String(), string(tx.Status),
		tx.RelatedPullID, refundOf, tx.Reference, tx.Reason, toNanos(tx.CreatedAt), toNanos(tx.UpdatedAt))
	return err
}

func (t ledgerTx) Transaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM ledger_transactions WHERE id = ?`, id.String())
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, id)
	}
	return tx, err
}

func (t ledgerTx) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE ledger_transactions SET status = ?, balance_before = ?, balance_after = ?, updated_at = ? WHERE id = ?`,
		string(tx.Status), tx.BalanceBefore.String(), tx.BalanceAfter.String(), toNanos(tx.UpdatedAt), tx.ID.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, tx.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(r scanner) (ledger.Transaction, error) {
	var (
		t                ledger.Transaction
		kind, status     string
		refundOf         uuid.NullUUID
		created, updated int64
	)
	err := r.Scan(&t.ID, &t.PlayerID, &t.Currency, &kind, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &status,
		&t.RelatedPullID, &refundOf, &t.Reference, &t.Reason, &created, &updated)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.Kind = ledger.Kind(kind)
	t.Status = ledger.Status(status)
	if refundOf.Valid {
		id := refundOf.UUID
		t.RefundOf = &id
	}
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}

// ---- pull.PullStore ----

func (s *SQLite) Pity(ctx context.Context, key pull.PityKey) (gacha.PityState, bool, error) {
	var (
		st         gacha.PityState
		guaranteed int
		last       int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT pity_counter, guaranteed_featured, weapon_pity_counter, last_pull_at
		 FROM pity_states WHERE player_id = ? AND banner_type = ? AND banner_id = ?`,
		key.PlayerID, key.BannerType, key.BannerID).Scan(&st.PityCounter, &guaranteed, &st.WeaponPityCounter, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return gacha.PityState{}, false, nil
	}
	if err != nil {
		return gacha.PityState{}, false, err
	}
	st.GuaranteedFeatured = guaranteed != 0
	st.LastPullAt = fromNanos(last)
	return st, true, nil
}

func (s *SQLite) CommitPull(ctx context.Context, rec pull.PullRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pity_states (player_id, banner_type, banner_id, pity_counter, guaranteed_featured, weapon_pity_counter, last_pull_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (player_id, banner_type, banner_id) DO UPDATE SET
			   pity_counter = excluded.pity_counter,
			   guaranteed_featured = excluded.guaranteed_featured,
			   weapon_pity_counter = excluded.weapon_pity_counter,
			   last_pull_at = excluded.last_pull_at`,
			rec.Key.PlayerID, rec.Key.BannerType, rec.Key.BannerID,
			rec.State.PityCounter, boolInt(rec.State.GuaranteedFeatured), rec.State.WeaponPityCounter, toNanos(rec.State.LastPullAt))
		if err != nil {
			return fmt.Errorf("upsert pity: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO pull_history (pull_id, draw_index, player_id, scope_id, transaction_id, item_id, rarity,
			   is_featured, pity_count_at_draw, is_guaranteed, is_new, soft_pity, hard_pity, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare history insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rec.Rows {
			var txID any
			if r.TransactionID != nil {
				txID = r.TransactionID.String()
			}
			o := r.Outcome
			if _, err := stmt.ExecContext(ctx,
				r.PullID, r.DrawIndex, r.PlayerID, r.ScopeID, txID, o.ItemID, o.Rarity.String(),
				boolInt(o.IsFeatured), o.PityCountAtDraw, boolInt(o.IsGuaranteed), boolInt(o.IsNew),
				boolInt(o.SoftPity), boolInt(o.HardPity), toNanos(r.CreatedAt)); err != nil {
				return fmt.Errorf("insert history row %d: %w", r.DrawIndex, err)
			}
		}
		return nil
	})
}

func (s *SQLite) History(ctx context.Context, playerID string, limit int) ([]pull.HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pull_id, draw_index, player_id, scope_id, transaction_id, item_id, rarity,
		   is_featured, pity_count_at_draw, is_guaranteed, is_new, soft_pity, hard_pity, created_at
		 FROM pull_history WHERE player_id = ? ORDER BY rowid DESC LIMIT ?`,
		playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pull.HistoryRow
	for rows.Next() {
		var (
			r                                       pull.HistoryRow
			txID                                    uuid.NullUUID
			rarity                                  string
			featured, guaranteed, isNew, soft, hard int
			created                                 int64
		)
		if err := rows.Scan(&r.PullID, &r.DrawIndex, &r.PlayerID, &r.ScopeID, &txID, &r.Outcome.ItemID, &rarity,
			&featured, &r.Outcome.PityCountAtDraw, &guaranteed, &isNew, &soft, &hard, &created); err != nil {
			return nil, err
		}
		if r.Outcome.Rarity, err = gacha.ParseRarity(rarity); err != nil {
			return nil, err
		}
		if txID.Valid {
			id := txID.UUID
			r.TransactionID = &id
		}
		r.Outcome.IsFeatured = featured != 0
		r.Outcome.IsGuaranteed = guaranteed != 0
		r.Outcome.IsNew = isNew != 0
		r.Outcome.SoftPity = soft != 0
		r.Outcome.HardPity = hard != 0
		r.CreatedAt = fromNanos(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- pull.Inventory ----

// GrantItem adds one copy of itemID. Replaying a sourceTag returns the
// original answer without granting again.
func (s *SQLite) GrantItem(ctx context.Context, playerID, itemID, sourceTag string) (bool, error) {
	var isNew bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prior int
		err := tx.QueryRowContext(ctx, `SELECT is_new FROM inventory_grants WHERE source_tag = ?`, sourceTag).Scan(&prior)
		if err == nil {
			isNew = prior != 0
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		var qty int
		err = tx.QueryRowContext(ctx,
			`SELECT quantity FROM inventory_items WHERE player_id = ? AND item_id = ?`, playerID, itemID).Scan(&qty)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			isNew = true
		case err != nil:
			return err
		}

		now := toNanos(s.now())
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO inventory_items (player_id, item_id, quantity, granted_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT (player_id, item_id) DO UPDATE SET quantity = quantity + 1, granted_at = excluded.granted_at`,
			playerID, itemID, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO inventory_grants (source_tag, player_id, item_id, is_new, granted_at) VALUES (?, ?, ?, ?, ?)`,
			sourceTag, playerID, itemID, boolInt(isNew), now)
		return err
	})
	return isNew, err
}

// RevokeGrant removes the copy granted under sourceTag.
func (s *SQLite) RevokeGrant(ctx context.Context, sourceTag string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var playerID, itemID string
		err := tx.QueryRowContext(ctx,
			`SELECT player_id, item_id FROM inventory_grants WHERE source_tag = ?`, sourceTag).Scan(&playerID, &itemID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE inventory_items SET quantity = quantity - 1 WHERE player_id = ? AND item_id = ?`,
			playerID, itemID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM inventory_items WHERE player_id = ? AND item_id = ? AND quantity <= 0`,
			playerID, itemID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM inventory_grants WHERE source_tag = ?`, sourceTag)
		return err
	})
}
