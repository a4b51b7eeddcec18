// Package store persists balances, ledger rows, pity state, pull history and
// inventory grants.
package store

import (
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/pull"
)

var (
	_ ledger.Store   = (*SQLite)(nil)
	_ pull.PullStore = (*SQLite)(nil)
	_ pull.Inventory = (*SQLite)(nil)
	_ ledger.Store   = (*Memory)(nil)
	_ pull.PullStore = (*Memory)(nil)
	_ pull.Inventory = (*Memory)(nil)
)
