package pull_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/game"
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/lock"
	"github.com/xtding233/gacha-economy/internal/pull"
	"github.com/xtding233/gacha-economy/internal/store"
	"github.com/xtding233/gacha-economy/internal/token"
)

var exampleRates = gacha.RateVector{
	gacha.Common:    0.513,
	gacha.Rare:      0.43,
	gacha.Epic:      0.051,
	gacha.Legendary: 0.006,
	gacha.Mythic:    0,
}

var examplePool = []gacha.Item{
	{ID: "sword", Rarity: gacha.Common},
	{ID: "bow", Rarity: gacha.Common},
	{ID: "mage", Rarity: gacha.Rare},
	{ID: "knight", Rarity: gacha.Epic},
	{ID: "dragon", Rarity: gacha.Legendary, Featured: true},
	{ID: "titan", Rarity: gacha.Legendary},
}

func testBanner(bannerType, bannerID string) game.Banner {
	return game.Banner{
		ScopeID:  game.ScopeID(bannerType, bannerID),
		Type:     bannerType,
		ID:       bannerID,
		Active:   true,
		Currency: "gem",
		Cost:     token.Token{Name: "gem", PerDraw: 160, MultiPullCount: 10, MultiPullDiscount: 0.1},
		Draw: gacha.Banner{
			ID:           bannerID,
			Type:         bannerType,
			BaseRates:    exampleRates,
			Pity:         gacha.PityConfig{SoftPityStart: 74, HardPity: 90, SoftPityRateIncrease: 0.06, GuaranteedFeaturedAfterLoss: true},
			FeaturedRate: 0.5,
			Pool:         examplePool,
		},
	}
}

// commonOnly never leaves the pity ramp, so every draw increments the counter.
func commonOnly(b game.Banner) game.Banner {
	b.Draw.BaseRates = gacha.RateVector{gacha.Common: 1}
	return b
}

type fakeBanners map[string]game.Banner

func (f fakeBanners) Banner(_ context.Context, scopeID string) (game.Banner, error) {
	b, ok := f[scopeID]
	if !ok {
		return game.Banner{}, fmt.Errorf("%w: %s", game.ErrBannerNotFound, scopeID)
	}
	return b, nil
}

// lockedRNG makes a seeded source safe for the concurrent tests.
type lockedRNG struct {
	mu  sync.Mutex
	src gacha.RandomSource
}

func newRNG(seed uint64) *lockedRNG { return &lockedRNG{src: gacha.NewSeededRNG(seed)} }

func (r *lockedRNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *lockedRNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.IntN(n)
}

type harness struct {
	svc    *pull.Service
	mem    *store.Memory
	ledger *ledger.Ledger
	locker *lock.Memory
	now    time.Time
}

type option func(*pull.Deps, *pull.Options)

func withStore(s pull.PullStore) option     { return func(d *pull.Deps, _ *pull.Options) { d.Store = s } }
func withInventory(i pull.Inventory) option { return func(d *pull.Deps, _ *pull.Options) { d.Inventory = i } }
func withLedger(l pull.Ledger) option       { return func(d *pull.Deps, _ *pull.Options) { d.Ledger = l } }
func withGate(g pull.ComplianceGate) option { return func(d *pull.Deps, _ *pull.Options) { d.Compliance = g } }
func withRewards(h pull.RewardHook) option  { return func(d *pull.Deps, _ *pull.Options) { d.Rewards = h } }
func withPolicy(p pull.ScopePolicy) option {
	return func(_ *pull.Deps, o *pull.Options) { o.ScopePolicy = p }
}

func newHarness(t *testing.T, banners fakeBanners, opts ...option) *harness {
	t.Helper()
	mem := store.NewMemory()
	l := ledger.New(mem, zerolog.Nop())
	locker := lock.NewMemory()
	h := &harness{mem: mem, ledger: l, locker: locker, now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	deps := pull.Deps{
		Banners:   banners,
		Ledger:    l,
		Locker:    locker,
		Store:     mem,
		Inventory: mem,
		RNG:       newRNG(7),
		Logger:    zerolog.Nop(),
		Clock:     func() time.Time { return h.now },
	}
	o := pull.Options{MaxPullsPerRequest: 10, LockTTL: 30 * time.Second}
	for _, opt := range opts {
		opt(&deps, &o)
	}
	h.svc = pull.NewService(deps, o)
	return h
}

func (h *harness) fund(t *testing.T, player string, amount int64) {
	t.Helper()
	_, err := h.ledger.Grant(context.Background(), player, "gem", decimal.NewFromInt(amount), "test funding")
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, player string) string {
	t.Helper()
	b, err := h.ledger.Balance(context.Background(), player, "gem")
	require.NoError(t, err)
	return b.Balance.String()
}

func (h *harness) lockFree(t *testing.T, player string) bool {
	t.Helper()
	ok, err := h.locker.TryAcquire(context.Background(), "gacha:pull-lock:"+player, time.Second)
	require.NoError(t, err)
	if ok {
		require.NoError(t, h.locker.Release(context.Background(), "gacha:pull-lock:"+player))
	}
	return ok
}
