package pull

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/compliance"
	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/game"
	"github.com/xtding233/gacha-economy/internal/ledger"
)

// ScopePolicy decides which pity row a banner reads and writes.
type ScopePolicy int

const (
	// PerBanner keys pity by exact banner. A player with no banner row but a
	// type-wide row starts from the type-wide state.
	PerBanner ScopePolicy = iota
	// SharedByType keys pity by banner type, shared across its banners.
	SharedByType
)

func (p ScopePolicy) String() string {
	if p == SharedByType {
		return "shared_by_type"
	}
	return "per_banner"
}

// PityKey identifies one pity row. An empty BannerID is the type-wide row.
type PityKey struct {
	PlayerID   string
	BannerType string
	BannerID   string
}

// HistoryRow is one persisted draw.
type HistoryRow struct {
	PullID        string        `json:"pullId"`
	DrawIndex     int           `json:"drawIndex"`
	PlayerID      string        `json:"playerId"`
	ScopeID       string        `json:"scopeId"`
	TransactionID *uuid.UUID    `json:"transactionId,omitempty"`
	Outcome       gacha.Outcome `json:"outcome"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// PullRecord is everything a completed pull persists, written atomically.
type PullRecord struct {
	Key   PityKey
	State gacha.PityState
	Rows  []HistoryRow
}

// PullStore persists pity state and pull history.
type PullStore interface {
	// Pity returns the row for key and whether it exists.
	Pity(ctx context.Context, key PityKey) (gacha.PityState, bool, error)
	CommitPull(ctx context.Context, rec PullRecord) error
	// History lists a player's draws newest first.
	History(ctx context.Context, playerID string, limit int) ([]HistoryRow, error)
}

// BannerSource resolves a scope id. Unknown scopes fail with game.ErrBannerNotFound.
type BannerSource interface {
	Banner(ctx context.Context, scopeID string) (game.Banner, error)
}

// ComplianceGate approves or denies a spend.
type ComplianceGate interface {
	CheckCompliance(ctx context.Context, chk compliance.Check) (compliance.Decision, error)
}

// Inventory receives granted items. sourceTag is unique per draw.
type Inventory interface {
	GrantItem(ctx context.Context, playerID, itemID, sourceTag string) (isNew bool, err error)
	// RevokeGrant undoes the grant recorded under sourceTag. Unknown tags are a no-op.
	RevokeGrant(ctx context.Context, sourceTag string) error
}

// RewardClaim is a side-channel reward surfaced for one draw.
type RewardClaim struct {
	DrawIndex int               `json:"drawIndex"`
	ItemID    string            `json:"itemId"`
	Kind      string            `json:"kind"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// RewardHook may attach a claim to a draw. A nil claim means none.
type RewardHook interface {
	OnOutcome(ctx context.Context, playerID, scopeID string, drawIndex int, out gacha.Outcome) (*RewardClaim, error)
}

// Ledger is the subset of the currency ledger the service uses.
type Ledger interface {
	Balance(ctx context.Context, playerID, currency string) (ledger.Balance, error)
	Deduct(ctx context.Context, e ledger.Entry) (ledger.Transaction, error)
	Refund(ctx context.Context, id uuid.UUID, reason string) (ledger.Transaction, error)
}

// PullRequest asks for DrawCount draws on one banner scope.
type PullRequest struct {
	PlayerID  string `json:"playerId"`
	ScopeID   string `json:"scopeId"`
	DrawCount int    `json:"drawCount"`
}

// PullResponse has everything a client needs to render the result.
type PullResponse struct {
	PullID        string          `json:"pullId"`
	PlayerID      string          `json:"playerId"`
	ScopeID       string          `json:"scopeId"`
	Outcomes      []gacha.Outcome `json:"outcomes"`
	Pity          gacha.PityState `json:"pity"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID *uuid.UUID      `json:"transactionId,omitempty"`
	Rewards       []RewardClaim   `json:"rewards,omitempty"`
}

// PityStatus is a read-only view of one scope's pity.
type PityStatus struct {
	ScopeID             string           `json:"scopeId"`
	Policy              string           `json:"policy"`
	State               gacha.PityState  `json:"state"`
	Config              gacha.PityConfig `json:"config"`
	DrawsUntilHard      int              `json:"drawsUntilHardPity"`
	SoftPityActive      bool             `json:"softPityActive"`
	NextDrawRates       gacha.RateVector `json:"nextDrawRates"`
	NextTopTierFeatured bool             `json:"nextTopTierFeatured"`
}

// SimulationResult is a certification run plus the seed that reproduces it.
type SimulationResult struct {
	ScopeID string `json:"scopeId"`
	Seed    uint64 `json:"seed"`
	gacha.Simulation
}
