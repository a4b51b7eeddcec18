package pull

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/compliance"
	"github.com/xtding233/gacha-economy/internal/constants"
	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/game"
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/lock"
	"github.com/xtding233/gacha-economy/internal/metrics"
)

// Deps are the collaborators a Service coordinates.
type Deps struct {
	Banners    BannerSource
	Ledger     Ledger
	Locker     lock.Locker
	Store      PullStore
	Inventory  Inventory
	Compliance ComplianceGate // nil approves every spend
	Rewards    RewardHook     // optional
	// RNG must be safe for concurrent use; nil uses gacha.DefaultRNG.
	RNG    gacha.RandomSource
	Logger zerolog.Logger
	Clock  func() time.Time
}

type Options struct {
	MaxPullsPerRequest int
	LockTTL            time.Duration
	ScopePolicy        ScopePolicy
}

// Service is the pull orchestrator.
type Service struct {
	banners    BannerSource
	ledger     Ledger
	locker     lock.Locker
	store      PullStore
	inventory  Inventory
	compliance ComplianceGate
	rewards    RewardHook
	rng        gacha.RandomSource
	logger     zerolog.Logger
	clock      func() time.Time
	opts       Options
}

func NewService(d Deps, o Options) *Service {
	if o.MaxPullsPerRequest <= 0 {
		o.MaxPullsPerRequest = constants.DefaultMaxPullsPerRequest
	}
	if o.LockTTL <= 0 {
		o.LockTTL = constants.PullLockTTL
	}
	if d.RNG == nil {
		d.RNG = gacha.DefaultRNG()
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	if d.Compliance == nil {
		d.Compliance = compliance.AllowAll{}
	}
	return &Service{
		banners:    d.Banners,
		ledger:     d.Ledger,
		locker:     d.Locker,
		store:      d.Store,
		inventory:  d.Inventory,
		compliance: d.Compliance,
		rewards:    d.Rewards,
		rng:        d.RNG,
		logger:     d.Logger.With().Str("component", "pull").Logger(),
		clock:      d.Clock,
		opts:       o,
	}
}

func lockKey(playerID string) string {
	return constants.PullLockPrefix + playerID
}

// ExecutePull charges for and performs req.DrawCount sequential draws.
// Either every draw is committed together with its debit, or the request
// fails and any debit already taken is refunded.
func (s *Service) ExecutePull(ctx context.Context, req PullRequest) (resp PullResponse, err error) {
	start := s.clock()
	bannerType := ""
	defer func() {
		metrics.RecordPull(bannerType, resultLabel(err), s.clock().Sub(start))
	}()

	if req.DrawCount < 1 || req.DrawCount > s.opts.MaxPullsPerRequest {
		return PullResponse{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidDrawCount, req.DrawCount, s.opts.MaxPullsPerRequest)
	}

	// 1. banner
	banner, err := s.activeBanner(ctx, req.ScopeID, start)
	if err != nil {
		return PullResponse{}, err
	}
	bannerType = banner.Type
	log := s.logger.With().
		Str("player_id", req.PlayerID).
		Str("scope", banner.ScopeID).
		Int("draws", req.DrawCount).
		Logger()

	// 2-3. cost and compliance
	cost := decimal.NewFromInt(banner.Cost.CostFor(req.DrawCount))
	if banner.RequiresCompliance {
		dec, err := s.compliance.CheckCompliance(ctx, compliance.Check{PlayerID: req.PlayerID, Currency: banner.Currency, Amount: cost})
		if err != nil {
			return PullResponse{}, fmt.Errorf("compliance check: %w", err)
		}
		if !dec.Allowed {
			log.Info().Str("reason", dec.Reason).Msg("pull denied by compliance gate")
			return PullResponse{}, &ComplianceError{Reason: dec.Reason}
		}
	}

	// 4. balance pre-check; the debit re-verifies atomically
	if cost.IsPositive() {
		bal, err := s.ledger.Balance(ctx, req.PlayerID, banner.Currency)
		if err != nil {
			return PullResponse{}, fmt.Errorf("read balance: %w", err)
		}
		if bal.Balance.LessThan(cost) {
			return PullResponse{}, &InsufficientBalanceError{Currency: banner.Currency, Need: cost, Have: bal.Balance}
		}
	}

	// 5. pull lock, released on every exit path
	key := lockKey(req.PlayerID)
	ok, err := s.locker.TryAcquire(ctx, key, s.opts.LockTTL)
	if err != nil {
		return PullResponse{}, fmt.Errorf("acquire pull lock: %w", err)
	}
	if !ok {
		metrics.RecordLockContention()
		return PullResponse{}, fmt.Errorf("%w: player %s", ErrPullInProgress, req.PlayerID)
	}
	defer func() {
		if rerr := s.locker.Release(context.WithoutCancel(ctx), key); rerr != nil {
			log.Error().Err(rerr).Msg("failed to release pull lock")
		}
	}()

	pityKey, state, err := s.loadPity(ctx, req.PlayerID, banner)
	if err != nil {
		return PullResponse{}, fmt.Errorf("load pity: %w", err)
	}

	pullID, err := gonanoid.New()
	if err != nil {
		return PullResponse{}, fmt.Errorf("pull id: %w", err)
	}
	log = log.With().Str("pull_id", pullID).Logger()

	// 6. debit
	var debit *ledger.Transaction
	if cost.IsPositive() {
		tx, err := s.ledger.Deduct(ctx, ledger.Entry{
			PlayerID:      req.PlayerID,
			Currency:      banner.Currency,
			Amount:        cost,
			Kind:          ledger.KindPull,
			RelatedPullID: pullID,
			Reason:        banner.ScopeID,
		})
		if err != nil {
			return PullResponse{}, fmt.Errorf("%w: %w", ErrLedgerFailure, err)
		}
		debit = &tx
	}

	// The debit is taken: from here the request runs to completion or refunds,
	// whatever the caller does with ctx.
	ctx = context.WithoutCancel(ctx)

	// 7. draws, strictly sequential, each seeing the pity left by the previous one
	now := s.clock()
	outcomes := make([]gacha.Outcome, 0, req.DrawCount)
	for i := 0; i < req.DrawCount; i++ {
		out, err := banner.Draw.Draw(&state, s.rng, now)
		if err != nil {
			return PullResponse{}, s.abort(ctx, log, debit, nil, fmt.Errorf("draw %d: %w", i, err))
		}
		outcomes = append(outcomes, out)
	}

	// 8. grants, rewards, history
	var rewards []RewardClaim
	granted := make([]string, 0, len(outcomes))
	for i := range outcomes {
		tag := fmt.Sprintf("pull:%s:%d", pullID, i)
		isNew, err := s.inventory.GrantItem(ctx, req.PlayerID, outcomes[i].ItemID, tag)
		if err != nil {
			return PullResponse{}, s.abort(ctx, log, debit, granted, fmt.Errorf("grant %s: %w", outcomes[i].ItemID, err))
		}
		granted = append(granted, tag)
		outcomes[i].IsNew = isNew
		if s.rewards != nil {
			claim, err := s.rewards.OnOutcome(ctx, req.PlayerID, banner.ScopeID, i, outcomes[i])
			if err != nil {
				log.Warn().Err(err).Int("draw", i).Msg("reward hook failed")
			} else if claim != nil {
				claim.DrawIndex = i
				rewards = append(rewards, *claim)
			}
		}
	}

	rec := PullRecord{Key: pityKey, State: state, Rows: make([]HistoryRow, len(outcomes))}
	for i, out := range outcomes {
		rec.Rows[i] = HistoryRow{
			PullID:    pullID,
			DrawIndex: i,
			PlayerID:  req.PlayerID,
			ScopeID:   banner.ScopeID,
			Outcome:   out,
			CreatedAt: now,
		}
		if debit != nil {
			rec.Rows[i].TransactionID = &debit.ID
		}
	}
	if err := s.store.CommitPull(ctx, rec); err != nil {
		return PullResponse{}, s.abort(ctx, log, debit, granted, fmt.Errorf("commit pull: %w", err))
	}

	resp = PullResponse{
		PullID:    pullID,
		PlayerID:  req.PlayerID,
		ScopeID:   banner.ScopeID,
		Outcomes:  outcomes,
		Pity:      state,
		TotalCost: cost,
		Currency:  banner.Currency,
		Rewards:   rewards,
	}
	if debit != nil {
		resp.Balance = debit.BalanceAfter
		resp.TransactionID = &debit.ID
	} else if bal, err := s.ledger.Balance(ctx, req.PlayerID, banner.Currency); err == nil {
		resp.Balance = bal.Balance
	}

	top := 0
	for _, out := range outcomes {
		metrics.RecordDraw(banner.Type, out.Rarity.String(), out.SoftPity, out.HardPity)
		if out.Rarity.IsTopTier() {
			top++
		}
	}
	log.Info().
		Str("cost", cost.String()).
		Int("top_tier", top).
		Int("pity_counter", state.PityCounter).
		Msg("pull completed")
	return resp, nil
}

// abort takes back the grants and refunds the debit of a pull that cannot complete.
func (s *Service) abort(ctx context.Context, log zerolog.Logger, debit *ledger.Transaction, granted []string, cause error) error {
	log.Error().Err(cause).Msg("pull aborted after debit")
	errs := []error{cause}
	for i := len(granted) - 1; i >= 0; i-- {
		if err := s.inventory.RevokeGrant(ctx, granted[i]); err != nil {
			log.Error().Err(err).Str("source_tag", granted[i]).Msg("compensating revoke failed")
			errs = append(errs, fmt.Errorf("revoke %s: %w", granted[i], err))
		}
	}
	if debit != nil {
		if _, err := s.ledger.Refund(ctx, debit.ID, "pull aborted"); err != nil {
			log.Error().Err(err).Str("tx_id", debit.ID.String()).Msg("compensating refund failed")
			errs = append(errs, fmt.Errorf("refund %s: %w", debit.ID, err))
		}
	}
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// activeBanner resolves a scope that can be pulled on right now.
func (s *Service) activeBanner(ctx context.Context, scopeID string, now time.Time) (game.Banner, error) {
	b, err := s.banners.Banner(ctx, scopeID)
	switch {
	case errors.Is(err, game.ErrBannerNotFound), errors.Is(err, game.ErrInvalidConfig):
		return game.Banner{}, fmt.Errorf("%w: %w", ErrBannerUnavailable, err)
	case err != nil:
		return game.Banner{}, err
	}
	if !b.ActiveAt(now) {
		return game.Banner{}, fmt.Errorf("%w: %s is not active", ErrBannerUnavailable, scopeID)
	}
	if len(b.Draw.Pool) == 0 {
		return game.Banner{}, fmt.Errorf("%w: %w", ErrBannerUnavailable, ErrEmptyItemPool)
	}
	return b, nil
}

// Refund reverses a completed debit.
func (s *Service) Refund(ctx context.Context, txID uuid.UUID, reason string) (ledger.Transaction, error) {
	tx, err := s.ledger.Refund(ctx, txID, reason)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.logger.Info().
		Str("player_id", tx.PlayerID).
		Str("tx_id", tx.ID.String()).
		Str("pull_id", tx.RelatedPullID).
		Msg("refund issued")
	return tx, nil
}

// History lists a player's draws newest first.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	limit = min(limit, constants.MaxHistoryLimit)
	return s.store.History(ctx, playerID, limit)
}
