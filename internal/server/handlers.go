package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xtding233/gacha-economy/internal/certify"
	"github.com/xtding233/gacha-economy/internal/pricing"
	"github.com/xtding233/gacha-economy/internal/pull"
)

func (s *Server) handleListBanners(w http.ResponseWriter, r *http.Request) {
	ids, err := s.banners.ScopeIDs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"scopes": ids})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req pull.PullRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadRequest(w, r, "invalid request body", err)
		return
	}
	if req.PlayerID == "" || req.ScopeID == "" {
		s.writeBadRequest(w, r, "playerId and scopeId are required", nil)
		return
	}

	resp, err := s.pulls.ExecutePull(r.Context(), req)
	if err != nil {
		s.writePullError(w, r, req.PlayerID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePity(w http.ResponseWriter, r *http.Request) {
	status, err := s.pulls.PityStatus(r.Context(), chi.URLParam(r, "player"), chi.URLParam(r, "scope"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// simulateRequest runs DrawCount draws on each of Players fresh pity chains.
type simulateRequest struct {
	ScopeID   string  `json:"scopeId"`
	DrawCount int     `json:"drawCount"`
	Players   int     `json:"players,omitempty"`
	Seed      *uint64 `json:"seed,omitempty"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadRequest(w, r, "invalid request body", err)
		return
	}

	var (
		res pull.SimulationResult
		err error
	)
	switch {
	case req.Players > 1:
		seed := uint64(0)
		if req.Seed != nil {
			seed = *req.Seed
		}
		res, err = s.pulls.SimulatePopulation(r.Context(), req.ScopeID, req.Players, req.DrawCount, seed)
	case req.Seed != nil:
		res, err = s.pulls.SimulateSeeded(r.Context(), req.ScopeID, req.DrawCount, *req.Seed)
	default:
		res, err = s.pulls.Simulate(r.Context(), req.ScopeID, req.DrawCount)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCertifications(w http.ResponseWriter, r *http.Request) {
	var verdicts []certify.Verdict
	if s.certs != nil {
		verdicts = s.certs.Last()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"certifications": nonNil(verdicts)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	rows, err := s.pulls.History(r.Context(), chi.URLParam(r, "player"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"history": nonNil(rows)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.ledger.Balance(r.Context(), chi.URLParam(r, "player"), chi.URLParam(r, "currency"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bal)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	txs, err := s.ledger.Transactions(r.Context(), chi.URLParam(r, "player"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": nonNil(txs)})
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "txID"))
	if err != nil {
		s.writeBadRequest(w, r, "invalid transaction id", err)
		return
	}
	var req refundRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeBadRequest(w, r, "invalid request body", err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "requested via api"
	}

	tx, err := s.pulls.Refund(r.Context(), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"currency":      s.catalog.Currency,
		"tokenCurrency": s.catalog.TokenCurrency,
		"packs":         nonNil(s.catalog.Packs),
	})
}

type purchaseRequest struct {
	PlayerID string `json:"playerId"`
	PackID   string `json:"packId"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadRequest(w, r, "invalid request body", err)
		return
	}
	if req.PlayerID == "" {
		s.writeBadRequest(w, r, "playerId is required", nil)
		return
	}
	pack, err := s.catalog.Pack(req.PackID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.ledger.Purchase(r.Context(), req.PlayerID, s.catalog.TokenCurrency, pack, s.payer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("player_id", req.PlayerID).
		Str("pack_id", pack.ID).
		Str("tx_id", tx.ID.String()).
		Msg("purchase completed")
	s.writeJSON(w, http.StatusOK, tx)
}

// limitParam parses ?limit=; zero means the default.
func (s *Server) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.writeBadRequest(w, r, fmt.Sprintf("invalid limit %q", raw), err)
		return 0, false
	}
	return n, true
}

// quote prices the cheapest pack combination covering a shortfall.
func (s *Server) quote(r *http.Request, playerID, currency string, shortfall int) *pricing.Plan {
	if len(s.catalog.Packs) == 0 || currency != s.catalog.TokenCurrency || shortfall <= 0 {
		return nil
	}
	first, err := s.ledger.FirstTimeState(r.Context(), playerID, s.catalog.Packs)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("first-time state unavailable for quote")
		return nil
	}
	plan := pricing.MinCostAtLeastTokens(s.catalog, shortfall, first)
	if len(plan.Purchases) == 0 {
		return nil
	}
	return &plan
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
