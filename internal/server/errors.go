package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/middleware"
	"github.com/xtding233/gacha-economy/internal/pricing"
	"github.com/xtding233/gacha-economy/internal/pull"
)

// Error codes returned in the "error" field.
const (
	codeBadRequest          = "bad_request"
	codeInvalidDrawCount    = "invalid_draw_count"
	codeBannerUnavailable   = "banner_unavailable"
	codeComplianceDenied    = "compliance_denied"
	codeInsufficientBalance = "insufficient_balance"
	codePullInProgress      = "pull_in_progress"
	codeAlreadyRefunded     = "refund_already_applied"
	codeNotRefundable       = "not_refundable"
	codeNotFound            = "not_found"
	codePaymentFailed       = "payment_failed"
	codeInternal            = "internal"
)

type errorResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	RequestID string           `json:"requestId,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
	Need      *decimal.Decimal `json:"need,omitempty"`
	Have      *decimal.Decimal `json:"have,omitempty"`
	Shortfall *decimal.Decimal `json:"shortfall,omitempty"`
	Quote     *pricing.Plan    `json:"quote,omitempty"`
}

// classify maps a service error to a status and code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pull.ErrInvalidDrawCount):
		return http.StatusBadRequest, codeInvalidDrawCount
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidKind):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, pull.ErrBannerUnavailable):
		return http.StatusNotFound, codeBannerUnavailable
	case errors.Is(err, pull.ErrComplianceDenied):
		return http.StatusForbidden, codeComplianceDenied
	case errors.Is(err, pull.ErrPullInProgress):
		return http.StatusTooManyRequests, codePullInProgress
	case errors.Is(err, pull.ErrInsufficientBalance):
		return http.StatusPaymentRequired, codeInsufficientBalance
	case errors.Is(err, ledger.ErrPaymentFailed):
		return http.StatusPaymentRequired, codePaymentFailed
	case errors.Is(err, pull.ErrRefundAlreadyApplied):
		return http.StatusConflict, codeAlreadyRefunded
	case errors.Is(err, ledger.ErrNotRefundable):
		return http.StatusConflict, codeNotRefundable
	case errors.Is(err, pull.ErrTransactionNotFound), errors.Is(err, pricing.ErrPackNotFound):
		return http.StatusNotFound, codeNotFound
	}
	return http.StatusInternalServerError, codeInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	s.respondError(w, r, status, errorResponse{Error: code, Message: err.Error()}, err)
}

// writePullError adds the compliance reason, the retry hint or a top-up
// quote to the error body, depending on what failed.
func (s *Server) writePullError(w http.ResponseWriter, r *http.Request, playerID string, err error) {
	status, code := classify(err)
	body := errorResponse{Error: code, Message: err.Error(), Retryable: pull.IsRetryable(err)}

	var ce *pull.ComplianceError
	if errors.As(err, &ce) {
		body.Reason = ce.Reason
	}
	var ie *pull.InsufficientBalanceError
	if errors.As(err, &ie) {
		short := ie.Shortfall()
		body.Need, body.Have, body.Shortfall = &ie.Need, &ie.Have, &short
		body.Quote = s.quote(r, playerID, ie.Currency, int(short.Ceil().IntPart()))
	}
	if body.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	s.respondError(w, r, status, body, err)
}

func (s *Server) writeBadRequest(w http.ResponseWriter, r *http.Request, msg string, cause error) {
	body := errorResponse{Error: codeBadRequest, Message: msg}
	if cause != nil {
		body.Message = msg + ": " + cause.Error()
	}
	s.respondError(w, r, http.StatusBadRequest, body, cause)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, body errorResponse, cause error) {
	body.RequestID = middleware.GetRequestID(r.Context())
	log := zerolog.Ctx(r.Context())
	var ev *zerolog.Event
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	} else {
		ev = log.Info()
	}
	ev.Err(cause).
		Int("status", status).
		Str("code", body.Error).
		Str("path", r.URL.Path).
		Msg("request failed")
	s.writeJSON(w, status, body)
}
