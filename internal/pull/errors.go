package pull

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/ledger"
)

var (
	ErrInvalidDrawCount  = errors.New("invalid draw count")
	ErrBannerUnavailable = errors.New("banner unavailable")
	ErrComplianceDenied  = errors.New("compliance denied")
	// ErrPullInProgress means another request holds the player's pull lock. Retry with backoff.
	ErrPullInProgress = errors.New("pull in progress")
	// ErrLedgerFailure means the debit failed after the lock was taken; no draw was made.
	ErrLedgerFailure = errors.New("ledger failure")

	// Re-exported from the packages they originate in.
	ErrInsufficientBalance  = ledger.ErrInsufficientBalance
	ErrEmptyItemPool        = gacha.ErrEmptyItemPool
	ErrRefundAlreadyApplied = ledger.ErrRefundAlreadyApplied
	ErrTransactionNotFound  = ledger.ErrTransactionNotFound
)

// ComplianceError carries the gate's denial reason verbatim.
type ComplianceError struct {
	Reason string
}

func (e *ComplianceError) Error() string {
	if e.Reason == "" {
		return ErrComplianceDenied.Error()
	}
	return ErrComplianceDenied.Error() + ": " + e.Reason
}

func (e *ComplianceError) Unwrap() error { return ErrComplianceDenied }

// InsufficientBalanceError is the pre-check failure, with the numbers a client
// needs to quote a top-up.
type InsufficientBalanceError struct {
	Currency string
	Need     decimal.Decimal
	Have     decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: need %s %s, have %s", ErrInsufficientBalance, e.Need, e.Currency, e.Have)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is how much more currency the pull needs.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return decimal.Max(e.Need.Sub(e.Have), decimal.Zero)
}

// IsRetryable reports whether the caller should retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPullInProgress)
}

// resultLabel buckets an error for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidDrawCount):
		return "invalid_draw_count"
	case errors.Is(err, ErrBannerUnavailable):
		return "banner_unavailable"
	case errors.Is(err, ErrComplianceDenied):
		return "compliance_denied"
	case errors.Is(err, ErrPullInProgress):
		return "in_progress"
	case errors.Is(err, ErrLedgerFailure):
		return "ledger_failure"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrEmptyItemPool):
		return "empty_item_pool"
	}
	return "error"
}
