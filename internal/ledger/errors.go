package ledger

import "errors"

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidKind          = errors.New("invalid transaction kind")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrRefundAlreadyApplied = errors.New("refund already applied")
	ErrNotRefundable        = errors.New("transaction is not refundable")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrPaymentDeclined      = errors.New("payment declined")
)
