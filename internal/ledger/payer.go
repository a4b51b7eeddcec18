package ledger

import (
	"context"

	"github.com/xtding233/gacha-economy/internal/pricing"
)

// SandboxPayer settles every purchase without contacting a payment provider.
// Decline lists pack ids it refuses, for exercising the FAILED path.
type SandboxPayer struct {
	Decline map[string]bool
}

func (p SandboxPayer) Pay(_ context.Context, _ Transaction, pack pricing.Pack) error {
	if p.Decline[pack.ID] {
		return ErrPaymentDeclined
	}
	return nil
}
