package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Check is one spend about to be made.
type Check struct {
	PlayerID string
	Currency string
	Amount   decimal.Decimal
}

// Decision is the gate's verdict. Reason is shown to the player verbatim.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// AllowAll approves every spend.
type AllowAll struct{}

func (AllowAll) CheckCompliance(context.Context, Check) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// Spender reports how much a player spent recently.
type Spender interface {
	DebitedSince(ctx context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error)
}

// SpendingCap denies a spend that would push a player's completed debits in
// the rolling window above Limit.
type SpendingCap struct {
	spend  Spender
	limit  decimal.Decimal
	window time.Duration
	clock  func() time.Time
}

func NewSpendingCap(spend Spender, limit decimal.Decimal, window time.Duration) *SpendingCap {
	return &SpendingCap{spend: spend, limit: limit, window: window, clock: time.Now}
}

func (c *SpendingCap) CheckCompliance(ctx context.Context, chk Check) (Decision, error) {
	spent, err := c.spend.DebitedSince(ctx, chk.PlayerID, chk.Currency, c.clock().Add(-c.window))
	if err != nil {
		return Decision{}, fmt.Errorf("spending cap: %w", err)
	}
	if spent.Add(chk.Amount).GreaterThan(c.limit) {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("spending limit of %s %s per %s reached", c.limit, chk.Currency, c.window),
		}, nil
	}
	return Decision{Allowed: true}, nil
}
