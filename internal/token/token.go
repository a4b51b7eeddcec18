package token

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidToken = errors.New("invalid token pricing")

// Token defines how many currency units a draw costs on one banner.
type Token struct {
	Name              string  // e.g. "Stellar Jade", "Star Stone"
	PerDraw           int64   // units per single draw, e.g. 160, 250
	MultiPullCount    int     // batch size that earns the discount, e.g. 10; 0 disables it
	MultiPullDiscount float64 // fraction off the batch, e.g. 0.1
}

// Validate rejects negative prices and discounts outside [0,1).
func (t Token) Validate() error {
	if t.PerDraw < 0 || t.MultiPullCount < 0 {
		return ErrInvalidToken
	}
	if t.MultiPullDiscount < 0 || t.MultiPullDiscount >= 1 {
		return ErrInvalidToken
	}
	return nil
}

// CostFor returns the units required for n draws. The discount applies only
// when n is exactly the batch size; a 7- or 11-draw request pays full price.
// Discounted totals are floored to whole units.
func (t Token) CostFor(n int) int64 {
	if n <= 0 {
		return 0
	}
	full := t.PerDraw * int64(n)
	if t.MultiPullCount <= 1 || n != t.MultiPullCount || t.MultiPullDiscount <= 0 {
		return full
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(t.MultiPullDiscount))
	return decimal.NewFromInt(full).Mul(factor).Floor().IntPart()
}
