package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spenderFunc func(ctx context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error)

func (f spenderFunc) DebitedSince(ctx context.Context, playerID, currency string, since time.Time) (decimal.Decimal, error) {
	return f(ctx, playerID, currency, since)
}

func TestAllowAll(t *testing.T) {
	d, err := AllowAll{}.CheckCompliance(context.Background(), Check{PlayerID: "p1", Amount: decimal.NewFromInt(1e9)})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestSpendingCap(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotSince time.Time
	spent := spenderFunc(func(_ context.Context, _, _ string, since time.Time) (decimal.Decimal, error) {
		gotSince = since
		return decimal.NewFromInt(1000), nil
	})
	gate := NewSpendingCap(spent, decimal.NewFromInt(2440), 24*time.Hour)
	gate.clock = func() time.Time { return now }

	d, err := gate.CheckCompliance(context.Background(), Check{PlayerID: "p1", Currency: "gem", Amount: decimal.NewFromInt(1440)})
	require.NoError(t, err)
	assert.True(t, d.Allowed, "exactly at the cap is allowed")
	assert.Equal(t, now.Add(-24*time.Hour), gotSince)

	d, err = gate.CheckCompliance(context.Background(), Check{PlayerID: "p1", Currency: "gem", Amount: decimal.NewFromInt(1441)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "spending limit of 2440 gem")
}

func TestSpendingCapStoreError(t *testing.T) {
	boom := errors.New("db down")
	gate := NewSpendingCap(spenderFunc(func(context.Context, string, string, time.Time) (decimal.Decimal, error) {
		return decimal.Zero, boom
	}), decimal.NewFromInt(1), time.Hour)
	_, err := gate.CheckCompliance(context.Background(), Check{PlayerID: "p1"})
	assert.ErrorIs(t, err, boom)
}
