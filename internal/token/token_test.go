package token

import "testing"

func TestCostFor(t *testing.T) {
	tok := Token{Name: "Primogem", PerDraw: 160, MultiPullCount: 10, MultiPullDiscount: 0.1}
	tests := []struct {
		name  string
		draws int
		want  int64
	}{
		{"single", 1, 160},
		{"seven pays full", 7, 1120},
		{"ten is discounted", 10, 1440},
		{"eleven pays full", 11, 1760},
		{"twenty is not a batch", 20, 3200},
		{"zero", 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tok.CostFor(tc.draws); got != tc.want {
				t.Fatalf("CostFor(%d) = %d, want %d", tc.draws, got, tc.want)
			}
		})
	}
}

func TestCostForFloorsDiscount(t *testing.T) {
	tok := Token{PerDraw: 333, MultiPullCount: 3, MultiPullDiscount: 0.15}
	// 999 * 0.85 = 849.15
	if got := tok.CostFor(3); got != 849 {
		t.Fatalf("got %d want 849", got)
	}
}

func TestValidate(t *testing.T) {
	if err := (Token{PerDraw: 160, MultiPullCount: 10, MultiPullDiscount: 0.1}).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (Token{PerDraw: -1}).Validate(); err == nil {
		t.Fatalf("negative price must fail")
	}
	if err := (Token{PerDraw: 1, MultiPullDiscount: 1}).Validate(); err == nil {
		t.Fatalf("100%% discount must fail")
	}
}
