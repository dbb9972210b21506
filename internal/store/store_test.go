package store

import (
	"testing"

	"crashcore/internal/money"
)

func TestNetProfit(t *testing.T) {
	u := User{TotalWon: 500, TotalLost: 200}
	if got := u.NetProfit(); got != 300 {
		t.Fatalf("NetProfit() = %d, want 300", got)
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash := hashPassword("correct horse battery staple")
	if !checkPassword(hash, "correct horse battery staple") {
		t.Fatal("checkPassword rejected the correct password")
	}
	if checkPassword(hash, "wrong password") {
		t.Fatal("checkPassword accepted the wrong password")
	}
}

func TestCheckPasswordEmptyHash(t *testing.T) {
	if checkPassword("", "anything") {
		t.Fatal("checkPassword must reject an empty stored hash")
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 100},
		{-5, 100},
		{501, 100},
		{50, 50},
		{500, 500},
	}
	for _, c := range cases {
		if got := clampLimit(c.in); got != c.want {
			t.Errorf("clampLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestJoinComma(t *testing.T) {
	got := joinComma([]string{"a = $1", "b = $2"})
	want := "a = $1, b = $2"
	if got != want {
		t.Fatalf("joinComma() = %q, want %q", got, want)
	}
}

func TestBumpUserCountersDeltaShapes(t *testing.T) {
	// Exercises the same arithmetic bumpUserCounters performs without
	// requiring a live transaction: a win's wonDelta is payout-stake, a
	// loss's lostDelta is the full stake.
	stake := money.Amount(1000)
	payout := stake.MulMultiplier(250) // 2.50x
	won := payout.Sub(stake)
	if won != 1500 {
		t.Fatalf("expected profit of 1500, got %d", won)
	}
}
