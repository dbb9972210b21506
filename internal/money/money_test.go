package money

import "testing"

func TestMulMultiplier(t *testing.T) {
	stake := FromFloat(100.00)
	mult := MultiplierFromFloat(1.50)

	payout := stake.MulMultiplier(mult)

	if got, want := payout.Float64(), 150.00; got != want {
		t.Errorf("MulMultiplier() = %v, want %v", got, want)
	}
}

func TestMultiplierFromFloatRoundsDown(t *testing.T) {
	m := MultiplierFromFloat(2.4599999)
	if m != 245 {
		t.Errorf("MultiplierFromFloat() = %d, want 245", m)
	}
}

func TestAmountStringRoundTrip(t *testing.T) {
	a := FromFloat(1234.56)
	if a.String() != "1234.56" {
		t.Errorf("String() = %q, want %q", a.String(), "1234.56")
	}

	parsed, err := ParseAmount("1234.56")
	if err != nil {
		t.Fatalf("ParseAmount() error: %v", err)
	}
	if parsed != a {
		t.Errorf("ParseAmount() = %v, want %v", parsed, a)
	}
}

func TestAmountNegative(t *testing.T) {
	a := FromFloat(-5.5)
	if a.String() != "-5.50" {
		t.Errorf("String() = %q, want %q", a.String(), "-5.50")
	}
}
