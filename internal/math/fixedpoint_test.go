package math_test

import (
	"math/big"
	"testing"

	fpmath "StableCore/internal/math"
)

func TestMulDiv_Truncates(t *testing.T) {
	// 7 * 3 / 2 = 10.5 -> 10
	got := fpmath.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("got %s, want 10", got)
	}
}

func TestMulDiv_FullWidthIntermediate(t *testing.T) {
	// a*b overflows int64 and uint64; the quotient must still be exact.
	a := fpmath.FromUnits(5_000_000) // 5e24
	b := fpmath.FromUnits(3)         // 3e18
	got := fpmath.MulDiv(a, b, fpmath.Wad)

	want := fpmath.FromUnits(15_000_000)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestWadMul(t *testing.T) {
	// 2.5 * 4 = 10
	a := new(big.Int).Mul(big.NewInt(25), new(big.Int).Quo(fpmath.Wad, big.NewInt(10)))
	got := fpmath.WadMul(a, fpmath.FromUnits(4))
	if got.Cmp(fpmath.FromUnits(10)) != 0 {
		t.Errorf("got %s, want %s", got, fpmath.FromUnits(10))
	}
}

func TestWadDiv(t *testing.T) {
	// 10 / 4 = 2.5
	want := new(big.Int).Mul(big.NewInt(25), new(big.Int).Quo(fpmath.Wad, big.NewInt(10)))
	got := fpmath.WadDiv(fpmath.FromUnits(10), fpmath.FromUnits(4))
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestWadDiv_RoundTripWithinOneUlp(t *testing.T) {
	// amount -> usd -> amount must lose at most one base unit to
	// truncation.
	price := fpmath.FromUnits(1977) // USD per token, wad
	amount, _ := new(big.Int).SetString("123456789012345678", 10)

	usd := fpmath.WadMul(price, amount)
	back := fpmath.WadDiv(usd, price)

	diff := new(big.Int).Sub(amount, back)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(1)) > 0 {
		t.Errorf("round trip drifted by %s base units", diff)
	}
}

func TestFeedToWad(t *testing.T) {
	// 2000.00000000 at feed scale extends to 2000 wad.
	feedPrice := new(big.Int).Mul(big.NewInt(2000), fpmath.FeedScale)
	got := new(big.Int).Mul(feedPrice, fpmath.FeedToWad)
	if got.Cmp(fpmath.FromUnits(2000)) != 0 {
		t.Errorf("got %s, want %s", got, fpmath.FromUnits(2000))
	}
}

func TestClone_Defensive(t *testing.T) {
	a := big.NewInt(42)
	b := fpmath.Clone(a)
	b.SetInt64(7)
	if a.Int64() != 42 {
		t.Error("clone aliased the original")
	}

	if fpmath.Clone(nil).Sign() != 0 {
		t.Error("nil clone should be zero")
	}
}
