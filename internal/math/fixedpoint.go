package math

import "math/big"

// All engine quantities share one fixed-point convention: token amounts and
// USD values carry 18 decimals (wad), oracle prices arrive with 8 decimals
// and are extended to wad before any multiplication. Every computation runs
// on big.Int — wad-scale amounts overflow int64 past a handful of tokens.
var (
	// Wad is the 18-decimal fixed-point unit.
	Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// FeedScale is the 8-decimal fixed-point unit used by price feeds.
	FeedScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(8), nil)

	// FeedToWad extends an 8-decimal feed price to the wad scale.
	FeedToWad = new(big.Int).Exp(big.NewInt(10), big.NewInt(10), nil)
)

// MulDiv computes (a * b) / denom with a full-width intermediate product,
// truncating toward zero. denom must be non-zero.
func MulDiv(a, b, denom *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, denom)
}

// WadMul multiplies two wad-scale values, returning a wad-scale value.
func WadMul(a, b *big.Int) *big.Int {
	return MulDiv(a, b, Wad)
}

// WadDiv divides two wad-scale values, returning a wad-scale value.
func WadDiv(a, b *big.Int) *big.Int {
	return MulDiv(a, Wad, b)
}

// FromUnits returns n whole units at the wad scale.
func FromUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Wad)
}

// Clone returns a defensive copy. A nil input is treated as zero.
func Clone(a *big.Int) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}
