package oracle

import (
	sdkmath "cosmossdk.io/math"
)

// Quote is a fixed-point metric value: Mantissa * 10^Expo. Exponents are
// explicit so mixed-precision feeds compare exactly.
type Quote struct {
	Mantissa int64 `json:"m"`
	Expo     int32 `json:"e"`
}

// MaxQuoteExpo bounds |Expo|. Comparison helpers rescale by 10^(expo spread)
// and multiply by basis points; the bound keeps that arithmetic well inside
// sdkmath.Int's 256-bit range, where larger exponents would panic.
const MaxQuoteExpo int32 = 18

func (q Quote) Positive() bool { return q.Mantissa > 0 }

// ExpoInRange reports whether the exponent is within the comparable range.
// Verify rejects quotes outside it; the comparison helpers assume it holds.
func (q Quote) ExpoInRange() bool {
	return q.Expo >= -MaxQuoteExpo && q.Expo <= MaxQuoteExpo
}

// matchScale brings two quotes to the finer of their two exponents. The
// lower-precision operand is scaled up; the higher-precision one is never
// truncated.
func matchScale(a, b Quote) (sdkmath.Int, sdkmath.Int) {
	ma := sdkmath.NewInt(a.Mantissa)
	mb := sdkmath.NewInt(b.Mantissa)
	switch {
	case a.Expo > b.Expo:
		ma = ma.Mul(pow10(a.Expo - b.Expo))
	case b.Expo > a.Expo:
		mb = mb.Mul(pow10(b.Expo - a.Expo))
	}
	return ma, mb
}

func pow10(n int32) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(1, int(n))
}

// Cmp compares two quotes at matched scale: -1 if a < b, 0 if equal, 1 if a > b.
func Cmp(a, b Quote) int {
	ma, mb := matchScale(a, b)
	return ma.BigInt().Cmp(mb.BigInt())
}

// ChangeBps returns (cur-prev)/prev in basis points at matched scale,
// truncated toward zero. prev must be positive.
func ChangeBps(cur, prev Quote) sdkmath.Int {
	mc, mp := matchScale(cur, prev)
	return mc.Sub(mp).Mul(sdkmath.NewInt(10000)).Quo(mp)
}

// AboveThreshold reports cur > prev * (1 + bps/10000), computed as
// cur*10000 > prev*(10000+bps) to stay in integer arithmetic.
func AboveThreshold(cur, prev Quote, bps uint32) bool {
	mc, mp := matchScale(cur, prev)
	lhs := mc.Mul(sdkmath.NewInt(10000))
	rhs := mp.Mul(sdkmath.NewInt(10000 + int64(bps)))
	return lhs.GT(rhs)
}

// BelowThreshold reports cur < prev * (1 - bps/10000).
func BelowThreshold(cur, prev Quote, bps uint32) bool {
	mc, mp := matchScale(cur, prev)
	lhs := mc.Mul(sdkmath.NewInt(10000))
	rhs := mp.Mul(sdkmath.NewInt(10000 - int64(bps)))
	return lhs.LT(rhs)
}
