package oracle

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestCmp_MatchesScalesExactly(t *testing.T) {
	// 1.1 at two precisions.
	require.Zero(t, Cmp(Quote{Mantissa: 11, Expo: -1}, Quote{Mantissa: 1100, Expo: -3}))
	require.Equal(t, 1, Cmp(Quote{Mantissa: 111, Expo: -2}, Quote{Mantissa: 11, Expo: -1}))
	require.Equal(t, -1, Cmp(Quote{Mantissa: 109, Expo: -2}, Quote{Mantissa: 11, Expo: -1}))

	// Positive exponents scale up without truncation.
	require.Zero(t, Cmp(Quote{Mantissa: 5, Expo: 3}, Quote{Mantissa: 5000, Expo: 0}))
}

func TestChangeBps(t *testing.T) {
	// 100.00 -> 110.00 is +1000 bps.
	got := ChangeBps(Quote{Mantissa: 11000, Expo: -2}, Quote{Mantissa: 10000, Expo: -2})
	require.True(t, got.Equal(sdkmath.NewInt(1000)), "got %s", got)

	// 100.00 -> 95.00 is -500 bps.
	got = ChangeBps(Quote{Mantissa: 9500, Expo: -2}, Quote{Mantissa: 10000, Expo: -2})
	require.True(t, got.Equal(sdkmath.NewInt(-500)), "got %s", got)

	// Truncation toward zero: +0.049% -> 4 bps.
	got = ChangeBps(Quote{Mantissa: 100049, Expo: -3}, Quote{Mantissa: 100000, Expo: -3})
	require.True(t, got.Equal(sdkmath.NewInt(4)), "got %s", got)
}

func TestThresholds_StrictInequality(t *testing.T) {
	prev := Quote{Mantissa: 10000, Expo: -2}

	// Exactly +5% does not satisfy a 500 bps above-threshold.
	require.False(t, AboveThreshold(Quote{Mantissa: 10500, Expo: -2}, prev, 500))
	require.True(t, AboveThreshold(Quote{Mantissa: 10501, Expo: -2}, prev, 500))

	// Exactly -5% does not satisfy a 500 bps below-threshold.
	require.False(t, BelowThreshold(Quote{Mantissa: 9500, Expo: -2}, prev, 500))
	require.True(t, BelowThreshold(Quote{Mantissa: 9499, Expo: -2}, prev, 500))
}

func TestThresholds_MixedExponents(t *testing.T) {
	// prev 100, cur 110 with different exponents: +10% clears 750 bps.
	prev := Quote{Mantissa: 100, Expo: 0}
	cur := Quote{Mantissa: 110000, Expo: -3}
	require.True(t, AboveThreshold(cur, prev, 750))
	require.False(t, AboveThreshold(cur, prev, 1000))
}
