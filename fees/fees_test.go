package fees

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	cases := []struct {
		name       string
		gross      int64
		rateBps    uint32
		wantSeller int64
		wantFee    int64
	}{
		{"default rate", 200, DefaultPlatformBps, 195, 5},
		{"floor division", 199, DefaultPlatformBps, 195, 4},
		{"fee rounds to zero", 39, DefaultPlatformBps, 39, 0},
		{"smallest nonzero fee", 40, DefaultPlatformBps, 39, 1},
		{"zero rate", 1_000, 0, 1_000, 0},
		{"full rate", 1_000, MaxBps, 0, 1_000},
		{"one percent", 12_345, 100, 12_222, 123},
		{"zero gross", 0, DefaultPlatformBps, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split := Apply(big.NewInt(tc.gross), tc.rateBps)
			require.Equal(t, tc.wantSeller, split.SellerAmount.Int64())
			require.Equal(t, tc.wantFee, split.Fee.Int64())
		})
	}
}

func TestApplyNilAndNegative(t *testing.T) {
	split := Apply(nil, DefaultPlatformBps)
	require.Zero(t, split.SellerAmount.Sign())
	require.Zero(t, split.Fee.Sign())

	split = Apply(big.NewInt(-100), DefaultPlatformBps)
	require.Zero(t, split.SellerAmount.Sign())
	require.Zero(t, split.Fee.Sign())
}

func TestApplyClampsExcessRate(t *testing.T) {
	split := Apply(big.NewInt(100), MaxBps+500)
	require.Equal(t, int64(100), split.Fee.Int64())
	require.Zero(t, split.SellerAmount.Sign())
}

func TestApplyConservation(t *testing.T) {
	rates := []uint32{0, 1, 100, DefaultPlatformBps, 999, 5_000, MaxBps}
	for gross := int64(1); gross < 2_000; gross += 7 {
		for _, rate := range rates {
			split := Apply(big.NewInt(gross), rate)
			sum := new(big.Int).Add(split.SellerAmount, split.Fee)
			require.Equal(t, gross, sum.Int64(), "gross=%d rate=%d", gross, rate)
			require.True(t, split.Fee.Sign() >= 0)
			require.True(t, split.SellerAmount.Sign() >= 0)
		}
	}
}

func TestValidBps(t *testing.T) {
	require.True(t, ValidBps(0))
	require.True(t, ValidBps(DefaultPlatformBps))
	require.True(t, ValidBps(MaxBps))
	require.False(t, ValidBps(MaxBps+1))
}
