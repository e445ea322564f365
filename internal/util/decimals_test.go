package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vultisig/vultisig-go/common"
)

func TestBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		base     string
	}{
		{"10", 6, "10000000"},
		{"0.5", 18, "500000000000000000"},
		{"1.123456789", 6, "1123456"},
		{"-2.5", 8, "-250000000"},
		{"0", 9, "0"},
	}
	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			v, err := ToBaseUnits(tc.amount, tc.decimals)
			require.NoError(t, err)
			require.Equal(t, tc.base, v.String())
		})
	}

	_, err := ToBaseUnits("", 6)
	require.Error(t, err)
	_, err = ToBaseUnits("abc", 6)
	require.ErrorContains(t, err, "invalid amount")

	require.Equal(t, "10", FromBaseUnits(big.NewInt(10000000), 6))
	require.Equal(t, "0.000001", FromBaseUnits(big.NewInt(1), 6))
	require.Equal(t, "-1.5", FromBaseUnits(big.NewInt(-150), 2))
	require.Equal(t, "0", FromBaseUnits(nil, 6))
	require.Equal(t, "21.5", FormatGwei(big.NewInt(21500000000)))
}

func TestNativeDecimals(t *testing.T) {
	d, err := GetNativeDecimals(common.Ethereum)
	require.NoError(t, err)
	require.Equal(t, int32(18), d)
	_, err = GetNativeDecimals(common.Zcash)
	require.Error(t, err)
}
