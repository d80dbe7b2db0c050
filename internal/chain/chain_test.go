package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMainnet(t *testing.T) {
	params, ok := Get(Mainnet)
	require.True(t, ok, "expected mainnet params to be registered")
	require.Equal(t, "bc", params.Bech32HRP)
}

func TestGetTestnet(t *testing.T) {
	params, ok := Get(Testnet)
	require.True(t, ok, "expected testnet params to be registered")
	require.Equal(t, "tb", params.Bech32HRP)
}

func TestDerivationPathString(t *testing.T) {
	params, _ := Get(Mainnet)
	path := params.DerivationPathString(0, 0, 5)
	require.Equal(t, "m/84'/0'/0'/0/5", path)
}

func TestDerivationPath(t *testing.T) {
	params, _ := Get(Mainnet)
	path := params.DerivationPath(0, 0, 5)
	require.Len(t, path, 5)
	require.Equal(t, uint32(84+0x80000000), path[0])
}
