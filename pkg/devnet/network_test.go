package devnet

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/ledger"
)

var blockTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testDevnetConfig() config.DevnetConfig {
	return config.DevnetConfig{
		ChainAID:      1,
		ChainBID:      2,
		InitialSupply: "1000",
	}
}

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := NewNetwork(testDevnetConfig(), ledger.WithClock(func() time.Time { return blockTime }))
	require.NoError(t, err)
	return n
}

func TestNewNetwork(t *testing.T) {
	n := newTestNetwork(t)

	assert.Equal(t, uint64(1), n.A.Chain.ID())
	assert.Equal(t, uint64(2), n.B.Chain.ID())
	assert.Equal(t, uint8(8), n.A.Token.Decimals())
	assert.Equal(t, uint8(10), n.B.Token.Decimals())
	assert.Equal(t, ledger.ModeLockCustody, n.A.Bridge.Mode())
	assert.Equal(t, ledger.ModeMintBurn, n.B.Bridge.Mode())

	// 1000 whole tokens at 8 decimals
	assert.Equal(t, uint256.NewInt(100_000_000_000), n.A.Token.BalanceOf(n.Admin))
	assert.True(t, n.B.Token.TotalSupply().IsZero())

	assert.True(t, n.A.Bridge.HasRole(ledger.ReleaserRole, n.Operator))
	assert.True(t, n.B.Bridge.HasRole(ledger.MinterRole, n.Operator))
	assert.True(t, n.B.Token.HasRole(ledger.BridgeRole, n.B.Bridge.Address()))
	assert.False(t, n.A.Bridge.HasRole(ledger.ReleaserRole, n.Admin))
}

func TestNewNetwork_FixedKeys(t *testing.T) {
	cfg := testDevnetConfig()
	cfg.AdminKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	cfg.OperatorKey = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"

	n1, err := NewNetwork(cfg)
	require.NoError(t, err)
	n2, err := NewNetwork(cfg)
	require.NoError(t, err)

	assert.Equal(t, n1.Admin, n2.Admin)
	assert.Equal(t, n1.Operator, n2.Operator)
	assert.Equal(t, n1.B.Bridge.Address(), n2.B.Bridge.Address())

	cfg.AdminKey = "nothex"
	_, err = NewNetwork(cfg)
	require.ErrorContains(t, err, "admin key")

	cfg = testDevnetConfig()
	cfg.InitialSupply = "1.000000001"
	_, err = NewNetwork(cfg)
	require.ErrorContains(t, err, "initial supply")
}

func TestNetwork_Deployment(t *testing.T) {
	n := newTestNetwork(t)

	d, ok := n.Deployment(ChainA)
	require.True(t, ok)
	assert.Same(t, n.A, d)

	_, ok = n.Deployment("c")
	assert.False(t, ok)

	routes := n.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "a-to-b", routes[0].Name)
	assert.Equal(t, ChainB, routes[1].Source)
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string
		err      string
	}{
		{in: "1", decimals: 8, want: "100000000"},
		{in: "1.5", decimals: 10, want: "15000000000"},
		{in: "0", decimals: 8, want: "0"},
		{in: "0.00000001", decimals: 8, want: "1"},
		{in: "0.000000001", decimals: 8, err: "more than 8 decimals"},
		{in: "-1", decimals: 8, err: "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUnits(decimal.RequireFromString(tt.in), tt.decimals)
			if tt.err != "" {
				require.ErrorContains(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}

	_, err := ParseUnits(decimal.RequireFromString("1e80"), 0)
	require.ErrorContains(t, err, "overflows")
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(uint256.NewInt(150_000_000), 8))
	assert.Equal(t, "0.0000000001", FormatUnits(uint256.NewInt(1), 10))
	assert.Equal(t, "0", FormatUnits(new(uint256.Int), 8))
}

func TestNetwork_ReportEscrow(t *testing.T) {
	n := newTestNetwork(t)
	transferOutA(t, n, userV, 250_000_000)

	assert.Equal(t, uint64(250_000_000), n.Escrow().Uint64())
	assert.Equal(t, 2.5, tokenFloat(n.Escrow(), n.A.Token.Decimals()))
	assert.NotPanics(t, n.ReportEscrow)
}
