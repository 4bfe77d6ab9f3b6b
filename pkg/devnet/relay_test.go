package devnet

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/db"
	"github.com/chainsafe/token-bridge/pkg/ledger"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testRelayerConfig() config.RelayerConfig {
	return config.RelayerConfig{
		ReceiptMaxAttempts: 3,
		Retry: config.RetryConfig{
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			MaxRetries:      2,
		},
	}
}

func TestRelay_RoundTrip(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(t)
	store := db.NewMemoryStore()

	procs := n.Processors(store, zap.NewNop(), testRelayerConfig(), 0, relayer.WithSleep(noSleep))
	require.Len(t, procs, 2)
	aToB, bToA := procs[0], procs[1]
	require.Equal(t, "a-to-b", aToB.Route())

	transferOutA(t, n, userV, 3_000)
	transferOutA(t, n, userV, 2_000)

	require.NoError(t, aToB.Scan(ctx))
	assert.Equal(t, uint64(5_000), n.B.Token.BalanceOf(userV).Uint64())
	assertConserved(t, n)

	// A second scan sees nothing new and mints nothing.
	require.NoError(t, aToB.Scan(ctx))
	assert.Equal(t, uint64(5_000), n.B.Token.TotalSupply().Uint64())

	// V burns 1200 on B; the relayer releases it from escrow on A.
	var nonce uint64
	_, err := n.B.Chain.Transact(userV, func(tx *ledger.Tx) (err error) {
		nonce, err = n.B.Bridge.TransferOut(tx, n.Admin, uint256.NewInt(1_200))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	adminBefore := n.A.Token.BalanceOf(n.Admin).Uint64()
	require.NoError(t, bToA.Scan(ctx))
	assert.Equal(t, adminBefore+1_200, n.A.Token.BalanceOf(n.Admin).Uint64())
	assertConserved(t, n)

	transfers, err := store.ListTransfers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 3)
	for _, tr := range transfers {
		assert.Equal(t, db.TransferStatusCompleted, tr.Status, tr.ID)
		assert.NotNil(t, tr.DestinationTxHash)
	}

	got, err := store.GetTransfer(ctx, "b-to-a:0")
	require.NoError(t, err)
	assert.Equal(t, "1200", got.Amount)
	assert.Equal(t, ChainA, got.DestinationChain)

	assert.True(t, aToB.IsReady())
	assert.True(t, bToA.IsReady())
}

// A record another operator already delivered is skipped, not minted twice.
func TestRelay_SkipsProcessed(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(t)
	store := db.NewMemoryStore()

	nonce := transferOutA(t, n, userV, 900)
	_, err := n.B.Chain.Transact(n.Operator, func(tx *ledger.Tx) error {
		return n.B.Bridge.TransferIn(tx, n.Admin, userV, uint256.NewInt(900), nonce)
	})
	require.NoError(t, err)

	procs := n.Processors(store, zap.NewNop(), testRelayerConfig(), 0, relayer.WithSleep(noSleep))
	require.NoError(t, procs[0].Scan(ctx))

	assert.Equal(t, uint64(900), n.B.Token.TotalSupply().Uint64())
	got, err := store.GetTransfer(ctx, "a-to-b:0")
	require.NoError(t, err)
	assert.Equal(t, db.TransferStatusSkipped, got.Status)
}

// Without the inbound role the relay stops at the failing record and retries
// it on the next scan once the role is granted.
func TestRelay_RejectedThenRecovered(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(t)
	store := db.NewMemoryStore()

	b := n.B.Bridge.(*ledger.MintBurnBridge)
	_, err := n.B.Chain.Transact(n.Admin, func(tx *ledger.Tx) error {
		return b.RevokeMinterRole(tx, n.Operator)
	})
	require.NoError(t, err)

	transferOutA(t, n, userV, 100)
	procs := n.Processors(store, zap.NewNop(), testRelayerConfig(), 0, relayer.WithSleep(noSleep))

	err = procs[0].Scan(ctx)
	require.ErrorIs(t, err, relayer.ErrRejected)
	assert.True(t, n.B.Token.TotalSupply().IsZero())
	assert.False(t, procs[0].IsReady())

	got, err := store.GetTransfer(ctx, "a-to-b:0")
	require.NoError(t, err)
	assert.Equal(t, db.TransferStatusFailed, got.Status)

	_, err = n.B.Chain.Transact(n.Admin, func(tx *ledger.Tx) error {
		return b.GrantMinterRole(tx, n.Operator)
	})
	require.NoError(t, err)

	require.NoError(t, procs[0].Scan(ctx))
	assert.Equal(t, uint64(100), n.B.Token.BalanceOf(userV).Uint64())

	got, err = store.GetTransfer(ctx, "a-to-b:0")
	require.NoError(t, err)
	assert.Equal(t, db.TransferStatusCompleted, got.Status)
}

func assertConserved(t *testing.T, n *Network) {
	t.Helper()
	escrow := n.A.Bridge.(*ledger.LockCustodyBridge).Escrow()
	assert.Equal(t, escrow, n.B.Token.TotalSupply())
}
