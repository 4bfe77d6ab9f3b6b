package devnet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/token-bridge/pkg/ledger"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

var userV = common.HexToAddress("0x00000000000000000000000000000000000000d4")

// transferOutA approves and sends amount from the admin on chain A to to.
func transferOutA(t *testing.T, n *Network, to common.Address, amount uint64) uint64 {
	t.Helper()
	_, err := n.A.Chain.Transact(n.Admin, func(tx *ledger.Tx) error {
		return n.A.Token.Approve(tx, n.A.Bridge.Address(), uint256.NewInt(amount))
	})
	require.NoError(t, err)

	var nonce uint64
	_, err = n.A.Chain.Transact(n.Admin, func(tx *ledger.Tx) (err error) {
		nonce, err = n.A.Bridge.TransferOut(tx, to, uint256.NewInt(amount))
		return err
	})
	require.NoError(t, err)
	return nonce
}

func TestChainClient_FetchTransfersOut(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(t)
	clientA, _ := n.Clients()

	transferOutA(t, n, userV, 500)
	transferOutA(t, n, userV, 700)

	latest, err := clientA.LatestBlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), latest) // initial mint plus two approve/transfer pairs

	events, err := clientA.FetchTransfersOut(ctx, 0, latest)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, ChainA, events[0].SourceChain)
	assert.Equal(t, uint64(0), events[0].Nonce)
	assert.Equal(t, uint64(3), events[0].BlockNumber)
	assert.Equal(t, n.Admin, events[0].Sender)
	assert.Equal(t, userV, events[0].Recipient)
	assert.Equal(t, big.NewInt(500), events[0].Amount)
	assert.Equal(t, uint64(blockTime.Unix()), events[0].Timestamp)
	assert.Equal(t, uint64(1), events[1].Nonce)

	events, err = clientA.FetchTransfersOut(ctx, 4, 4)
	require.NoError(t, err)
	assert.Empty(t, events)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = clientA.FetchTransfersOut(cancelled, 0, latest)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChainClient_TransferIn(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(t)
	_, clientB := n.Clients()

	ev := &relayer.Event{Sender: n.Admin, Recipient: userV, Amount: big.NewInt(250), Nonce: 7}

	done, err := clientB.IsProcessed(ctx, 7)
	require.NoError(t, err)
	assert.False(t, done)

	gas, err := clientB.EstimateTransferIn(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, uint64(transferInGas), gas)

	hash, err := clientB.SubmitTransferIn(ctx, ev, gas)
	require.NoError(t, err)

	receipt, err := clientB.GetReceipt(ctx, hash)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, uint64(1), receipt.BlockNumber)
	assert.Equal(t, uint64(250), n.B.Token.BalanceOf(userV).Uint64())

	done, err = clientB.IsProcessed(ctx, 7)
	require.NoError(t, err)
	assert.True(t, done)

	_, err = clientB.EstimateTransferIn(ctx, ev)
	require.ErrorIs(t, err, relayer.ErrAlreadyProcessed)
	_, err = clientB.SubmitTransferIn(ctx, ev, gas)
	require.ErrorIs(t, err, relayer.ErrAlreadyProcessed)

	_, err = clientB.GetReceipt(ctx, common.Hash{}.Hex())
	require.ErrorIs(t, err, relayer.ErrReceiptNotFound)
}

func TestChainClient_Rejected(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(t)

	// Admin holds no RELEASER on the lock-custody bridge.
	intruder := NewChainClient(ChainA, n.A.Chain, n.A.Bridge, n.Admin)
	ev := &relayer.Event{Sender: userV, Recipient: userV, Amount: big.NewInt(1), Nonce: 0}
	_, err := intruder.EstimateTransferIn(ctx, ev)
	require.ErrorIs(t, err, relayer.ErrRejected)

	// Releasing more than the escrow holds.
	clientA, _ := n.Clients()
	_, err = clientA.SubmitTransferIn(ctx, ev, transferInGas)
	require.ErrorIs(t, err, relayer.ErrRejected)
	assert.Equal(t, uint64(1), n.A.Chain.BlockNumber())

	_, err = clientA.EstimateTransferIn(ctx, &relayer.Event{Amount: big.NewInt(-1)})
	require.ErrorIs(t, err, relayer.ErrRejected)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = clientA.SubmitTransferIn(ctx, &relayer.Event{Amount: tooBig}, transferInGas)
	require.ErrorIs(t, err, relayer.ErrRejected)
}
