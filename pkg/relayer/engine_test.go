package relayer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/token-bridge/pkg/db"
)

func TestEngine_StartStop(t *testing.T) {
	store := newMockStore()

	forward := &MockSource{
		ChainID:               "a",
		LatestBlockNumberFunc: func(context.Context) (uint64, error) { return 3, nil },
		FetchTransfersOutFunc: func(_ context.Context, from, _ uint64) ([]*Event, error) {
			if from == 0 {
				return []*Event{outEvent(0, 2)}, nil
			}
			return nil, nil
		},
	}
	backward := &MockSource{
		ChainID:               "b",
		LatestBlockNumberFunc: func(context.Context) (uint64, error) { return 1, nil },
	}

	settings := testSettings()
	settings.ScanInterval = 5 * time.Millisecond
	reverse := testSettings()
	reverse.Route = "b-to-a"
	reverse.ScanInterval = 5 * time.Millisecond

	p1 := NewProcessor(forward, &MockDestination{ChainID: "b"}, store, zap.NewNop(), settings)
	p2 := NewProcessor(backward, &MockDestination{ChainID: "a"}, store, zap.NewNop(), reverse)

	e := NewEngine(store, zap.NewNop(), time.Hour, p1, p2)
	require.NoError(t, e.Start(context.Background()))
	require.Error(t, e.Start(context.Background()), "second start is rejected")

	require.Eventually(t, e.IsReady, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, e.Stop())

	statuses := e.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, testRoute, statuses[0].Route)
	assert.Equal(t, "b-to-a", statuses[1].Route)

	tr, err := store.GetTransfer(context.Background(), testRoute+":0")
	require.NoError(t, err)
	assert.Equal(t, db.TransferStatusCompleted, tr.Status)
}

func TestEngine_NoRoutes(t *testing.T) {
	e := NewEngine(nil, nil, 0)
	require.Error(t, e.Start(context.Background()))
	assert.False(t, e.IsReady())
	require.NoError(t, e.Stop())
}

func TestEngine_Reconciliation(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTransfer(ctx, &db.Transfer{ID: testRoute + ":0", Route: testRoute, Status: db.TransferStatusPending}))
	require.NoError(t, store.CreateTransfer(ctx, &db.Transfer{ID: testRoute + ":1", Route: testRoute, Status: db.TransferStatusPending}))
	require.NoError(t, store.UpdateTransferStatus(ctx, testRoute+":1", db.TransferStatusCompleted, nil, nil))

	p := NewProcessor(&MockSource{ChainID: "a"}, &MockDestination{ChainID: "b"}, store, zap.NewNop(), testSettings())
	e := NewEngine(store, zap.NewNop(), time.Minute, p)
	require.NoError(t, e.runReconciliation(ctx))

	pending, err := store.GetPendingTransfers(ctx, testRoute)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
