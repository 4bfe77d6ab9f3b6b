package relayer

import (
	"context"
	"sync"

	"github.com/chainsafe/token-bridge/pkg/db"
)

// MockSource is a mock implementation of Source
type MockSource struct {
	ChainID               string
	LatestBlockNumberFunc func(ctx context.Context) (uint64, error)
	FetchTransfersOutFunc func(ctx context.Context, fromBlock, toBlock uint64) ([]*Event, error)

	mu            sync.Mutex
	fetchedRanges [][2]uint64
}

func (m *MockSource) GetChainID() string { return m.ChainID }

func (m *MockSource) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if m.LatestBlockNumberFunc != nil {
		return m.LatestBlockNumberFunc(ctx)
	}
	return 0, nil
}

func (m *MockSource) FetchTransfersOut(ctx context.Context, fromBlock, toBlock uint64) ([]*Event, error) {
	m.mu.Lock()
	m.fetchedRanges = append(m.fetchedRanges, [2]uint64{fromBlock, toBlock})
	m.mu.Unlock()
	if m.FetchTransfersOutFunc != nil {
		return m.FetchTransfersOutFunc(ctx, fromBlock, toBlock)
	}
	return nil, nil
}

func (m *MockSource) ranges() [][2]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]uint64(nil), m.fetchedRanges...)
}

// MockDestination is a mock implementation of Destination
type MockDestination struct {
	ChainID                string
	IsProcessedFunc        func(ctx context.Context, nonce uint64) (bool, error)
	EstimateTransferInFunc func(ctx context.Context, event *Event) (uint64, error)
	SubmitTransferInFunc   func(ctx context.Context, event *Event, gasLimit uint64) (string, error)
	GetReceiptFunc         func(ctx context.Context, txHash string) (*Receipt, error)

	mu        sync.Mutex
	submitted []uint64
}

func (m *MockDestination) GetChainID() string { return m.ChainID }

func (m *MockDestination) IsProcessed(ctx context.Context, nonce uint64) (bool, error) {
	if m.IsProcessedFunc != nil {
		return m.IsProcessedFunc(ctx, nonce)
	}
	return false, nil
}

func (m *MockDestination) EstimateTransferIn(ctx context.Context, event *Event) (uint64, error) {
	if m.EstimateTransferInFunc != nil {
		return m.EstimateTransferInFunc(ctx, event)
	}
	return 21000, nil
}

func (m *MockDestination) SubmitTransferIn(ctx context.Context, event *Event, gasLimit uint64) (string, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, event.Nonce)
	m.mu.Unlock()
	if m.SubmitTransferInFunc != nil {
		return m.SubmitTransferInFunc(ctx, event, gasLimit)
	}
	return "0xdest", nil
}

func (m *MockDestination) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	if m.GetReceiptFunc != nil {
		return m.GetReceiptFunc(ctx, txHash)
	}
	return &Receipt{TxHash: txHash, BlockNumber: 1, Success: true, GasUsed: 21000}, nil
}

func (m *MockDestination) submittedNonces() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.submitted...)
}

// MockStore delegates to an in-memory store unless a func field overrides
// the call
type MockStore struct {
	*db.MemoryStore
	GetChainStateFunc func(ctx context.Context, key string) (*db.ChainState, error)
	SetChainStateFunc func(ctx context.Context, key string, blockNumber uint64, blockHash string) error
	ListTransfersFunc func(ctx context.Context, limit int) ([]*db.Transfer, error)
	GetTransferFunc   func(ctx context.Context, id string) (*db.Transfer, error)
}

func newMockStore() *MockStore {
	return &MockStore{MemoryStore: db.NewMemoryStore()}
}

func (m *MockStore) GetChainState(ctx context.Context, key string) (*db.ChainState, error) {
	if m.GetChainStateFunc != nil {
		return m.GetChainStateFunc(ctx, key)
	}
	return m.MemoryStore.GetChainState(ctx, key)
}

func (m *MockStore) SetChainState(ctx context.Context, key string, blockNumber uint64, blockHash string) error {
	if m.SetChainStateFunc != nil {
		return m.SetChainStateFunc(ctx, key, blockNumber, blockHash)
	}
	return m.MemoryStore.SetChainState(ctx, key, blockNumber, blockHash)
}

func (m *MockStore) ListTransfers(ctx context.Context, limit int) ([]*db.Transfer, error) {
	if m.ListTransfersFunc != nil {
		return m.ListTransfersFunc(ctx, limit)
	}
	return m.MemoryStore.ListTransfers(ctx, limit)
}

func (m *MockStore) GetTransfer(ctx context.Context, id string) (*db.Transfer, error) {
	if m.GetTransferFunc != nil {
		return m.GetTransferFunc(ctx, id)
	}
	return m.MemoryStore.GetTransfer(ctx, id)
}
