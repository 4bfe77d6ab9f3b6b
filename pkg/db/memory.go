package db

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the scan cursors and audit trail in process memory. It is
// used when no database is configured; its content is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	transfers map[string]*Transfer
	states    map[string]*ChainState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transfers: make(map[string]*Transfer),
		states:    make(map[string]*ChainState),
	}
}

func (s *MemoryStore) CreateTransfer(_ context.Context, transfer *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.transfers[transfer.ID]; ok {
		existing.Status = transfer.Status
		existing.ErrorMessage = nil
		existing.RetryCount++
		existing.UpdatedAt = now
		return nil
	}

	cp := *transfer
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.transfers[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTransfer(_ context.Context, id string) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) UpdateTransferStatus(
	_ context.Context,
	id string,
	status TransferStatus,
	destTxHash *string,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return ErrTransferNotFound
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	if destTxHash != nil {
		h := *destTxHash
		t.DestinationTxHash = &h
	}
	if errMsg != nil {
		m := *errMsg
		t.ErrorMessage = &m
	}
	if t.IsFinal() {
		t.CompletedAt = &now
	}
	return nil
}

func (s *MemoryStore) GetPendingTransfers(_ context.Context, route string) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transfer
	for _, t := range s.transfers {
		if t.Route == route && !t.IsFinal() {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListTransfers(_ context.Context, limit int) ([]*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SetChainState(_ context.Context, key string, blockNumber uint64, blockHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = &ChainState{
		ChainID:       key,
		LastBlock:     blockNumber,
		LastBlockHash: blockHash,
		UpdatedAt:     time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) GetChainState(_ context.Context, key string) (*ChainState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
