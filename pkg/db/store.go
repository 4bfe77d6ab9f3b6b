package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/token-bridge/pkg/db/dao"
)

// Store provides database operations for the relayer
type Store struct {
	db *bun.DB
}

// NewStore creates a new postgres backed store
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTransfer records a transfer as pending. Recording an id that already
// exists resets it to pending and bumps its retry count.
func (s *Store) CreateTransfer(ctx context.Context, transfer *Transfer) error {
	_, err := s.db.NewInsert().
		Model(toTransferDao(transfer)).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("error_message = NULL").
		Set("retry_count = t.retry_count + 1").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// GetTransfer retrieves a transfer by ID
func (s *Store) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	d := new(dao.TransferDao)
	err := s.db.NewSelect().
		Model(d).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return toTransfer(d), nil
}

// UpdateTransferStatus moves a transfer to status. destTxHash and errMsg are
// stored when non-nil.
func (s *Store) UpdateTransferStatus(
	ctx context.Context,
	id string,
	status TransferStatus,
	destTxHash *string,
	errMsg *string,
) error {
	q := s.db.NewUpdate().
		Model((*dao.TransferDao)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = NOW()").
		Where("id = ?", id)
	if destTxHash != nil {
		q = q.Set("destination_tx_hash = ?", *destTxHash)
	}
	if errMsg != nil {
		q = q.Set("error_message = ?", *errMsg)
	}
	if status == TransferStatusCompleted || status == TransferStatusSkipped {
		q = q.Set("completed_at = NOW()")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// GetPendingTransfers retrieves unsettled transfers of a route, oldest first
func (s *Store) GetPendingTransfers(ctx context.Context, route string) ([]*Transfer, error) {
	var daos []dao.TransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("route = ?", route).
		Where("status IN (?)", bun.In([]string{string(TransferStatusPending), string(TransferStatusFailed)})).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transfers: %w", err)
	}
	return toTransfers(daos), nil
}

// ListTransfers retrieves the most recent transfers
func (s *Store) ListTransfers(ctx context.Context, limit int) ([]*Transfer, error) {
	var daos []dao.TransferDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return toTransfers(daos), nil
}

// SetChainState stores the scan cursor for key
func (s *Store) SetChainState(ctx context.Context, key string, blockNumber uint64, blockHash string) error {
	d := &dao.ChainStateDao{
		ChainID:       key,
		LastBlock:     int64(blockNumber),
		LastBlockHash: blockHash,
	}
	_, err := s.db.NewInsert().
		Model(d).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("last_block = EXCLUDED.last_block").
		Set("last_block_hash = EXCLUDED.last_block_hash").
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set chain state: %w", err)
	}
	return nil
}

// GetChainState retrieves the scan cursor for key. It returns nil when none
// was stored yet.
func (s *Store) GetChainState(ctx context.Context, key string) (*ChainState, error) {
	d := new(dao.ChainStateDao)
	err := s.db.NewSelect().
		Model(d).
		Where("chain_id = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain state: %w", err)
	}
	return &ChainState{
		ChainID:       d.ChainID,
		LastBlock:     uint64(d.LastBlock),
		LastBlockHash: d.LastBlockHash,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func toTransferDao(t *Transfer) *dao.TransferDao {
	d := &dao.TransferDao{
		ID:                t.ID,
		Route:             t.Route,
		Status:            string(t.Status),
		SourceChain:       t.SourceChain,
		DestinationChain:  t.DestinationChain,
		SourceTxHash:      t.SourceTxHash,
		DestinationTxHash: t.DestinationTxHash,
		Sender:            t.Sender,
		Recipient:         t.Recipient,
		Amount:            t.Amount,
		Nonce:             int64(t.Nonce),
		SourceBlockNumber: int64(t.SourceBlockNumber),
		CompletedAt:       t.CompletedAt,
		ErrorMessage:      t.ErrorMessage,
		RetryCount:        t.RetryCount,
	}
	if !t.CreatedAt.IsZero() {
		d.CreatedAt = t.CreatedAt
	}
	return d
}

func toTransfer(d *dao.TransferDao) *Transfer {
	return &Transfer{
		ID:                d.ID,
		Route:             d.Route,
		Status:            TransferStatus(d.Status),
		SourceChain:       d.SourceChain,
		DestinationChain:  d.DestinationChain,
		SourceTxHash:      d.SourceTxHash,
		DestinationTxHash: d.DestinationTxHash,
		Sender:            d.Sender,
		Recipient:         d.Recipient,
		Amount:            d.Amount,
		Nonce:             uint64(d.Nonce),
		SourceBlockNumber: uint64(d.SourceBlockNumber),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		CompletedAt:       d.CompletedAt,
		ErrorMessage:      d.ErrorMessage,
		RetryCount:        d.RetryCount,
	}
}

func toTransfers(daos []dao.TransferDao) []*Transfer {
	out := make([]*Transfer, len(daos))
	for i := range daos {
		out[i] = toTransfer(&daos[i])
	}
	return out
}
