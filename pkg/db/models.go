package db

import (
	"errors"
	"time"
)

// ErrTransferNotFound is returned when no transfer matches the requested id.
var ErrTransferNotFound = errors.New("transfer not found")

// TransferStatus represents the current state of a relayed transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	// TransferStatusSkipped marks transfers the destination had already
	// processed when the relayer got to them.
	TransferStatusSkipped TransferStatus = "skipped"
)

// Transfer is the audit record of one OUT record relayed to its destination.
type Transfer struct {
	ID                string         `json:"id"`
	Route             string         `json:"route"`
	Status            TransferStatus `json:"status"`
	SourceChain       string         `json:"source_chain"`
	DestinationChain  string         `json:"destination_chain"`
	SourceTxHash      string         `json:"source_tx_hash"`
	DestinationTxHash *string        `json:"destination_tx_hash,omitempty"`
	Sender            string         `json:"sender"`
	Recipient         string         `json:"recipient"`
	Amount            string         `json:"amount"`
	Nonce             uint64         `json:"nonce"`
	SourceBlockNumber uint64         `json:"source_block_number"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
	RetryCount        int            `json:"retry_count"`
}

// IsFinal reports whether the transfer reached a terminal state.
func (t *Transfer) IsFinal() bool {
	return t.Status == TransferStatusCompleted || t.Status == TransferStatusSkipped
}

// ChainState tracks the scan cursor of a relay route
type ChainState struct {
	ChainID       string    `json:"chain_id"`
	LastBlock     uint64    `json:"last_block"`
	LastBlockHash string    `json:"last_block_hash"`
	UpdatedAt     time.Time `json:"updated_at"`
}
