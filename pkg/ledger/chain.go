package ledger

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

// Log is a transfer record as stored by the chain, positioned in a block.
type Log struct {
	BlockNumber uint64
	TxHash      common.Hash
	Index       uint
	Record      TransferRecord
}

// Receipt is the outcome of one sealed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64
	Logs        []Log
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock sets the source of block timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Chain) {
		c.clock = clock
	}
}

// Chain is a single ledger execution engine. Every transaction runs under one
// lock, so execution is atomic and totally ordered. Each successful transaction
// seals exactly one block.
type Chain struct {
	mu sync.RWMutex

	id     uint64
	clock  func() time.Time
	height uint64
	txs    uint64

	receipts     map[common.Hash]*Receipt
	logs         []Log
	deployNonces map[common.Address]uint64
}

// NewChain creates an empty chain at height zero.
func NewChain(id uint64, opts ...Option) *Chain {
	c := &Chain{
		id:           id,
		clock:        time.Now,
		receipts:     make(map[common.Hash]*Receipt),
		deployNonces: make(map[common.Address]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) ID() uint64 { return c.id }

// BlockNumber returns the number of the latest sealed block.
func (c *Chain) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// NewAddress reserves the next contract address for deployer.
func (c *Chain) NewAddress(deployer common.Address) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.deployNonces[deployer]
	c.deployNonces[deployer] = n + 1
	return crypto.CreateAddress(deployer, n)
}

// Transact executes fn as a transaction sent by from. fn is expected to perform
// a single contract call; contracts validate before mutating, so a returned
// error means no state changed. A failed transaction seals no block and leaves
// no receipt.
func (c *Chain) Transact(from common.Address, fn func(tx *Tx) error) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := NewTx(from, c.clock())
	if err := fn(tx); err != nil {
		return nil, err
	}

	c.height++
	c.txs++
	hash := c.txHash(from)
	receipt := &Receipt{TxHash: hash, BlockNumber: c.height, Status: ReceiptStatusSuccessful}
	for i, rec := range tx.Records() {
		l := Log{BlockNumber: c.height, TxHash: hash, Index: uint(i), Record: rec}
		receipt.Logs = append(receipt.Logs, l)
		c.logs = append(c.logs, l)
	}
	c.receipts[hash] = receipt
	return receipt, nil
}

// View runs fn under the read lock so it observes a consistent state.
func (c *Chain) View(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn()
}

// Receipt looks up the receipt of a sealed transaction.
func (c *Chain) Receipt(hash common.Hash) (*Receipt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.receipts[hash]
	return r, ok
}

// FilterLogs returns the records emitted by the contract at address in blocks
// [from, to], in emission order.
func (c *Chain) FilterLogs(address common.Address, from, to uint64) []Log {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Log
	for _, l := range c.logs {
		if l.BlockNumber < from {
			continue
		}
		if l.BlockNumber > to {
			break
		}
		if l.Record.Bridge == address {
			out = append(out, l)
		}
	}
	return out
}

func (c *Chain) txHash(from common.Address) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], c.id)
	binary.BigEndian.PutUint64(buf[8:], c.txs)
	return crypto.Keccak256Hash(buf[:], from.Bytes())
}
