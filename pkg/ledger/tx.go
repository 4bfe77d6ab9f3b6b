package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Direction tells which half of a cross-chain transfer a record describes.
type Direction uint8

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

func (d Direction) String() string {
	if d == DirectionIn {
		return "in"
	}
	return "out"
}

// TransferRecord is the event a bridge emits for every successful outbound or
// inbound call.
type TransferRecord struct {
	Bridge    common.Address
	From      common.Address
	To        common.Address
	Amount    *uint256.Int
	Timestamp uint64
	Nonce     uint64
	Direction Direction
}

// Tx is the execution context of one call: the immediate caller and the block
// time. Records emitted by nested calls share the same sink.
type Tx struct {
	From common.Address
	Time time.Time

	records *[]TransferRecord
}

// NewTx creates a top level execution context.
func NewTx(from common.Address, at time.Time) *Tx {
	return &Tx{From: from, Time: at, records: new([]TransferRecord)}
}

// Call returns the context seen by a contract invoked by the contract at addr.
func (tx *Tx) Call(addr common.Address) *Tx {
	return &Tx{From: addr, Time: tx.Time, records: tx.records}
}

// Records returns the transfer records emitted so far.
func (tx *Tx) Records() []TransferRecord {
	return *tx.records
}

func (tx *Tx) emit(rec TransferRecord) {
	*tx.records = append(*tx.records, rec)
}

func (tx *Tx) timestamp() uint64 {
	return uint64(tx.Time.Unix())
}
