// Package contracts holds Go bindings for the bridge contract.
package contracts

import (
	"errors"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// StepOut and StepIn are the values of the Transfer event step field.
const (
	StepOut uint8 = 0
	StepIn  uint8 = 1
)

// BridgeMetaData contains the ABI of the bridge contract. Both deployment
// variants (mint-burn and lock-custody) expose the same surface.
var BridgeMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"transferOut","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transferIn","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"nonce","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"processedNonces","stateMutability":"view",
	 "inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"token","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[
	  {"name":"from","type":"address","indexed":true},
	  {"name":"to","type":"address","indexed":true},
	  {"name":"amount","type":"uint256","indexed":false},
	  {"name":"date","type":"uint256","indexed":false},
	  {"name":"nonce","type":"uint256","indexed":false},
	  {"name":"step","type":"uint8","indexed":false}]}
	]`,
}

// Bridge is a Go binding around a deployed bridge contract.
type Bridge struct {
	BridgeCaller
	BridgeTransactor
	BridgeFilterer
}

// BridgeCaller is the read-only part of the binding.
type BridgeCaller struct {
	contract *bind.BoundContract
}

// BridgeTransactor is the write-only part of the binding.
type BridgeTransactor struct {
	contract *bind.BoundContract
}

// BridgeFilterer is the log filtering part of the binding.
type BridgeFilterer struct {
	contract *bind.BoundContract
}

// NewBridge binds a deployed bridge contract at address.
func NewBridge(address common.Address, backend bind.ContractBackend) (*Bridge, error) {
	parsed, err := BridgeMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, errors.New("GetABI returned nil")
	}
	contract := bind.NewBoundContract(address, *parsed, backend, backend, backend)
	return &Bridge{
		BridgeCaller:     BridgeCaller{contract: contract},
		BridgeTransactor: BridgeTransactor{contract: contract},
		BridgeFilterer:   BridgeFilterer{contract: contract},
	}, nil
}

// Nonce returns the nonce the next outbound transfer will carry.
//
// Solidity: function nonce() view returns(uint256)
func (b *BridgeCaller) Nonce(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := b.contract.Call(opts, &out, "nonce"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ProcessedNonces reports whether the inbound transfer for nonce was applied.
//
// Solidity: function processedNonces(uint256) view returns(bool)
func (b *BridgeCaller) ProcessedNonces(opts *bind.CallOpts, nonce *big.Int) (bool, error) {
	var out []interface{}
	if err := b.contract.Call(opts, &out, "processedNonces", nonce); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Token returns the address of the token the bridge moves.
//
// Solidity: function token() view returns(address)
func (b *BridgeCaller) Token(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	if err := b.contract.Call(opts, &out, "token"); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// TransferOut moves amount off this ledger towards to on the other one.
//
// Solidity: function transferOut(address to, uint256 amount) returns()
func (b *BridgeTransactor) TransferOut(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return b.contract.Transact(opts, "transferOut", to, amount)
}

// TransferIn completes the inbound transfer identified by nonce.
//
// Solidity: function transferIn(address to, uint256 amount, uint256 nonce) returns()
func (b *BridgeTransactor) TransferIn(opts *bind.TransactOpts, to common.Address, amount, nonce *big.Int) (*types.Transaction, error) {
	return b.contract.Transact(opts, "transferIn", to, amount, nonce)
}

// BridgeTransfer represents a Transfer event raised by the bridge contract.
type BridgeTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
	Date   *big.Int
	Nonce  *big.Int
	Step   uint8
	Raw    types.Log
}

// BridgeTransferIterator iterates over the Transfer events of a filter query.
type BridgeTransferIterator struct {
	Event *BridgeTransfer

	contract *bind.BoundContract
	logs     chan types.Log
	sub      ethereum.Subscription
	done     bool
	fail     error
}

// Next advances the iterator. It returns false when the logs are exhausted or
// unpacking failed; Error tells the two apart.
func (it *BridgeTransferIterator) Next() bool {
	if it.fail != nil {
		return false
	}
	if it.done {
		select {
		case log := <-it.logs:
			return it.unpack(log)
		default:
			return false
		}
	}
	select {
	case log := <-it.logs:
		return it.unpack(log)
	case err := <-it.sub.Err():
		it.done = true
		it.fail = err
		return it.Next()
	}
}

func (it *BridgeTransferIterator) unpack(log types.Log) bool {
	it.Event = new(BridgeTransfer)
	if err := it.contract.UnpackLog(it.Event, "Transfer", log); err != nil {
		it.fail = err
		return false
	}
	it.Event.Raw = log
	return true
}

// Error returns any retrieval or parsing error occurred during filtering.
func (it *BridgeTransferIterator) Error() error {
	return it.fail
}

// Close releases the underlying subscription.
func (it *BridgeTransferIterator) Close() error {
	it.sub.Unsubscribe()
	return nil
}

// FilterTransfer retrieves Transfer events, optionally restricted to the given
// senders and recipients.
//
// Solidity: event Transfer(address indexed from, address indexed to, uint256 amount, uint256 date, uint256 nonce, uint8 step)
func (b *BridgeFilterer) FilterTransfer(opts *bind.FilterOpts, from, to []common.Address) (*BridgeTransferIterator, error) {
	var fromRule []interface{}
	for _, item := range from {
		fromRule = append(fromRule, item)
	}
	var toRule []interface{}
	for _, item := range to {
		toRule = append(toRule, item)
	}

	logs, sub, err := b.contract.FilterLogs(opts, "Transfer", fromRule, toRule)
	if err != nil {
		return nil, err
	}
	return &BridgeTransferIterator{contract: b.contract, logs: logs, sub: sub}, nil
}

// ParseTransfer unpacks a raw Transfer log.
func (b *BridgeFilterer) ParseTransfer(log types.Log) (*BridgeTransfer, error) {
	event := new(BridgeTransfer)
	if err := b.contract.UnpackLog(event, "Transfer", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
