// Package devnet runs two in-process ledgers with their bridges and adapts
// them to the relayer transport interfaces.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/chainsafe/token-bridge/pkg/ledger"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

// transferInGas is the fixed cost reported for an inbound call.
const transferInGas = 90_000

// ChainClient exposes one in-process chain and its bridge to the relayer
type ChainClient struct {
	name     string
	chain    *ledger.Chain
	bridge   ledger.Bridge
	operator common.Address
}

var (
	_ relayer.Source      = (*ChainClient)(nil)
	_ relayer.Destination = (*ChainClient)(nil)
)

// NewChainClient creates a client that submits inbound transfers as operator
func NewChainClient(name string, chain *ledger.Chain, bridge ledger.Bridge, operator common.Address) *ChainClient {
	return &ChainClient{name: name, chain: chain, bridge: bridge, operator: operator}
}

func (c *ChainClient) GetChainID() string { return c.name }

func (c *ChainClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.chain.BlockNumber(), nil
}

func (c *ChainClient) FetchTransfersOut(ctx context.Context, fromBlock, toBlock uint64) ([]*relayer.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var events []*relayer.Event
	for _, l := range c.chain.FilterLogs(c.bridge.Address(), fromBlock, toBlock) {
		rec := l.Record
		if rec.Direction != ledger.DirectionOut {
			continue
		}
		events = append(events, &relayer.Event{
			SourceChain:  c.name,
			SourceTxHash: l.TxHash.Hex(),
			BlockNumber:  l.BlockNumber,
			LogIndex:     l.Index,
			Sender:       rec.From,
			Recipient:    rec.To,
			Amount:       rec.Amount.ToBig(),
			Nonce:        rec.Nonce,
			Timestamp:    rec.Timestamp,
		})
	}
	return events, nil
}

func (c *ChainClient) IsProcessed(ctx context.Context, nonce uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var processed bool
	c.chain.View(func() { processed = c.bridge.ProcessedNonces(nonce) })
	return processed, nil
}

// EstimateTransferIn runs the inbound preconditions without executing the call
func (c *ChainClient) EstimateTransferIn(ctx context.Context, event *relayer.Event) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := toAmount(event.Amount); err != nil {
		return 0, err
	}
	var err error
	c.chain.View(func() { err = c.bridge.CheckTransferIn(c.operator, event.Nonce) })
	if err != nil {
		return 0, mapRevert(err)
	}
	return transferInGas, nil
}

// SubmitTransferIn executes the inbound call. The chain seals it immediately,
// so the receipt is available as soon as this returns.
func (c *ChainClient) SubmitTransferIn(ctx context.Context, event *relayer.Event, _ uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	amount, err := toAmount(event.Amount)
	if err != nil {
		return "", err
	}
	receipt, err := c.chain.Transact(c.operator, func(tx *ledger.Tx) error {
		return c.bridge.TransferIn(tx, event.Sender, event.Recipient, amount, event.Nonce)
	})
	if err != nil {
		return "", mapRevert(err)
	}
	return receipt.TxHash.Hex(), nil
}

func (c *ChainClient) GetReceipt(ctx context.Context, txHash string) (*relayer.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := c.chain.Receipt(common.HexToHash(txHash))
	if !ok {
		return nil, relayer.ErrReceiptNotFound
	}
	return &relayer.Receipt{
		TxHash:      txHash,
		BlockNumber: r.BlockNumber,
		Success:     r.Status == ledger.ReceiptStatusSuccessful,
		GasUsed:     transferInGas,
	}, nil
}

func toAmount(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %v: %w", v, relayer.ErrRejected)
	}
	amount, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows uint256: %w", v, relayer.ErrRejected)
	}
	return amount, nil
}

// mapRevert turns ledger reverts into the relayer's error vocabulary. Ledger
// execution is deterministic, so every revert other than a replay is final.
func mapRevert(err error) error {
	switch {
	case errors.Is(err, ledger.ErrReplayedNonce):
		return fmt.Errorf("%w: %v", relayer.ErrAlreadyProcessed, err)
	case errors.As(err, new(*ledger.RevertError)),
		errors.Is(err, ledger.ErrNilAmount):
		return fmt.Errorf("%w: %v", relayer.ErrRejected, err)
	default:
		return err
	}
}
