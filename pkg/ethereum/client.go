// Package ethereum implements the relayer transport for EVM ledgers.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/ethereum/contracts"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

// Backend is the RPC surface the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client reads and completes bridge transfers on one EVM ledger
type Client struct {
	name    string
	config  *config.ChainConfig
	backend Backend
	closer  func()
	logger  *zap.Logger

	bridgeAddress common.Address
	bridge        *contracts.Bridge
	bridgeABI     *abi.ABI

	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var (
	_ relayer.Source      = (*Client)(nil)
	_ relayer.Destination = (*Client)(nil)
)

// NewClient dials the chain's RPC endpoint and binds its bridge contract
func NewClient(name string, cfg *config.ChainConfig, logger *zap.Logger) (*Client, error) {
	rpc, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", name, err)
	}
	c, err := NewClientWithBackend(name, cfg, rpc, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.closer = rpc.Close

	logger.Info("Connected to chain",
		zap.String("chain", name),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("bridge_contract", c.bridgeAddress.Hex()),
		zap.String("relayer_address", c.address.Hex()))
	return c, nil
}

// NewClientWithBackend binds the bridge contract over an existing backend. The
// operator key is optional for a client that is only used as a source.
func NewClientWithBackend(name string, cfg *config.ChainConfig, backend Backend, logger *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.BridgeContract) {
		return nil, fmt.Errorf("invalid bridge contract address %q", cfg.BridgeContract)
	}
	bridgeAddress := common.HexToAddress(cfg.BridgeContract)

	bridge, err := contracts.NewBridge(bridgeAddress, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load bridge contract: %w", err)
	}
	parsed, err := contracts.BridgeMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge abi: %w", err)
	}

	c := &Client{
		name:          name,
		config:        cfg,
		backend:       backend,
		logger:        logger.With(zap.String("chain", name)),
		bridgeAddress: bridgeAddress,
		bridge:        bridge,
		bridgeABI:     parsed,
	}

	if cfg.RelayerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayerPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		c.privateKey = key
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *Client) GetChainID() string { return c.name }

// Address returns the operator address transactions are sent from
func (c *Client) Address() common.Address { return c.address }

// LatestBlockNumber gets the latest block number
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return n, nil
}

// FetchTransfersOut returns the OUT Transfer events of blocks [fromBlock, toBlock]
func (c *Client) FetchTransfersOut(ctx context.Context, fromBlock, toBlock uint64) ([]*relayer.Event, error) {
	opts := &bind.FilterOpts{
		Start:   fromBlock,
		End:     &toBlock,
		Context: ctx,
	}
	iter, err := c.bridge.FilterTransfer(opts, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to filter transfer events: %w", err)
	}
	defer func() { _ = iter.Close() }()

	var events []*relayer.Event
	for iter.Next() {
		ev := iter.Event
		if ev.Step != contracts.StepOut {
			continue
		}
		if ev.Raw.Removed {
			continue
		}
		events = append(events, &relayer.Event{
			SourceChain:  c.name,
			SourceTxHash: ev.Raw.TxHash.Hex(),
			BlockNumber:  ev.Raw.BlockNumber,
			LogIndex:     ev.Raw.Index,
			Sender:       ev.From,
			Recipient:    ev.To,
			Amount:       ev.Amount,
			Nonce:        ev.Nonce.Uint64(),
			Timestamp:    ev.Date.Uint64(),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to read transfer events: %w", err)
	}
	return events, nil
}

// IsProcessed reads processedNonces(nonce) from the bridge contract
func (c *Client) IsProcessed(ctx context.Context, nonce uint64) (bool, error) {
	ok, err := c.bridge.ProcessedNonces(&bind.CallOpts{Context: ctx}, new(big.Int).SetUint64(nonce))
	if err != nil {
		return false, fmt.Errorf("failed to read processed nonce %d: %w", nonce, err)
	}
	return ok, nil
}

// EstimateTransferIn estimates the gas of transferIn. When the node cannot
// estimate it, the configured gas limit is used.
func (c *Client) EstimateTransferIn(ctx context.Context, event *relayer.Event) (uint64, error) {
	if c.privateKey == nil {
		return 0, fmt.Errorf("chain %s has no operator key: %w", c.name, relayer.ErrRejected)
	}
	data, err := c.bridgeABI.Pack("transferIn", event.Recipient, event.Amount, new(big.Int).SetUint64(event.Nonce))
	if err != nil {
		return 0, fmt.Errorf("failed to pack transferIn: %w", err)
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &c.bridgeAddress,
		Data: data,
	})
	if err != nil {
		if mapped, final := classifyRevert(err); final {
			return 0, mapped
		}
		c.logger.Warn("Gas estimation failed, using configured limit",
			zap.Uint64("gas_limit", c.config.GasLimit),
			zap.Error(err))
		return c.config.GasLimit, nil
	}
	return gas, nil
}

// SubmitTransferIn signs and sends transferIn(to, amount, nonce)
func (c *Client) SubmitTransferIn(ctx context.Context, event *relayer.Event, gasLimit uint64) (string, error) {
	auth, err := c.transactor(ctx, gasLimit)
	if err != nil {
		return "", err
	}

	tx, err := c.bridge.TransferIn(auth, event.Recipient, event.Amount, new(big.Int).SetUint64(event.Nonce))
	if err != nil {
		mapped, _ := classifyRevert(err)
		return "", fmt.Errorf("failed to submit transferIn: %w", mapped)
	}

	c.logger.Info("TransferIn transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", event.Nonce),
		zap.Uint64("tx_nonce", tx.Nonce()))
	return tx.Hash().Hex(), nil
}

// GetReceipt returns relayer.ErrReceiptNotFound while the transaction is pending
func (c *Client) GetReceipt(ctx context.Context, txHash string) (*relayer.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, relayer.ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return &relayer.Receipt{
		TxHash:      txHash,
		BlockNumber: block,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:     receipt.GasUsed,
	}, nil
}

// transactor returns signing options with an explicit nonce, gas limit and a
// gas price capped by MaxGasPrice
func (c *Client) transactor(ctx context.Context, gasLimit uint64) (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("chain %s has no operator key: %w", c.name, relayer.ErrRejected)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, big.NewInt(c.config.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)

	auth.GasLimit = gasLimit
	if auth.GasLimit == 0 {
		auth.GasLimit = c.config.GasLimit
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	if c.config.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.config.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max_gas_price %q", c.config.MaxGasPrice)
		}
		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			gasPrice = maxGasPrice
		}
	}
	auth.GasPrice = gasPrice

	return auth, nil
}

// classifyRevert maps revert reasons the relayer must not retry onto relayer
// errors. Other errors are returned unchanged with final set to false.
func classifyRevert(err error) (mapped error, final bool) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transfer already processed"):
		return fmt.Errorf("%w: %v", relayer.ErrAlreadyProcessed, err), true
	case strings.Contains(msg, "is missing role"),
		strings.Contains(msg, "caller is not a"),
		strings.Contains(msg, "exceeds balance"),
		strings.Contains(msg, "insufficient allowance"):
		return fmt.Errorf("%w: %v", relayer.ErrRejected, err), true
	default:
		return err, false
	}
}
