package devnet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/token-bridge/internal/metrics"
	"github.com/chainsafe/token-bridge/pkg/config"
	"github.com/chainsafe/token-bridge/pkg/ledger"
	"github.com/chainsafe/token-bridge/pkg/relayer"
)

// Chain names used in routes, logs and the devnet API
const (
	ChainA = "a"
	ChainB = "b"
)

// Deployment is one chain with its token and bridge
type Deployment struct {
	Name   string
	Chain  *ledger.Chain
	Token  *ledger.Token
	Bridge ledger.Bridge
}

// Network is the canonical chain A (MintBurn token, lock-custody bridge) and
// the wrapped chain B (ZeroChain token, mint-burn bridge).
type Network struct {
	A *Deployment
	B *Deployment

	AdminKey    *ecdsa.PrivateKey
	OperatorKey *ecdsa.PrivateKey
	Admin       common.Address
	Operator    common.Address
}

// NewNetwork deploys both chains from cfg. Missing keys are generated. The
// initial supply, in whole tokens, is minted to the admin on chain A.
func NewNetwork(cfg config.DevnetConfig, opts ...ledger.Option) (*Network, error) {
	adminKey, err := loadOrGenerateKey(cfg.AdminKey)
	if err != nil {
		return nil, fmt.Errorf("admin key: %w", err)
	}
	operatorKey, err := loadOrGenerateKey(cfg.OperatorKey)
	if err != nil {
		return nil, fmt.Errorf("operator key: %w", err)
	}
	admin := crypto.PubkeyToAddress(adminKey.PublicKey)
	operator := crypto.PubkeyToAddress(operatorKey.PublicKey)

	n := &Network{
		AdminKey:    adminKey,
		OperatorKey: operatorKey,
		Admin:       admin,
		Operator:    operator,
	}

	chainA := ledger.NewChain(cfg.ChainAID, opts...)
	tokenA := ledger.NewMintBurnToken(chainA.NewAddress(admin), admin, admin, admin)
	bridgeA := ledger.NewLockCustodyBridge(chainA.NewAddress(admin), tokenA, operator, admin)
	n.A = &Deployment{Name: ChainA, Chain: chainA, Token: tokenA, Bridge: bridgeA}

	chainB := ledger.NewChain(cfg.ChainBID, opts...)
	tokenAddrB := chainB.NewAddress(admin)
	bridgeAddrB := chainB.NewAddress(admin)
	tokenB := ledger.NewWrappedToken(tokenAddrB, bridgeAddrB, admin)
	bridgeB := ledger.NewMintBurnBridge(bridgeAddrB, tokenB, operator, admin)
	n.B = &Deployment{Name: ChainB, Chain: chainB, Token: tokenB, Bridge: bridgeB}

	supply, err := wholeTokens(cfg.InitialSupply, tokenA.Decimals())
	if err != nil {
		return nil, fmt.Errorf("initial supply: %w", err)
	}
	if !supply.IsZero() {
		if _, err := chainA.Transact(admin, func(tx *ledger.Tx) error {
			return tokenA.Mint(tx, admin, supply)
		}); err != nil {
			return nil, fmt.Errorf("mint initial supply: %w", err)
		}
	}
	return n, nil
}

// Deployment returns the deployment named name
func (n *Network) Deployment(name string) (*Deployment, bool) {
	switch name {
	case ChainA:
		return n.A, true
	case ChainB:
		return n.B, true
	default:
		return nil, false
	}
}

// Clients returns relayer transports for both chains, acting as the operator
func (n *Network) Clients() (a, b *ChainClient) {
	return NewChainClient(ChainA, n.A.Chain, n.A.Bridge, n.Operator),
		NewChainClient(ChainB, n.B.Chain, n.B.Bridge, n.Operator)
}

// Routes returns the relay directions of the network
func (n *Network) Routes() []config.RouteConfig {
	return []config.RouteConfig{
		{Name: ChainA + "-to-" + ChainB, Source: ChainA, Destination: ChainB},
		{Name: ChainB + "-to-" + ChainA, Source: ChainB, Destination: ChainA},
	}
}

// Processors builds one relayer processor per route. Blocks seal instantly,
// so no confirmations are awaited.
func (n *Network) Processors(
	store relayer.BridgeStore,
	logger *zap.Logger,
	rc config.RelayerConfig,
	scanInterval time.Duration,
	opts ...relayer.Option,
) []*relayer.Processor {
	clientA, clientB := n.Clients()
	clients := map[string]*ChainClient{ChainA: clientA, ChainB: clientB}

	var out []*relayer.Processor
	for _, route := range n.Routes() {
		src, _ := n.Deployment(route.Source)
		settings := relayer.NewSettings(route, config.ChainConfig{
			MaxBlockRange: 1000,
			TokenDecimals: int32(src.Token.Decimals()),
		}, rc)
		if scanInterval > 0 {
			settings.ScanInterval = scanInterval
		}
		out = append(out, relayer.NewProcessor(clients[route.Source], clients[route.Destination], store, logger, settings, opts...))
	}
	return out
}

// Escrow returns the custody balance of the lock-custody bridge on chain A
func (n *Network) Escrow() *uint256.Int {
	var escrow *uint256.Int
	n.A.Chain.View(func() { escrow = n.A.Bridge.(*ledger.LockCustodyBridge).Escrow() })
	return escrow
}

// ReportEscrow publishes the escrow of chain A and the supply of chain B, in
// whole tokens. The two are equal once every transfer has settled.
func (n *Network) ReportEscrow() {
	escrow := n.Escrow()
	var supply *uint256.Int
	n.B.Chain.View(func() { supply = n.B.Token.TotalSupply() })

	metrics.EscrowBalance.WithLabelValues(ChainA).Set(tokenFloat(escrow, n.A.Token.Decimals()))
	metrics.EscrowBalance.WithLabelValues(ChainB).Set(tokenFloat(supply, n.B.Token.Decimals()))
}

func tokenFloat(v *uint256.Int, decimals uint8) float64 {
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).InexactFloat64()
}

func loadOrGenerateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return crypto.GenerateKey()
	}
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}

// wholeTokens converts a decimal token amount into base units.
func wholeTokens(amount string, decimals uint8) (*uint256.Int, error) {
	if amount == "" {
		return new(uint256.Int), nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return ParseUnits(d, decimals)
}

// ParseUnits converts a token amount into base units of a token with the
// given decimals. Fractions finer than one base unit are rejected.
func ParseUnits(d decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", d)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", d, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %s overflows uint256", d)
	}
	return v, nil
}

// FormatUnits renders base units as a token amount
func FormatUnits(v *uint256.Int, decimals uint8) string {
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}
