package ledger

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Mode names the custody model a bridge uses for its side of the asset.
type Mode string

const (
	// ModeMintBurn destroys tokens on the way out and creates them on the way in.
	ModeMintBurn Mode = "mint-burn"
	// ModeLockCustody escrows tokens on the way out and releases them on the way in.
	ModeLockCustody Mode = "lock-custody"
)

const reasonReplayed = "transfer already processed"

// Bridge is one ledger's half of a cross-chain transfer pair.
type Bridge interface {
	Address() common.Address
	Token() *Token
	Mode() Mode

	// Nonce is the value the next outbound transfer will be stamped with.
	Nonce() uint64
	// ProcessedNonces reports whether an inbound transfer with nonce was applied.
	ProcessedNonces(nonce uint64) bool

	// TransferOut debits amount from the caller and emits an OUT record. It
	// returns the nonce assigned to the transfer.
	TransferOut(tx *Tx, to common.Address, amount *uint256.Int) (uint64, error)
	// TransferIn credits to with amount on behalf of the counterpart transfer
	// stamped with nonce. Each nonce is applied at most once.
	TransferIn(tx *Tx, from, to common.Address, amount *uint256.Int, nonce uint64) error
	// CheckTransferIn runs the role and replay checks of TransferIn without
	// mutating state.
	CheckTransferIn(caller common.Address, nonce uint64) error

	InboundRole() Role
	HasRole(role Role, account common.Address) bool
	GrantRole(tx *Tx, role Role, account common.Address) error
	RevokeRole(tx *Tx, role Role, account common.Address) error
}

// custody moves value between users and the bridge for one Mode.
type custody interface {
	debit(tx *Tx, amount *uint256.Int) error
	credit(tx *Tx, to common.Address, amount *uint256.Int) error
}

type bridgeCore struct {
	address common.Address
	token   *Token
	access  *AccessControl
	mode    Mode
	custody custody

	inboundRole   Role
	inboundReason string
	// keepSender records the counterpart sender in IN records instead of the
	// operator.
	keepSender bool

	nonce     uint64
	processed map[uint64]struct{}
}

func (b *bridgeCore) Address() common.Address { return b.address }
func (b *bridgeCore) Token() *Token           { return b.token }
func (b *bridgeCore) Mode() Mode              { return b.mode }
func (b *bridgeCore) Nonce() uint64           { return b.nonce }
func (b *bridgeCore) InboundRole() Role       { return b.inboundRole }

func (b *bridgeCore) ProcessedNonces(nonce uint64) bool {
	_, ok := b.processed[nonce]
	return ok
}

func (b *bridgeCore) HasRole(role Role, account common.Address) bool {
	return b.access.HasRole(role, account)
}

func (b *bridgeCore) GrantRole(tx *Tx, role Role, account common.Address) error {
	return b.access.GrantRole(tx.From, role, account)
}

func (b *bridgeCore) RevokeRole(tx *Tx, role Role, account common.Address) error {
	return b.access.RevokeRole(tx.From, role, account)
}

func (b *bridgeCore) TransferOut(tx *Tx, to common.Address, amount *uint256.Int) (uint64, error) {
	if amount == nil {
		return 0, ErrNilAmount
	}
	if b.nonce == math.MaxUint64 {
		return 0, revert(ErrOverflow, "bridge nonce exhausted")
	}
	if err := b.custody.debit(tx, amount); err != nil {
		return 0, err
	}

	n := b.nonce
	b.nonce++
	tx.emit(TransferRecord{
		Bridge:    b.address,
		From:      tx.From,
		To:        to,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: tx.timestamp(),
		Nonce:     n,
		Direction: DirectionOut,
	})
	return n, nil
}

func (b *bridgeCore) CheckTransferIn(caller common.Address, nonce uint64) error {
	if err := b.access.checkAnyRole(caller, b.inboundReason, b.inboundRole); err != nil {
		return err
	}
	if b.ProcessedNonces(nonce) {
		return revert(ErrReplayedNonce, reasonReplayed)
	}
	return nil
}

func (b *bridgeCore) TransferIn(tx *Tx, from, to common.Address, amount *uint256.Int, nonce uint64) error {
	if amount == nil {
		return ErrNilAmount
	}
	if err := b.CheckTransferIn(tx.From, nonce); err != nil {
		return err
	}
	// credit validates before it mutates, so marking afterwards keeps the
	// check-and-mark atomic under the chain lock.
	if err := b.custody.credit(tx, to, amount); err != nil {
		return err
	}
	b.processed[nonce] = struct{}{}

	sender := tx.From
	if b.keepSender {
		sender = from
	}
	tx.emit(TransferRecord{
		Bridge:    b.address,
		From:      sender,
		To:        to,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: tx.timestamp(),
		Nonce:     nonce,
		Direction: DirectionIn,
	})
	return nil
}

// MintBurnBridge serves the non-canonical ledger. The bridge must hold a burn
// and a mint capability on its token.
type MintBurnBridge struct {
	*bridgeCore
}

// NewMintBurnBridge deploys a mint-burn bridge at addr over token. minter is
// the operator allowed to complete inbound transfers.
func NewMintBurnBridge(addr common.Address, token *Token, minter, admin common.Address) *MintBurnBridge {
	b := &MintBurnBridge{bridgeCore: &bridgeCore{
		address:       addr,
		token:         token,
		access:        NewAccessControl(admin),
		mode:          ModeMintBurn,
		inboundRole:   MinterRole,
		inboundReason: "Caller is not a minter",
		processed:     make(map[uint64]struct{}),
	}}
	b.custody = mintBurnCustody{bridge: addr, token: token}
	b.access.grant(MinterRole, minter)
	return b
}

func (b *MintBurnBridge) GrantMinterRole(tx *Tx, account common.Address) error {
	return b.GrantRole(tx, MinterRole, account)
}

func (b *MintBurnBridge) RevokeMinterRole(tx *Tx, account common.Address) error {
	return b.RevokeRole(tx, MinterRole, account)
}

type mintBurnCustody struct {
	bridge common.Address
	token  *Token
}

func (c mintBurnCustody) debit(tx *Tx, amount *uint256.Int) error {
	return c.token.Burn(tx.Call(c.bridge), tx.From, amount)
}

func (c mintBurnCustody) credit(tx *Tx, to common.Address, amount *uint256.Int) error {
	return c.token.Mint(tx.Call(c.bridge), to, amount)
}

// LockCustodyBridge serves the canonical ledger: outbound value is escrowed in
// the bridge's own token balance and released from it on the way back.
type LockCustodyBridge struct {
	*bridgeCore
}

// NewLockCustodyBridge deploys a lock-custody bridge at addr over token.
// releaser is the operator allowed to complete inbound transfers.
func NewLockCustodyBridge(addr common.Address, token *Token, releaser, admin common.Address) *LockCustodyBridge {
	b := &LockCustodyBridge{bridgeCore: &bridgeCore{
		address:       addr,
		token:         token,
		access:        NewAccessControl(admin),
		mode:          ModeLockCustody,
		inboundRole:   ReleaserRole,
		inboundReason: "Caller is not a releaser",
		keepSender:    true,
		processed:     make(map[uint64]struct{}),
	}}
	b.custody = lockCustody{bridge: addr, token: token}
	b.access.grant(ReleaserRole, releaser)
	return b
}

func (b *LockCustodyBridge) GrantReleaserRole(tx *Tx, account common.Address) error {
	return b.GrantRole(tx, ReleaserRole, account)
}

func (b *LockCustodyBridge) RevokeReleaserRole(tx *Tx, account common.Address) error {
	return b.RevokeRole(tx, ReleaserRole, account)
}

// Escrow returns the amount currently held in custody.
func (b *LockCustodyBridge) Escrow() *uint256.Int {
	return b.token.BalanceOf(b.address)
}

type lockCustody struct {
	bridge common.Address
	token  *Token
}

func (c lockCustody) debit(tx *Tx, amount *uint256.Int) error {
	return c.token.TransferFrom(tx.Call(c.bridge), tx.From, c.bridge, amount)
}

func (c lockCustody) credit(tx *Tx, to common.Address, amount *uint256.Int) error {
	return c.token.Transfer(tx.Call(c.bridge), to, amount)
}
