package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// MintBurnDecimals is the precision of the MintBurn token variant.
	MintBurnDecimals uint8 = 8
	// WrappedDecimals is the precision of the bridge-administered token variant.
	WrappedDecimals uint8 = 10
)

// TokenConfig holds the immutable token metadata fixed at deployment.
type TokenConfig struct {
	Name     string
	Symbol   string
	Decimals uint8

	// Revert reasons for callers without a mint or burn capability.
	MintReason string
	BurnReason string
}

// Token is a fungible token ledger with role-gated mint and burn plus the
// standard transfer/approve/allowance surface.
//
// Every mutating method validates all preconditions before touching state, so a
// failed call leaves the token unchanged.
type Token struct {
	address common.Address
	cfg     TokenConfig
	access  *AccessControl

	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
}

// NewToken deploys a token at addr administered by admin. No minter, burner or
// bridge is set; grant them afterwards.
func NewToken(addr common.Address, cfg TokenConfig, admin common.Address) *Token {
	if cfg.MintReason == "" {
		cfg.MintReason = "Caller is not a minter"
	}
	if cfg.BurnReason == "" {
		cfg.BurnReason = "Caller is not a burner"
	}
	return &Token{
		address:     addr,
		cfg:         cfg,
		access:      NewAccessControl(admin),
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// NewMintBurnToken deploys the MintBurn variant: separate MINTER and BURNER
// holders and MintBurnDecimals precision.
func NewMintBurnToken(addr, minter, burner, admin common.Address) *Token {
	t := NewToken(addr, TokenConfig{
		Name:       "MintBurn",
		Symbol:     "MB",
		Decimals:   MintBurnDecimals,
		MintReason: "Caller is not a minter",
		BurnReason: "Caller is not a burner",
	}, admin)
	t.access.grant(MinterRole, minter)
	t.access.grant(BurnerRole, burner)
	return t
}

// NewWrappedToken deploys the bridge-administered variant with
// WrappedDecimals precision. A zero bridge address leaves BRIDGE unassigned.
func NewWrappedToken(addr, bridge, admin common.Address) *Token {
	t := NewToken(addr, TokenConfig{
		Name:       "ZeroChain",
		Symbol:     "ZCN",
		Decimals:   WrappedDecimals,
		MintReason: "Caller is not an approved bridge to mint",
		BurnReason: "Caller is not an approved bridge to burn",
	}, admin)
	if bridge != (common.Address{}) {
		t.access.grant(BridgeRole, bridge)
	}
	return t
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string            { return t.cfg.Name }
func (t *Token) Symbol() string          { return t.cfg.Symbol }
func (t *Token) Decimals() uint8         { return t.cfg.Decimals }

// TotalSupply returns a copy of the current supply.
func (t *Token) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(t.totalSupply)
}

// BalanceOf returns a copy of account's balance.
func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	return new(uint256.Int).Set(t.balance(account))
}

// Allowance returns how much spender may still pull from owner.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	return new(uint256.Int).Set(t.allowance(owner, spender))
}

func (t *Token) HasRole(role Role, account common.Address) bool {
	return t.access.HasRole(role, account)
}

func (t *Token) GrantRole(tx *Tx, role Role, account common.Address) error {
	return t.access.GrantRole(tx.From, role, account)
}

func (t *Token) RevokeRole(tx *Tx, role Role, account common.Address) error {
	return t.access.RevokeRole(tx.From, role, account)
}

func (t *Token) GrantMinterRole(tx *Tx, account common.Address) error {
	return t.GrantRole(tx, MinterRole, account)
}

func (t *Token) RevokeMinterRole(tx *Tx, account common.Address) error {
	return t.RevokeRole(tx, MinterRole, account)
}

func (t *Token) GrantBurnerRole(tx *Tx, account common.Address) error {
	return t.GrantRole(tx, BurnerRole, account)
}

func (t *Token) RevokeBurnerRole(tx *Tx, account common.Address) error {
	return t.RevokeRole(tx, BurnerRole, account)
}

func (t *Token) GrantBridgeRole(tx *Tx, account common.Address) error {
	return t.GrantRole(tx, BridgeRole, account)
}

func (t *Token) RevokeBridgeRole(tx *Tx, account common.Address) error {
	return t.RevokeRole(tx, BridgeRole, account)
}

// Mint credits amount to to and grows the supply. Caller must hold MINTER or
// BRIDGE.
func (t *Token) Mint(tx *Tx, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if err := t.access.checkAnyRole(tx.From, t.cfg.MintReason, MinterRole, BridgeRole); err != nil {
		return err
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return revert(ErrOverflow, "ERC20: mint amount overflows total supply")
	}
	t.totalSupply = supply
	t.balances[to] = new(uint256.Int).Add(t.balance(to), amount)
	return nil
}

// Burn destroys amount from from's balance. Caller must hold BURNER or BRIDGE.
func (t *Token) Burn(tx *Tx, from common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if err := t.access.checkAnyRole(tx.From, t.cfg.BurnReason, BurnerRole, BridgeRole); err != nil {
		return err
	}
	if t.balance(from).Lt(amount) {
		return revert(ErrInsufficientFunds, "ERC20: burn amount exceeds balance")
	}
	t.balances[from] = new(uint256.Int).Sub(t.balance(from), amount)
	t.totalSupply = new(uint256.Int).Sub(t.totalSupply, amount)
	return nil
}

// BurnSelf destroys amount from the caller's own balance. The caller still
// needs BURNER or BRIDGE.
func (t *Token) BurnSelf(tx *Tx, amount *uint256.Int) error {
	return t.Burn(tx, tx.From, amount)
}

// Transfer moves amount from the caller to to.
func (t *Token) Transfer(tx *Tx, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if t.balance(tx.From).Lt(amount) {
		return revert(ErrInsufficientFunds, "ERC20: transfer amount exceeds balance")
	}
	t.move(tx.From, to, amount)
	return nil
}

// Approve sets the amount spender may pull from the caller, replacing any
// previous allowance.
func (t *Token) Approve(tx *Tx, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	t.setAllowance(tx.From, spender, new(uint256.Int).Set(amount))
	return nil
}

// TransferFrom moves amount from from to to on behalf of the caller, spending
// the caller's allowance.
func (t *Token) TransferFrom(tx *Tx, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if t.balance(from).Lt(amount) {
		return revert(ErrInsufficientFunds, "ERC20: transfer amount exceeds balance")
	}
	allowed := t.allowance(from, tx.From)
	if allowed.Lt(amount) {
		return revert(ErrAllowanceExceeded, "ERC20: insufficient allowance")
	}
	t.setAllowance(from, tx.From, new(uint256.Int).Sub(allowed, amount))
	t.move(from, to, amount)
	return nil
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) {
	t.balances[from] = new(uint256.Int).Sub(t.balance(from), amount)
	t.balances[to] = new(uint256.Int).Add(t.balance(to), amount)
}

func (t *Token) balance(account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (t *Token) allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a
	}
	return new(uint256.Int)
}

func (t *Token) setAllowance(owner, spender common.Address, amount *uint256.Int) {
	owned, ok := t.allowances[owner]
	if !ok {
		owned = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = owned
	}
	owned[spender] = amount
}

// sumBalances is used by invariant checks.
func (t *Token) sumBalances() *uint256.Int {
	sum := new(uint256.Int)
	for _, b := range t.balances {
		sum.Add(sum, b)
	}
	return sum
}
