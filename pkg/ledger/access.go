package ledger

import (
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role identifies a permission inside one contract's registry. Role ids are
// keccak256 hashes of the role name, matching the EVM AccessControl layout.
type Role common.Hash

var (
	AdminRole    = NewRole("ADMIN_ROLE")
	MinterRole   = NewRole("MINTER_ROLE")
	BurnerRole   = NewRole("BURNER_ROLE")
	ReleaserRole = NewRole("RELEASER_ROLE")
	BridgeRole   = NewRole("BRIDGE_ROLE")
)

var roleNames = map[Role]string{
	AdminRole:    "ADMIN",
	MinterRole:   "MINTER",
	BurnerRole:   "BURNER",
	ReleaserRole: "RELEASER",
	BridgeRole:   "BRIDGE",
}

// NewRole derives a role id from its name.
func NewRole(name string) Role {
	return Role(crypto.Keccak256Hash([]byte(name)))
}

// ParseRole resolves a short role name (ADMIN, MINTER, ...) case-insensitively.
func ParseRole(name string) (Role, bool) {
	name = strings.TrimSuffix(strings.ToUpper(name), "_ROLE")
	for role, n := range roleNames {
		if n == name {
			return role, true
		}
	}
	return Role{}, false
}

// Hex returns the 0x-prefixed role id.
func (r Role) Hex() string {
	return common.Hash(r).Hex()
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return r.Hex()
}

// AccessControl is a per-contract role registry. It is not safe for concurrent
// use; the owning Chain serializes access.
type AccessControl struct {
	members map[Role]map[common.Address]struct{}
}

// NewAccessControl creates a registry whose ADMIN set initially holds admin.
func NewAccessControl(admin common.Address) *AccessControl {
	ac := &AccessControl{members: make(map[Role]map[common.Address]struct{})}
	ac.grant(AdminRole, admin)
	return ac
}

// HasRole reports whether account holds role.
func (ac *AccessControl) HasRole(role Role, account common.Address) bool {
	_, ok := ac.members[role][account]
	return ok
}

// Members lists the holders of role in address order.
func (ac *AccessControl) Members(role Role) []common.Address {
	out := make([]common.Address, 0, len(ac.members[role]))
	for addr := range ac.members[role] {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// GrantRole adds account to role. Caller must hold ADMIN. Granting a held role
// succeeds without change.
func (ac *AccessControl) GrantRole(caller common.Address, role Role, account common.Address) error {
	if err := ac.checkRole(AdminRole, caller); err != nil {
		return err
	}
	ac.grant(role, account)
	return nil
}

// RevokeRole removes account from role. Caller must hold ADMIN. Revoking an
// unheld role succeeds without change. The last ADMIN holder cannot be removed.
func (ac *AccessControl) RevokeRole(caller common.Address, role Role, account common.Address) error {
	if err := ac.checkRole(AdminRole, caller); err != nil {
		return err
	}
	if !ac.HasRole(role, account) {
		return nil
	}
	if role == AdminRole && len(ac.members[AdminRole]) == 1 {
		return revert(ErrLastAdmin, "AccessControl: cannot revoke the last admin")
	}
	delete(ac.members[role], account)
	return nil
}

func (ac *AccessControl) checkRole(role Role, account common.Address) error {
	if ac.HasRole(role, account) {
		return nil
	}
	return revert(ErrAccessDenied, "AccessControl: account %s is missing role %s",
		strings.ToLower(account.Hex()), role.Hex())
}

// checkAnyRole passes when account holds at least one of roles; reason is the
// revert string used otherwise.
func (ac *AccessControl) checkAnyRole(account common.Address, reason string, roles ...Role) error {
	for _, role := range roles {
		if ac.HasRole(role, account) {
			return nil
		}
	}
	return revert(ErrAccessDenied, "%s", reason)
}

func (ac *AccessControl) grant(role Role, account common.Address) {
	set, ok := ac.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		ac.members[role] = set
	}
	set[account] = struct{}{}
}
