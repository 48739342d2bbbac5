package treasury

import (
	"vaultusd/crypto"
)

// Role slot identifiers used in audit events.
const (
	RoleGovernor    = "governor"
	RoleRedeemer    = "redeemer"
	RoleSwapManager = "swapManager"
)

type rolesState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedRoleState struct {
	Governor    [20]byte
	Redeemer    [20]byte
	SwapManager [20]byte
	Keepers     [][20]byte
}

// Roles resolves which principal may invoke each privileged operation. All
// checks happen at call time against current state; nothing is cached by
// callers.
type Roles struct {
	state       rolesState
	roles       RoleState
	keeperOrder []crypto.Address
	keeperSet   map[string]struct{}
}

// NewRoles hydrates the role state, falling back to the supplied genesis
// assignment on first boot. Genesis must name a governor; redeemer and swap
// manager may start zero and be assigned later.
func NewRoles(state rolesState, genesis RoleState) (*Roles, error) {
	if state == nil {
		return nil, errStateNotConfigured
	}
	r := &Roles{state: state, keeperSet: make(map[string]struct{})}
	var stored storedRoleState
	ok, err := state.KVGet(roleStateKey, &stored)
	if err != nil {
		return nil, err
	}
	if ok {
		r.roles = RoleState{
			Governor:    addressFrom(stored.Governor),
			Redeemer:    addressFrom(stored.Redeemer),
			SwapManager: addressFrom(stored.SwapManager),
		}
		for _, raw := range stored.Keepers {
			keeper := addressFrom(raw)
			r.keeperOrder = append(r.keeperOrder, keeper)
			r.keeperSet[keeper.Key()] = struct{}{}
		}
		return r, nil
	}
	if genesis.Governor.IsZero() {
		return nil, ErrZeroAddress
	}
	r.roles = genesis
	if err := r.persist(); err != nil {
		return nil, err
	}
	return r, nil
}

func addressFrom(raw [20]byte) crypto.Address {
	empty := true
	for _, b := range raw {
		if b != 0 {
			empty = false
			break
		}
	}
	if empty {
		return crypto.Address{}
	}
	return crypto.MustNewAddress(crypto.VusdPrefix, raw[:])
}

func (r *Roles) persist() error {
	var stored storedRoleState
	copy(stored.Governor[:], r.roles.Governor.Bytes())
	copy(stored.Redeemer[:], r.roles.Redeemer.Bytes())
	copy(stored.SwapManager[:], r.roles.SwapManager.Bytes())
	stored.Keepers = make([][20]byte, len(r.keeperOrder))
	for i, keeper := range r.keeperOrder {
		copy(stored.Keepers[i][:], keeper.Bytes())
	}
	return r.state.KVPut(roleStateKey, stored)
}

// Governor returns the current governor.
func (r *Roles) Governor() crypto.Address { return r.roles.Governor }

// Redeemer returns the current redeemer principal.
func (r *Roles) Redeemer() crypto.Address { return r.roles.Redeemer }

// SwapManager returns the current swap-manager delegate.
func (r *Roles) SwapManager() crypto.Address { return r.roles.SwapManager }

// Keepers enumerates the keeper set in insertion order.
func (r *Roles) Keepers() []crypto.Address {
	return append([]crypto.Address(nil), r.keeperOrder...)
}

// IsKeeper reports keeper membership.
func (r *Roles) IsKeeper(addr crypto.Address) bool {
	if r == nil {
		return false
	}
	_, ok := r.keeperSet[addr.Key()]
	return ok
}

// RequireGovernor rejects any caller other than the governor.
func (r *Roles) RequireGovernor(caller crypto.Address) error {
	if r == nil || caller.IsZero() || !caller.Equal(r.roles.Governor) {
		return ErrUnauthorized
	}
	return nil
}

// RequireWithdrawer admits the governor and the redeemer.
func (r *Roles) RequireWithdrawer(caller crypto.Address) error {
	if r == nil || caller.IsZero() {
		return ErrUnauthorized
	}
	if caller.Equal(r.roles.Governor) || caller.Equal(r.roles.Redeemer) {
		return nil
	}
	return ErrUnauthorized
}

// RequireHarvester admits the governor and any keeper.
func (r *Roles) RequireHarvester(caller crypto.Address) error {
	if r == nil || caller.IsZero() {
		return ErrUnauthorized
	}
	if caller.Equal(r.roles.Governor) || r.IsKeeper(caller) {
		return nil
	}
	return ErrUnauthorized
}

// TransferGovernor hands the governor slot to a new principal. Returns the
// previous holder for audit events.
func (r *Roles) TransferGovernor(caller, next crypto.Address) (crypto.Address, error) {
	if err := r.RequireGovernor(caller); err != nil {
		return crypto.Address{}, err
	}
	if next.IsZero() {
		return crypto.Address{}, ErrZeroAddress
	}
	if next.Equal(r.roles.Governor) {
		return crypto.Address{}, ErrNoOp
	}
	previous := r.roles.Governor
	r.roles.Governor = next
	if err := r.persist(); err != nil {
		r.roles.Governor = previous
		return crypto.Address{}, err
	}
	return previous, nil
}

// UpdateRedeemer assigns the redeemer slot. Returns the previous holder.
func (r *Roles) UpdateRedeemer(caller, next crypto.Address) (crypto.Address, error) {
	if err := r.RequireGovernor(caller); err != nil {
		return crypto.Address{}, err
	}
	if next.IsZero() {
		return crypto.Address{}, ErrZeroAddress
	}
	if next.Equal(r.roles.Redeemer) {
		return crypto.Address{}, ErrNoOp
	}
	previous := r.roles.Redeemer
	r.roles.Redeemer = next
	if err := r.persist(); err != nil {
		r.roles.Redeemer = previous
		return crypto.Address{}, err
	}
	return previous, nil
}

// UpdateSwapManager assigns the swap-manager slot. Returns the previous
// holder.
func (r *Roles) UpdateSwapManager(caller, next crypto.Address) (crypto.Address, error) {
	if err := r.RequireGovernor(caller); err != nil {
		return crypto.Address{}, err
	}
	if next.IsZero() {
		return crypto.Address{}, ErrZeroAddress
	}
	if next.Equal(r.roles.SwapManager) {
		return crypto.Address{}, ErrNoOp
	}
	previous := r.roles.SwapManager
	r.roles.SwapManager = next
	if err := r.persist(); err != nil {
		r.roles.SwapManager = previous
		return crypto.Address{}, err
	}
	return previous, nil
}

// AddKeeper grows the keeper set. Adding an existing member is rejected as a
// redundant update so no vacuous event is emitted.
func (r *Roles) AddKeeper(caller, keeper crypto.Address) error {
	if err := r.RequireGovernor(caller); err != nil {
		return err
	}
	if keeper.IsZero() {
		return ErrZeroAddress
	}
	if r.IsKeeper(keeper) {
		return ErrNoOp
	}
	r.keeperOrder = append(r.keeperOrder, keeper)
	r.keeperSet[keeper.Key()] = struct{}{}
	if err := r.persist(); err != nil {
		r.keeperOrder = r.keeperOrder[:len(r.keeperOrder)-1]
		delete(r.keeperSet, keeper.Key())
		return err
	}
	return nil
}

// RemoveKeeper shrinks the keeper set. Removing a non-member fails with
// ErrNotAKeeper; this is an explicit contract, not a silent no-op.
func (r *Roles) RemoveKeeper(caller, keeper crypto.Address) error {
	if err := r.RequireGovernor(caller); err != nil {
		return err
	}
	if !r.IsKeeper(keeper) {
		return ErrNotAKeeper
	}
	idx := -1
	for i, existing := range r.keeperOrder {
		if existing.Equal(keeper) {
			idx = i
			break
		}
	}
	removedOrder := append([]crypto.Address(nil), r.keeperOrder...)
	r.keeperOrder = append(r.keeperOrder[:idx], r.keeperOrder[idx+1:]...)
	delete(r.keeperSet, keeper.Key())
	if err := r.persist(); err != nil {
		r.keeperOrder = removedOrder
		r.keeperSet[keeper.Key()] = struct{}{}
		return err
	}
	return nil
}
