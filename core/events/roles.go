package events

import (
	"vaultusd/crypto"
)

const (
	// TypeRoleUpdated is emitted when a singleton role slot changes hands.
	TypeRoleUpdated = "roles.updated"
	// TypeKeeperAdded is emitted when an address joins the keeper set.
	TypeKeeperAdded = "roles.keeper_added"
	// TypeKeeperRemoved is emitted when an address leaves the keeper set.
	TypeKeeperRemoved = "roles.keeper_removed"
)

// RoleUpdated audits a role slot mutation carrying both the previous and the
// new holder so observers never need to reconstruct history.
type RoleUpdated struct {
	Role     string
	Previous crypto.Address
	Current  crypto.Address
}

func (RoleUpdated) EventType() string { return TypeRoleUpdated }

func (e RoleUpdated) Attributes() map[string]string {
	return map[string]string{
		"role":     e.Role,
		"previous": e.Previous.String(),
		"current":  e.Current.String(),
	}
}

// KeeperAdded records a keeper set addition.
type KeeperAdded struct {
	Keeper crypto.Address
}

func (KeeperAdded) EventType() string { return TypeKeeperAdded }

func (e KeeperAdded) Attributes() map[string]string {
	return map[string]string{"keeper": e.Keeper.String()}
}

// KeeperRemoved records a keeper set removal.
type KeeperRemoved struct {
	Keeper crypto.Address
}

func (KeeperRemoved) EventType() string { return TypeKeeperRemoved }

func (e KeeperRemoved) Attributes() map[string]string {
	return map[string]string{"keeper": e.Keeper.String()}
}
