// Package identity defines who is calling and what they are allowed to see.
//
// Every request carries a resolved Identity (role + ids). The Resolver turns
// an Identity into a Scope: the ownership filter every store query must apply.
package identity

import (
	"errors"
)

// Errors
var (
	ErrTenantNotIdentified = errors.New("identity: tenant not identified")
	ErrUnknownRole         = errors.New("identity: unknown role")
)

// Role is the closed set of caller roles. Adding a role forces every
// scope decision in the Resolver to be revisited.
type Role string

const (
	// RoleMaster is the global super-admin. It belongs to no tenant.
	RoleMaster Role = "master"
	// RoleAdmin owns a tenant and may act as a direct operator inside it.
	RoleAdmin Role = "admin"
	// RolePersonal is a tenant-scoped operator with an exclusive data silo.
	RolePersonal Role = "personal"
)

// Valid reports whether r is a recognised role.
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleAdmin, RolePersonal:
		return true
	}
	return false
}

// Identity is the resolved caller record supplied by the session layer.
// The core trusts it; credential verification happens upstream.
type Identity struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenantId,omitempty"` // empty for master
	// CreatedBy is the account that created this one. Used to scope an
	// admin's visibility of its own personal accounts.
	CreatedBy string `json:"createdBy,omitempty"`
	// LegacyResellerID links a personal account to records created before
	// per-user ownership existed.
	LegacyResellerID string `json:"legacyResellerId,omitempty"`
}

// IsMaster reports whether the caller is the global super-admin.
func (id Identity) IsMaster() bool { return id.Role == RoleMaster }

// CanManage reports whether the caller may perform admin-level actions.
func (id Identity) CanManage() bool { return id.Role == RoleMaster || id.Role == RoleAdmin }
