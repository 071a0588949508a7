package identity

import (
	"context"
)

// Scope is the ownership filter applied to every Client/Reseller query.
// A zero TenantID means "all tenants" and is only ever produced for master.
type Scope struct {
	TenantID string
	// OwnerIDs restricts rows to these owner ids. nil means any owner.
	OwnerIDs []string
	// LegacyResellerID, when set, additionally matches legacy rows
	// (empty owner) tagged with this reseller id.
	LegacyResellerID string
	// IncludeLegacy admits rows with no owner at all. Only master gets it,
	// for records that predate per-user ownership.
	IncludeLegacy bool
}

// MatchesTenant reports whether a row in the given tenant is in scope.
func (s Scope) MatchesTenant(tenantID string) bool {
	return s.TenantID == "" || s.TenantID == tenantID
}

// MatchesOwner reports whether a row with the given owner and legacy
// reseller tag is in scope.
func (s Scope) MatchesOwner(ownerID, legacyResellerID string) bool {
	if s.OwnerIDs == nil {
		if ownerID == "" {
			return s.IncludeLegacy
		}
		return true
	}
	if ownerID == "" {
		return s.LegacyResellerID != "" && legacyResellerID == s.LegacyResellerID
	}
	for _, id := range s.OwnerIDs {
		if id == ownerID {
			return true
		}
	}
	return false
}

// Matches combines the tenant and owner checks.
func (s Scope) Matches(tenantID, ownerID, legacyResellerID string) bool {
	return s.MatchesTenant(tenantID) && s.MatchesOwner(ownerID, legacyResellerID)
}

// PersonalDirectory lists the personal accounts an admin has created.
// Implemented by the user store.
type PersonalDirectory interface {
	PersonalIDs(ctx context.Context, createdBy string) ([]string, error)
}

// Resolver computes the Scope for a caller. It is the single place where
// role-based visibility decisions live.
type Resolver struct {
	personals PersonalDirectory
}

// NewResolver creates a scope resolver backed by the given directory.
func NewResolver(personals PersonalDirectory) *Resolver {
	return &Resolver{personals: personals}
}

// Resolve computes the caller's scope. explicitTenant is honoured only for
// master, which may narrow its view to one tenant when listing per-tenant
// resources; everyone else is pinned to their own tenant.
func (r *Resolver) Resolve(ctx context.Context, id Identity, explicitTenant string) (Scope, error) {
	switch id.Role {
	case RoleMaster:
		return Scope{
			TenantID:      explicitTenant,
			IncludeLegacy: true,
		}, nil

	case RoleAdmin:
		if id.TenantID == "" {
			return Scope{}, ErrTenantNotIdentified
		}
		owners := []string{id.UserID}
		personals, err := r.personals.PersonalIDs(ctx, id.UserID)
		if err != nil {
			return Scope{}, err
		}
		owners = append(owners, personals...)
		return Scope{
			TenantID: id.TenantID,
			OwnerIDs: owners,
		}, nil

	case RolePersonal:
		if id.TenantID == "" {
			return Scope{}, ErrTenantNotIdentified
		}
		return Scope{
			TenantID:         id.TenantID,
			OwnerIDs:         []string{id.UserID},
			LegacyResellerID: id.LegacyResellerID,
		}, nil
	}
	return Scope{}, ErrUnknownRole
}
