package user

import "context"

// Filter narrows account listings.
type Filter struct {
	TenantID  string
	CreatedBy string
	Role      string
}

// Store persists user accounts.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)
	// FindMaster returns the single master account, if provisioned.
	FindMaster(ctx context.Context) (*User, error)
	// FindTenantAdmin returns the admin account owning a tenant.
	FindTenantAdmin(ctx context.Context, tenantID string) (*User, error)
	List(ctx context.Context, f Filter) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	// PersonalIDs lists ids of personal accounts created by the given
	// account. Feeds the identity scope resolver.
	PersonalIDs(ctx context.Context, createdBy string) ([]string, error)
}
