package tenant

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, name, slug, brand_name, primary_color, logo_url,
	plan, license_expiration, is_active, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, brand_name, primary_color, logo_url,
			plan, license_expiration, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Name, t.Slug, t.BrandName, t.PrimaryColor, nullStr(t.LogoURL),
		string(t.Plan), t.LicenseExpiration, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
}

func (p *PostgresStore) First(ctx context.Context) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC LIMIT 1`))
}

func (p *PostgresStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenantFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET name = $1, brand_name = $2, primary_color = $3,
			logo_url = $4, plan = $5, license_expiration = $6, is_active = $7,
			updated_at = $8
		WHERE id = $9`,
		t.Name, t.BrandName, t.PrimaryColor, nullStr(t.LogoURL),
		string(t.Plan), t.LicenseExpiration, t.IsActive, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t, err := scanTenantFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func scanTenantFrom(s rowScanner) (*Tenant, error) {
	t := &Tenant{}
	var (
		plan    string
		logoURL sql.NullString
		expiry  sql.NullTime
	)
	err := s.Scan(&t.ID, &t.Name, &t.Slug, &t.BrandName, &t.PrimaryColor,
		&logoURL, &plan, &expiry, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Plan = Plan(plan)
	t.LogoURL = logoURL.String
	if expiry.Valid {
		e := expiry.Time
		t.LicenseExpiration = &e
	}
	return t, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Migrate creates the tenants table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			slug               TEXT NOT NULL UNIQUE,
			brand_name         TEXT NOT NULL DEFAULT 'Gestor Orion',
			primary_color      TEXT NOT NULL DEFAULT '#e53935',
			logo_url           TEXT,
			plan               TEXT NOT NULL DEFAULT 'BASICO',
			license_expiration DATE,
			is_active          BOOLEAN NOT NULL DEFAULT TRUE,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tenants_slug ON tenants(slug);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
