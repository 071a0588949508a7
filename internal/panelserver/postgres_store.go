package panelserver

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore is the PostgreSQL-backed Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a server registry store around an open DB handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const serverColumns = `id, tenant_id, name, created_at`

func (p *PostgresStore) Create(ctx context.Context, s *Server) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO panel_servers (`+serverColumns+`)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.TenantID, s.Name, s.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrNameTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, tenantID string) ([]*Server, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+serverColumns+` FROM panel_servers
		WHERE tenant_id = $1 ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Server
	for rows.Next() {
		s := &Server{}
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM panel_servers WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServerNotFound
	}
	return nil
}

// Migrate creates the panel_servers table (used in dev/test; prod uses
// migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS panel_servers (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (tenant_id, name)
		);
		CREATE INDEX IF NOT EXISTS idx_panel_servers_tenant
			ON panel_servers(tenant_id, name);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
