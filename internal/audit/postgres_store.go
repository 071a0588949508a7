package audit

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/gestororion/orion/internal/pagination"
)

// PostgresStore is the PostgreSQL-backed audit Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an audit store around an open DB handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, e *Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor_id, actor_role, action, target_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.TenantID, e.ActorID, e.ActorRole, e.Action, e.TargetID, e.Detail, e.CreatedAt)
	return err
}

func (p *PostgresStore) List(ctx context.Context, tenantID string, before *pagination.Cursor, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, tenant_id, actor_id, actor_role, action, target_id, detail, created_at
		FROM audit_log`
	conds := []string{}
	args := []any{}
	if tenantID != "" {
		args = append(args, tenantID)
		conds = append(conds, `tenant_id = $`+strconv.Itoa(len(args)))
	}
	if before != nil {
		args = append(args, before.CreatedAt, before.ID)
		conds = append(conds, `(created_at, id) < ($`+strconv.Itoa(len(args)-1)+`, $`+strconv.Itoa(len(args))+`)`)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.ActorRole,
			&e.Action, &e.TargetID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Migrate creates the audit_log table if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL DEFAULT '',
			actor_id   TEXT NOT NULL DEFAULT '',
			actor_role TEXT NOT NULL DEFAULT '',
			action     TEXT NOT NULL,
			target_id  TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_log(tenant_id, created_at DESC);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
