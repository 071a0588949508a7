package renewal

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore is the PostgreSQL-backed renewal Store. The partial unique
// index on (user_id) WHERE status = 'pending' makes the one-in-flight
// invariant hold even under concurrent submissions.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a renewal store around an open DB handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, tenant_id, user_id, role, plan_key, plan_label, days,
	price, message, status, requested_at, responded_at, responded_by, new_expiry`

func (p *PostgresStore) Create(ctx context.Context, r *Request) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO renewal_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.TenantID, r.UserID, r.Role, r.PlanKey, r.PlanLabel, r.Days,
		r.Price, r.Message, r.Status, r.RequestedAt, r.RespondedAt, r.RespondedBy, r.NewExpiry)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrPendingExists
		}
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Request, error) {
	return p.scanRequest(p.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM renewal_requests WHERE id = $1`, id))
}

func (p *PostgresStore) FindPending(ctx context.Context, userID string) (*Request, error) {
	return p.scanRequest(p.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM renewal_requests
		 WHERE user_id = $1 AND status = $2`, userID, StatusPending))
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Request, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM renewal_requests
		WHERE user_id = $1 ORDER BY requested_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.collect(rows)
}

func (p *PostgresStore) ListPending(ctx context.Context, tenantID string) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM renewal_requests WHERE status = $1`
	args := []any{StatusPending}
	if tenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	query += ` ORDER BY requested_at ASC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.collect(rows)
}

func (p *PostgresStore) Update(ctx context.Context, r *Request) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE renewal_requests
		SET status = $2, responded_at = $3, responded_by = $4, new_expiry = $5
		WHERE id = $1`,
		r.ID, r.Status, r.RespondedAt, r.RespondedBy, r.NewExpiry)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (p *PostgresStore) collect(rows *sql.Rows) ([]*Request, error) {
	var out []*Request
	for rows.Next() {
		r := &Request{}
		if err := rows.Scan(&r.ID, &r.TenantID, &r.UserID, &r.Role,
			&r.PlanKey, &r.PlanLabel, &r.Days, &r.Price, &r.Message, &r.Status,
			&r.RequestedAt, &r.RespondedAt, &r.RespondedBy, &r.NewExpiry); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) scanRequest(row *sql.Row) (*Request, error) {
	r := &Request{}
	err := row.Scan(&r.ID, &r.TenantID, &r.UserID, &r.Role,
		&r.PlanKey, &r.PlanLabel, &r.Days, &r.Price, &r.Message, &r.Status,
		&r.RequestedAt, &r.RespondedAt, &r.RespondedBy, &r.NewExpiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return r, nil
}

// Migrate creates the renewal_requests table if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS renewal_requests (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL DEFAULT '',
			user_id      TEXT NOT NULL,
			role         TEXT NOT NULL,
			plan_key     TEXT NOT NULL,
			plan_label   TEXT NOT NULL,
			days         INTEGER NOT NULL,
			price        DOUBLE PRECISION NOT NULL,
			message      TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			responded_at TIMESTAMPTZ,
			responded_by TEXT NOT NULL DEFAULT '',
			new_expiry   TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_renewals_one_pending
			ON renewal_requests(user_id) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_renewals_user ON renewal_requests(user_id, requested_at DESC);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
