package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/gestororion/orion/internal/identity"
)

// PostgresStore is the PostgreSQL-backed Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a client store around an open DB handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const clientColumns = `id, tenant_id, owner_id, legacy_reseller_id, name, phone,
	username, password, server, device, notes, plan_type, plan_value, cost,
	start_date, due_date, status, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, c *Client) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		c.ID, c.TenantID, c.OwnerID, c.LegacyResellerID, c.Name, c.Phone,
		c.Username, c.Password, c.Server, c.Device, c.Notes,
		c.PlanType, c.PlanValue, c.Cost,
		c.StartDate, c.DueDate, c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, scope identity.Scope, id string) (*Client, error) {
	where, args := scopeWhere(scope, []string{"id = $1"}, []any{id})
	return p.scanClient(p.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE `+where, args...))
}

func (p *PostgresStore) List(ctx context.Context, scope identity.Scope, f Filter) ([]*Client, error) {
	conds, args := []string{}, []any{}
	if f.Server != "" {
		args = append(args, f.Server)
		conds = append(conds, "server = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if f.DueFrom != nil {
		args = append(args, *f.DueFrom)
		conds = append(conds, "due_date >= $"+strconv.Itoa(len(args)))
	}
	if f.DueTo != nil {
		args = append(args, *f.DueTo)
		conds = append(conds, "due_date < $"+strconv.Itoa(len(args)))
	}
	where, args := scopeWhere(scope, conds, args)

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.collect(rows)
}

func (p *PostgresStore) Count(ctx context.Context, scope identity.Scope) (int, error) {
	where, args := scopeWhere(scope, nil, nil)
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clients WHERE `+where, args...).Scan(&n)
	return n, err
}

func (p *PostgresStore) CountActiveOwned(ctx context.Context, tenantID string, ownerIDs []string, now time.Time) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM clients
		WHERE tenant_id = $1 AND owner_id = ANY($2)
		  AND status <> $3 AND due_date >= $4`,
		tenantID, pq.Array(ownerIDs), StatusInactive, startOfDay(now)).Scan(&n)
	return n, err
}

func (p *PostgresStore) Update(ctx context.Context, scope identity.Scope, c *Client) error {
	where, args := scopeWhere(scope, []string{"id = $1"}, []any{c.ID})

	set := []any{c.Name, c.Phone, c.Username, c.Password, c.Server, c.Device,
		c.Notes, c.PlanType, c.PlanValue, c.Cost, c.StartDate, c.DueDate,
		c.Status, c.UpdatedAt}
	setClause := make([]string, 0, len(set))
	for i, col := range []string{"name", "phone", "username", "password",
		"server", "device", "notes", "plan_type", "plan_value", "cost",
		"start_date", "due_date", "status", "updated_at"} {
		setClause = append(setClause, fmt.Sprintf("%s = $%d", col, len(args)+i+1))
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE clients SET `+strings.Join(setClause, ", ")+` WHERE `+where,
		append(args, set...)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, scope identity.Scope, id string) error {
	where, args := scopeWhere(scope, []string{"id = $1"}, []any{id})
	res, err := p.db.ExecContext(ctx, `DELETE FROM clients WHERE `+where, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (p *PostgresStore) ListOverdueActive(ctx context.Context, now time.Time) ([]*Client, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE status = $1 AND due_date < $2
		ORDER BY due_date ASC`,
		StatusActive, startOfDay(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.collect(rows)
}

// scopeWhere appends the identity scope conditions to an existing WHERE
// fragment. Positional args continue from the ones already collected.
func scopeWhere(scope identity.Scope, conds []string, args []any) (string, []any) {
	if scope.TenantID != "" {
		args = append(args, scope.TenantID)
		conds = append(conds, "tenant_id = $"+strconv.Itoa(len(args)))
	}

	switch {
	case scope.OwnerIDs == nil && scope.IncludeLegacy:
		// Any owner, legacy included: no owner condition.
	case scope.OwnerIDs == nil:
		conds = append(conds, "owner_id <> ''")
	default:
		args = append(args, pq.Array(scope.OwnerIDs))
		owner := "owner_id = ANY($" + strconv.Itoa(len(args)) + ")"
		if scope.LegacyResellerID != "" {
			args = append(args, scope.LegacyResellerID)
			owner = "(" + owner + " OR (owner_id = '' AND legacy_reseller_id = $" +
				strconv.Itoa(len(args)) + "))"
		}
		conds = append(conds, owner)
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (p *PostgresStore) collect(rows *sql.Rows) ([]*Client, error) {
	var out []*Client
	for rows.Next() {
		c, err := p.scanClientFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanClient(row *sql.Row) (*Client, error) {
	c, err := p.scanClientFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return c, nil
}

func (p *PostgresStore) scanClientFrom(r rowScanner) (*Client, error) {
	c := &Client{}
	err := r.Scan(&c.ID, &c.TenantID, &c.OwnerID, &c.LegacyResellerID,
		&c.Name, &c.Phone, &c.Username, &c.Password, &c.Server, &c.Device,
		&c.Notes, &c.PlanType, &c.PlanValue, &c.Cost,
		&c.StartDate, &c.DueDate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Migrate creates the clients table if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS clients (
			id                 TEXT PRIMARY KEY,
			tenant_id          TEXT NOT NULL,
			owner_id           TEXT NOT NULL DEFAULT '',
			legacy_reseller_id TEXT NOT NULL DEFAULT '',
			name               TEXT NOT NULL,
			phone              TEXT NOT NULL DEFAULT '',
			username           TEXT NOT NULL DEFAULT '',
			password           TEXT NOT NULL DEFAULT '',
			server             TEXT NOT NULL DEFAULT '',
			device             TEXT NOT NULL DEFAULT '',
			notes              TEXT NOT NULL DEFAULT '',
			plan_type          INTEGER NOT NULL,
			plan_value         DOUBLE PRECISION NOT NULL DEFAULT 0,
			cost               DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_date         TIMESTAMPTZ NOT NULL,
			due_date           TIMESTAMPTZ NOT NULL,
			status             TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_clients_tenant ON clients(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_clients_owner ON clients(owner_id);
		CREATE INDEX IF NOT EXISTS idx_clients_due ON clients(due_date);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
