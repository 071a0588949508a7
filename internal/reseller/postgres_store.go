package reseller

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/gestororion/orion/internal/identity"
)

// PostgresStore is the PostgreSQL-backed Store. Server rows live in a child
// table and are replaced wholesale on every update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a reseller store around an open DB handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const resellerColumns = `id, tenant_id, owner_id, name, phone, notes, type,
	status, payment_status, plan_active, plan_expires_at, plan_value,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, r *Reseller) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resellers (`+resellerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.TenantID, r.OwnerID, r.Name, r.Phone, r.Notes, r.Type,
		r.Status, r.PaymentStatus, r.PlanActive, r.PlanExpiresAt, r.PlanValue,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertServers(ctx, tx, r.ID, r.Servers); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Get(ctx context.Context, scope identity.Scope, id string) (*Reseller, error) {
	where, args := scopeWhere(scope, []string{"id = $1"}, []any{id})
	r, err := p.scanReseller(p.db.QueryRowContext(ctx,
		`SELECT `+resellerColumns+` FROM resellers WHERE `+where, args...))
	if err != nil {
		return nil, err
	}
	if err := p.loadServers(ctx, []*Reseller{r}); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *PostgresStore) List(ctx context.Context, scope identity.Scope) ([]*Reseller, error) {
	where, args := scopeWhere(scope, nil, nil)
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+resellerColumns+` FROM resellers WHERE `+where+` ORDER BY created_at DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := p.collect(rows)
	if err != nil {
		return nil, err
	}
	if err := p.loadServers(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Count(ctx context.Context, scope identity.Scope) (int, error) {
	where, args := scopeWhere(scope, nil, nil)
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resellers WHERE `+where, args...).Scan(&n)
	return n, err
}

func (p *PostgresStore) Update(ctx context.Context, scope identity.Scope, r *Reseller) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	where, args := scopeWhere(scope, []string{"id = $1"}, []any{r.ID})
	set := []any{r.Name, r.Phone, r.Notes, r.Type, r.Status, r.PaymentStatus,
		r.PlanActive, r.PlanExpiresAt, r.PlanValue, r.UpdatedAt}
	cols := []string{"name", "phone", "notes", "type", "status",
		"payment_status", "plan_active", "plan_expires_at", "plan_value",
		"updated_at"}
	setClause := make([]string, 0, len(cols))
	for i, col := range cols {
		setClause = append(setClause, col+" = $"+strconv.Itoa(len(args)+i+1))
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE resellers SET `+strings.Join(setClause, ", ")+` WHERE `+where,
		append(args, set...)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResellerNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reseller_servers WHERE reseller_id = $1`, r.ID); err != nil {
		return err
	}
	if err := insertServers(ctx, tx, r.ID, r.Servers); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Delete(ctx context.Context, scope identity.Scope, id string) error {
	where, args := scopeWhere(scope, []string{"id = $1"}, []any{id})
	res, err := p.db.ExecContext(ctx, `DELETE FROM resellers WHERE `+where, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResellerNotFound
	}
	return nil
}

func (p *PostgresStore) ListSettlingOn(ctx context.Context, day time.Time) ([]*Reseller, error) {
	return p.listUnscoped(ctx, `
		SELECT DISTINCT r.id FROM resellers r
		JOIN reseller_servers s ON s.reseller_id = r.id
		WHERE s.settle_date::date = $1::date
		ORDER BY r.id`, day)
}

func (p *PostgresStore) ListPaymentResetDue(ctx context.Context, now time.Time) ([]*Reseller, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return p.listUnscoped(ctx, `
		SELECT r.id FROM resellers r
		WHERE r.payment_status = '`+PaymentPaid+`'
		  AND (SELECT MAX(s.settle_date) FROM reseller_servers s
		       WHERE s.reseller_id = r.id) < $1
		ORDER BY r.id`, today)
}

func (p *PostgresStore) ListExpiredPlans(ctx context.Context, now time.Time) ([]*Reseller, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return p.listUnscoped(ctx, `
		SELECT id FROM resellers
		WHERE plan_active AND plan_expires_at IS NOT NULL AND plan_expires_at < $1
		ORDER BY id`, start)
}

// listUnscoped resolves a list of ids and loads the full records with the
// master scope. Sweep queries only.
func (p *PostgresStore) listUnscoped(ctx context.Context, query string, args ...any) ([]*Reseller, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	all := identity.Scope{IncludeLegacy: true}
	out := make([]*Reseller, 0, len(ids))
	for _, id := range ids {
		r, err := p.Get(ctx, all, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func insertServers(ctx context.Context, tx *sql.Tx, resellerID string, servers []ServerRow) error {
	for i, s := range servers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reseller_servers
				(reseller_id, position, server, active_count, price_per_active,
				 cost_per_active, settle_date, monthly)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			resellerID, i, s.Server, s.ActiveCount, s.PricePerActive,
			s.CostPerActive, s.SettleDate, s.Monthly)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) loadServers(ctx context.Context, resellers []*Reseller) error {
	if len(resellers) == 0 {
		return nil
	}
	byID := make(map[string]*Reseller, len(resellers))
	ids := make([]string, 0, len(resellers))
	for _, r := range resellers {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT reseller_id, server, active_count, price_per_active,
		       cost_per_active, settle_date, monthly
		FROM reseller_servers
		WHERE reseller_id = ANY($1)
		ORDER BY reseller_id, position`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var resellerID string
		var s ServerRow
		if err := rows.Scan(&resellerID, &s.Server, &s.ActiveCount,
			&s.PricePerActive, &s.CostPerActive, &s.SettleDate, &s.Monthly); err != nil {
			return err
		}
		if r, ok := byID[resellerID]; ok {
			r.Servers = append(r.Servers, s)
		}
	}
	return rows.Err()
}

// scopeWhere mirrors the client store's scope translation, with the
// reseller's own id doubling as its legacy tag.
func scopeWhere(scope identity.Scope, conds []string, args []any) (string, []any) {
	if scope.TenantID != "" {
		args = append(args, scope.TenantID)
		conds = append(conds, "tenant_id = $"+strconv.Itoa(len(args)))
	}

	switch {
	case scope.OwnerIDs == nil && scope.IncludeLegacy:
	case scope.OwnerIDs == nil:
		conds = append(conds, "owner_id <> ''")
	default:
		args = append(args, pq.Array(scope.OwnerIDs))
		owner := "owner_id = ANY($" + strconv.Itoa(len(args)) + ")"
		if scope.LegacyResellerID != "" {
			args = append(args, scope.LegacyResellerID)
			owner = "(" + owner + " OR (owner_id = '' AND id = $" +
				strconv.Itoa(len(args)) + "))"
		}
		conds = append(conds, owner)
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

func (p *PostgresStore) collect(rows *sql.Rows) ([]*Reseller, error) {
	var out []*Reseller
	for rows.Next() {
		r, err := p.scanResellerFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanReseller(row *sql.Row) (*Reseller, error) {
	r, err := p.scanResellerFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResellerNotFound
		}
		return nil, err
	}
	return r, nil
}

func (p *PostgresStore) scanResellerFrom(s rowScanner) (*Reseller, error) {
	r := &Reseller{}
	err := s.Scan(&r.ID, &r.TenantID, &r.OwnerID, &r.Name, &r.Phone, &r.Notes,
		&r.Type, &r.Status, &r.PaymentStatus, &r.PlanActive, &r.PlanExpiresAt,
		&r.PlanValue, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Migrate creates the reseller tables if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS resellers (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			owner_id        TEXT NOT NULL DEFAULT '',
			name            TEXT NOT NULL,
			phone           TEXT NOT NULL DEFAULT '',
			notes           TEXT NOT NULL DEFAULT '',
			type            TEXT NOT NULL,
			status          TEXT NOT NULL,
			payment_status  TEXT NOT NULL,
			plan_active     BOOLEAN NOT NULL DEFAULT FALSE,
			plan_expires_at TIMESTAMPTZ,
			plan_value      DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS reseller_servers (
			reseller_id      TEXT NOT NULL REFERENCES resellers(id) ON DELETE CASCADE,
			position         INTEGER NOT NULL,
			server           TEXT NOT NULL,
			active_count     INTEGER NOT NULL DEFAULT 0,
			price_per_active DOUBLE PRECISION NOT NULL DEFAULT 0,
			cost_per_active  DOUBLE PRECISION NOT NULL DEFAULT 0,
			settle_date      TIMESTAMPTZ,
			monthly          BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (reseller_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_resellers_tenant ON resellers(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_resellers_owner ON resellers(owner_id);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
