package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/lib/pq"

	"github.com/gestororion/orion/internal/identity"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, tenant_id, username, password_hash, role, created_by,
	legacy_reseller_id, first_login, panel_plan, panel_expiry,
	onboarding_fee_paid, theme, logo_url, plan_prices, admin_plan_prices,
	expenses, reset_token, reset_token_expiry, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	planPrices, adminPrices, expenses, err := marshalBlobs(u)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, username, password_hash, role, created_by,
			legacy_reseller_id, first_login, panel_plan, panel_expiry,
			onboarding_fee_paid, theme, logo_url, plan_prices, admin_plan_prices,
			expenses, reset_token, reset_token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		u.ID, nullStr(u.TenantID), u.Username, u.PasswordHash, string(u.Role),
		nullStr(u.CreatedBy), nullStr(u.LegacyResellerID), u.FirstLogin,
		u.PanelPlan, u.PanelExpiry, u.OnboardingFeePaid, nullStr(u.Theme),
		nullStr(u.LogoURL), planPrices, adminPrices, expenses,
		nullStr(u.ResetToken), u.ResetTokenExpiry, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (p *PostgresStore) GetByResetToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = $1`, token))
}

func (p *PostgresStore) FindMaster(ctx context.Context) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = 'master' LIMIT 1`))
}

func (p *PostgresStore) FindTenantAdmin(ctx context.Context, tenantID string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = 'admin' AND tenant_id = $1 LIMIT 1`,
		tenantID))
}

func (p *PostgresStore) List(ctx context.Context, f Filter) ([]*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	var args []interface{}
	if f.TenantID != "" {
		args = append(args, f.TenantID)
		q += ` AND tenant_id = $` + itoa(len(args))
	}
	if f.CreatedBy != "" {
		args = append(args, f.CreatedBy)
		q += ` AND created_by = $` + itoa(len(args))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		q += ` AND role = $` + itoa(len(args))
	}
	q += ` ORDER BY created_at ASC`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*User
	for rows.Next() {
		u, err := p.scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, u *User) error {
	planPrices, adminPrices, expenses, err := marshalBlobs(u)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET username = $1, password_hash = $2, first_login = $3,
			panel_plan = $4, panel_expiry = $5, onboarding_fee_paid = $6,
			theme = $7, logo_url = $8, plan_prices = $9, admin_plan_prices = $10,
			expenses = $11, reset_token = $12, reset_token_expiry = $13,
			legacy_reseller_id = $14, updated_at = $15
		WHERE id = $16`,
		u.Username, u.PasswordHash, u.FirstLogin, u.PanelPlan, u.PanelExpiry,
		u.OnboardingFeePaid, nullStr(u.Theme), nullStr(u.LogoURL),
		planPrices, adminPrices, expenses, nullStr(u.ResetToken),
		u.ResetTokenExpiry, nullStr(u.LegacyResellerID), u.UpdatedAt, u.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) PersonalIDs(ctx context.Context, createdBy string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM users WHERE role = 'personal' AND created_by = $1
		ORDER BY id`, createdBy)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	u, err := scanUserFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (p *PostgresStore) scanUserRows(rows *sql.Rows) (*User, error) {
	return scanUserFrom(rows)
}

func scanUserFrom(s rowScanner) (*User, error) {
	u := &User{}
	var (
		tenantID, createdBy, legacyID, theme, logoURL, resetToken sql.NullString
		role                                                      string
		panelExpiry, resetExpiry                                  sql.NullTime
		planPrices, adminPrices, expenses                         []byte
	)
	err := s.Scan(&u.ID, &tenantID, &u.Username, &u.PasswordHash, &role,
		&createdBy, &legacyID, &u.FirstLogin, &u.PanelPlan, &panelExpiry,
		&u.OnboardingFeePaid, &theme, &logoURL, &planPrices, &adminPrices,
		&expenses, &resetToken, &resetExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = identity.Role(role)
	u.TenantID = tenantID.String
	u.CreatedBy = createdBy.String
	u.LegacyResellerID = legacyID.String
	u.Theme = theme.String
	u.LogoURL = logoURL.String
	u.ResetToken = resetToken.String
	if panelExpiry.Valid {
		t := panelExpiry.Time
		u.PanelExpiry = &t
	}
	if resetExpiry.Valid {
		t := resetExpiry.Time
		u.ResetTokenExpiry = &t
	}
	if len(planPrices) > 0 {
		var pt PriceTable
		if err := json.Unmarshal(planPrices, &pt); err == nil {
			u.PlanPrices = &pt
		}
	}
	if len(adminPrices) > 0 {
		var pt PriceTable
		if err := json.Unmarshal(adminPrices, &pt); err == nil {
			u.AdminPlanPrices = &pt
		}
	}
	if len(expenses) > 0 {
		_ = json.Unmarshal(expenses, &u.Expenses)
	}
	return u, nil
}

func marshalBlobs(u *User) (planPrices, adminPrices, expenses []byte, err error) {
	if u.PlanPrices != nil {
		planPrices, err = json.Marshal(u.PlanPrices)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if u.AdminPlanPrices != nil {
		adminPrices, err = json.Marshal(u.AdminPlanPrices)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if len(u.Expenses) > 0 {
		expenses, err = json.Marshal(u.Expenses)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return planPrices, adminPrices, expenses, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func itoa(n int) string { return strconv.Itoa(n) }

// Migrate creates the users table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			tenant_id           TEXT,
			username            TEXT NOT NULL,
			password_hash       TEXT NOT NULL,
			role                TEXT NOT NULL DEFAULT 'personal',
			created_by          TEXT,
			legacy_reseller_id  TEXT,
			first_login         BOOLEAN NOT NULL DEFAULT TRUE,
			panel_plan          TEXT NOT NULL DEFAULT 'STANDARD',
			panel_expiry        TIMESTAMPTZ,
			onboarding_fee_paid BOOLEAN NOT NULL DEFAULT FALSE,
			theme               TEXT,
			logo_url            TEXT,
			plan_prices         JSONB,
			admin_plan_prices   JSONB,
			expenses            JSONB,
			reset_token         TEXT,
			reset_token_expiry  TIMESTAMPTZ,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username);
		CREATE INDEX IF NOT EXISTS idx_users_created_by ON users(created_by);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
