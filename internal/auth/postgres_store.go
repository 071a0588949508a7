package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresSessionStore is the PostgreSQL-backed SessionStore.
type PostgresSessionStore struct {
	db *sql.DB
}

// NewPostgresSessionStore creates a session store around an open DB handle.
func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (p *PostgresSessionStore) Create(ctx context.Context, s *Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token_hash, user_id, created_at, expires_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.TokenHash, s.UserID, s.CreatedAt, s.ExpiresAt, s.LastSeen)
	return err
}

func (p *PostgresSessionStore) GetByTokenHash(ctx context.Context, hash string) (*Session, error) {
	s := &Session{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, token_hash, user_id, created_at, expires_at, last_seen
		FROM sessions WHERE token_hash = $1`, hash).
		Scan(&s.ID, &s.TokenHash, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return s, nil
}

func (p *PostgresSessionStore) Touch(ctx context.Context, id string, lastSeen time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen = $2 WHERE id = $1`, id, lastSeen)
	return err
}

func (p *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (p *PostgresSessionStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (p *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Migrate creates the sessions table if needed.
func (p *PostgresSessionStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			token_hash TEXT NOT NULL UNIQUE,
			user_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			last_seen  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`)
	return err
}

var _ SessionStore = (*PostgresSessionStore)(nil)
