//go:build integration

package client

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/gestororion/orion/internal/identity"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM clients")
		db.Close()
	}

	return store, cleanup
}

func seedPG(t *testing.T, store *PostgresStore, id, tenantID, ownerID, legacyID string, due time.Time) {
	t.Helper()
	now := time.Now().UTC()
	err := store.Create(context.Background(), &Client{
		ID: id, TenantID: tenantID, OwnerID: ownerID, LegacyResellerID: legacyID,
		Name: "Cliente " + id, PlanType: 30, StartDate: now, DueDate: due,
		Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

func TestPostgres_ScopeFiltering(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	due := time.Now().UTC().AddDate(0, 0, 10)
	seedPG(t, store, "cli_pg_a", "ten_pg_1", "usr_pg_1", "", due)
	seedPG(t, store, "cli_pg_b", "ten_pg_1", "usr_pg_2", "", due)
	seedPG(t, store, "cli_pg_legacy", "ten_pg_1", "", "rsl_pg_9", due)
	seedPG(t, store, "cli_pg_other", "ten_pg_2", "usr_pg_3", "", due)

	// Personal scope sees only its own rows.
	personal := identity.Scope{TenantID: "ten_pg_1", OwnerIDs: []string{"usr_pg_1"}}
	rows, err := store.List(ctx, personal, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "cli_pg_a" {
		t.Fatalf("expected only cli_pg_a, got %d rows", len(rows))
	}

	// A tagged scope reaches the legacy row as well.
	tagged := identity.Scope{TenantID: "ten_pg_1", OwnerIDs: []string{"usr_pg_1"}, LegacyResellerID: "rsl_pg_9"}
	rows, err = store.List(ctx, tagged, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected own plus legacy row, got %d", len(rows))
	}

	// Master sees everything including legacy, across tenants.
	master := identity.Scope{IncludeLegacy: true}
	n, err := store.Count(ctx, master)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 rows for master, got %d", n)
	}

	// Out-of-scope Get reads as missing.
	if _, err := store.Get(ctx, personal, "cli_pg_b"); err != ErrClientNotFound {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestPostgres_OverdueAndActiveCounts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	seedPG(t, store, "cli_pg_due", "ten_pg_1", "usr_pg_1", "", now.AddDate(0, 0, -2))
	seedPG(t, store, "cli_pg_today", "ten_pg_1", "usr_pg_1", "", now)
	seedPG(t, store, "cli_pg_ok", "ten_pg_1", "usr_pg_1", "", now.AddDate(0, 0, 5))

	overdue, err := store.ListOverdueActive(ctx, now)
	if err != nil {
		t.Fatalf("ListOverdueActive failed: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "cli_pg_due" {
		t.Fatalf("expected only cli_pg_due overdue, got %d rows", len(overdue))
	}

	// The due day itself still counts as active.
	n, err := store.CountActiveOwned(ctx, "ten_pg_1", []string{"usr_pg_1"}, now)
	if err != nil {
		t.Fatalf("CountActiveOwned failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 active clients, got %d", n)
	}
}

func TestPostgres_UpdateOutOfScope(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	due := time.Now().UTC().AddDate(0, 0, 10)
	seedPG(t, store, "cli_pg_u", "ten_pg_1", "usr_pg_1", "", due)

	c, err := store.Get(ctx, identity.Scope{TenantID: "ten_pg_1", OwnerIDs: []string{"usr_pg_1"}}, "cli_pg_u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c.Name = "Renamed"
	other := identity.Scope{TenantID: "ten_pg_2"}
	if err := store.Update(ctx, other, c); err != ErrClientNotFound {
		t.Fatalf("expected ErrClientNotFound on out-of-scope update, got %v", err)
	}
}
