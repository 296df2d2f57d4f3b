package auth

import (
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Mirror of the auth migration. admin_access and app_access are
	// intentionally loose (NUMERIC, no CHECK) — older databases hold
	// strings there and the scanners must cope.
	schemaSQL := `
		CREATE TABLE slate_roles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			admin_access NUMERIC NOT NULL DEFAULT 0,
			app_access NUMERIC NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);

		CREATE TABLE slate_users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role_id TEXT,
			token_hash TEXT UNIQUE,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (role_id) REFERENCES slate_roles(id) ON DELETE SET NULL
		);

		CREATE INDEX idx_slate_users_role ON slate_users(role_id);

		CREATE TABLE slate_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			ip TEXT,
			user_agent TEXT,
			origin TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (user_id) REFERENCES slate_users(id) ON DELETE CASCADE
		);

		CREATE INDEX idx_slate_sessions_user ON slate_sessions(user_id);
		CREATE INDEX idx_slate_sessions_expires ON slate_sessions(expires_at);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying auth schema: %v", err)
	}

	return db
}

// seedTestRole inserts a role and returns it.
func seedTestRole(t *testing.T, db *sql.DB, name string, admin, app bool) *Role {
	t.Helper()

	repo := NewRoleRepository(db)
	role := &Role{Name: name, AdminAccess: admin, AppAccess: app}
	if err := repo.Create(t.Context(), role); err != nil {
		t.Fatalf("creating test role %s: %v", name, err)
	}
	return role
}

// seedTestUser inserts an active user with the password "test-password".
func seedTestUser(t *testing.T, db *sql.DB, email, roleID string) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Email:        email,
		PasswordHash: hash,
		RoleID:       roleID,
		Status:       StatusActive,
	}
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

const testSecret = "test-secret-at-least-32-characters-long"

// newTestResolver wires a Resolver against a fresh test database.
func newTestResolver(t *testing.T, db *sql.DB) *Resolver {
	t.Helper()

	return NewResolver(ResolverOptions{
		Users:      NewUserRepository(db),
		Roles:      NewRoleRepository(db),
		Sessions:   NewSessionRepository(db),
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
}
