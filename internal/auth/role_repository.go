package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoleRepository defines the interface for role persistence.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
}

// SQLiteRoleRepository implements RoleRepository using SQLite.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new SQLite-backed role repository.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

// Create inserts a new role. The ID is generated if empty. The access
// flags are written through NormalizeBool so fresh rows are strict even
// when the caller hands in loose values.
func (r *SQLiteRoleRepository) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	role.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO slate_roles (id, name, admin_access, app_access, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		role.ID, role.Name,
		boolToInt(NormalizeBool(role.AdminAccess)),
		boolToInt(NormalizeBool(role.AppAccess)),
		now,
	)
	if err != nil {
		return fmt.Errorf("creating role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by its unique ID.
func (r *SQLiteRoleRepository) GetByID(ctx context.Context, id string) (*Role, error) {
	return r.getRole(ctx, "SELECT id, name, admin_access, app_access, created_at FROM slate_roles WHERE id = ?", id)
}

// GetByName retrieves a role by its unique name.
func (r *SQLiteRoleRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.getRole(ctx, "SELECT id, name, admin_access, app_access, created_at FROM slate_roles WHERE name = ?", name)
}

// List returns all roles ordered by name.
func (r *SQLiteRoleRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, admin_access, app_access, created_at FROM slate_roles ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRoleFrom(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}

	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

func (r *SQLiteRoleRepository) getRole(ctx context.Context, query string, args ...any) (*Role, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	return scanRoleFrom(row)
}

// scanRoleFrom scans a role from any scanner. The access flags land in
// `any` untouched — the column has NUMERIC affinity and older databases
// hold strings there, so coercion is deferred to NormalizeBool.
func scanRoleFrom(s scanner) (*Role, error) {
	var role Role
	var createdAt string

	err := s.Scan(&role.ID, &role.Name, &role.AdminAccess, &role.AppAccess, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}

	role.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &role, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
