// Package auth resolves admin privileges from the user_roles table.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is the pgx subset RoleStore needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RoleStore checks user_roles rows.
type RoleStore struct {
	db Querier
}

func NewRoleStore(db Querier) *RoleStore {
	return &RoleStore{db: db}
}

// HasRole reports whether userID holds role.
func (s *RoleStore) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`,
		userID, role,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("auth: check role: %w", err)
	}
	return ok, nil
}

// Grant adds a role to a user. Granting an existing role is a no-op.
func (s *RoleStore) Grant(ctx context.Context, userID uuid.UUID, role string) error {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO user_roles (id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role) DO UPDATE SET role = EXCLUDED.role
		RETURNING id`,
		uuid.New(), userID, role,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("auth: grant role: %w", err)
	}
	return nil
}
