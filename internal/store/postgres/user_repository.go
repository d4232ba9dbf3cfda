// Copyright 2026 The LangBuilder Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/CloudGeometry/LangBuilder/internal/identity"
)

// UserRepository implements identity.UserRepository and the backfill's
// superuser lister.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, is_superuser, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID, user.Username, user.PasswordHash, user.IsSuperuser, user.IsActive,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*identity.User, error) {
	return r.get(ctx, "id = $1", userID)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.get(ctx, "username = $1", username)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*identity.User, error) {
	var user identity.User

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, is_superuser, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE `+where,
		arg,
	).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperuser, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Delete removes a user; role assignments cascade with it.
func (r *UserRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM users WHERE id = $1
	`, userID)

	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// TouchLastLogin records a successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $2 WHERE id = $1
	`, userID, at)

	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// ListSuperusers returns the ids of all superusers
func (r *UserRepository) ListSuperusers(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id FROM users WHERE is_superuser
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list superusers: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}
