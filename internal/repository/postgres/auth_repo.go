// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// AuthRepository stores credential records of the identity service.
type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// CreateUser inserts a credential record
func (r *AuthRepository) CreateUser(ctx context.Context, u *auth.User) error {
	query := `
		INSERT INTO auth_users (id, email, password_hash)
		VALUES ($1, LOWER($2), $3)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves an active user by email
func (r *AuthRepository) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := `
		SELECT id, email, password_hash, last_login, created_at, updated_at, deleted_at
		FROM auth_users
		WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
	`
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

// FindUserByID retrieves an active user by id
func (r *AuthRepository) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	query := `
		SELECT id, email, password_hash, last_login, created_at, updated_at, deleted_at
		FROM auth_users
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

// UpdateLastLogin stamps a successful sign-in
func (r *AuthRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE auth_users SET last_login = $1, updated_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

// SoftDeleteUser marks a user deleted. The profile is kept.
func (r *AuthRepository) SoftDeleteUser(ctx context.Context, id string) error {
	query := `UPDATE auth_users SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *AuthRepository) scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}
