// internal/repository/postgres/profile_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// ProfileRepository is the profile store keyed by user id.
type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: NewDB(pool)}
}

// GetRole returns the raw stored role. found is false when no profile exists.
func (r *ProfileRepository) GetRole(ctx context.Context, userID string) (string, bool, error) {
	var role *string
	err := r.db.Pool().QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch role: %w", err)
	}
	if role == nil {
		return "", true, nil
	}
	return *role, true, nil
}

// GetProfile retrieves a profile by user id
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*auth.Profile, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(role, ''), created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var p auth.Profile
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &p, nil
}

// CreateProfile inserts a profile. When the direct insert is rejected (row
// level security on a hosted database) it falls back to the
// create_user_profile stored function.
func (r *ProfileRepository) CreateProfile(ctx context.Context, p *auth.Profile) error {
	if p.Name == "" {
		p.Name = "User"
	}
	if p.Role == "" {
		p.Role = string(auth.RoleUser)
	}

	query := `
		INSERT INTO profiles (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	insertErr := r.db.Pool().QueryRow(ctx, query, p.ID, p.Name, p.Email, p.Role).Scan(&p.CreatedAt, &p.UpdatedAt)
	if insertErr == nil {
		return nil
	}

	fallback := `SELECT created_at, updated_at FROM create_user_profile($1, $2, $3, $4)`
	fnErr := r.db.Pool().QueryRow(ctx, fallback, p.ID, p.Name, p.Email, p.Role).Scan(&p.CreatedAt, &p.UpdatedAt)
	if fnErr != nil {
		return fmt.Errorf("failed to create profile: %w", errors.Join(insertErr, fnErr))
	}
	return nil
}

// UpdateRole sets the stored role of a profile
func (r *ProfileRepository) UpdateRole(ctx context.Context, userID, role string) error {
	query := `UPDATE profiles SET role = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.db.Pool().Exec(ctx, query, role, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// NormalizeRoles rewrites every stored role that differs from its trimmed,
// lower-cased form and reports what changed.
func (r *ProfileRepository) NormalizeRoles(ctx context.Context) ([]auth.NormalizedRole, error) {
	var changed []auth.NormalizedRole

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, role FROM profiles
			WHERE role IS NOT NULL AND role <> `+canonicalRoleExpr+`
			FOR UPDATE
		`)
		if err != nil {
			return fmt.Errorf("failed to select roles: %w", err)
		}
		for rows.Next() {
			var n auth.NormalizedRole
			if err := rows.Scan(&n.ProfileID, &n.From); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan role: %w", err)
			}
			n.To = canonicalRole(n.From)
			if n.To == n.From {
				continue
			}
			changed = append(changed, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		now := time.Now()
		for _, n := range changed {
			if _, err := tx.Exec(ctx, `UPDATE profiles SET role = $1, updated_at = $2 WHERE id = $3`, n.To, now, n.ProfileID); err != nil {
				return fmt.Errorf("failed to normalize role of %s: %w", n.ProfileID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// ListRoles returns the raw stored role of each requested profile that
// exists.
func (r *ProfileRepository) ListRoles(ctx context.Context, userIDs []string) (map[string]string, error) {
	roles := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return roles, nil
	}

	rows, err := r.db.Pool().Query(ctx, `SELECT id, COALESCE(role, '') FROM profiles WHERE id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, role string
		if err := rows.Scan(&id, &role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles[id] = role
	}
	return roles, rows.Err()
}
