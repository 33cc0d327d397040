package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/models"
)

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	db db.Querier
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(q db.Querier) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: q}
}

// Find loads a profile together with its pending friend requests and friend links.
func (r *PostgresProfileRepository) Find(ctx context.Context, userID string) (models.Profile, error) {
	row := r.db.QueryRow(ctx, `
        SELECT user_id, name, email, image_url, created_at, updated_at
        FROM profiles
        WHERE user_id = $1
    `, userID)

	var profile models.Profile
	if err := row.Scan(&profile.UserID, &profile.Name, &profile.Email, &profile.ImageURL, &profile.CreatedAt, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}

	requests, err := listPendingRequests(ctx, r.db, userID)
	if err != nil {
		return models.Profile{}, err
	}
	friends, err := listFriendLinks(ctx, r.db, userID)
	if err != nil {
		return models.Profile{}, err
	}

	profile.FriendRequests = requests
	profile.Friends = friends
	return profile, nil
}

// Search returns profiles whose name starts with namePrefix, case-insensitively,
// ordered by name. Embedded collections are not loaded.
func (r *PostgresProfileRepository) Search(ctx context.Context, namePrefix string, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := r.db.Query(ctx, `
        SELECT user_id, name, email, image_url, created_at, updated_at
        FROM profiles
        WHERE lower(name) LIKE $1 ESCAPE '\'
        ORDER BY name, user_id
        LIMIT $2
    `, likePrefix(namePrefix), limit)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.Name, &p.Email, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// UpdateSettings rewrites the editable profile fields and mirrors the email (and an
// optional new password hash) onto the credentials row.
func (r *PostgresProfileRepository) UpdateSettings(ctx context.Context, userID string, settings models.ProfileSettings) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE profiles
        SET name = $2, email = $3, image_url = $4, updated_at = $5
        WHERE user_id = $1
    `, userID, settings.Name, settings.Email, settings.ImageURL, settings.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
        UPDATE users
        SET email = $2,
            password_hash = COALESCE(NULLIF($3, ''), password_hash),
            updated_at = $4
        WHERE id = $1
    `, userID, settings.Email, settings.PasswordHash, settings.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if mapped, ok := classify(err); ok {
			return mapped
		}
		return fmt.Errorf("update credentials: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settings transaction: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(strings.ToLower(strings.TrimSpace(prefix))) + "%"
}

var _ ProfileRepository = (*PostgresProfileRepository)(nil)
