package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for account credentials.
type PostgresUserRepository struct {
	db db.Querier
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(q db.Querier) *PostgresUserRepository {
	return &PostgresUserRepository{db: q}
}

// Register persists a new account and its profile in one transaction, so an account
// never exists without a profile.
func (r *PostgresUserRepository) Register(ctx context.Context, user models.User, profile models.Profile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin register transaction: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if mapped, ok := classify(err); ok {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO profiles (user_id, name, email, image_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, profile.Name, profile.Email, profile.ImageURL, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if mapped, ok := classify(err); ok {
			return mapped
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit register transaction: %w", err)
	}
	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)
	return scanUser(row, "select user by email")
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, email, password_hash, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)
	return scanUser(row, "select user by id")
}

func scanUser(row pgx.Row, op string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
