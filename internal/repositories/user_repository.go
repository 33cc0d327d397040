package repositories

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
)

// UserRepository defines the data access contract for account credentials.
type UserRepository interface {
	Register(ctx context.Context, user models.User, profile models.Profile) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}
