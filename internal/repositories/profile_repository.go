package repositories

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
)

// ProfileRepository defines data access for public profiles.
type ProfileRepository interface {
	Find(ctx context.Context, userID string) (models.Profile, error)
	Search(ctx context.Context, namePrefix string, limit int) ([]models.Profile, error)
	UpdateSettings(ctx context.Context, userID string, settings models.ProfileSettings) error
}
