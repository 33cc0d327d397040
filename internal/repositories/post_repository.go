package repositories

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
)

// PostRepository exposes data access for feed posts and their engagement.
type PostRepository interface {
	Create(ctx context.Context, post models.Post) error
	ListAll(ctx context.Context) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, comment models.Comment) error
}
