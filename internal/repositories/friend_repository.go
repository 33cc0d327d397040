package repositories

import (
	"context"
	"time"

	"github.com/socialfeed/backend/internal/models"
)

// FriendRepository defines data access for friend requests and friendships.
type FriendRepository interface {
	CreateRequest(ctx context.Context, request models.FriendRequest) error
	ListPending(ctx context.Context, recipientID string) ([]models.FriendRequest, error)
	Accept(ctx context.Context, recipientID, requesterID string, at time.Time) error
	Reject(ctx context.Context, recipientID, requesterID string, at time.Time) error
	ListFriends(ctx context.Context, userID string) ([]models.FriendLink, error)
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
}
