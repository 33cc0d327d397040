package handlers

import (
	"context"
	"io"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/session"
	"github.com/socialfeed/backend/internal/social"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Register(ctx context.Context, user models.User, profile models.Profile) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// SessionManager issues, refreshes and revokes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string) (auth.Session, error)
	RevokeAll(ctx context.Context, userID string) error
	Verify(accessToken string) (auth.Identity, error)
}

// SessionProvider exposes the signed-in user's identity and its change stream.
type SessionProvider interface {
	Current(ctx context.Context, userID string) (models.Profile, error)
	SignedIn(ctx context.Context, userID string) error
	SignedOut(ctx context.Context, userID, sessionID string) error
	Subscribe(userID, sessionID string) *session.Subscription
	Unsubscribe(sub *session.Subscription)
}

// FeedService captures the feed operations exposed over HTTP.
type FeedService interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, author *models.Profile, body, imageURL string) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID string, actor *models.Profile) ([]models.Post, error)
	AddComment(ctx context.Context, postID string, actor *models.Profile, text string) ([]models.Post, error)
}

// SocialService captures friend and profile operations exposed over HTTP.
type SocialService interface {
	SendRequest(ctx context.Context, actor *models.Profile, targetID string) (models.FriendRequest, error)
	AcceptRequest(ctx context.Context, actor *models.Profile, requesterID string) error
	RejectRequest(ctx context.Context, actor *models.Profile, requesterID string) error
	Overview(ctx context.Context, userID string) (social.Overview, error)
	ProfileView(ctx context.Context, viewerID, userID string) (social.ProfileView, error)
	Search(ctx context.Context, query string, limit int) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, actor *models.Profile, update social.ProfileUpdate) (models.Profile, error)
}

// MediaStorage persists uploaded files and returns the URL clients should reference.
type MediaStorage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
