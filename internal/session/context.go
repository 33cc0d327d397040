package session

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
)

type (
	ctxKey          struct{}
	sessionIDCtxKey struct{}
)

// WithProfile stores the acting user's profile on the context.
func WithProfile(ctx context.Context, profile *models.Profile) context.Context {
	if profile == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, profile)
}

// ProfileFromContext returns the acting user's profile, or nil for anonymous requests.
func ProfileFromContext(ctx context.Context) *models.Profile {
	if ctx == nil {
		return nil
	}
	profile, _ := ctx.Value(ctxKey{}).(*models.Profile)
	return profile
}

// WithSessionID stores the id of the session the caller authenticated with.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDCtxKey{}, sessionID)
}

// SessionIDFromContext returns the caller's session id, or "" when unknown.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDCtxKey{}).(string)
	return id
}
