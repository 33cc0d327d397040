package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/config"
	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/feed"
	"github.com/socialfeed/backend/internal/handlers"
	"github.com/socialfeed/backend/internal/middleware"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/session"
	"github.com/socialfeed/backend/internal/social"
	"github.com/socialfeed/backend/internal/storage"
)

// minJWTSecretLength is the shortest HS256 signing secret accepted, in bytes.
const minJWTSecretLength = 32

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup stops the session provider.
func buildDependencies(ctx context.Context, q db.Querier, pinger db.Pinger, redisClient *redis.Client, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return handlers.Dependencies{}, nil, errors.New("jwt secret must be configured (SOCIALFEED_JWT_SECRET)")
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return handlers.Dependencies{}, nil, fmt.Errorf("jwt secret must be at least %d bytes", minJWTSecretLength)
	}
	if logger == nil {
		logger = slog.Default()
	}

	users := repositories.NewPostgresUserRepository(q)
	profiles := repositories.NewPostgresProfileRepository(q)
	friends := repositories.NewPostgresFriendRepository(q)
	posts := repositories.NewPostgresPostRepository(q)
	sessionStore := repositories.NewPostgresSessionStore(q)

	provider := session.NewProvider(profiles, cfg.ProfileCacheTTL, redisClient, logger)
	if err := provider.Start(ctx); err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("start session provider: %w", err)
	}
	cleanup := func(context.Context) error {
		return provider.Close()
	}

	deps := handlers.Dependencies{
		Users:         users,
		Sessions:      auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore),
		Session:       provider,
		Feed:          feed.NewService(posts),
		Social:        social.NewService(friends, profiles, provider),
		MediaMaxBytes: cfg.MediaMaxBytes,
		StreamOrigins: cfg.StreamOrigins,
		AuthLimiter:   middleware.NewClientRateLimiter(cfg.AuthRateLimit),
	}
	if pinger != nil {
		deps.Database = pinger
	}

	media, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	switch {
	case err == nil:
		deps.Media = media
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Info("object store not configured, media uploads disabled")
	default:
		_ = provider.Close()
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object store: %w", err)
	}

	return deps, cleanup, nil
}
