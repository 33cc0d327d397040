package handlers

import (
	"net/http"

	"github.com/socialfeed/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Session: deps.Session, Limiter: deps.AuthLimiter}
	sessions := SessionHandler{Session: deps.Session, AllowedOrigins: deps.StreamOrigins}
	profiles := ProfileHandler{Social: deps.Social, Sessions: deps.Sessions}
	posts := PostHandler{Feed: deps.Feed}
	friends := FriendHandler{Social: deps.Social}
	media := MediaHandler{Storage: deps.Media, MaxBytes: deps.MediaMaxBytes}

	required := func(h http.HandlerFunc) http.Handler { return h }
	optional := required
	if deps.Sessions != nil && deps.Session != nil {
		requireAuth := middleware.Authenticate(deps.Sessions, deps.Session, true)
		optionalAuth := middleware.Authenticate(deps.Sessions, deps.Session, false)
		required = func(h http.HandlerFunc) http.Handler { return requireAuth(h) }
		optional = func(h http.HandlerFunc) http.Handler { return optionalAuth(h) }
	}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/auth/password-reset", auth.RequestPasswordReset)

	mux.Handle("/api/v1/session", required(sessions.Current))
	mux.Handle("/api/v1/session/stream", required(sessions.Stream))

	mux.Handle("/api/v1/profile", required(profiles.Own))
	mux.Handle("/api/v1/profiles", required(profiles.Search))
	mux.Handle("GET /api/v1/profiles/{userId}", required(profiles.Show))

	mux.Handle("GET /api/v1/posts", optional(posts.List))
	mux.Handle("POST /api/v1/posts", optional(posts.Create))
	mux.Handle("POST /api/v1/posts/{postId}/like", optional(posts.ToggleLike))
	mux.Handle("POST /api/v1/posts/{postId}/comments", optional(posts.Comment))

	mux.Handle("/api/v1/friends", required(friends.List))
	mux.Handle("/api/v1/friends/requests", required(friends.Invite))
	mux.Handle("POST /api/v1/friends/requests/{requesterId}/accept", required(friends.Accept))
	mux.Handle("POST /api/v1/friends/requests/{requesterId}/reject", required(friends.Reject))

	mux.Handle("/api/v1/media", required(media.Upload))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Database      Pinger
	Users         UserStore
	Sessions      SessionManager
	Session       SessionProvider
	Feed          FeedService
	Social        SocialService
	Media         MediaStorage
	MediaMaxBytes int64
	StreamOrigins []string
	AuthLimiter   RateLimiter
}
