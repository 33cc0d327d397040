package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/session"
)

// WebSocketTokenProtocol is the Sec-WebSocket-Protocol entry that precedes the access
// token on WebSocket upgrades: "bearer, <token>". Browsers cannot set headers on
// WebSocket requests, and the protocol list stays out of URLs and access logs.
const WebSocketTokenProtocol = "bearer"

// TokenVerifier resolves an access token to the user and session it was issued for.
type TokenVerifier interface {
	Verify(accessToken string) (auth.Identity, error)
}

// ProfileResolver loads the profile of an authenticated user.
type ProfileResolver interface {
	Current(ctx context.Context, userID string) (models.Profile, error)
}

// Authenticate resolves the caller from a bearer token, or from the WebSocket protocol
// list for upgrades, and stores the caller's profile and session id on the request
// context. When required is false, requests without a token pass through anonymously.
// A token that is present but invalid is always rejected.
func Authenticate(tokens TokenVerifier, profiles ProfileResolver, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := accessToken(r)
			if token == "" {
				if required {
					unauthorized(w, "authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			identity, err := tokens.Verify(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				unauthorized(w, "invalid or expired access token")
				return
			}
			userID := identity.UserID

			profile, err := profiles.Current(ctx, userID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					logger.Warn("access token for unknown user", "userId", userID)
					unauthorized(w, "invalid or expired access token")
					return
				}
				logger.Error("resolve caller profile", "userId", userID, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unable to load session"})
				return
			}

			ctx = session.WithProfile(ctx, &profile)
			ctx = session.WithSessionID(ctx, identity.SessionID)
			ctx = logging.WithLogger(ctx, logger.With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if websocketUpgrade(r) {
		return protocolToken(r)
	}
	return ""
}

func protocolToken(r *http.Request) string {
	var protocols []string
	for _, value := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(value, ",") {
			protocols = append(protocols, strings.TrimSpace(p))
		}
	}
	for i := 0; i+1 < len(protocols); i++ {
		if protocols[i] == WebSocketTokenProtocol {
			return protocols[i+1]
		}
	}
	return ""
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="socialfeed"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
