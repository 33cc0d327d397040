package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/session"
	"github.com/socialfeed/backend/internal/social"
)

// ProfileHandler serves profile pages, user search and settings.
type ProfileHandler struct {
	Social   SocialService
	Sessions SessionManager
}

// Own handles GET and PUT /api/v1/profile for the signed-in user.
func (h ProfileHandler) Own(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.show(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h ProfileHandler) show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	actor := session.ProfileFromContext(ctx)
	if actor == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	view, err := h.Social.ProfileView(ctx, actor.UserID, actor.UserID)
	if err != nil {
		respondSocialError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

func (h ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !h.ready(w, r) {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	profile, err := h.Social.UpdateProfile(ctx, actor, social.ProfileUpdate{
		Name:        req.Name,
		Email:       req.Email,
		ImageURL:    req.ProfileImage,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		if auth.CodeOf(err) != "" {
			respondAuthError(ctx, w, err)
			return
		}
		respondSocialError(w, r, err)
		return
	}

	resp := map[string]any{
		"message": "Profile updated successfully!",
		"profile": profile,
	}

	// A password change ends every other session; the caller gets a fresh pair.
	if req.NewPassword != "" && h.Sessions != nil {
		if err := h.Sessions.RevokeAll(ctx, actor.UserID); err != nil {
			logger.Error("revoke sessions after password change", "userId", actor.UserID, "error", err)
		} else if tokens, err := h.Sessions.Issue(ctx, actor.UserID); err != nil {
			logger.Error("reissue session after password change", "userId", actor.UserID, "error", err)
		} else {
			resp["tokens"] = tokens
		}
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Search handles GET /api/v1/profiles?q=<prefix>&limit=<n>.
func (h ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	profiles, err := h.Social.Search(ctx, query, limit)
	if err != nil {
		respondSocialError(w, r, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"profiles": profiles})
}

// Show handles GET /api/v1/profiles/{userId}.
func (h ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	viewerID := ""
	if actor := session.ProfileFromContext(ctx); actor != nil {
		viewerID = actor.UserID
	}

	view, err := h.Social.ProfileView(ctx, viewerID, r.PathValue("userId"))
	if err != nil {
		respondSocialError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

func (h ProfileHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Social != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("social service unavailable")
	respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "profile service unavailable"})
	return false
}

type updateProfileRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
	NewPassword  string `json:"newPassword"`
}
