package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/session"
	"github.com/socialfeed/backend/internal/social"
)

// FriendHandler manages friend requests and friendships.
type FriendHandler struct {
	Social SocialService
}

// List handles GET /api/v1/friends and returns the caller's pending requests and friends.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Social == nil {
		logging.FromContext(ctx).Error("social service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend service unavailable"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	if actor == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	overview, err := h.Social.Overview(ctx, actor.UserID)
	if err != nil {
		respondSocialError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, overview)
}

// Invite handles POST /api/v1/friends/requests.
func (h FriendHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if h.Social == nil {
		logger.Error("social service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend service unavailable"})
		return
	}

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid friend invite payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	request, err := h.Social.SendRequest(ctx, session.ProfileFromContext(ctx), strings.TrimSpace(req.UserID))
	if err != nil {
		respondSocialError(w, r, err)
		return
	}

	logger.Info("friend request created", "requestId", request.ID, "requester", request.RequesterID, "recipient", request.RecipientID)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "Friend request sent!",
		"request": request,
	})
}

// Accept handles POST /api/v1/friends/requests/{requesterId}/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// Reject handles POST /api/v1/friends/requests/{requesterId}/reject.
func (h FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h FriendHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Social == nil {
		logging.FromContext(ctx).Error("social service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend service unavailable"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	requesterID := r.PathValue("requesterId")

	var err error
	message := "Friend request rejected!"
	if accept {
		err = h.Social.AcceptRequest(ctx, actor, requesterID)
		message = "Friend request accepted!"
	} else {
		err = h.Social.RejectRequest(ctx, actor, requesterID)
	}
	if err != nil {
		respondSocialError(w, r, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": message})
}

func respondSocialError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, social.ErrNotAuthenticated):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, social.ErrInvalidTarget):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user id is required"})
	case errors.Is(err, social.ErrSelfRequest):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "You cannot send a friend request to yourself."})
	case errors.Is(err, social.ErrAlreadyFriends):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "You are already friends."})
	case errors.Is(err, social.ErrDuplicateRequest):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "Friend request already sent."})
	case errors.Is(err, social.ErrUserNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, social.ErrRequestNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "friend request not found"})
	default:
		logging.FromContext(ctx).Error("social operation failed", "path", r.URL.Path, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to process friend request"})
	}
}

type inviteRequest struct {
	UserID string `json:"userId"`
}
