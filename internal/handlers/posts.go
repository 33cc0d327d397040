package handlers

import (
	"errors"
	"net/http"

	"github.com/socialfeed/backend/internal/feed"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/session"
)

// PostHandler exposes the shared feed.
type PostHandler struct {
	Feed FeedService
}

// List handles GET /api/v1/posts.
func (h PostHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Feed == nil {
		logging.FromContext(ctx).Error("feed service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "feed service unavailable"})
		return
	}

	posts, err := h.Feed.ListPosts(ctx)
	if err != nil {
		respondFeedError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newFeedResponse(posts, session.ProfileFromContext(ctx)))
}

// Create handles POST /api/v1/posts.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Feed == nil {
		logging.FromContext(ctx).Error("feed service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "feed service unavailable"})
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid post payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	posts, err := h.Feed.CreatePost(ctx, actor, req.Content, req.Image)
	if err != nil {
		respondFeedError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newFeedResponse(posts, actor))
}

// ToggleLike handles POST /api/v1/posts/{postId}/like.
func (h PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Feed == nil {
		logging.FromContext(ctx).Error("feed service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "feed service unavailable"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	posts, err := h.Feed.ToggleLike(ctx, r.PathValue("postId"), actor)
	if err != nil {
		if errors.Is(err, feed.ErrNotAuthenticated) {
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Please log in to like a post!"})
			return
		}
		respondFeedError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newFeedResponse(posts, actor))
}

// Comment handles POST /api/v1/posts/{postId}/comments.
func (h PostHandler) Comment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Feed == nil {
		logging.FromContext(ctx).Error("feed service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "feed service unavailable"})
		return
	}

	actor := session.ProfileFromContext(ctx)
	if actor == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Please log in to comment!"})
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid comment payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	posts, err := h.Feed.AddComment(ctx, r.PathValue("postId"), actor, req.Text)
	if err != nil {
		respondFeedError(w, r, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newFeedResponse(posts, actor))
}

func respondFeedError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, feed.ErrNotAuthenticated):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Please log in to post!"})
	case errors.Is(err, feed.ErrEmptyPost):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Please enter some text or upload an image."})
	case errors.Is(err, feed.ErrEmptyComment):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Comment cannot be empty."})
	case errors.Is(err, feed.ErrPostNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "post not found"})
	default:
		logging.FromContext(ctx).Error("feed operation failed", "path", r.URL.Path, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load posts"})
	}
}

type createPostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type feedResponse struct {
	Posts []postView `json:"posts"`
}

// postView decorates a post with the counters and viewer state the feed renders.
type postView struct {
	models.Post
	LikeCount     int             `json:"likeCount"`
	CommentCount  int             `json:"commentCount"`
	LatestComment *models.Comment `json:"latestComment"`
	LikedByViewer bool            `json:"likedByViewer"`
}

func newFeedResponse(posts []models.Post, viewer *models.Profile) feedResponse {
	viewerID := ""
	if viewer != nil {
		viewerID = viewer.UserID
	}

	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		if post.Likes == nil {
			post.Likes = []models.Like{}
		}
		if post.Comments == nil {
			post.Comments = []models.Comment{}
		}
		views = append(views, postView{
			Post:          post,
			LikeCount:     len(post.Likes),
			CommentCount:  len(post.Comments),
			LatestComment: post.LatestComment(),
			LikedByViewer: post.LikedBy(viewerID),
		})
	}
	return feedResponse{Posts: views}
}
