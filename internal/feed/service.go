package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
)

var (
	// ErrNotAuthenticated is returned when a mutation has no acting user.
	ErrNotAuthenticated = errors.New("feed: not authenticated")
	// ErrEmptyPost is returned when a post has neither text nor an image.
	ErrEmptyPost = errors.New("feed: post needs text or an image")
	// ErrEmptyComment is returned for empty or whitespace-only comments.
	ErrEmptyComment = errors.New("feed: comment is empty")
	// ErrPostNotFound is returned when the target post does not exist.
	ErrPostNotFound = errors.New("feed: post not found")
)

// Service creates posts, lists the feed and mutates engagement. Every mutation returns
// the freshly listed feed.
type Service struct {
	posts repositories.PostRepository
	now   func() time.Time
	newID func() string
}

// NewService constructs a feed service backed by posts.
func NewService(posts repositories.PostRepository) *Service {
	if posts == nil {
		panic("feed: post repository must not be nil")
	}
	return &Service{
		posts: posts,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// ListPosts returns every post, newest first. An empty feed is not an error.
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	ctx, span := logging.StartSpan(ctx, "feed.list_posts")
	posts, err := s.posts.ListAll(ctx)
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	for i := range posts {
		applyDisplayDefaults(&posts[i])
	}
	return posts, nil
}

// CreatePost stores a post authored by author. Either body or imageURL must carry content.
func (s *Service) CreatePost(ctx context.Context, author *models.Profile, body, imageURL string) ([]models.Post, error) {
	if author == nil {
		return nil, ErrNotAuthenticated
	}
	body = strings.TrimSpace(body)
	imageURL = strings.TrimSpace(imageURL)
	if body == "" && imageURL == "" {
		return nil, ErrEmptyPost
	}

	post := models.Post{
		ID:        s.newID(),
		AuthorID:  author.UserID,
		Body:      body,
		ImageURL:  imageURL,
		CreatedAt: s.now(),
	}

	spanCtx, span := logging.StartSpan(ctx, "feed.create_post")
	err := s.posts.Create(spanCtx, post)
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	logging.FromContext(ctx).Info("post created", "post_id", post.ID, "author_id", post.AuthorID)
	return s.ListPosts(ctx)
}

// ToggleLike adds actor's like to the post, or removes it when already present.
func (s *Service) ToggleLike(ctx context.Context, postID string, actor *models.Profile) ([]models.Post, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(postID) == "" {
		return nil, ErrPostNotFound
	}

	spanCtx, span := logging.StartSpan(ctx, "feed.toggle_like")
	liked, err := s.posts.ToggleLike(spanCtx, postID, actor.UserID)
	span.End(err)
	switch {
	case errors.Is(err, repositories.ErrConflict):
		// A concurrent toggle from the same user already added the like.
		liked = true
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrPostNotFound
	case err != nil:
		return nil, fmt.Errorf("toggle like: %w", err)
	}

	logging.FromContext(ctx).Debug("like toggled", "post_id", postID, "user_id", actor.UserID, "liked", liked)
	return s.ListPosts(ctx)
}

// AddComment appends actor's comment to the post.
func (s *Service) AddComment(ctx context.Context, postID string, actor *models.Profile, text string) ([]models.Post, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if strings.TrimSpace(postID) == "" {
		return nil, ErrPostNotFound
	}

	comment := models.Comment{
		ID:        s.newID(),
		PostID:    postID,
		UserID:    actor.UserID,
		Text:      text,
		CreatedAt: s.now(),
	}

	spanCtx, span := logging.StartSpan(ctx, "feed.add_comment")
	err := s.posts.AddComment(spanCtx, comment)
	span.End(err)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("add comment: %w", err)
	}

	return s.ListPosts(ctx)
}

func applyDisplayDefaults(post *models.Post) {
	post.AuthorName = orDefault(post.AuthorName, models.UnknownAuthor)
	post.AuthorImage = orDefault(post.AuthorImage, models.DefaultProfileImage)
	for i := range post.Likes {
		post.Likes[i].UserName = orDefault(post.Likes[i].UserName, models.UnknownAuthor)
	}
	for i := range post.Comments {
		post.Comments[i].UserName = orDefault(post.Comments[i].UserName, models.UnknownAuthor)
		post.Comments[i].UserImage = orDefault(post.Comments[i].UserImage, models.DefaultProfileImage)
	}
	if post.Likes == nil {
		post.Likes = []models.Like{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
