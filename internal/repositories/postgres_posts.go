package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/models"
)

// PostgresPostRepository provides PostgreSQL-backed persistence for feed posts.
type PostgresPostRepository struct {
	db  db.Querier
	now func() time.Time
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(q db.Querier) *PostgresPostRepository {
	return &PostgresPostRepository{db: q, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a new post.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO posts (id, author_id, body, image_url, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, post.ID, post.AuthorID, post.Body, post.ImageURL, post.CreatedAt)
	if err != nil {
		if mapped, ok := classify(err); ok {
			return mapped
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// ListAll returns every post, newest first, with likes and comments attached. Author,
// liker and commenter display fields come from their current profiles.
func (r *PostgresPostRepository) ListAll(ctx context.Context) ([]models.Post, error) {
	rows, err := r.db.Query(ctx, `
        SELECT p.id, p.author_id, COALESCE(pr.name, ''), COALESCE(pr.image_url, ''), p.body, p.image_url, p.created_at
        FROM posts p
        LEFT JOIN profiles pr ON pr.user_id = p.author_id
        ORDER BY p.created_at DESC, p.id DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	var ids []string
	for rows.Next() {
		p := models.Post{Likes: []models.Like{}, Comments: []models.Comment{}}
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.AuthorImage, &p.Body, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		ids = append(ids, p.ID)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return posts, nil
	}

	likes, err := r.loadLikes(ctx, ids)
	if err != nil {
		return nil, err
	}
	comments, err := r.loadComments(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		if l, ok := likes[posts[i].ID]; ok {
			posts[i].Likes = l
		}
		if c, ok := comments[posts[i].ID]; ok {
			posts[i].Comments = c
		}
	}
	return posts, nil
}

// ToggleLike removes userID's like from the post when present and adds it otherwise.
// It reports whether the post is liked afterwards.
func (r *PostgresPostRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin like transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        DELETE FROM post_likes
        WHERE post_id = $1 AND user_id = $2
    `, postID, userID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("delete like: %w", err)
	}

	liked := tag.RowsAffected() == 0
	if liked {
		_, err = tx.Exec(ctx, `
            INSERT INTO post_likes (post_id, user_id, created_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (post_id, user_id) DO NOTHING
        `, postID, userID, r.now())
		if err != nil {
			_ = tx.Rollback(ctx)
			if mapped, ok := classify(err); ok {
				return false, mapped
			}
			return false, fmt.Errorf("insert like: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit like transaction: %w", err)
	}
	return liked, nil
}

// AddComment appends a comment to a post. ErrNotFound is returned for an unknown post.
func (r *PostgresPostRepository) AddComment(ctx context.Context, comment models.Comment) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO post_comments (id, post_id, user_id, body, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, comment.ID, comment.PostID, comment.UserID, comment.Text, comment.CreatedAt)
	if err != nil {
		if mapped, ok := classify(err); ok {
			return mapped
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *PostgresPostRepository) loadLikes(ctx context.Context, postIDs []string) (map[string][]models.Like, error) {
	rows, err := r.db.Query(ctx, `
        SELECT l.post_id, l.user_id, COALESCE(pr.name, '')
        FROM post_likes l
        LEFT JOIN profiles pr ON pr.user_id = l.user_id
        WHERE l.post_id = ANY($1)
        ORDER BY l.created_at, l.user_id
    `, postIDs)
	if err != nil {
		return nil, fmt.Errorf("query likes: %w", err)
	}
	defer rows.Close()

	likes := map[string][]models.Like{}
	for rows.Next() {
		var (
			postID string
			like   models.Like
		)
		if err := rows.Scan(&postID, &like.UserID, &like.UserName); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		likes[postID] = append(likes[postID], like)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate likes: %w", err)
	}
	return likes, nil
}

func (r *PostgresPostRepository) loadComments(ctx context.Context, postIDs []string) (map[string][]models.Comment, error) {
	rows, err := r.db.Query(ctx, `
        SELECT c.id, c.post_id, c.user_id, COALESCE(pr.name, ''), COALESCE(pr.image_url, ''), c.body, c.created_at
        FROM post_comments c
        LEFT JOIN profiles pr ON pr.user_id = c.user_id
        WHERE c.post_id = ANY($1)
        ORDER BY c.seq
    `, postIDs)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := map[string][]models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.UserName, &c.UserImage, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments[c.PostID] = append(comments[c.PostID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

var _ PostRepository = (*PostgresPostRepository)(nil)
