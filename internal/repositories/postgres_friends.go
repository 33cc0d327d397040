package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/models"
)

// PostgresFriendRepository provides PostgreSQL-backed persistence for the social graph.
type PostgresFriendRepository struct {
	db db.Querier
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(q db.Querier) *PostgresFriendRepository {
	return &PostgresFriendRepository{db: q}
}

// CreateRequest persists a new pending friend request. A second pending request for the
// same (requester, recipient) pair fails with ErrConflict; an unknown user fails with
// ErrNotFound.
func (r *PostgresFriendRepository) CreateRequest(ctx context.Context, request models.FriendRequest) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO friend_requests (id, requester_id, recipient_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, request.ID, request.RequesterID, request.RecipientID, request.Status, request.CreatedAt)
	if err != nil {
		if mapped, ok := classify(err); ok {
			return mapped
		}
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

// ListPending returns the pending requests addressed to recipientID, oldest first.
func (r *PostgresFriendRepository) ListPending(ctx context.Context, recipientID string) ([]models.FriendRequest, error) {
	return listPendingRequests(ctx, r.db, recipientID)
}

// Accept marks the pending request from requesterID as accepted, settles any pending
// request recipientID sent back, and links both users, all in one transaction.
func (r *PostgresFriendRepository) Accept(ctx context.Context, recipientID, requesterID string, at time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin accept transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        UPDATE friend_requests
        SET status = 'accepted', responded_at = $3
        WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending'
    `, requesterID, recipientID, at)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("accept friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return ErrNotFound
	}

	// A crossed request in the other direction is settled by the same acceptance.
	_, err = tx.Exec(ctx, `
        UPDATE friend_requests
        SET status = 'accepted', responded_at = $3
        WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending'
    `, recipientID, requesterID, at)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("close reverse friend request: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO friendships (user_id, friend_id, created_at)
        VALUES ($1, $2, $3), ($2, $1, $3)
        ON CONFLICT (user_id, friend_id) DO NOTHING
    `, recipientID, requesterID, at)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accept transaction: %w", err)
	}
	return nil
}

// Reject marks the pending request from requesterID as rejected.
func (r *PostgresFriendRepository) Reject(ctx context.Context, recipientID, requesterID string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE friend_requests
        SET status = 'rejected', responded_at = $3
        WHERE requester_id = $1 AND recipient_id = $2 AND status = 'pending'
    `, requesterID, recipientID, at)
	if err != nil {
		return fmt.Errorf("reject friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFriends returns userID's friend links, oldest friendship first.
func (r *PostgresFriendRepository) ListFriends(ctx context.Context, userID string) ([]models.FriendLink, error) {
	return listFriendLinks(ctx, r.db, userID)
}

// AreFriends reports whether userID has a friend link to otherID.
func (r *PostgresFriendRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2
        )
    `, userID, otherID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select friendship: %w", err)
	}
	return exists, nil
}

func listPendingRequests(ctx context.Context, q db.Querier, recipientID string) ([]models.FriendRequest, error) {
	rows, err := q.Query(ctx, `
        SELECT fr.id, fr.requester_id, COALESCE(p.name, ''), fr.recipient_id, fr.status, fr.created_at
        FROM friend_requests fr
        LEFT JOIN profiles p ON p.user_id = fr.requester_id
        WHERE fr.recipient_id = $1 AND fr.status = 'pending'
        ORDER BY fr.created_at, fr.id
    `, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	requests := []models.FriendRequest{}
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(&req.ID, &req.RequesterID, &req.RequesterName, &req.RecipientID, &req.Status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return requests, nil
}

func listFriendLinks(ctx context.Context, q db.Querier, userID string) ([]models.FriendLink, error) {
	rows, err := q.Query(ctx, `
        SELECT f.friend_id, COALESCE(p.name, ''), COALESCE(p.image_url, ''), f.created_at
        FROM friendships f
        LEFT JOIN profiles p ON p.user_id = f.friend_id
        WHERE f.user_id = $1
        ORDER BY f.created_at, f.friend_id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	links := []models.FriendLink{}
	for rows.Next() {
		var link models.FriendLink
		if err := rows.Scan(&link.UserID, &link.Name, &link.ImageURL, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}
	return links, nil
}

var _ FriendRepository = (*PostgresFriendRepository)(nil)
