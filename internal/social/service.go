package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
)

var (
	// ErrNotAuthenticated is returned when a mutation has no acting user.
	ErrNotAuthenticated = errors.New("social: not authenticated")
	// ErrInvalidTarget is returned when no target user id is supplied.
	ErrInvalidTarget = errors.New("social: target user is required")
	// ErrSelfRequest is returned when a user sends a request to themselves.
	ErrSelfRequest = errors.New("social: cannot send a friend request to yourself")
	// ErrAlreadyFriends is returned when the users are already linked.
	ErrAlreadyFriends = errors.New("social: already friends")
	// ErrDuplicateRequest is returned when a pending request already exists between the
	// two users, in either direction.
	ErrDuplicateRequest = errors.New("social: friend request already pending")
	// ErrUserNotFound is returned when the target profile does not exist.
	ErrUserNotFound = errors.New("social: user not found")
	// ErrRequestNotFound is returned when no pending request matches.
	ErrRequestNotFound = errors.New("social: friend request not found")
)

const defaultSearchLimit = 25

// Notifier is told whenever a user's profile view changes.
type Notifier interface {
	ProfileChanged(ctx context.Context, userID string) error
}

// Overview is the social panel of the signed-in user.
type Overview struct {
	Requests []models.FriendRequest `json:"friendRequests"`
	Friends  []models.FriendLink    `json:"friends"`
}

// ProfileView is another user's profile as seen by the viewer.
type ProfileView struct {
	Profile  models.Profile      `json:"profile"`
	Friends  []models.FriendLink `json:"friends"`
	IsFriend bool                `json:"isFriend"`
}

// ProfileUpdate carries settings edits. Empty fields keep their current value.
type ProfileUpdate struct {
	Name        string
	Email       string
	ImageURL    string
	NewPassword string
}

// Service manages friend requests, friendships and profile settings.
type Service struct {
	friends  repositories.FriendRepository
	profiles repositories.ProfileRepository
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

// NewService constructs a social graph service. notifier may be nil.
func NewService(friends repositories.FriendRepository, profiles repositories.ProfileRepository, notifier Notifier) *Service {
	if friends == nil || profiles == nil {
		panic("social: repositories must not be nil")
	}
	return &Service{
		friends:  friends,
		profiles: profiles,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// SendRequest records a pending request from actor to targetID.
func (s *Service) SendRequest(ctx context.Context, actor *models.Profile, targetID string) (models.FriendRequest, error) {
	if actor == nil {
		return models.FriendRequest{}, ErrNotAuthenticated
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return models.FriendRequest{}, ErrInvalidTarget
	}
	if targetID == actor.UserID {
		return models.FriendRequest{}, ErrSelfRequest
	}

	ctx, span := logging.StartSpan(ctx, "social.send_request")
	request, err := s.sendRequest(ctx, actor.UserID, targetID)
	span.End(err)
	if err != nil {
		return models.FriendRequest{}, err
	}

	s.notify(ctx, targetID)
	return request, nil
}

func (s *Service) sendRequest(ctx context.Context, actorID, targetID string) (models.FriendRequest, error) {
	if _, err := s.profiles.Find(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.FriendRequest{}, ErrUserNotFound
		}
		return models.FriendRequest{}, fmt.Errorf("load target profile: %w", err)
	}

	linked, err := s.friends.AreFriends(ctx, actorID, targetID)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("check friendship: %w", err)
	}
	if linked {
		return models.FriendRequest{}, ErrAlreadyFriends
	}

	incoming, err := s.friends.ListPending(ctx, actorID)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("list incoming requests: %w", err)
	}
	for _, req := range incoming {
		if req.RequesterID == targetID {
			return models.FriendRequest{}, ErrDuplicateRequest
		}
	}

	request := models.FriendRequest{
		ID:          s.newID(),
		RequesterID: actorID,
		RecipientID: targetID,
		Status:      models.FriendRequestPending,
		CreatedAt:   s.now(),
	}
	if err := s.friends.CreateRequest(ctx, request); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			return models.FriendRequest{}, ErrDuplicateRequest
		case errors.Is(err, repositories.ErrNotFound):
			return models.FriendRequest{}, ErrUserNotFound
		}
		return models.FriendRequest{}, fmt.Errorf("create friend request: %w", err)
	}
	return request, nil
}

// AcceptRequest accepts requesterID's pending request and links both users.
func (s *Service) AcceptRequest(ctx context.Context, actor *models.Profile, requesterID string) error {
	return s.respond(ctx, actor, requesterID, true)
}

// RejectRequest rejects requesterID's pending request without linking the users.
func (s *Service) RejectRequest(ctx context.Context, actor *models.Profile, requesterID string) error {
	return s.respond(ctx, actor, requesterID, false)
}

func (s *Service) respond(ctx context.Context, actor *models.Profile, requesterID string, accept bool) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return ErrInvalidTarget
	}

	op, apply := "social.reject_request", s.friends.Reject
	if accept {
		op, apply = "social.accept_request", s.friends.Accept
	}

	spanCtx, span := logging.StartSpan(ctx, op)
	err := apply(spanCtx, actor.UserID, requesterID, s.now())
	span.End(err)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("respond to friend request: %w", err)
	}

	logging.FromContext(ctx).Info("friend request answered", "recipient_id", actor.UserID, "requester_id", requesterID, "accepted", accept)

	s.notify(ctx, actor.UserID)
	if accept {
		s.notify(ctx, requesterID)
	}
	return nil
}

// Overview returns userID's pending requests and friends.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	if userID == "" {
		return Overview{}, ErrNotAuthenticated
	}
	requests, err := s.friends.ListPending(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("list friend requests: %w", err)
	}
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return Overview{}, fmt.Errorf("list friends: %w", err)
	}
	for i := range requests {
		requests[i].RequesterName = orUnknown(requests[i].RequesterName)
	}
	applyLinkDefaults(friends)
	return Overview{Requests: requests, Friends: friends}, nil
}

// ProfileView returns userID's profile with the viewer's friendship status.
func (s *Service) ProfileView(ctx context.Context, viewerID, userID string) (ProfileView, error) {
	if strings.TrimSpace(userID) == "" {
		return ProfileView{}, ErrInvalidTarget
	}
	profile, err := s.profiles.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ProfileView{}, ErrUserNotFound
		}
		return ProfileView{}, fmt.Errorf("load profile: %w", err)
	}

	var view ProfileView
	if viewerID != "" && viewerID != userID {
		view.IsFriend, err = s.friends.AreFriends(ctx, viewerID, userID)
		if err != nil {
			return ProfileView{}, fmt.Errorf("check friendship: %w", err)
		}
	}

	// Pending requests are private to the profile owner.
	if viewerID != userID {
		profile.FriendRequests = []models.FriendRequest{}
	}
	applyProfileDefaults(&profile)
	view.Profile = profile
	view.Friends = profile.Friends
	return view, nil
}

// Search returns profiles whose name starts with query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	if limit <= 0 || limit > defaultSearchLimit {
		limit = defaultSearchLimit
	}
	profiles, err := s.profiles.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	for i := range profiles {
		applyProfileDefaults(&profiles[i])
	}
	return profiles, nil
}

// UpdateProfile applies settings edits for actor and returns the stored profile.
func (s *Service) UpdateProfile(ctx context.Context, actor *models.Profile, update ProfileUpdate) (models.Profile, error) {
	if actor == nil {
		return models.Profile{}, ErrNotAuthenticated
	}

	settings := models.ProfileSettings{
		Name:      firstNonEmpty(update.Name, actor.Name),
		Email:     actor.Email,
		ImageURL:  firstNonEmpty(update.ImageURL, actor.ImageURL),
		UpdatedAt: s.now(),
	}
	if strings.TrimSpace(update.Email) != "" {
		email, err := auth.ValidateEmail(update.Email)
		if err != nil {
			return models.Profile{}, err
		}
		settings.Email = email
	}
	if update.NewPassword != "" {
		if err := auth.ValidatePassword(update.NewPassword, nil); err != nil {
			return models.Profile{}, err
		}
		hash, err := auth.HashPassword(update.NewPassword)
		if err != nil {
			return models.Profile{}, err
		}
		settings.PasswordHash = hash
	}

	spanCtx, span := logging.StartSpan(ctx, "social.update_profile")
	err := s.profiles.UpdateSettings(spanCtx, actor.UserID, settings)
	span.End(err)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			return models.Profile{}, &auth.Error{Code: auth.CodeEmailInUse}
		case errors.Is(err, repositories.ErrNotFound):
			return models.Profile{}, ErrUserNotFound
		}
		return models.Profile{}, fmt.Errorf("update settings: %w", err)
	}

	s.notify(ctx, actor.UserID)

	profile, err := s.profiles.Find(ctx, actor.UserID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("reload profile: %w", err)
	}
	applyProfileDefaults(&profile)
	return profile, nil
}

func (s *Service) notify(ctx context.Context, userID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ProfileChanged(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("profile change notification failed", "user_id", userID, "error", err)
	}
}

func applyProfileDefaults(profile *models.Profile) {
	profile.Name = orUnknown(profile.Name)
	if strings.TrimSpace(profile.ImageURL) == "" {
		profile.ImageURL = models.DefaultProfileImage
	}
	if profile.FriendRequests == nil {
		profile.FriendRequests = []models.FriendRequest{}
	}
	if profile.Friends == nil {
		profile.Friends = []models.FriendLink{}
	}
	for i := range profile.FriendRequests {
		profile.FriendRequests[i].RequesterName = orUnknown(profile.FriendRequests[i].RequesterName)
	}
	applyLinkDefaults(profile.Friends)
}

func applyLinkDefaults(links []models.FriendLink) {
	for i := range links {
		links[i].Name = orUnknown(links[i].Name)
		if strings.TrimSpace(links[i].ImageURL) == "" {
			links[i].ImageURL = models.DefaultProfileImage
		}
	}
}

func orUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return models.UnknownAuthor
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
