package models

import "time"

// DefaultProfileImage is shown for accounts that never uploaded an avatar.
const DefaultProfileImage = "https://cdn-icons-png.flaticon.com/512/149/149071.png"

// UnknownAuthor is the display name used when an author's profile cannot be resolved.
const UnknownAuthor = "Unknown"

// User holds the credentials of an account. Password is always a bcrypt hash.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the public-facing record of an account. FriendRequests and Friends are
// assembled at read time from the social graph tables.
type Profile struct {
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	ImageURL       string          `json:"profileImage"`
	FriendRequests []FriendRequest `json:"friendRequests"`
	Friends        []FriendLink    `json:"friends"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// HasFriend reports whether userID appears in the profile's friend links.
func (p Profile) HasFriend(userID string) bool {
	for _, link := range p.Friends {
		if link.UserID == userID {
			return true
		}
	}
	return false
}

// ProfileSettings carries the editable fields of a profile. An empty PasswordHash leaves
// the stored password untouched.
type ProfileSettings struct {
	Name         string
	Email        string
	ImageURL     string
	PasswordHash string
	UpdatedAt    time.Time
}

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

// FriendRequest is an invitation from Requester to Recipient.
type FriendRequest struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"userId"`
	RequesterName string     `json:"userName,omitempty"`
	RecipientID   string     `json:"recipientId"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	RespondedAt   *time.Time `json:"respondedAt,omitempty"`
}

// FriendLink is one direction of an accepted friendship, as seen from its owner.
type FriendLink struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"userName,omitempty"`
	ImageURL  string    `json:"userImage,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// Post is a feed entry. Author fields are resolved from the author's current profile.
type Post struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"uid"`
	AuthorName  string    `json:"userName"`
	AuthorImage string    `json:"userImage"`
	Body        string    `json:"content"`
	ImageURL    string    `json:"image"`
	Likes       []Like    `json:"likes"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"timestamp"`
}

// LikedBy reports whether userID has liked the post.
func (p Post) LikedBy(userID string) bool {
	if userID == "" {
		return false
	}
	for _, like := range p.Likes {
		if like.UserID == userID {
			return true
		}
	}
	return false
}

// LatestComment returns the most recently appended comment, or nil.
func (p Post) LatestComment() *Comment {
	if len(p.Comments) == 0 {
		return nil
	}
	c := p.Comments[len(p.Comments)-1]
	return &c
}

// Like marks a user's appreciation of a post.
type Like struct {
	UserID   string `json:"uid"`
	UserName string `json:"userName"`
}

// Comment is an append-only reply on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"-"`
	UserID    string    `json:"uid"`
	UserName  string    `json:"userName"`
	UserImage string    `json:"userImage"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
