// Package remote defines the boundary to the remote document store:
// point writes for engagement operations, profile reads, and the
// push-based subscription channel that delivers ordered feed changes.
package remote

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned when no profile document exists for a
// user id.
var ErrProfileNotFound = errors.New("profile not found")

// ChangeKind classifies a subscription event.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

// String returns the wire name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one ordered event from the feed subscription channel. Post
// is nil for Removed, and may be nil for Modified when the full-document
// lookup raced a concurrent delete.
type Change struct {
	Kind ChangeKind
	ID   string
	Post *PostRecord
}

// PostRecord is the authoritative post document shape.
type PostRecord struct {
	ID        string
	AuthorID  string
	Author    string // denormalized display name
	Content   string
	Media     []string
	CreatedAt int64 // unix seconds; 0 if the store has not assigned one yet
	Likes     int
	LikedBy   []string
	Comments  []CommentRecord
	Shares    int
}

// CommentRecord is a comment as stored on the post document.
type CommentRecord struct {
	ID        string
	AuthorID  string
	Author    string
	Text      string
	CreatedAt int64
}

// ProfileRecord is a user profile document.
type ProfileRecord struct {
	UserID    string
	FirstName string
	LastName  string
	Username  string
	Avatar    string
}

// FeedSubscription is a live, ordered stream of feed changes. Events()
// is closed when the stream ends; Err() reports why, or nil for a clean
// shutdown. Err must only be read after Events is closed.
type FeedSubscription interface {
	Events() <-chan Change
	Err() error
	Close(ctx context.Context) error
}

// Store is the full remote document store contract consumed by the
// engine.
type Store interface {
	CreatePost(ctx context.Context, rec *PostRecord) (string, error)
	SetLike(ctx context.Context, postID, userID string, liked bool) error
	AppendComment(ctx context.Context, postID string, c CommentRecord) error
	IncrementShares(ctx context.Context, postID string) error
	FetchProfile(ctx context.Context, userID string) (*ProfileRecord, error)
	SubscribeFeed(ctx context.Context) (FeedSubscription, error)
}
