// Package subscription consumes the remote feed change stream and
// reconciles every event into the post store, in arrival order, on a
// single goroutine.
package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/agrilink/feedsync/internal/feed"
	"github.com/agrilink/feedsync/internal/ops"
	"github.com/agrilink/feedsync/internal/remote"
)

// State is the lifecycle of the subscription channel.
type State int

const (
	Disconnected State = iota
	Streaming
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// ChannelError reports that the subscription channel failed. The post
// store keeps its last known state; the caller decides whether to
// re-run the reconciler.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("feed subscription channel failed: %v", e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Source opens feed subscriptions.
type Source interface {
	SubscribeFeed(ctx context.Context) (remote.FeedSubscription, error)
}

// Reconciler applies the remote change stream to the post store.
type Reconciler struct {
	store  *feed.Store
	source Source
	selfID string
	logger *ops.Logger

	mu    sync.RWMutex
	state State
}

// New creates a reconciler. selfID is the current user's id, used to
// derive the liked-by-me flag from each snapshot's likedBy list; it may
// be empty for a read-only session.
func New(store *feed.Store, source Source, selfID string, logger *ops.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		source: source,
		selfID: selfID,
		logger: logger.WithComponent("subscription"),
	}
}

// State reports whether the change stream is currently open.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run opens the subscription and applies events until the context is
// cancelled or the channel fails. Returns nil on cancellation and a
// ChannelError on failure. The store is never cleared on exit.
func (r *Reconciler) Run(ctx context.Context) error {
	sub, err := r.source.SubscribeFeed(ctx)
	if err != nil {
		r.logger.LogChannelState("failed", err)
		return &ChannelError{Err: err}
	}

	r.setState(Streaming)
	r.logger.LogChannelState("streaming", nil)
	defer func() {
		r.setState(Disconnected)
		r.logger.LogChannelState("disconnected", nil)
	}()

	for {
		select {
		case <-ctx.Done():
			closeCtx := context.WithoutCancel(ctx)
			if err := sub.Close(closeCtx); err != nil {
				r.logger.Warn("failed to close feed subscription", "error", err)
			}
			return nil

		case change, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					r.logger.LogChannelState("failed", err)
					return &ChannelError{Err: err}
				}
				return nil
			}
			r.apply(change)
		}
	}
}

// apply reconciles one change into the store.
func (r *Reconciler) apply(change remote.Change) {
	switch change.Kind {
	case remote.Added, remote.Modified:
		if change.Post == nil {
			// The full-document lookup raced a delete; the removal
			// event follows.
			return
		}
		r.store.Upsert(r.toSnapshot(change.Post))
	case remote.Removed:
		r.store.Remove(change.ID)
	}
	r.logger.LogFeedChange(change.Kind.String(), change.ID, r.store.Len())
}

// toSnapshot converts an authoritative post record into a store
// snapshot, deriving the liked-by-me flag from the likedBy list.
func (r *Reconciler) toSnapshot(rec *remote.PostRecord) feed.Snapshot {
	likedByMe := false
	if r.selfID != "" {
		for _, id := range rec.LikedBy {
			if id == r.selfID {
				likedByMe = true
				break
			}
		}
	}

	comments := make([]feed.Comment, len(rec.Comments))
	for i, c := range rec.Comments {
		comments[i] = feed.Comment{
			ID:         c.ID,
			AuthorID:   c.AuthorID,
			AuthorName: c.Author,
			Text:       c.Text,
			CreatedAt:  c.CreatedAt,
		}
	}

	return feed.Snapshot{
		ID:           rec.ID,
		AuthorID:     rec.AuthorID,
		AuthorName:   rec.Author,
		Content:      rec.Content,
		Media:        rec.Media,
		CreatedAt:    rec.CreatedAt,
		LikeCount:    rec.Likes,
		LikedByMe:    likedByMe,
		CommentCount: len(comments),
		ShareCount:   rec.Shares,
		Comments:     comments,
	}
}
