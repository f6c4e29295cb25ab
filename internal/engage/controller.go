// Package engage executes user-initiated feed mutations as
// optimistic-local-then-confirm-remote operations. Every operation
// validates its preconditions, applies its delta to the post store
// under a unique pending-op tag, issues the remote write
// asynchronously, and on failure reverts exactly the delta it
// introduced.
package engage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/feedsync/internal/config"
	"github.com/agrilink/feedsync/internal/feed"
	"github.com/agrilink/feedsync/internal/identity"
	"github.com/agrilink/feedsync/internal/media"
	"github.com/agrilink/feedsync/internal/ops"
	"github.com/agrilink/feedsync/internal/remote"
)

// RemoteWriter is the subset of the remote store the controller writes
// through.
type RemoteWriter interface {
	CreatePost(ctx context.Context, rec *remote.PostRecord) (string, error)
	SetLike(ctx context.Context, postID, userID string, liked bool) error
	AppendComment(ctx context.Context, postID string, c remote.CommentRecord) error
	IncrementShares(ctx context.Context, postID string) error
}

// Controller runs the five engagement operations against the post
// store and the remote document store.
type Controller struct {
	store        *feed.Store
	remote       RemoteWriter
	identity     identity.Provider
	uploader     media.Uploader
	logger       *ops.Logger
	writeTimeout time.Duration

	notices chan Notice
	wg      sync.WaitGroup
}

// New creates an engagement controller. uploader may be nil when media
// storage is not configured; posts with attachments are then rejected.
func New(store *feed.Store, rw RemoteWriter, provider identity.Provider, uploader media.Uploader, logger *ops.Logger, cfg *config.Feed) *Controller {
	buffer := cfg.NoticeBuffer
	if buffer <= 0 {
		buffer = 64
	}
	timeout := time.Duration(cfg.WriteTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Controller{
		store:        store,
		remote:       rw,
		identity:     provider,
		uploader:     uploader,
		logger:       logger.WithComponent("engage"),
		writeTimeout: timeout,
		notices:      make(chan Notice, buffer),
	}
}

// Notices returns the stream of user-visible notifications.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

// Wait blocks until all in-flight operations have committed or rolled
// back. Teardown never retracts an in-flight write.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// ToggleLike flips the current user's like on a post. The decision is
// taken against the local state at invocation time, so two rapid
// toggles are each independently reversible and cancel out.
func (c *Controller) ToggleLike(ctx context.Context, postID string) error {
	ident, err := c.identity.Current()
	if err != nil {
		return &PreconditionError{Reason: "you must be signed in to like posts"}
	}

	opID := uuid.NewString()
	nowLiked, ok := c.store.ToggleLike(postID, opID)
	if !ok {
		return &PreconditionError{Reason: "post " + postID + " is not in the feed"}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()

		wctx, cancel := c.writeContext()
		defer cancel()

		if err := c.remote.SetLike(wctx, postID, ident.UserID, nowLiked); err != nil {
			c.store.RevertOp(postID, opID)
			c.logger.LogEngagement("like", postID, time.Since(start), err)
			c.notify(Notice{
				Level:   NoticeError,
				Op:      "like",
				PostID:  postID,
				Message: "Failed to update like",
				Err:     &RemoteWriteError{Op: "like", PostID: postID, Err: err},
			})
			return
		}

		c.store.ConfirmOp(postID, opID)
		c.logger.LogEngagement("like", postID, time.Since(start), nil)
	}()

	return nil
}

// AddComment appends a provisional comment with a locally generated id
// and timestamp. The remote write is fire-and-forget: its only feedback
// is success or failure, and the provisional id stands.
func (c *Controller) AddComment(ctx context.Context, postID, text string) error {
	ident, err := c.identity.Current()
	if err != nil {
		return &PreconditionError{Reason: "you must be signed in to comment"}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return &PreconditionError{Reason: "comment text is empty"}
	}

	comment := feed.Comment{
		ID:         uuid.NewString(),
		AuthorID:   ident.UserID,
		AuthorName: ident.DisplayName,
		Text:       text,
		CreatedAt:  time.Now().Unix(),
	}

	opID := uuid.NewString()
	if !c.store.AppendComment(postID, opID, comment) {
		return &PreconditionError{Reason: "post " + postID + " is not in the feed"}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()

		wctx, cancel := c.writeContext()
		defer cancel()

		rec := remote.CommentRecord{
			ID:        comment.ID,
			AuthorID:  comment.AuthorID,
			Author:    comment.AuthorName,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		}
		if err := c.remote.AppendComment(wctx, postID, rec); err != nil {
			c.store.RevertOp(postID, opID)
			c.logger.LogEngagement("comment", postID, time.Since(start), err)
			c.notify(Notice{
				Level:   NoticeError,
				Op:      "comment",
				PostID:  postID,
				Message: "Failed to add comment",
				Err:     &RemoteWriteError{Op: "comment", PostID: postID, Err: err},
			})
			return
		}

		c.store.ConfirmOp(postID, opID)
		c.logger.LogEngagement("comment", postID, time.Since(start), nil)
		c.notify(Notice{
			Level:   NoticeInfo,
			Op:      "comment",
			PostID:  postID,
			Message: "Comment added successfully!",
		})
	}()

	return nil
}

// SharePost increments the post's share counter.
func (c *Controller) SharePost(ctx context.Context, postID string) error {
	if _, err := c.identity.Current(); err != nil {
		return &PreconditionError{Reason: "you must be signed in to share posts"}
	}

	opID := uuid.NewString()
	if !c.store.ApplyShare(postID, opID) {
		return &PreconditionError{Reason: "post " + postID + " is not in the feed"}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()

		wctx, cancel := c.writeContext()
		defer cancel()

		if err := c.remote.IncrementShares(wctx, postID); err != nil {
			c.store.RevertOp(postID, opID)
			c.logger.LogEngagement("share", postID, time.Since(start), err)
			c.notify(Notice{
				Level:   NoticeError,
				Op:      "share",
				PostID:  postID,
				Message: "Failed to share post",
				Err:     &RemoteWriteError{Op: "share", PostID: postID, Err: err},
			})
			return
		}

		c.store.ConfirmOp(postID, opID)
		c.logger.LogEngagement("share", postID, time.Since(start), nil)
		c.notify(Notice{
			Level:   NoticeInfo,
			Op:      "share",
			PostID:  postID,
			Message: "Post shared successfully!",
		})
	}()

	return nil
}

// CreatePost uploads any attached media, writes the post record, and
// only then inserts it locally. No provisional entry is created; when
// the subscription later echoes the same post, the store deduplicates
// by id.
func (c *Controller) CreatePost(ctx context.Context, content string, mediaPaths []string) (string, error) {
	ident, err := c.identity.Current()
	if err != nil {
		return "", &PreconditionError{Reason: "you must be signed in to post"}
	}

	content = strings.TrimSpace(content)
	if content == "" && len(mediaPaths) == 0 {
		return "", &PreconditionError{Reason: "a post needs content or media"}
	}
	if len(mediaPaths) > 0 && c.uploader == nil {
		return "", &PreconditionError{Reason: "media storage is not configured"}
	}

	start := time.Now()

	mediaURLs := make([]string, 0, len(mediaPaths))
	for _, path := range mediaPaths {
		url, err := c.uploader.Upload(ctx, path)
		c.logger.LogMediaUpload(path, url, err)
		if err != nil {
			werr := &RemoteWriteError{Op: "upload_media", Err: err}
			c.notify(Notice{
				Level:   NoticeError,
				Op:      "create_post",
				Message: "Failed to create post",
				Err:     werr,
			})
			return "", werr
		}
		mediaURLs = append(mediaURLs, url)
	}

	rec := &remote.PostRecord{
		AuthorID:  ident.UserID,
		Author:    ident.DisplayName,
		Content:   content,
		Media:     mediaURLs,
		CreatedAt: time.Now().Unix(),
	}

	postID, err := c.remote.CreatePost(ctx, rec)
	if err != nil {
		c.logger.LogEngagement("create_post", "", time.Since(start), err)
		werr := &RemoteWriteError{Op: "create_post", Err: err}
		c.notify(Notice{
			Level:   NoticeError,
			Op:      "create_post",
			Message: "Failed to create post",
			Err:     werr,
		})
		return "", werr
	}

	c.store.Upsert(feed.Snapshot{
		ID:         postID,
		AuthorID:   rec.AuthorID,
		AuthorName: rec.Author,
		Content:    rec.Content,
		Media:      rec.Media,
		CreatedAt:  rec.CreatedAt,
	})

	c.logger.LogEngagement("create_post", postID, time.Since(start), nil)
	c.notify(Notice{
		Level:   NoticeInfo,
		Op:      "create_post",
		PostID:  postID,
		Message: "Post created successfully!",
	})
	return postID, nil
}

// writeContext builds the context for a confirm write. Confirm writes
// outlive the caller: leaving the feed view must not retract an
// operation that already mutated the store.
func (c *Controller) writeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.writeTimeout)
}
