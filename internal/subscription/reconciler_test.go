package subscription

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/agrilink/feedsync/internal/config"
	"github.com/agrilink/feedsync/internal/feed"
	"github.com/agrilink/feedsync/internal/ops"
	"github.com/agrilink/feedsync/internal/remote"
)

type fakeSubscription struct {
	events chan remote.Change
	err    error
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		events: make(chan remote.Change, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeSubscription) Events() <-chan remote.Change { return s.events }
func (s *fakeSubscription) Err() error                   { return s.err }

func (s *fakeSubscription) Close(ctx context.Context) error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

type fakeSource struct {
	sub     *fakeSubscription
	openErr error
}

func (f *fakeSource) SubscribeFeed(ctx context.Context) (remote.FeedSubscription, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.sub, nil
}

func testLogger() *ops.Logger {
	return ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
}

func post(id string, createdAt int64) *remote.PostRecord {
	return &remote.PostRecord{ID: id, AuthorID: "author", CreatedAt: createdAt}
}

func runReconciler(t *testing.T, r *Reconciler, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
		return nil
	}
}

func TestRunAppliesChangesInOrder(t *testing.T) {
	store := feed.NewStore()
	sub := newFakeSubscription()
	r := New(store, &fakeSource{sub: sub}, "me", testLogger())

	sub.events <- remote.Change{Kind: remote.Added, ID: "p1", Post: post("p1", 100)}
	sub.events <- remote.Change{Kind: remote.Modified, ID: "p1", Post: &remote.PostRecord{
		ID: "p1", AuthorID: "author", CreatedAt: 100, Likes: 2, LikedBy: []string{"me", "other"},
	}}
	sub.events <- remote.Change{Kind: remote.Added, ID: "p2", Post: post("p2", 200)}
	sub.events <- remote.Change{Kind: remote.Modified, ID: "p2", Post: &remote.PostRecord{
		ID: "p2", AuthorID: "author", CreatedAt: 200, Likes: 1,
	}}
	sub.events <- remote.Change{Kind: remote.Removed, ID: "p2"}
	close(sub.events)

	done := runReconciler(t, r, context.Background())
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("store has %d posts, want 1", store.Len())
	}
	p, ok := store.Get("p1")
	if !ok {
		t.Fatal("p1 missing")
	}
	if p.LikeCount != 2 || !p.LikedByMe {
		t.Errorf("p1 state: likes=%d likedByMe=%v, want 2 true", p.LikeCount, p.LikedByMe)
	}
}

func TestRunDerivesLikedByMe(t *testing.T) {
	store := feed.NewStore()
	sub := newFakeSubscription()
	r := New(store, &fakeSource{sub: sub}, "me", testLogger())

	sub.events <- remote.Change{Kind: remote.Added, ID: "p1", Post: &remote.PostRecord{
		ID: "p1", Likes: 1, LikedBy: []string{"someone-else"},
	}}
	close(sub.events)
	waitErr(t, runReconciler(t, r, context.Background()))

	p, _ := store.Get("p1")
	if p.LikedByMe {
		t.Error("likedByMe should be false when self is not in likedBy")
	}
}

func TestRunSkipsNilDocumentOnModified(t *testing.T) {
	store := feed.NewStore()
	sub := newFakeSubscription()
	r := New(store, &fakeSource{sub: sub}, "", testLogger())

	// Full-document lookup raced a delete; the event carries no record
	sub.events <- remote.Change{Kind: remote.Modified, ID: "p1", Post: nil}
	close(sub.events)

	if err := waitErr(t, runReconciler(t, r, context.Background())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("nil-document event must not create a post")
	}
}

func TestRunStaleSnapshotDoesNotClobberPendingLike(t *testing.T) {
	store := feed.NewStore()
	store.Upsert(feed.Snapshot{ID: "p1", CreatedAt: 100, LikeCount: 3})
	store.ToggleLike("p1", "op1")

	sub := newFakeSubscription()
	r := New(store, &fakeSource{sub: sub}, "me", testLogger())

	// Snapshot predating the local like arrives over the channel
	sub.events <- remote.Change{Kind: remote.Modified, ID: "p1", Post: &remote.PostRecord{
		ID: "p1", CreatedAt: 100, Likes: 3,
	}}
	close(sub.events)
	waitErr(t, runReconciler(t, r, context.Background()))

	p, _ := store.Get("p1")
	if p.LikeCount != 4 || !p.LikedByMe {
		t.Errorf("pending like lost: count=%d likedByMe=%v", p.LikeCount, p.LikedByMe)
	}
}

func TestRunChannelFailure(t *testing.T) {
	store := feed.NewStore()
	store.Upsert(feed.Snapshot{ID: "p1", CreatedAt: 100})

	sub := newFakeSubscription()
	sub.err = errors.New("connection reset")
	close(sub.events)

	r := New(store, &fakeSource{sub: sub}, "", testLogger())
	err := waitErr(t, runReconciler(t, r, context.Background()))

	var cerr *ChannelError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want ChannelError", err)
	}
	if r.State() != Disconnected {
		t.Errorf("state = %v, want disconnected", r.State())
	}
	if store.Len() != 1 {
		t.Error("store must keep its last known state after channel failure")
	}
}

func TestRunOpenFailure(t *testing.T) {
	store := feed.NewStore()
	r := New(store, &fakeSource{openErr: errors.New("no deployment")}, "", testLogger())

	err := r.Run(context.Background())
	var cerr *ChannelError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want ChannelError", err)
	}
}

func TestRunCancellation(t *testing.T) {
	store := feed.NewStore()
	sub := newFakeSubscription()
	r := New(store, &fakeSource{sub: sub}, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runReconciler(t, r, ctx)

	// Let the stream come up before tearing it down
	deadline := time.After(2 * time.Second)
	for r.State() != Streaming {
		select {
		case <-deadline:
			t.Fatal("reconciler never reached streaming")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	if err := waitErr(t, done); err != nil {
		t.Errorf("cancellation should return nil, got %v", err)
	}

	select {
	case <-sub.closed:
	default:
		t.Error("subscription was not closed on cancellation")
	}
	if r.State() != Disconnected {
		t.Errorf("state = %v, want disconnected", r.State())
	}
}
