package feed

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/agrilink/feedsync/internal/config"
	"github.com/agrilink/feedsync/internal/ops"
	"github.com/agrilink/feedsync/internal/profile"
	"github.com/agrilink/feedsync/internal/remote"
)

type fakeFetcher struct {
	profiles map[string]*remote.ProfileRecord
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, userID string) (*remote.ProfileRecord, error) {
	rec, ok := f.profiles[userID]
	if !ok {
		return nil, remote.ErrProfileNotFound
	}
	return rec, nil
}

func testLogger() *ops.Logger {
	return ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt int64
		want      string
	}{
		{"no timestamp yet", 0, "Just now"},
		{"seconds ago", now.Add(-30 * time.Second).Unix(), "Just now"},
		{"one minute", now.Add(-1 * time.Minute).Unix(), "1 minute ago"},
		{"minutes", now.Add(-45 * time.Minute).Unix(), "45 minutes ago"},
		{"one hour", now.Add(-1 * time.Hour).Unix(), "1 hour ago"},
		{"hours", now.Add(-5 * time.Hour).Unix(), "5 hours ago"},
		{"one day", now.Add(-26 * time.Hour).Unix(), "1 day ago"},
		{"days", now.Add(-3 * 24 * time.Hour).Unix(), "3 days ago"},
		{"past a week", time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC).Unix(), "8/20/2026"},
		{"future clock skew", now.Add(10 * time.Second).Unix(), "Just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(now, tt.createdAt); got != tt.want {
				t.Errorf("RelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestViewResolvesAuthors(t *testing.T) {
	store := NewStore()
	store.Upsert(Snapshot{ID: "p1", AuthorID: "u1", CreatedAt: 100})

	cache := profile.NewCache(&fakeFetcher{profiles: map[string]*remote.ProfileRecord{
		"u1": {UserID: "u1", FirstName: "Ada", LastName: "Okafor", Avatar: "https://img/ada.png"},
	}}, testLogger())

	view := NewView(store, cache)
	views := view.SnapshotOrdered(context.Background())
	if len(views) != 1 {
		t.Fatalf("got %d views, want 1", len(views))
	}
	if views[0].Author.DisplayName != "Ada Okafor" {
		t.Errorf("author = %q, want %q", views[0].Author.DisplayName, "Ada Okafor")
	}
	if views[0].Author.AvatarURL != "https://img/ada.png" {
		t.Errorf("avatar = %q", views[0].Author.AvatarURL)
	}
}

func TestViewFallsBackToDenormalizedName(t *testing.T) {
	store := NewStore()
	store.Upsert(Snapshot{ID: "p1", AuthorID: "gone", AuthorName: "farmer_joe", CreatedAt: 100})

	cache := profile.NewCache(&fakeFetcher{profiles: map[string]*remote.ProfileRecord{}}, testLogger())

	view := NewView(store, cache)
	views := view.SnapshotOrdered(context.Background())
	if views[0].Author.DisplayName != "farmer_joe" {
		t.Errorf("author = %q, want denormalized name farmer_joe", views[0].Author.DisplayName)
	}
	if views[0].Author.AvatarURL != profile.DefaultAvatarURL {
		t.Errorf("avatar = %q, want placeholder", views[0].Author.AvatarURL)
	}
}
