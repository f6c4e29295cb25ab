package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/agrilink/feedsync/internal/profile"
)

// PostView is one feed item ready for presentation: the post joined
// with its resolved author and a human-readable timestamp.
type PostView struct {
	Post
	Author       profile.Entry
	RelativeTime string
}

// View is the read-only projection of the feed consumed by presentation
// layers. It never mutates the store or the cache beyond triggering
// profile resolution.
type View struct {
	store    *Store
	profiles *profile.Cache
}

// NewView creates a feed view over the given store and profile cache.
func NewView(store *Store, profiles *profile.Cache) *View {
	return &View{
		store:    store,
		profiles: profiles,
	}
}

// SnapshotOrdered returns the current feed most-recent-first with
// authors resolved. When a profile is only a placeholder, the name
// denormalized on the post record is used instead.
func (v *View) SnapshotOrdered(ctx context.Context) []PostView {
	posts := v.store.SnapshotOrdered()
	now := time.Now()

	views := make([]PostView, len(posts))
	for i, p := range posts {
		author := v.profiles.Resolve(ctx, p.AuthorID)
		if author.Placeholder && p.AuthorName != "" {
			author.DisplayName = p.AuthorName
		}
		views[i] = PostView{
			Post:         p,
			Author:       author,
			RelativeTime: RelativeTime(now, p.CreatedAt),
		}
	}
	return views
}

// RelativeTime renders a post timestamp the way the feed displays it:
// "Just now" under a minute (and for posts still waiting on a server
// timestamp), then minutes, hours, days, and a plain date past a week.
func RelativeTime(now time.Time, createdAt int64) string {
	if createdAt == 0 {
		return "Just now"
	}

	diff := now.Sub(time.Unix(createdAt, 0))
	if diff < 0 {
		diff = 0
	}

	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := hours / 24

	switch {
	case diff < time.Minute:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%d %s ago", mins, plural(mins, "minute"))
	case hours < 24:
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour"))
	case days < 7:
		return fmt.Sprintf("%d %s ago", days, plural(days, "day"))
	default:
		return time.Unix(createdAt, 0).Format("1/2/2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
