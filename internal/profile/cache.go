// Package profile memoizes author metadata lookups for the feed. Entries
// are created on first reference, never evicted for the session, and
// only refreshed by an explicit re-fetch.
package profile

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agrilink/feedsync/internal/ops"
	"github.com/agrilink/feedsync/internal/remote"
)

// DefaultAvatarURL is shown for users whose profile has no picture or
// could not be fetched.
const DefaultAvatarURL = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

const placeholderName = "Unknown User"

// Entry is a resolved author profile. Placeholder is set when the fetch
// failed and default metadata was cached instead.
type Entry struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	Placeholder bool
}

// Fetcher reads one profile from the remote store.
type Fetcher interface {
	FetchProfile(ctx context.Context, userID string) (*remote.ProfileRecord, error)
}

// Cache deduplicates and memoizes profile fetches by user id. Concurrent
// resolves of the same id share a single underlying fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	group   singleflight.Group
	fetcher Fetcher
	logger  *ops.Logger
}

// NewCache creates an empty profile cache backed by the given fetcher.
func NewCache(fetcher Fetcher, logger *ops.Logger) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		fetcher: fetcher,
		logger:  logger.WithComponent("profile-cache"),
	}
}

// Resolve returns the cached entry for the user, fetching it on first
// reference. A failed fetch caches a placeholder entry so later render
// passes do not retry; Refresh forces a new fetch. Resolve never fails
// from the caller's point of view.
func (c *Cache) Resolve(ctx context.Context, userID string) Entry {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok {
		c.logger.LogProfileFetch(userID, true, nil)
		return e
	}

	v, _, _ := c.group.Do(userID, func() (interface{}, error) {
		// Another resolve may have finished while we waited for the flight
		c.mu.RLock()
		e, ok := c.entries[userID]
		c.mu.RUnlock()
		if ok {
			return e, nil
		}

		rec, err := c.fetcher.FetchProfile(ctx, userID)
		var entry Entry
		if err != nil {
			entry = placeholderEntry(userID)
			c.logger.LogProfileFetch(userID, false, err)
		} else {
			entry = entryFromRecord(rec)
			c.logger.LogProfileFetch(userID, false, nil)
		}

		c.mu.Lock()
		c.entries[userID] = entry
		c.mu.Unlock()
		return entry, nil
	})

	return v.(Entry)
}

// Refresh re-fetches the profile, replacing whatever is cached. On
// failure the existing entry is kept and the error returned.
func (c *Cache) Refresh(ctx context.Context, userID string) (Entry, error) {
	rec, err := c.fetcher.FetchProfile(ctx, userID)
	if err != nil {
		c.logger.LogProfileFetch(userID, false, err)
		c.mu.RLock()
		existing, ok := c.entries[userID]
		c.mu.RUnlock()
		if !ok {
			existing = placeholderEntry(userID)
		}
		return existing, err
	}

	entry := entryFromRecord(rec)
	c.mu.Lock()
	c.entries[userID] = entry
	c.mu.Unlock()
	return entry, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func entryFromRecord(rec *remote.ProfileRecord) Entry {
	entry := Entry{
		UserID:      rec.UserID,
		DisplayName: displayName(rec),
		AvatarURL:   rec.Avatar,
	}
	if entry.AvatarURL == "" {
		entry.AvatarURL = DefaultAvatarURL
	}
	return entry
}

// displayName picks the best available name: full name, then username,
// then the placeholder.
func displayName(rec *remote.ProfileRecord) string {
	full := strings.TrimSpace(strings.TrimSpace(rec.FirstName) + " " + strings.TrimSpace(rec.LastName))
	if full != "" {
		return full
	}
	if rec.Username != "" {
		return rec.Username
	}
	return placeholderName
}

func placeholderEntry(userID string) Entry {
	return Entry{
		UserID:      userID,
		DisplayName: placeholderName,
		AvatarURL:   DefaultAvatarURL,
		Placeholder: true,
	}
}
