// Package playcache holds last-known playback metadata per video:
// duration, a generated thumbnail, and a best-effort view counter.
// Entries are hints, not ground truth; the whole store can be wiped
// without data loss.
package playcache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// FreshFor is the window inside which a cached value is trusted.
// Older entries are treated as misses and regenerated.
const FreshFor = 7 * 24 * time.Hour

// Entry is the stored value. LastUpdated is epoch milliseconds so the
// wire format stays readable in the raw store.
type Entry struct {
	Duration    float64 `json:"duration,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Views       int64   `json:"views,omitempty"`
	LastUpdated int64   `json:"lastUpdated"`
}

// Update is a partial write. Nil fields keep the existing value;
// AddViews increments. Every Put stamps LastUpdated.
type Update struct {
	Duration  *float64 `json:"duration,omitempty"`
	Thumbnail *string  `json:"thumbnail,omitempty"`
	AddViews  int64    `json:"addViews,omitempty"`
}

// Store is the injected backend. Get returns ok=false on a miss;
// corrupt stored values must surface as misses, never as errors.
// Writes are last-write-wins, no cross-writer coordination.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, u Update) error
}

// Key builds the store key for a video. The id wins; videos without an
// id fall back to their media path.
func Key(id, path string) string {
	if id != "" {
		return "video_" + id
	}
	return "video_" + path
}

// Cache applies the freshness rule on top of a Store.
type Cache struct {
	store Store
	clock clockwork.Clock
}

func New(store Store, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{store: store, clock: clock}
}

func (c *Cache) fresh(e Entry) bool {
	if e.LastUpdated <= 0 {
		return false
	}
	return c.clock.Now().Sub(time.UnixMilli(e.LastUpdated)) < FreshFor
}

// Entry returns the raw entry regardless of freshness.
func (c *Cache) Entry(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false
	}
	return e, true
}

// FreshDuration returns the cached duration, treating stale or absent
// entries as misses.
func (c *Cache) FreshDuration(ctx context.Context, key string) (float64, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok || !c.fresh(e) || e.Duration <= 0 {
		return 0, false
	}
	return e.Duration, true
}

// FreshThumbnail returns the cached thumbnail under the same rule.
func (c *Cache) FreshThumbnail(ctx context.Context, key string) (string, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok || !c.fresh(e) || e.Thumbnail == "" {
		return "", false
	}
	return e.Thumbnail, true
}

func (c *Cache) Put(ctx context.Context, key string, u Update) error {
	return c.store.Put(ctx, key, u)
}

// SetDuration records a newly discovered duration. Errors are the
// caller's to log; the cache is best-effort everywhere.
func (c *Cache) SetDuration(ctx context.Context, key string, seconds float64) error {
	return c.store.Put(ctx, key, Update{Duration: &seconds})
}

func (c *Cache) SetThumbnail(ctx context.Context, key string, dataURI string) error {
	return c.store.Put(ctx, key, Update{Thumbnail: &dataURI})
}

// AddView bumps the local view counter and returns the new total.
func (c *Cache) AddView(ctx context.Context, key string) (int64, error) {
	if err := c.store.Put(ctx, key, Update{AddViews: 1}); err != nil {
		return 0, err
	}
	e, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	return e.Views, nil
}

// merge applies u to e and stamps the update time. Shared by backends.
func merge(e Entry, u Update, now time.Time) Entry {
	if u.Duration != nil {
		e.Duration = *u.Duration
	}
	if u.Thumbnail != nil {
		e.Thumbnail = *u.Thumbnail
	}
	e.Views += u.AddViews
	e.LastUpdated = now.UnixMilli()
	return e
}
