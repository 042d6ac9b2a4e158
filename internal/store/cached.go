package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"time"

	"github.com/streamdock/streamdock/internal/cache"
	"github.com/streamdock/streamdock/internal/models"
)

// Cache TTLs per entity type.
const (
	ttlPlaylists = 2 * time.Minute
	ttlPlaylist  = 5 * time.Minute
	ttlChannels  = 1 * time.Minute
	ttlChannel   = 5 * time.Minute
	ttlGroups    = 5 * time.Minute
	ttlCounts    = 2 * time.Minute
)

// CachedStore wraps a Store with a Redis caching layer. Reads are served
// from cache when possible; writes invalidate the affected keys. History
// operations pass through since the log is write-heavy and tiny.
type CachedStore struct {
	inner Store
	cache *cache.Redis
}

// NewCachedStore wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c}
}

// --- cached reads ---

func (c *CachedStore) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	const key = "playlists:all"
	if v, err := cache.Get[[]models.Playlist](ctx, c.cache, key); err == nil {
		return v, nil
	}
	playlists, err := c.inner.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, playlists, ttlPlaylists); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return playlists, nil
}

func (c *CachedStore) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	key := "playlist:" + id
	if v, err := cache.Get[models.Playlist](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	pl, err := c.inner.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, pl, ttlPlaylist); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return pl, nil
}

// channelListResult caches the ListChannels tuple.
type channelListResult struct {
	Items []models.ContentItem `json:"items"`
	Total int                  `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.ContentItem, int, error) {
	key := "channels:" + filterHash(filter)
	if v, err := cache.Get[channelListResult](ctx, c.cache, key); err == nil {
		return v.Items, v.Total, nil
	}
	items, total, err := c.inner.ListChannels(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if err := cache.Set(ctx, c.cache, key, channelListResult{Items: items, Total: total}, ttlChannels); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return items, total, nil
}

func (c *CachedStore) GetChannel(ctx context.Context, id string) (*models.ContentItem, error) {
	key := "channel:" + id
	if v, err := cache.Get[models.ContentItem](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	item, err := c.inner.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, item, ttlChannel); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return item, nil
}

func (c *CachedStore) ListGroups(ctx context.Context, playlistID string, contentType *models.ContentType) ([]string, error) {
	ct := "all"
	if contentType != nil {
		ct = string(*contentType)
	}
	key := fmt.Sprintf("groups:%s:%s", playlistID, ct)
	if v, err := cache.Get[[]string](ctx, c.cache, key); err == nil {
		return v, nil
	}
	groups, err := c.inner.ListGroups(ctx, playlistID, contentType)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, groups, ttlGroups); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return groups, nil
}

func (c *CachedStore) ContentCounts(ctx context.Context, playlistID string) (map[models.ContentType]int, error) {
	key := "counts:" + playlistID
	if v, err := cache.Get[map[models.ContentType]int](ctx, c.cache, key); err == nil {
		return v, nil
	}
	counts, err := c.inner.ContentCounts(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, key, counts, ttlCounts); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
	return counts, nil
}

// --- writes with invalidation ---

func (c *CachedStore) SavePlaylist(ctx context.Context, p *models.Playlist, items []models.ContentItem, replace bool) error {
	if err := c.inner.SavePlaylist(ctx, p, items, replace); err != nil {
		return err
	}
	c.invalidate(ctx, "playlists:all", "playlist:"+p.ID, "counts:"+p.ID)
	c.invalidatePattern(ctx, "channels:*", "channel:*", "groups:"+p.ID+":*")
	return nil
}

func (c *CachedStore) AppendChannels(ctx context.Context, playlistID string, items []models.ContentItem) error {
	if err := c.inner.AppendChannels(ctx, playlistID, items); err != nil {
		return err
	}
	c.invalidate(ctx, "playlists:all", "playlist:"+playlistID, "counts:"+playlistID)
	c.invalidatePattern(ctx, "channels:*", "groups:"+playlistID+":*")
	return nil
}

func (c *CachedStore) DeletePlaylist(ctx context.Context, id string) error {
	if err := c.inner.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, "playlists:all", "playlist:"+id, "counts:"+id)
	c.invalidatePattern(ctx, "channels:*", "channel:*", "groups:"+id+":*")
	return nil
}

func (c *CachedStore) ToggleFavorite(ctx context.Context, channelID string) (bool, error) {
	fav, err := c.inner.ToggleFavorite(ctx, channelID)
	if err != nil {
		return false, err
	}
	c.invalidate(ctx, "channel:"+channelID)
	c.invalidatePattern(ctx, "channels:*")
	return fav, nil
}

func (c *CachedStore) ClearAll(ctx context.Context) error {
	if err := c.inner.ClearAll(ctx); err != nil {
		return err
	}
	c.invalidatePattern(ctx, "playlists:*", "playlist:*", "channels:*", "channel:*", "groups:*", "counts:*")
	return nil
}

// --- passthrough ---

func (c *CachedStore) AddHistory(ctx context.Context, item models.HistoryItem) error {
	return c.inner.AddHistory(ctx, item)
}

func (c *CachedStore) ListHistory(ctx context.Context, limit int) ([]models.HistoryItem, error) {
	return c.inner.ListHistory(ctx, limit)
}

func (c *CachedStore) ClearHistory(ctx context.Context) error {
	return c.inner.ClearHistory(ctx)
}

// --- helpers ---

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		log.Printf("cache: del %v: %v", keys, err)
	}
}

func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			log.Printf("cache: del pattern %s: %v", p, err)
		}
	}
}

// filterHash produces a short deterministic hash of a ChannelFilter for
// use in cache keys. Pointer fields are dereferenced so equal filters
// always hash the same.
func filterHash(f ChannelFilter) string {
	deref := func(v any) string {
		switch p := v.(type) {
		case *models.ContentType:
			if p != nil {
				return string(*p)
			}
		case *string:
			if p != nil {
				return *p
			}
		case *bool:
			if p != nil {
				return fmt.Sprintf("%t", *p)
			}
		}
		return "nil"
	}
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d",
		f.PlaylistID, deref(f.ContentType), deref(f.Group), deref(f.Favorite),
		f.Search, f.Limit, f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}
