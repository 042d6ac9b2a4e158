// Package query serves filtered, collated, paginated views over the
// stored content without re-reading the store for every page flip.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/streamdock/streamdock/internal/classify"
	"github.com/streamdock/streamdock/internal/models"
	"github.com/streamdock/streamdock/internal/store"
)

// FavoritesSentinel selects favorited items when passed as the Group
// filter, instead of matching a literal group name.
const FavoritesSentinel = "__favorites__"

const (
	defaultPageSize = 50
	maxPageSize     = 500

	// maxFetch bounds how many rows one filter may pull from the store.
	maxFetch = 50000

	resultTTL       = 2 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// Filter selects and pages a view of one playlist's content.
type Filter struct {
	PlaylistID  string
	ContentType models.ContentType // empty = all types
	Group       string             // empty = all groups; FavoritesSentinel = favorites
	Search      string             // case-insensitive substring on name
	Page        int                // 1-based
	PageSize    int
}

// PageResult is one page of a filtered view.
type PageResult struct {
	Items    []models.ContentItem `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
	HasMore  bool                 `json:"has_more"`
}

// Pager caches fully filtered and sorted result sets in memory, keyed by
// filter (page excluded), so paging through a view costs one store read.
type Pager struct {
	store store.Store
	cache *gocache.Cache

	// collators are stateful; the mutex serializes sorting.
	mu   sync.Mutex
	coll *collate.Collator
}

// NewPager builds a Pager over the given store.
func NewPager(s store.Store) *Pager {
	return &Pager{
		store: s,
		cache: gocache.New(resultTTL, cleanupInterval),
		coll:  collate.New(language.Und, collate.IgnoreCase),
	}
}

// Page returns one page of the view selected by f. Series views collapse
// episodes into one entry per series.
func (p *Pager) Page(ctx context.Context, f Filter) (*PageResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}

	items, err := p.resultSet(ctx, f)
	if err != nil {
		return nil, err
	}

	total := len(items)
	start := (f.Page - 1) * f.PageSize
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}

	page := make([]models.ContentItem, end-start)
	copy(page, items[start:end])

	return &PageResult{
		Items:    page,
		Page:     f.Page,
		PageSize: f.PageSize,
		Total:    total,
		HasMore:  end < total,
	}, nil
}

// Invalidate drops cached result sets for one playlist, or all of them
// when playlistID is empty.
func (p *Pager) Invalidate(playlistID string) {
	if playlistID == "" {
		p.cache.Flush()
		return
	}
	prefix := playlistID + "|"
	for key := range p.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			p.cache.Delete(key)
		}
	}
}

// resultSet returns the full filtered, grouped, sorted slice for f,
// from cache when fresh.
func (p *Pager) resultSet(ctx context.Context, f Filter) ([]models.ContentItem, error) {
	key := cacheKey(f)
	if v, ok := p.cache.Get(key); ok {
		return v.([]models.ContentItem), nil
	}

	cf := store.ChannelFilter{
		PlaylistID: f.PlaylistID,
		Search:     f.Search,
		Limit:      maxFetch,
	}
	if f.ContentType != "" {
		ct := f.ContentType
		cf.ContentType = &ct
	}
	switch f.Group {
	case "":
	case FavoritesSentinel:
		fav := true
		cf.Favorite = &fav
	default:
		g := f.Group
		cf.Group = &g
	}

	items, _, err := p.store.ListChannels(ctx, cf)
	if err != nil {
		return nil, err
	}

	if f.ContentType == models.ContentTypeSeries {
		items = GroupSeries(items)
	}

	p.mu.Lock()
	p.coll.Sort(byName(items))
	p.mu.Unlock()

	p.cache.Set(key, items, gocache.DefaultExpiration)
	return items, nil
}

// cacheKey identifies a result set. Page and page size are deliberately
// excluded so every page of a view shares one entry. The playlist id
// stays in the clear as the Invalidate prefix; the rest of the tuple is
// hashed so filter values containing the separator cannot collide.
func cacheKey(f Filter) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s", f.ContentType, f.Group, strings.ToLower(f.Search))))
	return f.PlaylistID + "|" + hex.EncodeToString(sum[:8])
}

// byName adapts a content slice to the collate.Lister interface.
type byName []models.ContentItem

func (s byName) Len() int           { return len(s) }
func (s byName) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s byName) Bytes(i int) []byte { return []byte(s[i].Name) }

// GroupSeries collapses episodes into a single representative entry per
// series. Identity uses the series id when present, then the series
// name, then the episode name with its episode suffix stripped. Items
// already collapsed pass through unchanged, so the operation is
// idempotent.
func GroupSeries(items []models.ContentItem) []models.ContentItem {
	out := make([]models.ContentItem, 0, len(items))
	seen := map[string]bool{}

	for _, it := range items {
		if it.ContentType != models.ContentTypeSeries {
			out = append(out, it)
			continue
		}

		key := seriesKey(it)
		if seen[key] {
			continue
		}
		seen[key] = true

		rep := it
		if rep.SeriesName != "" {
			rep.Name = rep.SeriesName
		} else {
			rep.Name = classify.StripEpisodeSuffix(rep.Name)
			rep.SeriesName = rep.Name
		}
		rep.URL = ""
		rep.OriginalURL = ""
		rep.SeasonNum = nil
		rep.EpisodeNum = nil
		out = append(out, rep)
	}
	return out
}

func seriesKey(it models.ContentItem) string {
	switch {
	case it.SeriesID != "":
		return "id:" + it.SeriesID
	case it.SeriesName != "":
		return "name:" + strings.ToLower(it.SeriesName)
	default:
		return "raw:" + strings.ToLower(classify.StripEpisodeSuffix(it.Name))
	}
}
