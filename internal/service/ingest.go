package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamdock/streamdock/internal/cache"
	"github.com/streamdock/streamdock/internal/fetcher"
	"github.com/streamdock/streamdock/internal/metrics"
	"github.com/streamdock/streamdock/internal/models"
	"github.com/streamdock/streamdock/internal/query"
	"github.com/streamdock/streamdock/internal/store"
	"github.com/streamdock/streamdock/internal/xtream"
)

// importLockTTL bounds how long an import lock can outlive a crashed
// worker.
const importLockTTL = 10 * time.Minute

// Progress receives status milestones during long imports. count is -1
// while a phase is in flight and the item count once known.
type Progress func(stage string, count int)

// Importer runs playlist imports and refreshes against the store.
// Locker may be nil, which disables cross-process import locking.
type Importer struct {
	Store  store.Store
	Pager  *query.Pager
	Locker *cache.Redis

	UserAgent string
	Timeout   time.Duration

	// ProxyBase, when set, routes synthesized stream URLs through the
	// manifest-rewriting proxy.
	ProxyBase string
}

// ImportM3UURL fetches an M3U playlist from a URL and stores it as a new
// playlist. The store is untouched when fetching or parsing fails.
func (im *Importer) ImportM3UURL(ctx context.Context, name, rawURL string, progress Progress) (*models.Playlist, error) {
	pl := &models.Playlist{
		ID:   uuid.NewString(),
		Name: name,
		Kind: models.PlaylistKindM3U,
		URL:  rawURL,
	}

	unlock, err := im.lock(ctx, pl.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	report(progress, "Fetching playlist...", -1)
	text, err := fetcher.FetchM3U(ctx, rawURL, im.UserAgent, im.Timeout)
	if err != nil {
		return nil, err
	}
	return im.saveM3U(ctx, pl, text, nil, progress)
}

// ImportM3UText stores raw M3U text (a pasted or uploaded playlist) as a
// new playlist. Such playlists have no source URL and cannot be
// refreshed.
func (im *Importer) ImportM3UText(ctx context.Context, name, text string, progress Progress) (*models.Playlist, error) {
	pl := &models.Playlist{
		ID:   uuid.NewString(),
		Name: name,
		Kind: models.PlaylistKindM3U,
	}

	unlock, err := im.lock(ctx, pl.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return im.saveM3U(ctx, pl, text, nil, progress)
}

// saveM3U parses M3U text, merges favorites from existing (refresh path),
// and replace-saves the playlist.
func (im *Importer) saveM3U(ctx context.Context, pl *models.Playlist, text string, existing []models.ContentItem, progress Progress) (*models.Playlist, error) {
	report(progress, "Parsing channels...", -1)
	result := fetcher.ParseM3U(text)
	if len(result.Items) == 0 {
		return nil, fetcher.ErrNoChannels
	}

	items := result.Items
	for i := range items {
		items[i].PlaylistID = pl.ID
		if items[i].OriginalURL == "" {
			items[i].OriginalURL = items[i].URL
		}
	}
	if len(existing) > 0 {
		items = MergeFavorites(existing, items)
	}

	report(progress, fmt.Sprintf("Saving %d channels...", len(items)), len(items))
	if err := im.Store.SavePlaylist(ctx, pl, items, true); err != nil {
		return nil, err
	}
	pl.ChannelCount = len(items)
	countImported(items)
	im.invalidate(pl.ID)
	return pl, nil
}

// ImportXtream authenticates against an Xtream server, downloads all
// three content families, and stores them as a new playlist.
func (im *Importer) ImportXtream(ctx context.Context, name, server, username, password string, progress Progress) (*models.Playlist, error) {
	pl := &models.Playlist{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     models.PlaylistKindXtream,
		Server:   server,
		Username: username,
		Password: password,
	}

	unlock, err := im.lock(ctx, pl.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return im.saveXtream(ctx, pl, nil, progress)
}

func (im *Importer) saveXtream(ctx context.Context, pl *models.Playlist, existing []models.ContentItem, progress Progress) (*models.Playlist, error) {
	client := xtream.NewClient(pl.Server, pl.Username, pl.Password, im.Timeout)

	report(progress, "Authenticating...", -1)
	if _, err := client.Authenticate(ctx); err != nil {
		return nil, err
	}

	items, err := client.FetchAll(ctx, pl.ID, im.ProxyBase, xtream.ProgressFunc(progress))
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		items = MergeFavorites(existing, items)
	}

	report(progress, fmt.Sprintf("Saving %d channels...", len(items)), len(items))
	if err := im.Store.SavePlaylist(ctx, pl, items, true); err != nil {
		return nil, err
	}
	pl.ChannelCount = len(items)
	countImported(items)
	im.invalidate(pl.ID)
	return pl, nil
}

// Refresh re-fetches an existing playlist from its source and replaces
// its contents, carrying favorite flags over to the new items. M3U
// playlists imported from raw text have no source URL and cannot be
// refreshed.
func (im *Importer) Refresh(ctx context.Context, playlistID string, progress Progress) (*models.Playlist, error) {
	pl, err := im.Store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	unlock, err := im.lock(ctx, pl.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, _, err := im.Store.ListChannels(ctx, store.ChannelFilter{PlaylistID: pl.ID})
	if err != nil {
		return nil, err
	}

	switch pl.Kind {
	case models.PlaylistKindXtream:
		return im.saveXtream(ctx, pl, existing, progress)
	default:
		if pl.URL == "" {
			return nil, fmt.Errorf("playlist %q was imported from raw text and has no source URL", pl.Name)
		}
		report(progress, "Fetching playlist...", -1)
		text, err := fetcher.FetchM3U(ctx, pl.URL, im.UserAgent, im.Timeout)
		if err != nil {
			return nil, err
		}
		return im.saveM3U(ctx, pl, text, existing, progress)
	}
}

// FetchSeriesEpisodes lazily expands one series of an Xtream playlist
// into playable episodes, appending only episodes not already stored.
// The returned slice holds every episode of the series, stored or new.
func (im *Importer) FetchSeriesEpisodes(ctx context.Context, playlistID, seriesID string) ([]models.ContentItem, error) {
	pl, err := im.Store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if pl.Kind != models.PlaylistKindXtream {
		return nil, fmt.Errorf("playlist %q is not an Xtream source", pl.Name)
	}

	client := xtream.NewClient(pl.Server, pl.Username, pl.Password, im.Timeout)
	episodes, err := client.FetchSeriesEpisodes(ctx, pl.ID, im.ProxyBase, seriesID)
	if err != nil {
		return nil, err
	}

	ct := models.ContentTypeSeries
	stored, _, err := im.Store.ListChannels(ctx, store.ChannelFilter{PlaylistID: pl.ID, ContentType: &ct})
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(stored))
	for _, it := range stored {
		if it.OriginalURL != "" {
			known[it.OriginalURL] = true
		}
	}

	fresh := episodes[:0:0]
	for _, ep := range episodes {
		if !known[ep.OriginalURL] {
			fresh = append(fresh, ep)
		}
	}
	if len(fresh) > 0 {
		if err := im.Store.AppendChannels(ctx, pl.ID, fresh); err != nil {
			return nil, err
		}
		im.invalidate(pl.ID)
	}
	return episodes, nil
}

// lock takes the per-playlist import lock when a locker is configured.
func (im *Importer) lock(ctx context.Context, playlistID string) (func(), error) {
	if im.Locker == nil {
		return func() {}, nil
	}
	return cache.TryLock(ctx, im.Locker, cache.ImportLockKey(playlistID), importLockTTL)
}

func (im *Importer) invalidate(playlistID string) {
	if im.Pager != nil {
		im.Pager.Invalidate(playlistID)
	}
}

func report(p Progress, stage string, count int) {
	if p != nil {
		p(stage, count)
	}
}

func countImported(items []models.ContentItem) {
	byType := make(map[models.ContentType]int, 3)
	for _, it := range items {
		byType[it.ContentType]++
	}
	for ct, n := range byType {
		metrics.ItemsImported.WithLabelValues(string(ct)).Add(float64(n))
	}
}
