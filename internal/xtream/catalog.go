package xtream

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"
	"github.com/streamdock/streamdock/internal/models"
)

// Fallback group names for streams whose category id resolves to
// nothing.
const (
	defaultLiveGroup   = "Live TV"
	defaultMovieGroup  = "Movies"
	defaultSeriesGroup = "Series"
)

type category struct {
	ID   FlexString `json:"category_id"`
	Name string     `json:"category_name"`
}

type liveStream struct {
	StreamID   FlexInt    `json:"stream_id"`
	Name       string     `json:"name"`
	Icon       string     `json:"stream_icon"`
	EPGID      string     `json:"epg_channel_id"`
	CategoryID FlexString `json:"category_id"`
}

type vodStream struct {
	StreamID   FlexInt    `json:"stream_id"`
	Name       string     `json:"name"`
	Icon       string     `json:"stream_icon"`
	CategoryID FlexString `json:"category_id"`
	Extension  string     `json:"container_extension"`
	Rating     FlexString `json:"rating"`
}

type seriesListing struct {
	SeriesID   FlexInt    `json:"series_id"`
	Name       string     `json:"name"`
	Cover      string     `json:"cover"`
	CategoryID FlexString `json:"category_id"`
	Plot       string     `json:"plot"`
	Rating     FlexString `json:"rating"`
	Year       FlexString `json:"releaseDate"`
}

// familyResult is one content family's fetch output, kept separate so
// the combined listing has a fixed live, movie, series order regardless
// of which goroutine finishes first.
type familyResult struct {
	items []models.ContentItem
}

// FetchAll downloads the full catalog for the account. The three
// families are fetched concurrently, and inside each family the
// category list and the stream list are fetched concurrently too.
// Playable URLs are routed through proxyBase when it is non-empty;
// series rows are stored as placeholders with no URL and enumerated
// lazily via FetchSeriesEpisodes.
func (c *Client) FetchAll(ctx context.Context, playlistID, proxyBase string, progress ProgressFunc) ([]models.ContentItem, error) {
	report := func(stage string, count int) {
		if progress != nil {
			progress(stage, count)
		}
	}

	var live, movies, series familyResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		live.items, err = c.fetchLive(gctx, playlistID, proxyBase, report)
		return err
	})
	g.Go(func() error {
		var err error
		movies.items, err = c.fetchMovies(gctx, playlistID, proxyBase, report)
		return err
	})
	g.Go(func() error {
		var err error
		series.items, err = c.fetchSeries(gctx, playlistID, report)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := len(live.items) + len(movies.items) + len(series.items)
	if total == 0 {
		return nil, ErrNoContent
	}

	out := make([]models.ContentItem, 0, total)
	out = append(out, live.items...)
	out = append(out, movies.items...)
	out = append(out, series.items...)
	return out, nil
}

// fetchFamily runs the category and stream calls for one family
// concurrently and returns the category id to name map plus the decoded
// streams.
func fetchFamily[T any](ctx context.Context, c *Client, catAction, streamAction string) (map[string]string, []T, error) {
	var (
		cats    []category
		streams []T
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = getJSON[[]category](gctx, c, c.apiURL(catAction, nil))
		if err != nil {
			return fmt.Errorf("%s: %w", catAction, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		streams, err = getJSON[[]T](gctx, c, c.apiURL(streamAction, nil))
		if err != nil {
			return fmt.Errorf("%s: %w", streamAction, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	byID := make(map[string]string, len(cats))
	for _, cat := range cats {
		byID[string(cat.ID)] = cat.Name
	}
	return byID, streams, nil
}

func groupFor(categories map[string]string, id FlexString, fallback string) string {
	if name, ok := categories[string(id)]; ok && name != "" {
		return name
	}
	return fallback
}

func (c *Client) fetchLive(ctx context.Context, playlistID, proxyBase string, report ProgressFunc) ([]models.ContentItem, error) {
	report("Fetching live channels...", -1)
	categories, streams, err := fetchFamily[liveStream](ctx, c, "get_live_categories", "get_live_streams")
	if err != nil {
		return nil, err
	}

	items := make([]models.ContentItem, 0, len(streams))
	for _, s := range streams {
		if s.StreamID == 0 {
			continue
		}
		upstream := c.streamURL("live", strconv.Itoa(int(s.StreamID)), "m3u8")
		items = append(items, models.ContentItem{
			ID:          uuid.NewString(),
			PlaylistID:  playlistID,
			Name:        s.Name,
			URL:         WrapProxyURL(proxyBase, upstream),
			OriginalURL: upstream,
			Logo:        s.Icon,
			Group:       groupFor(categories, s.CategoryID, defaultLiveGroup),
			TvgID:       s.EPGID,
			TvgName:     s.Name,
			ContentType: models.ContentTypeLive,
		})
	}
	report("Fetched live channels", len(items))
	return items, nil
}

func (c *Client) fetchMovies(ctx context.Context, playlistID, proxyBase string, report ProgressFunc) ([]models.ContentItem, error) {
	report("Fetching movies...", -1)
	categories, streams, err := fetchFamily[vodStream](ctx, c, "get_vod_categories", "get_vod_streams")
	if err != nil {
		return nil, err
	}

	items := make([]models.ContentItem, 0, len(streams))
	for _, s := range streams {
		if s.StreamID == 0 {
			continue
		}
		ext := strings.TrimPrefix(s.Extension, ".")
		if ext == "" {
			ext = "mp4"
		}
		upstream := c.streamURL("movie", strconv.Itoa(int(s.StreamID)), ext)
		items = append(items, models.ContentItem{
			ID:          uuid.NewString(),
			PlaylistID:  playlistID,
			Name:        s.Name,
			URL:         WrapProxyURL(proxyBase, upstream),
			OriginalURL: upstream,
			Logo:        s.Icon,
			Group:       groupFor(categories, s.CategoryID, defaultMovieGroup),
			TvgName:     s.Name,
			ContentType: models.ContentTypeMovie,
			Rating:      string(s.Rating),
		})
	}
	report("Fetched movies", len(items))
	return items, nil
}

func (c *Client) fetchSeries(ctx context.Context, playlistID string, report ProgressFunc) ([]models.ContentItem, error) {
	report("Fetching series...", -1)
	categories, listings, err := fetchFamily[seriesListing](ctx, c, "get_series_categories", "get_series")
	if err != nil {
		return nil, err
	}

	items := make([]models.ContentItem, 0, len(listings))
	for _, s := range listings {
		if s.SeriesID == 0 {
			continue
		}
		items = append(items, models.ContentItem{
			ID:          uuid.NewString(),
			PlaylistID:  playlistID,
			Name:        s.Name,
			Logo:        s.Cover,
			Group:       groupFor(categories, s.CategoryID, defaultSeriesGroup),
			ContentType: models.ContentTypeSeries,
			SeriesID:    strconv.Itoa(int(s.SeriesID)),
			SeriesName:  s.Name,
			Plot:        s.Plot,
			Rating:      string(s.Rating),
			Year:        yearOf(string(s.Year)),
		})
	}
	report("Fetched series", len(items))
	return items, nil
}

// yearOf reduces a release date like "2019-05-04" to its year.
func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return date
}
