package xtream

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/streamdock/streamdock/internal/models"
)

type seriesInfo struct {
	Info struct {
		Name   string     `json:"name"`
		Cover  string     `json:"cover"`
		Plot   string     `json:"plot"`
		Rating FlexString `json:"rating"`
		Year   FlexString `json:"releaseDate"`
	} `json:"info"`
	// Episodes is keyed by season number. Individual episodes may carry
	// their own season field, which wins over the map key when present.
	Episodes map[string][]episode `json:"episodes"`
}

type episode struct {
	ID        FlexString `json:"id"`
	Title     string     `json:"title"`
	Season    FlexInt    `json:"season"`
	EpisodeNo FlexInt    `json:"episode_num"`
	Extension string     `json:"container_extension"`
	Info      struct {
		Plot     string     `json:"plot"`
		Rating   FlexString `json:"rating"`
		Duration string     `json:"duration"`
		Image    string     `json:"movie_image"`
	} `json:"info"`
}

// FetchSeriesEpisodes expands one series placeholder into its playable
// episode list. seriesID is the provider's numeric series id. Episodes
// come back sorted by season then episode number.
func (c *Client) FetchSeriesEpisodes(ctx context.Context, playlistID, proxyBase, seriesID string) ([]models.ContentItem, error) {
	extra := url.Values{"series_id": {seriesID}}
	info, err := getJSON[seriesInfo](ctx, c, c.apiURL("get_series_info", extra))
	if err != nil {
		return nil, err
	}

	seriesName := info.Info.Name

	var items []models.ContentItem
	for seasonKey, eps := range info.Episodes {
		keySeason, _ := strconv.Atoi(seasonKey)
		for _, ep := range eps {
			if ep.ID == "" {
				continue
			}
			season := int(ep.Season)
			if season == 0 {
				season = keySeason
			}
			epNum := int(ep.EpisodeNo)

			ext := strings.TrimPrefix(ep.Extension, ".")
			if ext == "" {
				ext = "mp4"
			}
			upstream := c.streamURL("series", string(ep.ID), ext)

			name := ep.Title
			if name == "" {
				name = fmt.Sprintf("%s S%02dE%02d", seriesName, season, epNum)
			}
			logo := ep.Info.Image
			if logo == "" {
				logo = info.Info.Cover
			}
			plot := ep.Info.Plot
			if plot == "" {
				plot = info.Info.Plot
			}
			rating := string(ep.Info.Rating)
			if rating == "" {
				rating = string(info.Info.Rating)
			}

			s, e := season, epNum
			items = append(items, models.ContentItem{
				ID:          uuid.NewString(),
				PlaylistID:  playlistID,
				Name:        name,
				URL:         WrapProxyURL(proxyBase, upstream),
				OriginalURL: upstream,
				Logo:        logo,
				Group:       seriesName,
				ContentType: models.ContentTypeSeries,
				SeriesID:    seriesID,
				SeriesName:  seriesName,
				SeasonNum:   &s,
				EpisodeNum:  &e,
				Plot:        plot,
				Rating:      rating,
				Duration:    ep.Info.Duration,
				Year:        yearOf(string(info.Info.Year)),
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		si, sj := *items[i].SeasonNum, *items[j].SeasonNum
		if si != sj {
			return si < sj
		}
		return *items[i].EpisodeNum < *items[j].EpisodeNum
	})
	return items, nil
}
