package models

// ContentType classifies a content item as a live channel, a movie, or
// series content (a playable episode or a series placeholder).
type ContentType string

const (
	ContentTypeLive   ContentType = "live"
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// Valid reports whether t is one of the three known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeLive, ContentTypeMovie, ContentTypeSeries:
		return true
	}
	return false
}

// DefaultGroup is the group label assigned to entries without one.
const DefaultGroup = "Uncategorized"

// ContentItem is one playable entry: a live channel, a movie, or a series
// episode. A series placeholder (the series itself, pending episode
// enumeration) is a series-typed item with an empty URL and no episode
// number.
type ContentItem struct {
	ID          string      `json:"id"`
	PlaylistID  string      `json:"playlist_id,omitempty"`
	Name        string      `json:"name"`
	URL         string      `json:"url,omitempty"`
	OriginalURL string      `json:"original_url,omitempty"` // unwrapped upstream URL, kept for direct-connection fallback
	Logo        string      `json:"logo,omitempty"`
	Group       string      `json:"group"`
	TvgID       string      `json:"tvg_id,omitempty"`
	TvgName     string      `json:"tvg_name,omitempty"`
	ContentType ContentType `json:"content_type"`
	Favorite    bool        `json:"favorite"`

	// VOD metadata (movies and episodes only).
	Year     string `json:"year,omitempty"`
	Rating   string `json:"rating,omitempty"`
	Duration string `json:"duration,omitempty"`
	Plot     string `json:"plot,omitempty"`

	// Series linkage (series items only).
	SeriesID   string `json:"series_id,omitempty"`
	SeriesName string `json:"series_name,omitempty"`
	SeasonNum  *int   `json:"season_num,omitempty"`
	EpisodeNum *int   `json:"episode_num,omitempty"`
}

// IsSeriesPlaceholder reports whether the item represents a series as a
// whole rather than a playable episode.
func (c *ContentItem) IsSeriesPlaceholder() bool {
	return c.ContentType == ContentTypeSeries && (c.URL == "" || c.EpisodeNum == nil)
}
