package models

import "time"

// PlaylistKind identifies how a playlist's content is sourced.
type PlaylistKind string

const (
	PlaylistKindM3U    PlaylistKind = "m3u"
	PlaylistKindXtream PlaylistKind = "xtream"
)

// Playlist is a named content source. Channel records are stored
// separately and are never embedded in the persisted playlist; the
// channel count here is denormalized.
type Playlist struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Kind PlaylistKind `json:"kind"`

	// M3U sources only. Empty for local file/text imports, which
	// therefore cannot be refreshed.
	URL string `json:"url,omitempty"`

	// Xtream sources only.
	Server   string `json:"server,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`

	ChannelCount int        `json:"channel_count"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}
