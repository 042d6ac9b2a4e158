package models

import "time"

// HistoryLimit caps the playback history log.
const HistoryLimit = 50

// HistoryItem is one entry in the playback history log. The log is
// deduplicated per channel (replaying moves the entry to the top) and
// capped at HistoryLimit entries, most recent first.
type HistoryItem struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	PlaylistID  string    `json:"playlist_id"`
	Logo        string    `json:"logo,omitempty"`
	PlayedAt    time.Time `json:"played_at"`
}
