package store

import (
	"context"

	"github.com/streamdock/streamdock/internal/models"
)

// Store defines persistence for playlists, content items, and playback
// history.
type Store interface {
	// SavePlaylist upserts a playlist and stores its items in a single
	// transaction. With replace set, the playlist's previous items are
	// deleted first; on any error the previous contents remain intact.
	SavePlaylist(ctx context.Context, p *models.Playlist, items []models.ContentItem, replace bool) error
	// AppendChannels adds items to an existing playlist without touching
	// the rest of its contents, and refreshes the channel count.
	AppendChannels(ctx context.Context, playlistID string, items []models.ContentItem) error

	// GetPlaylist returns a playlist by id, ErrNotFound when absent.
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	// ListPlaylists returns all playlists, oldest first.
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)
	// DeletePlaylist removes a playlist and cascades to its channels.
	DeletePlaylist(ctx context.Context, id string) error

	// GetChannel returns a single content item by id, ErrNotFound when absent.
	GetChannel(ctx context.Context, id string) (*models.ContentItem, error)
	// ListChannels returns items matching the filter and the total count
	// before limit/offset.
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.ContentItem, int, error)
	// ListGroups returns the distinct group names in a playlist, sorted,
	// optionally narrowed to one content type.
	ListGroups(ctx context.Context, playlistID string, contentType *models.ContentType) ([]string, error)
	// ContentCounts returns per-content-type item counts for a playlist.
	ContentCounts(ctx context.Context, playlistID string) (map[models.ContentType]int, error)
	// ToggleFavorite flips the favorite flag and returns the new value.
	ToggleFavorite(ctx context.Context, channelID string) (bool, error)

	// AddHistory logs a playback event, deduplicating by channel and
	// trimming the log to models.HistoryLimit entries.
	AddHistory(ctx context.Context, item models.HistoryItem) error
	// ListHistory returns up to limit history entries, most recent first.
	ListHistory(ctx context.Context, limit int) ([]models.HistoryItem, error)
	// ClearHistory wipes the playback log.
	ClearHistory(ctx context.Context) error

	// ClearAll wipes all playlists, channels, and history.
	ClearAll(ctx context.Context) error
}

// ChannelFilter holds optional filters for listing content items.
type ChannelFilter struct {
	PlaylistID  string
	ContentType *models.ContentType
	Group       *string
	Favorite    *bool
	Search      string // case-insensitive substring match on item name
	Limit       int    // 0 = no limit
	Offset      int
}
