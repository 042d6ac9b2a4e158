package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/streamdock/streamdock/internal/models"
)

// insertChunkSize bounds how many channel rows go into one batch round
// trip. Large playlists regularly exceed 100k entries.
const insertChunkSize = 2000

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

const channelColumns = `id, playlist_id, name, url, original_url, logo, group_title,
	tvg_id, tvg_name, content_type, favorite, year, rating, duration, plot,
	series_id, series_name, season_num, episode_num`

const insertChannelSQL = `INSERT INTO channels (` + channelColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

// SavePlaylist upserts the playlist row and writes its items in one
// transaction, so a failed import never leaves a half-written playlist.
func (p *Postgres) SavePlaylist(ctx context.Context, pl *models.Playlist, items []models.ContentItem, replace bool) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO playlists (id, name, kind, url, server, username, password, channel_count, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, kind = EXCLUDED.kind, url = EXCLUDED.url,
		   server = EXCLUDED.server, username = EXCLUDED.username, password = EXCLUDED.password,
		   last_updated = NOW()`,
		pl.ID, pl.Name, pl.Kind, pl.URL, pl.Server, pl.Username, pl.Password,
	)
	if err != nil {
		return translateErr(fmt.Errorf("upsert playlist: %w", err))
	}

	if replace {
		if _, err := tx.Exec(ctx, `DELETE FROM channels WHERE playlist_id = $1`, pl.ID); err != nil {
			return fmt.Errorf("delete channels: %w", err)
		}
	}

	if err := insertChannels(ctx, tx, items); err != nil {
		return translateErr(err)
	}

	if err := refreshChannelCount(ctx, tx, pl.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translateErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// AppendChannels adds items to an existing playlist and refreshes its count.
func (p *Postgres) AppendChannels(ctx context.Context, playlistID string, items []models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertChannels(ctx, tx, items); err != nil {
		return translateErr(err)
	}
	if err := refreshChannelCount(ctx, tx, playlistID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translateErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// insertChannels writes items in chunked batches inside the transaction.
func insertChannels(ctx context.Context, tx pgx.Tx, items []models.ContentItem) error {
	for start := 0; start < len(items); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(items) {
			end = len(items)
		}
		batch := &pgx.Batch{}
		for _, it := range items[start:end] {
			batch.Queue(insertChannelSQL,
				it.ID, it.PlaylistID, it.Name, it.URL, it.OriginalURL, it.Logo, it.Group,
				it.TvgID, it.TvgName, it.ContentType, it.Favorite,
				it.Year, it.Rating, it.Duration, it.Plot,
				it.SeriesID, it.SeriesName, it.SeasonNum, it.EpisodeNum,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert channels: %w", err)
		}
	}
	return nil
}

func refreshChannelCount(ctx context.Context, tx pgx.Tx, playlistID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE playlists SET channel_count = (SELECT COUNT(*) FROM channels WHERE playlist_id = $1) WHERE id = $1`,
		playlistID,
	)
	if err != nil {
		return fmt.Errorf("refresh channel count: %w", err)
	}
	return nil
}

// GetPlaylist returns a playlist by id.
func (p *Postgres) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var pl models.Playlist
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, kind, url, server, username, password, channel_count, last_updated, created_at
		 FROM playlists WHERE id = $1`, id,
	).Scan(&pl.ID, &pl.Name, &pl.Kind, &pl.URL, &pl.Server, &pl.Username, &pl.Password,
		&pl.ChannelCount, &pl.LastUpdated, &pl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetPlaylist: %w", err)
	}
	return &pl, nil
}

// ListPlaylists returns all playlists, oldest first.
func (p *Postgres) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, kind, url, server, username, password, channel_count, last_updated, created_at
		 FROM playlists ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ListPlaylists: %w", err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		var pl models.Playlist
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Kind, &pl.URL, &pl.Server, &pl.Username,
			&pl.Password, &pl.ChannelCount, &pl.LastUpdated, &pl.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListPlaylists scan: %w", err)
		}
		playlists = append(playlists, pl)
	}
	return playlists, rows.Err()
}

// DeletePlaylist removes a playlist; channels cascade.
func (p *Postgres) DeletePlaylist(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeletePlaylist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChannel returns a single content item by id.
func (p *Postgres) GetChannel(ctx context.Context, id string) (*models.ContentItem, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	item, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannel: %w", err)
	}
	return item, nil
}

// ListChannels returns items matching the filter plus the unpaginated total.
func (p *Postgres) ListChannels(ctx context.Context, f ChannelFilter) ([]models.ContentItem, int, error) {
	where, args := listChannelsQuery(f)

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListChannels count: %w", err)
	}

	query := `SELECT ` + channelColumns + ` FROM channels` + where + ` ORDER BY name, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	items := []models.ContentItem{}
	for rows.Next() {
		item, err := scanChannel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListChannels scan: %w", err)
		}
		items = append(items, *item)
	}
	return items, total, rows.Err()
}

// listChannelsQuery builds the WHERE clause and arguments for a filter.
func listChannelsQuery(f ChannelFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PlaylistID != "" {
		add("playlist_id = $%d", f.PlaylistID)
	}
	if f.ContentType != nil {
		add("content_type = $%d", *f.ContentType)
	}
	if f.Group != nil {
		add("group_title = $%d", *f.Group)
	}
	if f.Favorite != nil {
		add("favorite = $%d", *f.Favorite)
	}
	if f.Search != "" {
		add("name ILIKE $%d", "%"+f.Search+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListGroups returns distinct group names for a playlist, sorted.
func (p *Postgres) ListGroups(ctx context.Context, playlistID string, contentType *models.ContentType) ([]string, error) {
	query := `SELECT DISTINCT group_title FROM channels WHERE playlist_id = $1`
	args := []any{playlistID}
	if contentType != nil {
		query += ` AND content_type = $2`
		args = append(args, *contentType)
	}
	query += ` ORDER BY group_title`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListGroups: %w", err)
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("ListGroups scan: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ContentCounts returns per-type item counts for a playlist.
func (p *Postgres) ContentCounts(ctx context.Context, playlistID string) (map[models.ContentType]int, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT content_type, COUNT(*) FROM channels WHERE playlist_id = $1 GROUP BY content_type`,
		playlistID)
	if err != nil {
		return nil, fmt.Errorf("ContentCounts: %w", err)
	}
	defer rows.Close()

	counts := map[models.ContentType]int{}
	for rows.Next() {
		var (
			ct models.ContentType
			n  int
		)
		if err := rows.Scan(&ct, &n); err != nil {
			return nil, fmt.Errorf("ContentCounts scan: %w", err)
		}
		counts[ct] = n
	}
	return counts, rows.Err()
}

// ToggleFavorite flips the flag and returns the new value.
func (p *Postgres) ToggleFavorite(ctx context.Context, channelID string) (bool, error) {
	var favorite bool
	err := p.pool.QueryRow(ctx,
		`UPDATE channels SET favorite = NOT favorite WHERE id = $1 RETURNING favorite`,
		channelID,
	).Scan(&favorite)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("ToggleFavorite: %w", err)
	}
	return favorite, nil
}

// AddHistory logs a playback event; replaying a channel moves its entry
// to the top, and the log is trimmed to models.HistoryLimit rows.
func (p *Postgres) AddHistory(ctx context.Context, item models.HistoryItem) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM play_history WHERE channel_id = $1`, item.ChannelID); err != nil {
		return fmt.Errorf("dedupe history: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO play_history (id, channel_id, channel_name, playlist_id, logo, played_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.ChannelID, item.ChannelName, item.PlaylistID, item.Logo, item.PlayedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("insert history: %w", err))
	}
	_, err = tx.Exec(ctx,
		`DELETE FROM play_history WHERE id NOT IN
		   (SELECT id FROM play_history ORDER BY played_at DESC LIMIT $1)`,
		models.HistoryLimit,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return tx.Commit(ctx)
}

// ListHistory returns up to limit entries, most recent first.
func (p *Postgres) ListHistory(ctx context.Context, limit int) ([]models.HistoryItem, error) {
	if limit <= 0 || limit > models.HistoryLimit {
		limit = models.HistoryLimit
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, channel_id, channel_name, playlist_id, logo, played_at
		 FROM play_history ORDER BY played_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListHistory: %w", err)
	}
	defer rows.Close()

	items := []models.HistoryItem{}
	for rows.Next() {
		var h models.HistoryItem
		if err := rows.Scan(&h.ID, &h.ChannelID, &h.ChannelName, &h.PlaylistID, &h.Logo, &h.PlayedAt); err != nil {
			return nil, fmt.Errorf("ListHistory scan: %w", err)
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

// ClearHistory wipes the playback log.
func (p *Postgres) ClearHistory(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM play_history`); err != nil {
		return fmt.Errorf("ClearHistory: %w", err)
	}
	return nil
}

// ClearAll wipes every table. Schema stays in place; use Reset for a
// full rebuild.
func (p *Postgres) ClearAll(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE playlists, channels, play_history`); err != nil {
		return fmt.Errorf("ClearAll: %w", err)
	}
	return nil
}

func scanChannel(row pgx.Row) (*models.ContentItem, error) {
	var it models.ContentItem
	err := row.Scan(&it.ID, &it.PlaylistID, &it.Name, &it.URL, &it.OriginalURL, &it.Logo, &it.Group,
		&it.TvgID, &it.TvgName, &it.ContentType, &it.Favorite,
		&it.Year, &it.Rating, &it.Duration, &it.Plot,
		&it.SeriesID, &it.SeriesName, &it.SeasonNum, &it.EpisodeNum)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
