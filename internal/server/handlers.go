package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/streamdock/streamdock/internal/cache"
	"github.com/streamdock/streamdock/internal/metrics"
	"github.com/streamdock/streamdock/internal/models"
	"github.com/streamdock/streamdock/internal/playback"
	"github.com/streamdock/streamdock/internal/query"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- playlist handlers ---

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.store.ListPlaylists(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

type addPlaylistRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	// M3U sources: exactly one of URL or Text.
	URL  string `json:"url"`
	Text string `json:"text"`

	// Xtream sources.
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAddPlaylist(w http.ResponseWriter, r *http.Request) {
	var req addPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.Name == "" {
		req.Name = "Playlist"
	}

	var (
		pl  *models.Playlist
		err error
	)
	switch models.PlaylistKind(req.Kind) {
	case models.PlaylistKindXtream:
		if req.Server == "" || req.Username == "" || req.Password == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("server, username, and password are required for xtream playlists"))
			return
		}
		if !validHTTPURL(req.Server) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("server must be a valid http or https URL"))
			return
		}
		pl, err = s.importer.ImportXtream(r.Context(), req.Name, req.Server, req.Username, req.Password, nil)
	case models.PlaylistKindM3U, "":
		switch {
		case req.URL != "":
			if !validHTTPURL(req.URL) {
				writeErr(w, http.StatusBadRequest, fmt.Errorf("url must be a valid http or https URL"))
				return
			}
			pl, err = s.importer.ImportM3UURL(r.Context(), req.Name, req.URL, nil)
		case req.Text != "":
			pl, err = s.importer.ImportM3UText(r.Context(), req.Name, req.Text, nil)
		default:
			writeErr(w, http.StatusBadRequest, fmt.Errorf("either url or text is required for m3u playlists"))
			return
		}
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown playlist kind %q", req.Kind))
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = string(models.PlaylistKindM3U)
	}
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(kind, "error").Inc()
		writeDomainErr(w, err)
		return
	}
	metrics.ImportsTotal.WithLabelValues(kind, "ok").Inc()
	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := s.store.GetPlaylist(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeletePlaylist(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	s.pager.Invalidate(id)
	writeNoContent(w)
}

func (s *Server) handleRefreshPlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Queued refresh: hand the job to the background worker.
	if r.URL.Query().Get("async") == "1" {
		if s.redis == nil {
			writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("async refresh requires Redis (REDIS_URL not set)"))
			return
		}
		pl, err := s.store.GetPlaylist(r.Context(), id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if cache.IsLocked(r.Context(), s.redis, cache.ImportLockKey(pl.ID)) {
			writeDomainErr(w, cache.ErrLocked)
			return
		}
		job := cache.RefreshJob{PlaylistID: pl.ID, PlaylistName: pl.Name}
		if err := cache.Enqueue(r.Context(), s.redis, cache.DefaultQueue, job); err != nil {
			writeErr(w, http.StatusInternalServerError, fmt.Errorf("enqueue refresh: %w", err))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"playlist_id": pl.ID, "queued": true})
		return
	}

	pl, err := s.importer.Refresh(r.Context(), id, nil)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("refresh", "error").Inc()
		writeDomainErr(w, err)
		return
	}
	metrics.ImportsTotal.WithLabelValues("refresh", "ok").Inc()
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handleContentCounts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetPlaylist(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	counts, err := s.store.ContentCounts(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	for _, ct := range []models.ContentType{models.ContentTypeLive, models.ContentTypeMovie, models.ContentTypeSeries} {
		if _, ok := counts[ct]; !ok {
			counts[ct] = 0
		}
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	var contentType *models.ContentType
	if v := r.URL.Query().Get("content_type"); v != "" {
		ct := models.ContentType(v)
		if !ct.Valid() {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid content_type: %s", v))
			return
		}
		contentType = &ct
	}

	groups, err := s.store.ListGroups(r.Context(), r.PathValue("id"), contentType)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if groups == nil {
		groups = []string{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleSeriesEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := s.importer.FetchSeriesEpisodes(r.Context(), r.PathValue("id"), r.PathValue("seriesID"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, episodes)
}

// --- channel handlers ---

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := query.Filter{
		PlaylistID: q.Get("playlist_id"),
		Group:      q.Get("group"),
		Search:     q.Get("search"),
	}
	if f.PlaylistID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("playlist_id is required"))
		return
	}
	if v := q.Get("content_type"); v != "" {
		ct := models.ContentType(v)
		if !ct.Valid() {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid content_type: %s", v))
			return
		}
		f.ContentType = ct
	}
	if q.Get("favorites") == "1" || q.Get("favorites") == "true" {
		f.Group = query.FavoritesSentinel
	}

	var err error
	if f.Page, err = parseIntParam(q.Get("page")); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if f.PageSize, err = parseIntParam(q.Get("page_size")); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	page, err := s.pager.Page(r.Context(), f)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.store.GetChannel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ch, err := s.store.GetChannel(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	favorite, err := s.store.ToggleFavorite(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	s.pager.Invalidate(ch.PlaylistID)

	writeJSON(w, http.StatusOK, map[string]any{
		"channel_id": id,
		"favorite":   favorite,
	})
}

// --- history handlers ---

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	items, err := s.store.ListHistory(r.Context(), limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if items == nil {
		items = []models.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type addHistoryRequest struct {
	ChannelID string `json:"channel_id"`
}

func (s *Server) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	var req addHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.ChannelID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("channel_id is required"))
		return
	}

	ch, err := s.store.GetChannel(r.Context(), req.ChannelID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	item := models.HistoryItem{
		ID:          uuid.NewString(),
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		PlaylistID:  ch.PlaylistID,
		Logo:        ch.Logo,
		PlayedAt:    time.Now().UTC(),
	}
	if err := s.store.AddHistory(r.Context(), item); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearHistory(r.Context()); err != nil {
		writeDomainErr(w, err)
		return
	}
	writeNoContent(w)
}

// --- playback handlers ---

func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, playback.Profiles())
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, playback.Get(r.PathValue("name")))
}

// --- maintenance handlers ---

type resetRequest struct {
	Hard bool `json:"hard"`
}

// handleReset wipes all stored data. A hard reset additionally drops and
// rebuilds the schema, for recovery when the schema itself is corrupt.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means soft reset
	}

	if req.Hard {
		if s.hardRst == nil {
			writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("hard reset is not configured"))
			return
		}
		// Detached context: a half-dropped schema is worse than a slow request.
		if err := s.hardRst(context.WithoutCancel(r.Context())); err != nil {
			writeErr(w, http.StatusInternalServerError, fmt.Errorf("hard reset: %w", err))
			return
		}
	} else if err := s.store.ClearAll(r.Context()); err != nil {
		writeDomainErr(w, err)
		return
	}

	s.pager.Invalidate("")
	log.Printf("store reset (hard=%t)", req.Hard)
	writeJSON(w, http.StatusOK, map[string]any{"reset": true, "hard": req.Hard})
}

// --- helpers ---

func parseIntParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid numeric parameter: %s", v)
	}
	return n, nil
}

func validHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
