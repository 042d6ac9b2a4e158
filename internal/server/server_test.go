package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/streamdock/streamdock/internal/config"
	"github.com/streamdock/streamdock/internal/models"
	"github.com/streamdock/streamdock/internal/query"
	"github.com/streamdock/streamdock/internal/service"
	"github.com/streamdock/streamdock/internal/store"
)

// memStore is a full in-memory Store for handler tests.
type memStore struct {
	playlists map[string]models.Playlist
	channels  map[string]models.ContentItem
	history   []models.HistoryItem
}

func newMemStore() *memStore {
	return &memStore{
		playlists: map[string]models.Playlist{},
		channels:  map[string]models.ContentItem{},
	}
}

func (m *memStore) SavePlaylist(_ context.Context, p *models.Playlist, items []models.ContentItem, replace bool) error {
	m.playlists[p.ID] = *p
	if replace {
		for id, ch := range m.channels {
			if ch.PlaylistID == p.ID {
				delete(m.channels, id)
			}
		}
	}
	for _, it := range items {
		m.channels[it.ID] = it
	}
	return nil
}

func (m *memStore) AppendChannels(_ context.Context, _ string, items []models.ContentItem) error {
	for _, it := range items {
		m.channels[it.ID] = it
	}
	return nil
}

func (m *memStore) GetPlaylist(_ context.Context, id string) (*models.Playlist, error) {
	pl, ok := m.playlists[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &pl, nil
}

func (m *memStore) ListPlaylists(_ context.Context) ([]models.Playlist, error) {
	out := []models.Playlist{}
	for _, pl := range m.playlists {
		out = append(out, pl)
	}
	return out, nil
}

func (m *memStore) DeletePlaylist(_ context.Context, id string) error {
	if _, ok := m.playlists[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.playlists, id)
	// channels and history cascade with their playlist
	for chID, ch := range m.channels {
		if ch.PlaylistID == id {
			delete(m.channels, chID)
		}
	}
	kept := m.history[:0]
	for _, h := range m.history {
		if h.PlaylistID != id {
			kept = append(kept, h)
		}
	}
	m.history = kept
	return nil
}

func (m *memStore) GetChannel(_ context.Context, id string) (*models.ContentItem, error) {
	ch, ok := m.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ch, nil
}

func (m *memStore) ListChannels(_ context.Context, f store.ChannelFilter) ([]models.ContentItem, int, error) {
	out := []models.ContentItem{}
	for _, ch := range m.channels {
		if f.PlaylistID != "" && ch.PlaylistID != f.PlaylistID {
			continue
		}
		if f.ContentType != nil && ch.ContentType != *f.ContentType {
			continue
		}
		if f.Group != nil && ch.Group != *f.Group {
			continue
		}
		if f.Favorite != nil && ch.Favorite != *f.Favorite {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(ch.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memStore) ListGroups(_ context.Context, playlistID string, ct *models.ContentType) ([]string, error) {
	seen := map[string]bool{}
	for _, ch := range m.channels {
		if ch.PlaylistID != playlistID {
			continue
		}
		if ct != nil && ch.ContentType != *ct {
			continue
		}
		seen[ch.Group] = true
	}
	out := []string{}
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ContentCounts(_ context.Context, playlistID string) (map[models.ContentType]int, error) {
	counts := map[models.ContentType]int{}
	for _, ch := range m.channels {
		if ch.PlaylistID == playlistID {
			counts[ch.ContentType]++
		}
	}
	return counts, nil
}

func (m *memStore) ToggleFavorite(_ context.Context, id string) (bool, error) {
	ch, ok := m.channels[id]
	if !ok {
		return false, store.ErrNotFound
	}
	ch.Favorite = !ch.Favorite
	m.channels[id] = ch
	return ch.Favorite, nil
}

func (m *memStore) AddHistory(_ context.Context, item models.HistoryItem) error {
	kept := m.history[:0]
	for _, h := range m.history {
		if h.ChannelID != item.ChannelID {
			kept = append(kept, h)
		}
	}
	m.history = append([]models.HistoryItem{item}, kept...)
	return nil
}

func (m *memStore) ListHistory(_ context.Context, limit int) ([]models.HistoryItem, error) {
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	return m.history[:limit], nil
}

func (m *memStore) ClearHistory(_ context.Context) error {
	m.history = nil
	return nil
}

func (m *memStore) ClearAll(_ context.Context) error {
	m.playlists = map[string]models.Playlist{}
	m.channels = map[string]models.ContentItem{}
	m.history = nil
	return nil
}

func newTestServer(ms *memStore) *Server {
	cfg := &config.Config{ServerPort: "8080", UserAgent: "test", Timeout: time.Second}
	pager := query.NewPager(ms)
	importer := &service.Importer{Store: ms, Pager: pager, UserAgent: cfg.UserAgent, Timeout: cfg.Timeout}
	return New(ms, pager, importer, cfg, nil, nil)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestServer(newMemStore()), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

const testM3U = `#EXTM3U
#EXTINF:-1 group-title="News",CNN
http://example.com/cnn.m3u8
#EXTINF:-1 group-title="Movies",Heat (1995)
http://example.com/movie/heat.mp4
`

func importTestPlaylist(t *testing.T, srv *Server) models.Playlist {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": "Test", "kind": "m3u", "text": testM3U})
	rec := doJSON(t, srv, http.MethodPost, "/api/playlists", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
	var pl models.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &pl); err != nil {
		t.Fatal(err)
	}
	return pl
}

func TestAddPlaylistFromTextAndListChannels(t *testing.T) {
	srv := newTestServer(newMemStore())
	pl := importTestPlaylist(t, srv)
	if pl.ChannelCount != 2 {
		t.Errorf("ChannelCount = %d, want 2", pl.ChannelCount)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/channels?playlist_id="+pl.ID+"&page=1&page_size=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body)
	}
	var page query.PageResult
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Items) != 1 || !page.HasMore {
		t.Errorf("page = total %d, items %d, hasMore %t", page.Total, len(page.Items), page.HasMore)
	}
}

func TestAddPlaylistValidation(t *testing.T) {
	srv := newTestServer(newMemStore())

	tests := []struct {
		name string
		body string
	}{
		{"no source", `{"name":"x","kind":"m3u"}`},
		{"bad url", `{"kind":"m3u","url":"ftp://host/list.m3u"}`},
		{"unknown kind", `{"kind":"rss","url":"http://x/feed"}`},
		{"xtream missing creds", `{"kind":"xtream","server":"http://x"}`},
		{"invalid json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/playlists", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListChannelsRequiresPlaylistID(t *testing.T) {
	rec := doJSON(t, newTestServer(newMemStore()), http.MethodGet, "/api/channels", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFavoriteToggleAndFavoritesView(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(ms)
	pl := importTestPlaylist(t, srv)

	var channelID string
	for id, ch := range ms.channels {
		if ch.Name == "CNN" {
			channelID = id
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/"+channelID+"/favorite", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["favorite"] != true {
		t.Errorf("favorite = %v, want true", resp["favorite"])
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/channels?playlist_id="+pl.ID+"&favorites=1", "")
	var page query.PageResult
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 || page.Items[0].Name != "CNN" {
		t.Errorf("favorites view total = %d", page.Total)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/channels/nope/favorite", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing channel toggle status = %d, want 404", rec.Code)
	}
}

func TestGroupsAndCounts(t *testing.T) {
	srv := newTestServer(newMemStore())
	pl := importTestPlaylist(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/playlists/"+pl.ID+"/groups", "")
	var groups []string
	json.Unmarshal(rec.Body.Bytes(), &groups)
	if len(groups) != 2 || groups[0] != "Movies" || groups[1] != "News" {
		t.Errorf("groups = %v", groups)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/playlists/"+pl.ID+"/counts", "")
	var counts map[models.ContentType]int
	json.Unmarshal(rec.Body.Bytes(), &counts)
	if counts[models.ContentTypeLive] != 1 || counts[models.ContentTypeMovie] != 1 || counts[models.ContentTypeSeries] != 0 {
		t.Errorf("counts = %v", counts)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/playlists/"+pl.ID+"/groups?content_type=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad content_type status = %d, want 400", rec.Code)
	}
}

func TestHistoryLifecycle(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(ms)
	importTestPlaylist(t, srv)

	var channelID string
	for id := range ms.channels {
		channelID = id
		break
	}

	body, _ := json.Marshal(map[string]string{"channel_id": channelID})
	rec := doJSON(t, srv, http.MethodPost, "/api/history", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add history status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/history", "")
	var items []models.HistoryItem
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].ChannelID != channelID {
		t.Errorf("history = %+v", items)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/history", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear history status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/history", "")
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 0 {
		t.Errorf("history not cleared: %+v", items)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/history", `{"channel_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing channel history status = %d, want 404", rec.Code)
	}
}

func TestPlaybackProfiles(t *testing.T) {
	srv := newTestServer(newMemStore())

	rec := doJSON(t, srv, http.MethodGet, "/api/playback/profiles", "")
	var profiles []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &profiles)
	if len(profiles) != 3 {
		t.Errorf("got %d profiles", len(profiles))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/playback/profiles/unknown", "")
	var p map[string]any
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p["name"] != "balanced" {
		t.Errorf("unknown profile resolved to %v", p["name"])
	}
}

func TestSoftReset(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(ms)
	importTestPlaylist(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/reset", "{}")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", rec.Code, rec.Body)
	}
	if len(ms.playlists) != 0 || len(ms.channels) != 0 {
		t.Error("store not cleared")
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/reset", `{"hard":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("hard reset without resetFn status = %d, want 503", rec.Code)
	}
}

func TestDeletePlaylist(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(ms)
	pl := importTestPlaylist(t, srv)

	items, _, err := ms.ListChannels(context.Background(), store.ChannelFilter{PlaylistID: pl.ID})
	if err != nil || len(items) == 0 {
		t.Fatalf("expected imported channels, got %d (%v)", len(items), err)
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/history", fmt.Sprintf(`{"channel_id":%q}`, items[0].ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add history status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/playlists/"+pl.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/playlists/"+pl.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	if len(ms.channels) != 0 {
		t.Errorf("%d channel rows survived playlist delete", len(ms.channels))
	}
	if len(ms.history) != 0 {
		t.Errorf("%d history rows survived playlist delete", len(ms.history))
	}
}
