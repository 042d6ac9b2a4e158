package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestHandlerRewritesManifest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, "#EXTM3U\n#EXTINF:4.0,\nseg_001.ts\n")
	}))
	defer upstream.Close()

	h := NewHandler("http://public.example.com", "Streamdock/1.0")
	req := httptest.NewRequest(http.MethodGet, "/proxy/stream?url="+url.QueryEscape(upstream.URL+"/live/index.m3u8"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	want := "http://public.example.com/proxy/stream?url=" + url.QueryEscape(upstream.URL+"/live/seg_001.ts")
	if !strings.Contains(body, want) {
		t.Errorf("segment not routed through proxy:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "mpegurl") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandlerSniffsManifestWithoutContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		io.WriteString(w, "#EXTM3U\n#EXTINF:4.0,\nseg.ts\n")
	}))
	defer upstream.Close()

	h := NewHandler("http://public.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/proxy/stream?url="+url.QueryEscape(upstream.URL+"/stream"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "/proxy/stream?url=") {
		t.Error("manifest served without rewriting despite #EXTM3U prefix")
	}
}

func TestHandlerStreamsBinaryPassthrough(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		io.WriteString(w, payload)
	}))
	defer upstream.Close()

	h := NewHandler("http://public.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/proxy/stream?url="+url.QueryEscape(upstream.URL+"/seg_001.ts"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != payload {
		t.Errorf("payload corrupted: got %d bytes, want %d", rec.Body.Len(), len(payload))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp2t" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandlerRejectsBadURL(t *testing.T) {
	h := NewHandler("http://public.example.com", "")

	for _, raw := range []string{"", "ftp://host/file", "not a url", "file:///etc/passwd"} {
		req := httptest.NewRequest(http.MethodGet, "/proxy/stream?url="+url.QueryEscape(raw), nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("url %q: status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestHandlerUpstreamErrorIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer upstream.Close()

	h := NewHandler("http://public.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/proxy/stream?url="+url.QueryEscape(upstream.URL), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
