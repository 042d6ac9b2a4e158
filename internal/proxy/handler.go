package proxy

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamdock/streamdock/internal/metrics"
)

// sniffLen is how many bytes of the upstream body are peeked to detect
// a manifest that arrives without a useful content type.
const sniffLen = 7 // len("#EXTM3U")

// Handler relays upstream streams. Manifest responses are rewritten so
// the player keeps talking to the proxy; everything else is piped
// through unchanged.
type Handler struct {
	// PublicBase is this service's externally reachable base URL, used
	// when rewriting manifest URIs.
	PublicBase string

	// UserAgent is sent on upstream requests when non-empty.
	UserAgent string

	client *http.Client
}

// NewHandler builds a proxy handler. Upstream requests carry no overall
// timeout since live streams are open-ended; connection setup is still
// bounded.
func NewHandler(publicBase, userAgent string) *Handler {
	return &Handler{
		PublicBase: strings.TrimSuffix(publicBase, "/"),
		UserAgent:  userAgent,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// ServeHTTP handles GET /proxy/stream?url=<upstream>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	upstream, err := url.Parse(raw)
	if err != nil || (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		http.Error(w, "missing or invalid url parameter", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.String(), nil)
	if err != nil {
		http.Error(w, "bad upstream url", http.StatusBadRequest)
		return
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("proxy: %s: %v", upstream.Host, err)
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		http.Error(w, fmt.Sprintf("upstream returned %d", resp.StatusCode), http.StatusBadGateway)
		return
	}

	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(resp.Body, head)
	head = head[:n]

	if isManifest(resp.Header.Get("Content-Type"), upstream.Path, head) {
		h.serveManifest(w, resp.Body, head, upstream)
		return
	}

	copyHeader(w, resp, "Content-Type")
	copyHeader(w, resp, "Content-Length")
	copyHeader(w, resp, "Content-Range")
	copyHeader(w, resp, "Accept-Ranges")
	w.WriteHeader(resp.StatusCode)

	// players drop connections mid-stream constantly, so copy errors
	// are not reported
	written, _ := w.Write(head)
	streamed, _ := io.Copy(w, resp.Body)
	metrics.ProxyBytes.Add(float64(int64(written) + streamed))
}

// serveManifest reads the rest of the manifest, rewrites every URI to
// point back at the proxy, and serves the result.
func (h *Handler) serveManifest(w http.ResponseWriter, body io.Reader, head []byte, upstream *url.URL) {
	rest, err := io.ReadAll(io.LimitReader(body, 10<<20))
	if err != nil {
		http.Error(w, "upstream read failed", http.StatusBadGateway)
		return
	}
	manifest := append(head, rest...)

	rewritten := RewriteManifest(manifest, upstream, func(absolute string) string {
		return h.PublicBase + "/proxy/stream?url=" + url.QueryEscape(absolute)
	})
	metrics.ManifestRewrites.WithLabelValues(DetectKind(manifest)).Inc()

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rewritten); err == nil {
		metrics.ProxyBytes.Add(float64(len(rewritten)))
	}
}

// isManifest decides whether the upstream response is an HLS manifest.
func isManifest(contentType, urlPath string, head []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(urlPath), ".m3u8") {
		return true
	}
	return bytes.HasPrefix(head, []byte("#EXTM3U"))
}

func copyHeader(w http.ResponseWriter, resp *http.Response, name string) {
	if v := resp.Header.Get(name); v != "" {
		w.Header().Set(name, v)
	}
}
