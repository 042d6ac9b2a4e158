// Package proxy relays upstream streams to the player and rewrites HLS
// manifests so every segment and sub-playlist URL flows back through it.
package proxy

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// Directives that carry a URI="..." attribute which must be rewritten
// alongside plain URI lines.
var uriAttrDirectives = []string{
	"#EXT-X-KEY",
	"#EXT-X-SESSION-KEY",
	"#EXT-X-MEDIA",
	"#EXT-X-I-FRAME-STREAM-INF",
	"#EXT-X-MAP",
}

// RewriteManifest rewrites an HLS manifest line by line. URI lines are
// resolved against base and passed through wrap; directive lines keep
// their exact text except for embedded URI attributes; comments, blank
// lines, and unknown directives pass through byte for byte.
func RewriteManifest(manifest []byte, base *url.URL, wrap func(absolute string) string) []byte {
	var out bytes.Buffer
	out.Grow(len(manifest) * 2)

	trailingNL := bytes.HasSuffix(manifest, []byte("\n"))
	rest := string(manifest)
	for len(rest) > 0 {
		line := rest
		if i := strings.Index(rest, "\n"); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}

		trimmed := strings.TrimRight(line, "\r")
		eol := line[len(trimmed):]

		switch {
		case trimmed == "":
			out.WriteString(line)
		case strings.HasPrefix(trimmed, "#"):
			out.WriteString(rewriteDirective(trimmed, base, wrap))
			out.WriteString(eol)
		default:
			out.WriteString(wrap(resolve(base, trimmed)))
			out.WriteString(eol)
		}
		if rest != "" || trailingNL {
			out.WriteString("\n")
		}
	}
	return out.Bytes()
}

// rewriteDirective rewrites the URI attribute of directives that carry
// one; every other comment or directive line is returned unchanged.
func rewriteDirective(line string, base *url.URL, wrap func(string) string) string {
	carriesURI := false
	for _, d := range uriAttrDirectives {
		if strings.HasPrefix(line, d+":") {
			carriesURI = true
			break
		}
	}
	if !carriesURI {
		return line
	}

	const attr = `URI="`
	start := strings.Index(line, attr)
	if start < 0 {
		return line
	}
	valStart := start + len(attr)
	end := strings.Index(line[valStart:], `"`)
	if end < 0 {
		return line
	}
	uri := line[valStart : valStart+end]
	return line[:valStart] + wrap(resolve(base, uri)) + line[valStart+end:]
}

// resolve makes a manifest URI absolute against the manifest's own URL.
func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// DetectKind classifies a manifest as master or media using the m3u8
// decoder. Used for metrics labels only; the rewriter itself is
// structure-agnostic.
func DetectKind(manifest []byte) string {
	_, kind, err := m3u8.DecodeFrom(bytes.NewReader(manifest), false)
	if err != nil {
		return "unknown"
	}
	switch kind {
	case m3u8.MASTER:
		return "master"
	case m3u8.MEDIA:
		return "media"
	}
	return "unknown"
}
