package fetcher

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/streamdock/streamdock/internal/classify"
	"github.com/streamdock/streamdock/internal/models"
)

var (
	reTvgID      = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reTvgName    = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgLogo    = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reGroup      = regexp.MustCompile(`group-title="([^"]*)"`)
	reSeriesID   = regexp.MustCompile(`series-id="([^"]*)"`)
	reSeriesName = regexp.MustCompile(`series-name="([^"]*)"`)
	reSeason     = regexp.MustCompile(`season="(\d+)"`)
	reEpisode    = regexp.MustCompile(`episode="(\d+)"`)
)

// ParseResult carries the items parsed out of an M3U document plus the
// per-line errors for records that could not be parsed. A result with
// zero items and any number of errors is still a successful parse; the
// caller decides whether an empty playlist is fatal.
type ParseResult struct {
	Items  []models.ContentItem
	Errors []string
}

// pendingEntry holds a parsed #EXTINF line waiting for its URL line.
type pendingEntry struct {
	name       string
	tvgID      string
	tvgName    string
	logo       string
	group      string
	seriesID   string
	seriesName string
	season     *int
	episode    *int
}

// ParseM3U tokenizes M3U text into content items. Each #EXTINF metadata
// line opens a pending entry; an optional #EXTGRP line overrides its
// group; the first following non-comment, non-empty line is its URL and
// must parse as http, https, or rtmp, otherwise the pending entry is
// dropped without an item. Malformed metadata lines are recorded in
// Errors with their 1-based line number and parsing continues.
func ParseM3U(text string) ParseResult {
	var res ParseResult

	var pending *pendingEntry

	// Split manually rather than scanning with a sized buffer: provider
	// playlists carry EXTINF lines of unbounded length, and a line cap
	// would silently drop every record after the first oversized one.
	for i, raw := range strings.Split(text, "\n") {
		lineNum := i + 1
		line := strings.TrimSpace(raw)

		switch {
		case line == "" || strings.HasPrefix(line, "#EXTM3U"):
			continue

		case strings.HasPrefix(line, "#EXTINF:"):
			entry, err := parseEXTINF(line)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", lineNum, err))
				pending = nil
				continue
			}
			pending = entry

		case strings.HasPrefix(line, "#EXTGRP:"):
			if pending != nil {
				if g := strings.TrimSpace(strings.TrimPrefix(line, "#EXTGRP:")); g != "" {
					pending.group = g
				}
			}

		case strings.HasPrefix(line, "#"):
			continue

		default:
			if pending == nil {
				continue
			}
			if !validStreamURL(line) {
				pending = nil
				continue
			}
			res.Items = append(res.Items, buildItem(pending, line))
			pending = nil
		}
	}

	return res
}

// parseEXTINF extracts the display name and the quoted attributes from a
// metadata line. The display name is everything after the final comma
// outside quotes.
func parseEXTINF(line string) (*pendingEntry, error) {
	body := strings.TrimPrefix(line, "#EXTINF:")

	lastComma := -1
	inQuotes := false
	for i := len(body) - 1; i >= 0 && lastComma < 0; i-- {
		switch body[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				lastComma = i
			}
		}
	}
	if lastComma < 0 {
		return nil, fmt.Errorf("missing display name separator")
	}

	name := strings.TrimSpace(body[lastComma+1:])
	if name == "" {
		return nil, fmt.Errorf("empty display name")
	}

	attrs := body[:lastComma]
	entry := &pendingEntry{
		name:       name,
		tvgID:      matchFirst(reTvgID, attrs),
		tvgName:    matchFirst(reTvgName, attrs),
		logo:       matchFirst(reTvgLogo, attrs),
		group:      matchFirst(reGroup, attrs),
		seriesID:   matchFirst(reSeriesID, attrs),
		seriesName: matchFirst(reSeriesName, attrs),
	}
	if s := matchFirst(reSeason, attrs); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			entry.season = &n
		}
	}
	if s := matchFirst(reEpisode, attrs); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			entry.episode = &n
		}
	}
	return entry, nil
}

// buildItem finalizes a pending entry once its URL line arrives: a fresh
// identifier, the classified content type, and series identity resolved
// with explicit tags taking precedence over name-derived values.
func buildItem(p *pendingEntry, streamURL string) models.ContentItem {
	group := p.group
	if group == "" {
		group = models.DefaultGroup
	}

	item := models.ContentItem{
		ID:          uuid.NewString(),
		Name:        p.name,
		URL:         streamURL,
		Logo:        p.logo,
		Group:       group,
		TvgID:       p.tvgID,
		TvgName:     p.tvgName,
		ContentType: classify.Classify(p.name, p.group, streamURL),
	}

	if item.ContentType == models.ContentTypeSeries {
		derived := classify.ExtractSeriesInfo(p.name)

		item.SeriesName = p.seriesName
		if item.SeriesName == "" {
			item.SeriesName = derived.SeriesName
		}

		switch {
		case p.seriesID != "":
			item.SeriesID = p.seriesID
		case p.seriesName != "":
			item.SeriesID = classify.Slug(p.seriesName)
		default:
			item.SeriesID = derived.SeriesID
		}

		item.SeasonNum = p.season
		if item.SeasonNum == nil {
			item.SeasonNum = derived.SeasonNum
		}
		item.EpisodeNum = p.episode
		if item.EpisodeNum == nil {
			item.EpisodeNum = derived.EpisodeNum
		}
	}

	return item
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// validStreamURL accepts absolute http, https, and rtmp URLs.
func validStreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "rtmp":
		return true
	}
	return false
}
