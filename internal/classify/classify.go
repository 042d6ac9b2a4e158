// Package classify decides the content type of a playlist entry and
// extracts series identity from entry names. Classification is a pure
// function of (name, group, url) and never fails: when nothing matches,
// the entry is a live channel.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/streamdock/streamdock/internal/models"
)

var (
	// "S01E03", "s1 e3", "S01.E03", "S01-E03" and similar.
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bS(\d{1,2})[ ._-]?E(\d{1,2})\b`)
	// "1x03" style.
	crossEpisodeRe = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,2})\b`)

	slugSepRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Keyword lists are language-inclusive; provider playlists mix English,
// Portuguese, and Spanish labels freely.
var seriesKeywords = []string{
	"série", "series", "serie", "temporada", "episodio", "episódio",
	"season", "episode",
}

var movieKeywords = []string{
	"filme", "movie", "vod", "cinema", "lançamento", "lancamento",
}

// SeriesInfo carries series identity derived from an entry name. All
// fields are zero when the name carries no season/episode pattern.
type SeriesInfo struct {
	SeriesID   string
	SeriesName string
	SeasonNum  *int
	EpisodeNum *int
}

// Classify determines the content type of an entry, first match wins:
// season/episode pattern in the name, then group keywords, then URL path
// segments, then name keywords, defaulting to live.
func Classify(name, group, url string) models.ContentType {
	if seasonEpisodeRe.MatchString(name) || crossEpisodeRe.MatchString(name) {
		return models.ContentTypeSeries
	}

	if g := strings.ToLower(group); g != "" {
		if containsAny(g, seriesKeywords) {
			return models.ContentTypeSeries
		}
		if containsAny(g, movieKeywords) {
			return models.ContentTypeMovie
		}
	}

	if u := strings.ToLower(url); u != "" {
		if strings.Contains(u, "/movie/") || strings.Contains(u, "/vod/") {
			return models.ContentTypeMovie
		}
		if strings.Contains(u, "/series/") {
			return models.ContentTypeSeries
		}
	}

	if n := strings.ToLower(name); n != "" {
		if containsAny(n, seriesKeywords) {
			return models.ContentTypeSeries
		}
		if containsAny(n, movieKeywords) {
			return models.ContentTypeMovie
		}
	}

	return models.ContentTypeLive
}

// ExtractSeriesInfo derives series identity from a name carrying a
// season/episode pattern. The series name is the trimmed prefix before
// the pattern, and the series id is its hyphen slug. Explicit
// catalog-provided identifiers always take precedence over these derived
// values; callers apply that precedence.
func ExtractSeriesInfo(name string) SeriesInfo {
	loc, season, episode := matchEpisodePattern(name)
	if loc < 0 {
		return SeriesInfo{}
	}

	seriesName := strings.TrimRight(strings.TrimSpace(name[:loc]), " -_.")
	info := SeriesInfo{
		SeriesName: seriesName,
		SeriesID:   Slug(seriesName),
		SeasonNum:  &season,
		EpisodeNum: &episode,
	}
	return info
}

// StripEpisodeSuffix removes a trailing season/episode pattern (and the
// separators before it) from a raw item name, leaving the series title.
// Names without the pattern are returned unchanged.
func StripEpisodeSuffix(name string) string {
	loc, _, _ := matchEpisodePattern(name)
	if loc < 0 {
		return name
	}
	stripped := strings.TrimRight(strings.TrimSpace(name[:loc]), " -_.")
	if stripped == "" {
		return name
	}
	return stripped
}

// Slug lowercases s and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slug(s string) string {
	out := slugSepRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(out, "-")
}

// matchEpisodePattern returns the start offset of the first
// season/episode pattern in name with the parsed numbers, or -1 when the
// name has none.
func matchEpisodePattern(name string) (loc, season, episode int) {
	for _, re := range []*regexp.Regexp{seasonEpisodeRe, crossEpisodeRe} {
		m := re.FindStringSubmatchIndex(name)
		if m == nil {
			continue
		}
		s, _ := strconv.Atoi(name[m[2]:m[3]])
		e, _ := strconv.Atoi(name[m[4]:m[5]])
		return m[0], s, e
	}
	return -1, 0, 0
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
