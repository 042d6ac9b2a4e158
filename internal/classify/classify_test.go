package classify

import (
	"testing"

	"github.com/streamdock/streamdock/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		group string
		url   string
		want  models.ContentType
	}{
		{"CNN", "News", "http://x/cnn.m3u8", models.ContentTypeLive},
		{"Breaking Bad S01E03", "", "", models.ContentTypeSeries},
		{"Breaking Bad s1e3", "", "", models.ContentTypeSeries},
		{"The Office 2x05", "", "", models.ContentTypeSeries},
		{"Dark S01 E01", "", "", models.ContentTypeSeries},
		{"Some Show", "Séries | Drama", "", models.ContentTypeSeries},
		{"Algo", "Temporada 2", "", models.ContentTypeSeries},
		{"Heat", "Filmes Ação", "", models.ContentTypeMovie},
		{"Heat", "VOD - Action", "", models.ContentTypeMovie},
		{"Heat", "", "http://host/movie/u/p/99.mp4", models.ContentTypeMovie},
		{"Heat", "", "http://host/vod/99.mp4", models.ContentTypeMovie},
		{"Dark", "", "http://host/series/u/p/7.mp4", models.ContentTypeSeries},
		{"Great Movie Night", "", "", models.ContentTypeMovie},
		{"Best Series Ever", "", "", models.ContentTypeSeries},
		{"ESPN HD", "Sports", "http://x/espn.ts", models.ContentTypeLive},
		{"", "", "", models.ContentTypeLive},
	}

	for _, tt := range tests {
		got := Classify(tt.name, tt.group, tt.url)
		if got != tt.want {
			t.Errorf("Classify(%q, %q, %q) = %q, want %q", tt.name, tt.group, tt.url, got, tt.want)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := Classify("Breaking Bad S01E03", "", ""); got != models.ContentTypeSeries {
			t.Fatalf("run %d: got %q, want series", i, got)
		}
	}
}

func TestClassifyGroupBeatsURL(t *testing.T) {
	// Group keyword match takes priority over URL path segments.
	got := Classify("Heat", "Filmes", "http://host/series/u/p/7.mp4")
	if got != models.ContentTypeMovie {
		t.Errorf("got %q, want movie (group keyword outranks URL)", got)
	}
}

func TestExtractSeriesInfo(t *testing.T) {
	tests := []struct {
		name        string
		wantName    string
		wantID      string
		wantSeason  int
		wantEpisode int
	}{
		{"Breaking Bad S01E03", "Breaking Bad", "breaking-bad", 1, 3},
		{"Breaking Bad - S01E03", "Breaking Bad", "breaking-bad", 1, 3},
		{"The Office 2x05", "The Office", "the-office", 2, 5},
		{"Mr. Robot S2E1", "Mr. Robot", "mr-robot", 2, 1},
	}

	for _, tt := range tests {
		info := ExtractSeriesInfo(tt.name)
		if info.SeriesName != tt.wantName {
			t.Errorf("%q: SeriesName = %q, want %q", tt.name, info.SeriesName, tt.wantName)
		}
		if info.SeriesID != tt.wantID {
			t.Errorf("%q: SeriesID = %q, want %q", tt.name, info.SeriesID, tt.wantID)
		}
		if info.SeasonNum == nil || *info.SeasonNum != tt.wantSeason {
			t.Errorf("%q: SeasonNum = %v, want %d", tt.name, info.SeasonNum, tt.wantSeason)
		}
		if info.EpisodeNum == nil || *info.EpisodeNum != tt.wantEpisode {
			t.Errorf("%q: EpisodeNum = %v, want %d", tt.name, info.EpisodeNum, tt.wantEpisode)
		}
	}
}

func TestExtractSeriesInfoNoMatch(t *testing.T) {
	info := ExtractSeriesInfo("CNN International")
	if info.SeriesName != "" || info.SeriesID != "" || info.SeasonNum != nil || info.EpisodeNum != nil {
		t.Errorf("expected empty SeriesInfo, got %+v", info)
	}
}

func TestStripEpisodeSuffix(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Breaking Bad S01E03", "Breaking Bad"},
		{"The Office 2x05", "The Office"},
		{"Dark - S01E01", "Dark"},
		{"CNN International", "CNN International"},
		{"S01E01", "S01E01"}, // nothing left after stripping, keep the raw name
	}
	for _, tt := range tests {
		if got := StripEpisodeSuffix(tt.in); got != tt.want {
			t.Errorf("StripEpisodeSuffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Breaking Bad", "breaking-bad"},
		{"Mr. Robot!", "mr-robot"},
		{"  spaced   out  ", "spaced-out"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
