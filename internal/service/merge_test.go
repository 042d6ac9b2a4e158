package service

import (
	"testing"

	"github.com/streamdock/streamdock/internal/models"
)

func item(name, url string, fav bool) models.ContentItem {
	return models.ContentItem{Name: name, URL: url, OriginalURL: url, Favorite: fav}
}

func TestMergeFavoritesCarriesFlagByURL(t *testing.T) {
	existing := []models.ContentItem{
		item("CNN", "http://x/cnn", true),
		item("BBC", "http://x/bbc", false),
	}
	fresh := []models.ContentItem{
		item("CNN International", "http://x/cnn", false), // renamed upstream
		item("BBC", "http://x/bbc", false),
		item("RAI", "http://x/rai", false),
	}

	merged := MergeFavorites(existing, fresh)
	if len(merged) != 3 {
		t.Fatalf("got %d items, want 3", len(merged))
	}
	if !merged[0].Favorite {
		t.Error("renamed channel with same URL should stay a favorite")
	}
	if merged[1].Favorite {
		t.Error("non-favorite should stay non-favorite")
	}
	if merged[2].Favorite {
		t.Error("new channel should not be a favorite")
	}
}

func TestMergeFavoritesDroppedChannelDisappears(t *testing.T) {
	existing := []models.ContentItem{item("Gone", "http://x/gone", true)}
	fresh := []models.ContentItem{item("Still here", "http://x/here", false)}

	merged := MergeFavorites(existing, fresh)
	if len(merged) != 1 || merged[0].Name != "Still here" {
		t.Fatalf("merged = %+v, want only the fresh item", merged)
	}
	if merged[0].Favorite {
		t.Error("favorite flag leaked onto an unrelated channel")
	}
}

func TestMergeFavoritesMatchesUpstreamURL(t *testing.T) {
	// stored copy is proxy-wrapped, fresh copy is direct
	existing := []models.ContentItem{{
		Name:        "CNN",
		URL:         "http://proxy/proxy/stream?url=http%3A%2F%2Fx%2Fcnn",
		OriginalURL: "http://x/cnn",
		Favorite:    true,
	}}
	fresh := []models.ContentItem{item("CNN", "http://x/cnn", false)}

	merged := MergeFavorites(existing, fresh)
	if !merged[0].Favorite {
		t.Error("favorite should survive through the unwrapped upstream URL")
	}
}

func TestMergeFavoritesDoesNotMutateInputs(t *testing.T) {
	existing := []models.ContentItem{item("CNN", "http://x/cnn", true)}
	fresh := []models.ContentItem{item("CNN", "http://x/cnn", false)}

	_ = MergeFavorites(existing, fresh)
	if fresh[0].Favorite {
		t.Error("input slice was mutated")
	}
}

func TestMergeFavoritesEmptyURLNeverMatches(t *testing.T) {
	existing := []models.ContentItem{{Name: "placeholder A", ContentType: models.ContentTypeSeries, Favorite: true}}
	fresh := []models.ContentItem{{Name: "placeholder B", ContentType: models.ContentTypeSeries}}

	merged := MergeFavorites(existing, fresh)
	if merged[0].Favorite {
		t.Error("items without URLs must not match each other")
	}
}
