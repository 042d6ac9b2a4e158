// Package service coordinates imports and refreshes: fetch, parse,
// classify, merge, and store.
package service

import "github.com/streamdock/streamdock/internal/models"

// MergeFavorites carries favorite flags from a stored item set onto a
// freshly fetched one. Identity is the stream URL; the unwrapped
// upstream URL is also honored so proxy-wrapped and direct copies of the
// same stream still match. Items are never added or removed, so the
// result has exactly the fresh items in their original order.
func MergeFavorites(existing, fresh []models.ContentItem) []models.ContentItem {
	favorites := make(map[string]bool)
	for _, it := range existing {
		if !it.Favorite {
			continue
		}
		if it.URL != "" {
			favorites[it.URL] = true
		}
		if it.OriginalURL != "" {
			favorites[it.OriginalURL] = true
		}
	}

	if len(favorites) == 0 {
		return fresh
	}

	out := make([]models.ContentItem, len(fresh))
	copy(out, fresh)
	for i := range out {
		if favorites[out[i].URL] || favorites[out[i].OriginalURL] {
			out[i].Favorite = true
		}
	}
	return out
}
