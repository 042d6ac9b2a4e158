// Package playback defines the tuning profiles players can fetch to
// configure their HLS buffering behavior.
package playback

import "sort"

// Profile is a named set of player buffering knobs. Values are hints;
// players apply what their engine supports.
type Profile struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	BackBufferSec    int     `json:"back_buffer_sec"`
	MaxBufferSec     int     `json:"max_buffer_sec"`
	MaxBufferMB      int     `json:"max_buffer_mb"`
	LiveSyncDuration float64 `json:"live_sync_duration_sec"`
	LowLatency       bool    `json:"low_latency"`
}

var profiles = map[string]Profile{
	"low": {
		Name:             "low",
		Description:      "Minimal buffering for constrained devices and flaky networks.",
		BackBufferSec:    10,
		MaxBufferSec:     15,
		MaxBufferMB:      30,
		LiveSyncDuration: 3,
		LowLatency:       true,
	},
	"balanced": {
		Name:             "balanced",
		Description:      "Default trade-off between startup time and stability.",
		BackBufferSec:    30,
		MaxBufferSec:     60,
		MaxBufferMB:      60,
		LiveSyncDuration: 6,
	},
	"smooth": {
		Name:             "smooth",
		Description:      "Deep buffers for unstable upstreams, slower to start.",
		BackBufferSec:    60,
		MaxBufferSec:     120,
		MaxBufferMB:      120,
		LiveSyncDuration: 9,
	},
}

// DefaultProfile is used when a player asks for an unknown profile.
const DefaultProfile = "balanced"

// Profiles returns all profiles sorted by name.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the named profile, falling back to the default.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles[DefaultProfile]
}
