package cache

import (
	"encoding/json"
	"time"

	"iptv-core/work/epg"
	"iptv-core/work/types"

	"github.com/puzpuzpuz/xsync/v3"
)

// Snapshots holds the most recent parsed result per source, plus the guide,
// for the HTTP surface to serve between refreshes. Values are kept as
// serialized JSON and deserialized on every read: consumers get their own
// copy, never a live reference into another caller's playlist, so nothing
// downstream can corrupt the shared state.
type Snapshots struct {
	playlists *xsync.MapOf[string, entry]
	guide     *xsync.MapOf[string, entry] // single "guide" key; MapOf keeps access uniform
}

type entry struct {
	payload []byte
	written time.Time
	stale   bool
}

// Status describes the freshness of one cached source for the status surface.
type Status struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	LastLoad    time.Time `json:"last_load"`
	Stale       bool      `json:"stale"`
	StreamCount int       `json:"stream_count"`
}

const guideKey = "guide"

// NewSnapshots returns an empty snapshot cache.
func NewSnapshots() *Snapshots {
	return &Snapshots{
		playlists: xsync.NewMapOf[string, entry](),
		guide:     xsync.NewMapOf[string, entry](),
	}
}

// SetPlaylist stores the latest parse result for a source key. stale marks
// results served from an expired snapshot rather than the network.
func (c *Snapshots) SetPlaylist(key string, pl *types.Playlist, stale bool) {
	payload, err := json.Marshal(pl)
	if err != nil {
		return
	}
	c.playlists.Store(key, entry{payload: payload, written: time.Now(), stale: stale})
}

// Playlist returns a fresh deserialization of the cached playlist for key.
func (c *Snapshots) Playlist(key string) (*types.Playlist, bool) {
	e, ok := c.playlists.Load(key)
	if !ok {
		return nil, false
	}
	var pl types.Playlist
	if err := json.Unmarshal(e.payload, &pl); err != nil {
		return nil, false
	}
	return &pl, true
}

// SetGuide stores the latest parsed guide.
func (c *Snapshots) SetGuide(g map[string]epg.Schedule, stale bool) {
	payload, err := json.Marshal(g)
	if err != nil {
		return
	}
	c.guide.Store(guideKey, entry{payload: payload, written: time.Now(), stale: stale})
}

// Guide returns a fresh deserialization of the cached guide, or an empty map
// when none has been loaded yet.
func (c *Snapshots) Guide() map[string]epg.Schedule {
	e, ok := c.guide.Load(guideKey)
	if !ok {
		return map[string]epg.Schedule{}
	}
	var g map[string]epg.Schedule
	if err := json.Unmarshal(e.payload, &g); err != nil {
		return map[string]epg.Schedule{}
	}
	return g
}

// GuideStatus reports freshness of the cached guide; ok is false until the
// first guide load.
func (c *Snapshots) GuideStatus() (Status, bool) {
	e, ok := c.guide.Load(guideKey)
	if !ok {
		return Status{}, false
	}
	var g map[string]epg.Schedule
	count := 0
	if err := json.Unmarshal(e.payload, &g); err == nil {
		count = len(g)
	}
	return Status{
		Key:         guideKey,
		Name:        "epg",
		LastLoad:    e.written,
		Stale:       e.stale,
		StreamCount: count,
	}, true
}

// PlaylistStatus reports freshness for one source key, resolving the display
// name through the supplied lookup.
func (c *Snapshots) PlaylistStatus(key, name string) (Status, bool) {
	e, ok := c.playlists.Load(key)
	if !ok {
		return Status{}, false
	}
	var pl types.Playlist
	count := 0
	if err := json.Unmarshal(e.payload, &pl); err == nil {
		count = len(pl.Streams)
	}
	return Status{
		Key:         key,
		Name:        name,
		LastLoad:    e.written,
		Stale:       e.stale,
		StreamCount: count,
	}, true
}
