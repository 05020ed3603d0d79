// Package handlers exposes the ingested catalog over HTTP: an M3U export for
// players, JSON endpoints for UIs, and a freshness status surface.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"iptv-core/work/cache"
	"iptv-core/work/config"
	"iptv-core/work/epg"
	"iptv-core/work/logger"
	"iptv-core/work/playlist"
	"iptv-core/work/types"
	"iptv-core/work/utils"
)

// Catalog bundles the dependencies the HTTP surface reads from. All handlers
// serve from the in-memory snapshot cache; none of them trigger a network
// fetch, so request latency never depends on upstream providers.
type Catalog struct {
	Cfg *config.Config
	Co  *playlist.Coordinator
}

// merged flattens every cached source into one catalog. Stream IDs are
// reassigned sequentially across the combined list and categories sharing an
// id collapse to the first-seen entry.
func (c *Catalog) merged() *types.Playlist {
	out := &types.Playlist{
		Streams:    []types.Stream{},
		Categories: []types.Category{},
	}
	seenCats := make(map[string]bool)

	for i := range c.Cfg.Sources {
		src := &c.Cfg.Sources[i]
		pl, ok := c.Co.Snapshots().Playlist(src.Key())
		if !ok {
			continue
		}
		for _, cat := range pl.Categories {
			if !seenCats[cat.ID] {
				seenCats[cat.ID] = true
				out.Categories = append(out.Categories, cat)
			}
		}
		for _, s := range pl.Streams {
			s.ID = len(out.Streams) + 1
			out.Streams = append(out.Streams, s)
		}
	}
	return out
}

// sortStreams orders the export per the configured sort field and direction.
func sortStreams(cfg *config.Config, streams []types.Stream) {
	field := cfg.SortField
	key := func(s types.Stream) string {
		switch field {
		case "category":
			return s.CategoryID + "\x00" + strings.ToLower(s.Name)
		case "type":
			return string(s.Type) + "\x00" + strings.ToLower(s.Name)
		default:
			return strings.ToLower(s.Name)
		}
	}
	sort.SliceStable(streams, func(i, j int) bool {
		if cfg.SortDirection == "desc" {
			return key(streams[i]) > key(streams[j])
		}
		return key(streams[i]) < key(streams[j])
	})
}

// writeM3U renders the merged catalog as an M3U playlist, optionally filtered
// to one category by display name or derived id.
func (c *Catalog) writeM3U(w http.ResponseWriter, groupFilter string) {
	pl := c.merged()
	sortStreams(c.Cfg, pl.Streams)

	var filterID string
	if groupFilter != "" {
		filterID = types.CategoryID(groupFilter)
	}

	var b strings.Builder
	b.Grow(len(pl.Streams) * 200)
	b.WriteString("#EXTM3U\n")

	count := 0
	for _, s := range pl.Streams {
		if filterID != "" && s.CategoryID != filterID {
			continue
		}
		if s.PlaybackURL == "" {
			continue
		}
		count++

		b.WriteString("#EXTINF:-1")
		if s.EpgID != "" {
			fmt.Fprintf(&b, " tvg-id=%q", s.EpgID)
		}
		fmt.Fprintf(&b, " tvg-name=%q", s.Name)
		if s.LogoURL != "" {
			fmt.Fprintf(&b, " tvg-logo=%q", s.LogoURL)
		}
		if cat, ok := pl.CategoryByID(s.CategoryID); ok {
			fmt.Fprintf(&b, " group-title=%q", cat.Name)
		}
		b.WriteString("," + s.Name + "\n")
		b.WriteString(s.PlaybackURL + "\n")
	}

	logger.Debug("{handlers - writeM3U} Rendered %d of %d streams (filter: %q)", count, len(pl.Streams), groupFilter)
	w.Header().Set("Content-Type", "application/x-mpegURL")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(b.String()))
}

// HandlePlaylist serves the full M3U export.
func HandlePlaylist(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.writeM3U(w, "")
	}
}

// HandleGroupPlaylist serves the M3U export filtered to one category.
func HandleGroupPlaylist(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		c.writeM3U(w, vars["group"])
	}
}

// HandleCatalog serves the merged catalog as JSON.
func HandleCatalog(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.merged())
	}
}

// HandleCategories serves the merged category list as JSON.
func HandleCategories(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.merged().Categories)
	}
}

// HandleGuide serves the full now/next guide as JSON.
func HandleGuide(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, c.Co.Snapshots().Guide())
	}
}

// channelGuide is the per-channel guide response, with playback progress
// attached to the running program.
type channelGuide struct {
	Channel  string       `json:"channel"`
	Now      *epg.Program `json:"now,omitempty"`
	Next     *epg.Program `json:"next,omitempty"`
	Progress float64      `json:"progress"`
}

// HandleChannelGuide serves one channel's schedule. Lookup tries the raw path
// segment first, then a case-insensitive match, then the sanitized token form,
// since M3U display names and guide keys rarely agree on casing or spacing.
func HandleChannelGuide(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		name := vars["channel"]

		guide := c.Co.Snapshots().Guide()
		sched, ok := guide[name]
		if !ok {
			safe := utils.SanitizeChannelName(name)
			for key, s := range guide {
				if strings.EqualFold(key, name) || strings.EqualFold(utils.SanitizeChannelName(key), safe) {
					sched, ok = s, true
					break
				}
			}
		}
		if !ok {
			http.Error(w, "channel not found in guide", http.StatusNotFound)
			return
		}

		writeJSON(w, channelGuide{
			Channel:  name,
			Now:      sched.Now,
			Next:     sched.Next,
			Progress: epg.Progress(time.Now(), sched.Now),
		})
	}
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Sources []cache.Status `json:"sources"`
	Guide   *cache.Status  `json:"guide,omitempty"`
}

// HandleStatus reports per-source cache freshness so operators can tell a
// live catalog from one riding a stale snapshot.
func HandleStatus(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{Sources: []cache.Status{}}
		for i := range c.Cfg.Sources {
			src := &c.Cfg.Sources[i]
			if st, ok := c.Co.Snapshots().PlaylistStatus(src.Key(), src.Name); ok {
				resp.Sources = append(resp.Sources, st)
			}
		}
		if gs, ok := c.Co.Snapshots().GuideStatus(); ok {
			resp.Guide = &gs
		}
		writeJSON(w, resp)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("{handlers - writeJSON} encode failed: %v", err)
	}
}
