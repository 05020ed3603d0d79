package types

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// StreamType classifies a playable entry so consumers can route it to the right
// playback and URL-construction logic. Parsers and normalizers always assign an
// explicit type, inferring one heuristically when the source format does not
// declare it.
type StreamType string

// Supported stream classifications. The inference precedence (series before
// movie before live) is a behavior contract: series paths frequently also carry
// playable video extensions, so reordering the checks changes classification
// outcomes for ambiguous inputs.
const (
	StreamTypeLive   StreamType = "live"
	StreamTypeMovie  StreamType = "movie"
	StreamTypeSeries StreamType = "series"
)

// SourceKind identifies which ingestion pipeline produced a playlist.
type SourceKind string

const (
	SourceKindM3U    SourceKind = "m3u"
	SourceKindXtream SourceKind = "xtream"
)

// Stream is one playable entry in the canonical catalog, produced either by the
// M3U parser or the Xtream normalizer. ID is assigned sequentially during a
// single parse pass and is only stable within that pass; anything needing
// persistent identity across refreshes must key on Fingerprint instead.
type Stream struct {
	ID          int        `json:"stream_id"`                     // Sequential parse-time identifier, not stable across refreshes
	Name        string     `json:"name"`                          // Display title for catalog UIs and playlist export
	LogoURL     string     `json:"stream_icon,omitempty"`         // Optional channel logo / poster URL
	Type        StreamType `json:"stream_type"`                   // live, movie or series; never empty
	CategoryID  string     `json:"category_id"`                   // Foreign key into the playlist's Categories
	PlaybackURL string     `json:"url,omitempty"`                 // Direct URL for M3U entries, constructed URL for Xtream entries
	EpgID       string     `json:"epg_channel_id,omitempty"`      // Upstream tvg-id / epg_channel_id when the source carries one
	SourceID    int        `json:"source_id,omitempty"`           // Upstream numeric id (stream_id / series_id) for Xtream entries
	Extension   string     `json:"container_extension,omitempty"` // Container extension for VOD and series content
	Fingerprint string     `json:"fingerprint"`                   // Content-derived identity, stable across refreshes
}

// Category groups streams for display. ID is a pure function of Name (see
// CategoryID), so two entries sharing a group title collapse to one Category.
// ParentID is always 0; the model is a flat hierarchy.
type Category struct {
	ID       string `json:"category_id"`
	Name     string `json:"category_name"`
	ParentID int    `json:"parent_id"`
}

// ServerDescriptor is canonical Xtream connection info. BaseURL always carries
// an explicit scheme; ports default from the scheme (80/443) when the upstream
// server omits them, and a port of "0" means "no explicit port".
type ServerDescriptor struct {
	BaseURL      string `json:"url"`
	Port         string `json:"port"`
	HTTPSPort    string `json:"https_port"`
	Protocol     string `json:"server_protocol"`
	RTMPPort     string `json:"rtmp_port"`
	Timezone     string `json:"timezone"`
	TimestampNow int64  `json:"timestamp_now"`
	TimeNow      string `json:"time_now"`
}

// UserDescriptor carries Xtream account state. Auth is 1 for an authenticated
// account. The password travels with the descriptor because stream URLs embed
// it; it must never appear in logs (see utils.LogURL and config obfuscation).
type UserDescriptor struct {
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	Auth           int    `json:"auth"`
	Status         string `json:"status"`
	ExpDate        string `json:"exp_date,omitempty"`
	IsTrial        string `json:"is_trial,omitempty"`
	ActiveConns    string `json:"active_cons,omitempty"`
	MaxConnections string `json:"max_connections,omitempty"`
}

// Playlist is the aggregate root for one ingested source: account identity,
// server identity and the canonical catalog. It is created once per successful
// authentication or parse and replaced wholesale on refresh; there is no
// partial mutation path.
type Playlist struct {
	SourceKind SourceKind       `json:"source_kind"`
	User       UserDescriptor   `json:"user_info"`
	Server     ServerDescriptor `json:"server_info"`
	Streams    []Stream         `json:"streams"`
	Categories []Category       `json:"categories"`
}

// CategoryByID returns the category with the given id, or false when the
// playlist has no such category.
func (p *Playlist) CategoryByID(id string) (Category, bool) {
	for _, c := range p.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// StreamsInCategory returns the playlist's streams belonging to the given
// category, preserving parse order.
func (p *Playlist) StreamsInCategory(id string) []Stream {
	var out []Stream
	for _, s := range p.Streams {
		if s.CategoryID == id {
			out = append(out, s)
		}
	}
	return out
}

// CategoryID derives the deterministic identifier for a category name:
// lowercased, whitespace collapsed to underscores, everything outside
// [a-z0-9_] stripped, truncated to 60 bytes. An empty derivation falls back
// to "uncategorized" so the id is never blank.
func CategoryID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	prevUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ' || r == '\t':
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			prevUnderscore = r == '_'
		}
	}
	id := b.String()
	if len(id) > 60 {
		id = id[:60]
	}
	if id == "" {
		return "uncategorized"
	}
	return id
}

// StreamFingerprint derives a content-based identity for a stream so consumers
// (favorites, watch history) survive the sequential re-assignment of IDs across
// refreshes. The playback URL is the strongest available key; entries without
// one fall back to type plus upstream id.
func StreamFingerprint(playbackURL string, t StreamType, sourceID int) string {
	h := fnv.New64a()
	if u := normalizeURLKey(playbackURL); u != "" {
		h.Write([]byte(u))
	} else {
		fmt.Fprintf(h, "%s/%d", t, sourceID)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// normalizeURLKey lowercases the scheme and host portion of a URL and strips a
// trailing slash so trivially different spellings of the same endpoint hash
// identically. The path keeps its case: Xtream credentials embedded in the
// path are case-sensitive.
func normalizeURLKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.TrimSuffix(raw, "/")
	i := strings.Index(raw, "://")
	if i < 0 {
		return raw
	}
	rest := raw[i+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return strings.ToLower(raw)
	}
	return strings.ToLower(raw[:i+3]+rest[:slash]) + rest[slash:]
}
