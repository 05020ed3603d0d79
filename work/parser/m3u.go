package parser

import (
	"bufio"
	"fmt"
	"strings"

	"iptv-core/work/types"

	regexp "github.com/grafana/regexp"
)

// Result is the canonical output of one parse pass: ordered streams plus the
// categories derived from their group titles, in first-seen order.
type Result struct {
	Streams    []types.Stream
	Categories []types.Category
}

// extinfAttrRe captures key="value" pairs from an #EXTINF line. Any matching
// pair is kept, not a fixed allowlist, so provider-specific attributes
// survive into the stream's metadata.
var extinfAttrRe = regexp.MustCompile(`([a-zA-Z0-9\-_:]+)\s*=\s*"([^"]*)"`)

// Stream-type inference patterns. Series detection runs on the display name
// as well as the URL because season/episode markers usually live in titles.
var (
	seriesNameRe = regexp.MustCompile(`(?i)\b(s\d+\s*e\d+|season\s*\d+|episode\s*\d+)\b`)
	vodExtRe     = regexp.MustCompile(`(?i)\.(mp4|mkv|avi|mov|wmv|flv)(\?|$)`)
)

// Parse converts raw M3U text into the canonical stream/category collections.
// It never fails: malformed input degrades to an empty or partial result.
//
// The scanner keeps one pending #EXTINF line at a time. A following
// non-comment, non-blank line is taken as the entry's playback URL; a second
// #EXTINF before any URL silently drops the first. Blank lines and
// unrecognized directives are skipped without clearing the pending state.
func Parse(text string) Result {
	text = strings.TrimPrefix(text, "\uFEFF")

	var streams []types.Stream
	cats := newCategorySet()
	nextID := 1

	var pending string
	havePending := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if len(line) >= 7 && strings.EqualFold(line[:7], "#EXTINF") {
			pending = line
			havePending = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if !havePending {
			continue
		}

		streams = append(streams, buildStream(pending, line, nextID, cats))
		nextID++
		havePending = false
	}

	return Result{Streams: streams, Categories: cats.ordered}
}

// buildStream assembles one canonical stream from its #EXTINF metadata line
// and playback URL.
func buildStream(extinf, url string, id int, cats *categorySet) types.Stream {
	attrs, title := parseEXTINF(extinf)

	name := title
	if name == "" {
		name = attrs["tvg-name"]
	}
	if name == "" {
		name = fmt.Sprintf("Stream %d", id)
	}

	group := strings.TrimSpace(attrs["group-title"])
	if group == "" {
		group = "Uncategorized"
	}

	streamType := InferStreamType(name, url)

	return types.Stream{
		ID:          id,
		Name:        name,
		LogoURL:     attrs["tvg-logo"],
		Type:        streamType,
		CategoryID:  cats.add(group),
		PlaybackURL: url,
		EpgID:       attrs["tvg-id"],
		Fingerprint: types.StreamFingerprint(url, streamType, id),
	}
}

// parseEXTINF splits an #EXTINF line into its attribute map and display
// title. The title is everything after the first comma; attributes are the
// key="value" pairs in the portion before it.
func parseEXTINF(line string) (map[string]string, string) {
	head := line
	title := ""
	if i := strings.IndexByte(line, ','); i >= 0 {
		head = line[:i]
		title = strings.TrimSpace(line[i+1:])
	}

	attrs := make(map[string]string)
	for _, m := range extinfAttrRe.FindAllStringSubmatch(head, -1) {
		attrs[m[1]] = strings.TrimSpace(m[2])
	}

	return attrs, title
}

// InferStreamType classifies a stream from its resolved URL and display name.
// Precedence is series, then movie, then live: series paths often end in a
// playable video extension, so the series checks must win over the extension
// heuristic.
func InferStreamType(name, url string) types.StreamType {
	lowerURL := strings.ToLower(url)

	if strings.Contains(lowerURL, "/series/") || seriesNameRe.MatchString(name) {
		return types.StreamTypeSeries
	}
	if strings.Contains(lowerURL, "/movie/") || strings.Contains(lowerURL, "/vod/") || vodExtRe.MatchString(lowerURL) {
		return types.StreamTypeMovie
	}
	return types.StreamTypeLive
}

// categorySet deduplicates categories while preserving first-seen order for
// display. Deduplication keys on the derived id, so identical group titles
// share one category and titles that derive the same id cannot produce two
// category records with a colliding id.
type categorySet struct {
	seen    map[string]struct{}
	ordered []types.Category
}

func newCategorySet() *categorySet {
	return &categorySet{seen: make(map[string]struct{})}
}

// add returns the category id for the given group title, creating the
// category on first sight. The first-seen spelling of the title becomes the
// category's display name.
func (cs *categorySet) add(name string) string {
	id := types.CategoryID(name)
	if _, ok := cs.seen[id]; !ok {
		cs.seen[id] = struct{}{}
		cs.ordered = append(cs.ordered, types.Category{ID: id, Name: name, ParentID: 0})
	}
	return id
}
