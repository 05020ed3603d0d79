package parser

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"iptv-core/work/types"

	"github.com/grafov/m3u8"
)

// Some "playlists" handed to the M3U pipeline are really HLS documents: a
// master playlist listing quality variants, or a media playlist listing
// segments. Neither is a channel list, so both collapse into live streams
// pointing at the source URL (or its variants) instead of being scanned for
// #EXTINF channel entries.

// IsMasterPlaylist reports whether the content is an HLS master playlist.
// #EXT-X-STREAM-INF is the definitive marker.
func IsMasterPlaylist(content string) bool {
	return strings.Contains(content, "#EXT-X-STREAM-INF")
}

// IsMediaPlaylist reports whether the content is an HLS media playlist.
// #EXT-X-TARGETDURATION only appears in segment listings, never in channel
// lists, so it is the marker here; #EXTINF alone is ambiguous.
func IsMediaPlaylist(content string) bool {
	return strings.Contains(content, "#EXT-X-TARGETDURATION")
}

// ParseSource converts a fetched playlist document into the canonical result,
// routing HLS documents to variant extraction and everything else to the
// channel-list parser. sourceURL is the document's own address, used both as
// the playback URL for HLS documents and as the base for resolving relative
// variant URIs.
func ParseSource(text, sourceURL string) Result {
	switch {
	case IsMasterPlaylist(text):
		return parseMasterVariants(text, sourceURL)
	case IsMediaPlaylist(text):
		s := directStream(sourceURL, 1, "Direct Stream")
		return Result{
			Streams:    []types.Stream{s},
			Categories: []types.Category{{ID: s.CategoryID, Name: "Live", ParentID: 0}},
		}
	default:
		return Parse(text)
	}
}

// parseMasterVariants extracts one live stream per variant from an HLS master
// playlist, resolving relative URIs against the master's URL. A document that
// grafov cannot decode degrades to a single stream on the source URL.
func parseMasterVariants(text, sourceURL string) Result {
	cats := newCategorySet()
	catID := cats.add("Live")

	pl, listType, err := m3u8.DecodeFrom(bufio.NewReader(strings.NewReader(text)), true)
	if err != nil || listType != m3u8.MASTER {
		s := directStream(sourceURL, 1, "Direct Stream")
		return Result{Streams: []types.Stream{s}, Categories: cats.ordered}
	}

	master := pl.(*m3u8.MasterPlaylist)
	var streams []types.Stream
	nextID := 1
	for _, variant := range master.Variants {
		if variant == nil || variant.URI == "" {
			continue
		}

		name := variant.Name
		if name == "" && variant.Resolution != "" {
			name = fmt.Sprintf("Stream %s", variant.Resolution)
		} else if name == "" {
			name = fmt.Sprintf("Stream %d", variant.Bandwidth)
		}

		resolved := resolveURL(variant.URI, sourceURL)
		streams = append(streams, types.Stream{
			ID:          nextID,
			Name:        name,
			Type:        types.StreamTypeLive,
			CategoryID:  catID,
			PlaybackURL: resolved,
			Fingerprint: types.StreamFingerprint(resolved, types.StreamTypeLive, nextID),
		})
		nextID++
	}

	if len(streams) == 0 {
		streams = []types.Stream{directStream(sourceURL, 1, "Direct Stream")}
	}

	return Result{Streams: streams, Categories: cats.ordered}
}

func directStream(sourceURL string, id int, name string) types.Stream {
	return types.Stream{
		ID:          id,
		Name:        name,
		Type:        types.StreamTypeLive,
		CategoryID:  types.CategoryID("Live"),
		PlaybackURL: sourceURL,
		Fingerprint: types.StreamFingerprint(sourceURL, types.StreamTypeLive, id),
	}
}

// resolveURL converts a potentially relative variant URI to absolute form
// against the master playlist's URL, returning the input unchanged when
// resolution is impossible.
func resolveURL(streamURL, baseURL string) string {
	if strings.HasPrefix(streamURL, "http://") || strings.HasPrefix(streamURL, "https://") {
		return streamURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return streamURL
	}
	rel, err := url.Parse(streamURL)
	if err != nil {
		return streamURL
	}

	return base.ResolveReference(rel).String()
}
