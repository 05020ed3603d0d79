package xtream

import (
	"errors"
	"fmt"

	"iptv-core/work/types"
)

// ErrNoPlayableURL reports that no playback URL could be constructed for an
// entry, reported synchronously before any network or playback attempt.
var ErrNoPlayableURL = errors.New("no playable URL could be constructed")

// StreamURL builds the playback URL for a live or VOD stream:
// {base}/{live|movie}/{username}/{password}/{id}.{ext}. The extension
// defaults to ts for live and mp4 for VOD when the listing omits one.
func StreamURL(base, username, password string, s types.Stream) string {
	segment := "live"
	ext := s.Extension
	switch s.Type {
	case types.StreamTypeMovie:
		segment = "movie"
		if ext == "" {
			ext = "mp4"
		}
	case types.StreamTypeSeries:
		segment = "series"
	default:
		if ext == "" {
			ext = "ts"
		}
	}
	return fmt.Sprintf("%s/%s/%s/%s/%d.%s", base, segment, username, password, s.SourceID, ext)
}

// EpisodeURL builds the playback URL for a series episode:
// {base}/series/{username}/{password}/{id}.{ext}. Unlike live and VOD there
// is no extension default: the container extension comes from the episode
// metadata, and without one the episode is unplayable.
func EpisodeURL(base, username, password string, ep Episode) (string, error) {
	if ep.StreamID == 0 {
		return "", fmt.Errorf("%w: episode has no stream id", ErrNoPlayableURL)
	}
	if ep.ContainerExtension == "" {
		return "", fmt.Errorf("%w: episode %q has no container extension", ErrNoPlayableURL, ep.Title)
	}
	return fmt.Sprintf("%s/series/%s/%s/%d.%s", base, username, password, ep.StreamID, ep.ContainerExtension), nil
}
