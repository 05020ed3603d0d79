package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-core/work/cache"
	"iptv-core/work/epg"
	"iptv-core/work/types"
)

func TestPlaylistReadsAreIsolated(t *testing.T) {
	snaps := cache.NewSnapshots()
	snaps.SetPlaylist("k", &types.Playlist{
		SourceKind: types.SourceKindM3U,
		Streams:    []types.Stream{{ID: 1, Name: "Original"}},
	}, false)

	first, ok := snaps.Playlist("k")
	require.True(t, ok)
	first.Streams[0].Name = "Mutated"

	second, ok := snaps.Playlist("k")
	require.True(t, ok)
	assert.Equal(t, "Original", second.Streams[0].Name, "one consumer's mutation must not reach another")
}

func TestPlaylistMissingKey(t *testing.T) {
	snaps := cache.NewSnapshots()
	_, ok := snaps.Playlist("never set")
	assert.False(t, ok)
}

func TestPlaylistStatus(t *testing.T) {
	snaps := cache.NewSnapshots()
	snaps.SetPlaylist("k", &types.Playlist{
		Streams: []types.Stream{{ID: 1}, {ID: 2}},
	}, true)

	st, ok := snaps.PlaylistStatus("k", "Primary")
	require.True(t, ok)
	assert.Equal(t, "Primary", st.Name)
	assert.True(t, st.Stale)
	assert.Equal(t, 2, st.StreamCount)
	assert.False(t, st.LastLoad.IsZero())

	_, ok = snaps.PlaylistStatus("other", "x")
	assert.False(t, ok)
}

func TestGuideRoundtrip(t *testing.T) {
	snaps := cache.NewSnapshots()
	assert.Empty(t, snaps.Guide(), "unset guide reads as empty, never nil panic")

	snaps.SetGuide(map[string]epg.Schedule{
		"BeIN 1": {Now: &epg.Program{Title: "Match", Start: 1, End: 2}},
	}, false)

	g := snaps.Guide()
	require.Contains(t, g, "BeIN 1")
	assert.Equal(t, "Match", g["BeIN 1"].Now.Title)

	st, ok := snaps.GuideStatus()
	require.True(t, ok)
	assert.Equal(t, 1, st.StreamCount)
	assert.False(t, st.Stale)
}

func TestSetPlaylistReplacesWholly(t *testing.T) {
	snaps := cache.NewSnapshots()
	snaps.SetPlaylist("k", &types.Playlist{Streams: []types.Stream{{ID: 1}, {ID: 2}, {ID: 3}}}, false)
	snaps.SetPlaylist("k", &types.Playlist{Streams: []types.Stream{{ID: 9}}}, false)

	pl, ok := snaps.Playlist("k")
	require.True(t, ok)
	require.Len(t, pl.Streams, 1)
	assert.Equal(t, 9, pl.Streams[0].ID)
}
