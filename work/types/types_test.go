package types_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"iptv-core/work/types"
)

func TestCategoryID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple lowercase", "sports", "sports"},
		{"uppercase folds", "SPORTS", "sports"},
		{"spaces become underscores", "Sports HD", "sports_hd"},
		{"runs of whitespace collapse", "Sports \t  HD", "sports_hd"},
		{"punctuation stripped", "News & Politics!", "news_politics"},
		{"unicode stripped", "Cinéma Français", "cinma_franais"},
		{"empty falls back", "", "uncategorized"},
		{"only symbols falls back", "***", "uncategorized"},
		{"long name truncates", strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, types.CategoryID(tc.in))
		})
	}
}

func TestCategoryIDIsIdempotent(t *testing.T) {
	for _, in := range []string{"Sports HD", "NEWS & Politics", "Ação", "plain"} {
		once := types.CategoryID(in)
		assert.Equal(t, once, types.CategoryID(once), "id of %q must be a fixed point", in)
	}
}

func TestStreamFingerprintStableAcrossIDs(t *testing.T) {
	// The sequential parse ID must not influence the fingerprint.
	a := types.StreamFingerprint("http://host/live/u/p/42.ts", types.StreamTypeLive, 1)
	b := types.StreamFingerprint("http://host/live/u/p/42.ts", types.StreamTypeLive, 999)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestStreamFingerprintNormalizesHostCaseOnly(t *testing.T) {
	a := types.StreamFingerprint("HTTP://HOST.example/live/User/Pass/1.ts", types.StreamTypeLive, 1)
	b := types.StreamFingerprint("http://host.example/live/User/Pass/1.ts", types.StreamTypeLive, 1)
	c := types.StreamFingerprint("http://host.example/live/user/pass/1.ts", types.StreamTypeLive, 1)
	assert.Equal(t, a, b, "scheme and host case must not matter")
	assert.NotEqual(t, b, c, "path case carries credentials and must matter")
}

func TestStreamFingerprintFallsBackToTypeAndSource(t *testing.T) {
	series := types.StreamFingerprint("", types.StreamTypeSeries, 7)
	movie := types.StreamFingerprint("", types.StreamTypeMovie, 7)
	assert.NotEqual(t, series, movie)
	assert.Equal(t, series, types.StreamFingerprint("", types.StreamTypeSeries, 7))
}

func TestPlaylistLookups(t *testing.T) {
	pl := types.Playlist{
		Streams: []types.Stream{
			{ID: 1, Name: "A", CategoryID: "news"},
			{ID: 2, Name: "B", CategoryID: "sports"},
			{ID: 3, Name: "C", CategoryID: "news"},
		},
		Categories: []types.Category{
			{ID: "news", Name: "News"},
			{ID: "sports", Name: "Sports"},
		},
	}

	cat, ok := pl.CategoryByID("sports")
	assert.True(t, ok)
	assert.Equal(t, "Sports", cat.Name)

	_, ok = pl.CategoryByID("movies")
	assert.False(t, ok)

	news := pl.StreamsInCategory("news")
	assert.Len(t, news, 2)
	assert.Equal(t, "A", news[0].Name)
	assert.Equal(t, "C", news[1].Name)
}
