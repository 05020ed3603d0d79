package playlist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-core/work/cache"
	"iptv-core/work/client"
	"iptv-core/work/config"
	"iptv-core/work/store"
	"iptv-core/work/types"
	"iptv-core/work/xtream"
)

const m3uDoc = "#EXTM3U\n#EXTINF:-1 group-title=\"News\",CNN\nhttp://host/cnn.ts\n"

func testCoordinator(t *testing.T) (*Coordinator, *config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.CacheDir = dir
	cfg.PlaylistTimeout = 2 * time.Second
	cfg.EPGTimeout = 2 * time.Second

	fs, err := store.NewFileStore(dir)
	require.NoError(t, err)

	co := NewCoordinator(cfg, client.NewHeaderSettingClient(), fs, cache.NewSnapshots())
	return co, cfg, dir
}

func m3uSource(url string) *config.SourceConfig {
	return &config.SourceConfig{Name: "test", Kind: "m3u", URL: url, RateLimit: 100}
}

func TestLoadM3UNetworkWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(m3uDoc))
	}))
	defer srv.Close()

	co, _, _ := testCoordinator(t)
	src := m3uSource(srv.URL)

	pl, err := co.Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, pl.Streams, 1)
	assert.Equal(t, "CNN", pl.Streams[0].Name)
	assert.Equal(t, types.SourceKindM3U, pl.SourceKind)

	// The raw document must be persisted for later fallback.
	raw, _, err := co.store.Read(src.Key())
	require.NoError(t, err)
	assert.Equal(t, m3uDoc, string(raw))

	// And the in-memory cache must hold the parse result, marked fresh.
	st, ok := co.snaps.PlaylistStatus(src.Key(), src.Name)
	require.True(t, ok)
	assert.False(t, st.Stale)
}

func TestLoadM3UFallsBackToFreshSnapshot(t *testing.T) {
	co, _, _ := testCoordinator(t)
	src := m3uSource("http://127.0.0.1:1/unreachable.m3u")

	require.NoError(t, co.store.Write(src.Key(), []byte(m3uDoc)))

	pl, err := co.Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, pl.Streams, 1)
	assert.Equal(t, "CNN", pl.Streams[0].Name)

	st, ok := co.snaps.PlaylistStatus(src.Key(), src.Name)
	require.True(t, ok)
	assert.False(t, st.Stale, "a snapshot within TTL serves as fresh")
}

func TestLoadM3UFallsBackToStaleSnapshot(t *testing.T) {
	co, cfg, dir := testCoordinator(t)
	src := m3uSource("http://127.0.0.1:1/unreachable.m3u")

	require.NoError(t, co.store.Write(src.Key(), []byte(m3uDoc)))
	backdateSnapshots(t, dir, cfg.PlaylistTTL+time.Hour)

	pl, err := co.Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, pl.Streams, 1, "a stale snapshot still beats an empty screen")

	st, ok := co.snaps.PlaylistStatus(src.Key(), src.Name)
	require.True(t, ok)
	assert.True(t, st.Stale)
}

func TestLoadM3UEmptyFloor(t *testing.T) {
	co, _, _ := testCoordinator(t)
	src := m3uSource("http://127.0.0.1:1/unreachable.m3u")

	pl, err := co.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Empty(t, pl.Streams)
	assert.NotNil(t, pl.Categories)
}

func TestLoadBlankSource(t *testing.T) {
	co, _, _ := testCoordinator(t)

	pl, err := co.Load(context.Background(), &config.SourceConfig{Name: "blank", Kind: "m3u"})
	require.NoError(t, err)
	assert.Empty(t, pl.Streams)
}

func TestLoadXtreamAuthFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_info": {"auth": 0}}`))
	}))
	defer srv.Close()

	co, _, _ := testCoordinator(t)
	src := &config.SourceConfig{Name: "xc", Kind: "xtream", URL: srv.URL, Username: "u", Password: "p", RateLimit: 100}

	// Even with a usable snapshot on disk, rejected credentials must not be
	// papered over by the cache.
	seed := types.Playlist{SourceKind: types.SourceKindXtream, Streams: []types.Stream{{ID: 1, Name: "Old"}}}
	raw, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, co.store.Write(src.Key(), raw))

	_, err = co.Load(context.Background(), src)
	assert.ErrorIs(t, err, xtream.ErrAuthFailed)
}

func TestLoadXtreamNetworkFailureFallsBack(t *testing.T) {
	co, _, _ := testCoordinator(t)
	src := &config.SourceConfig{Name: "xc", Kind: "xtream", URL: "http://127.0.0.1:1", Username: "u", Password: "p", RateLimit: 100}

	seed := types.Playlist{SourceKind: types.SourceKindXtream, Streams: []types.Stream{{ID: 1, Name: "Cached"}}}
	raw, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, co.store.Write(src.Key(), raw))

	pl, err := co.Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, pl.Streams, 1)
	assert.Equal(t, "Cached", pl.Streams[0].Name)
}

func TestEffectiveSourceRecognizesGetPhpExport(t *testing.T) {
	src := m3uSource("http://panel.example:8080/get.php?username=alice&password=s3cret&type=m3u_plus")

	eff := effectiveSource(src)
	assert.Equal(t, "xtream", eff.Kind)
	assert.Equal(t, "alice", eff.Username)
	assert.Equal(t, "s3cret", eff.Password)
	assert.Equal(t, "http://panel.example:8080", eff.URL)

	// The original stays untouched.
	assert.Equal(t, "m3u", src.Kind)
}

func TestLoadGetPhpSourceCachesUnderConfiguredKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/player_api.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "" {
			w.Write([]byte("[]"))
			return
		}
		w.Write([]byte(`{"user_info": {"username": "alice", "auth": 1}, "server_info": {"url": "panel.example", "port": "8080"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	co, _, _ := testCoordinator(t)
	src := m3uSource(srv.URL + "/get.php?username=alice&password=s3cret&type=m3u_plus")

	pl, err := co.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, types.SourceKindXtream, pl.SourceKind, "get.php credentials route through the panel API")
	assert.Equal(t, 1, pl.User.Auth)

	// The result is cached under the source as configured, so the HTTP
	// surface finds it by the same key it derives from the config.
	_, ok := co.snaps.Playlist(src.Key())
	assert.True(t, ok)
}

func TestEffectiveSourceIgnoresSchemelessCredentials(t *testing.T) {
	// Without a scheme there is no host to rebuild the panel base from, so
	// the source stays on the M3U path instead of a broken Xtream client.
	src := m3uSource("panel.example/get.php?username=alice&password=s3cret")
	eff := effectiveSource(src)
	assert.Same(t, src, eff)
	assert.Equal(t, "m3u", eff.Kind)
}

func TestEffectiveSourceLeavesPlainM3UAlone(t *testing.T) {
	src := m3uSource("http://provider/list.m3u?token=abc")
	eff := effectiveSource(src)
	assert.Same(t, src, eff)
	assert.Equal(t, "m3u", eff.Kind)
}

func TestLoadGuide(t *testing.T) {
	payload := `{"CNN": {"now": {"title": "News", "start": "2024-01-01T20:00:00Z", "end": "2024-01-01T21:00:00Z"}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	co, cfg, _ := testCoordinator(t)
	cfg.EPGURL = srv.URL

	guide := co.LoadGuide(context.Background())
	require.Contains(t, guide, "CNN")
	assert.Equal(t, "News", guide["CNN"].Now.Title)

	// The coordinator must also have populated the shared cache.
	assert.Contains(t, co.snaps.Guide(), "CNN")
}

func TestLoadGuideBlankURLDisables(t *testing.T) {
	co, _, _ := testCoordinator(t)
	assert.Empty(t, co.LoadGuide(context.Background()))
}

func TestLoadGuideFallsBackToSnapshot(t *testing.T) {
	co, cfg, _ := testCoordinator(t)
	cfg.EPGURL = "http://127.0.0.1:1/guide.json"

	payload := `{"CNN": {"now": {"title": "News", "start": "2024-01-01T20:00:00Z", "end": "2024-01-01T21:00:00Z"}}}`
	require.NoError(t, co.store.Write("epg:"+cfg.EPGURL, []byte(payload)))

	guide := co.LoadGuide(context.Background())
	require.Contains(t, guide, "CNN")
}

func TestLoadGuideEmptyFloor(t *testing.T) {
	co, cfg, _ := testCoordinator(t)
	cfg.EPGURL = "http://127.0.0.1:1/guide.json"

	guide := co.LoadGuide(context.Background())
	require.NotNil(t, guide)
	assert.Empty(t, guide)
}

// backdateSnapshots rewinds the mtime of every snapshot file so TTL expiry
// can be tested without sleeping.
func backdateSnapshots(t *testing.T, dir string, by time.Duration) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	past := time.Now().Add(-by)
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".snap" {
			continue
		}
		require.NoError(t, os.Chtimes(filepath.Join(dir, e.Name()), past, past))
	}
}
