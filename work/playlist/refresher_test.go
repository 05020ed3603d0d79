package playlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-core/work/config"
)

func TestRefreshAllWarmsCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(m3uDoc))
	}))
	defer srv.Close()

	co, cfg, _ := testCoordinator(t)
	cfg.Sources = []config.SourceConfig{
		{Name: "one", Kind: "m3u", URL: srv.URL + "/a.m3u", RateLimit: 100},
		{Name: "two", Kind: "m3u", URL: srv.URL + "/b.m3u", RateLimit: 100},
	}

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	NewRefresher(cfg, co, pool).RefreshAll(context.Background())

	for i := range cfg.Sources {
		pl, ok := co.snaps.Playlist(cfg.Sources[i].Key())
		require.True(t, ok, "source %s should be cached after refresh", cfg.Sources[i].Name)
		assert.Len(t, pl.Streams, 1)
	}
}

func TestRefreshAllSurvivesFailingSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(m3uDoc))
	}))
	defer srv.Close()

	co, cfg, _ := testCoordinator(t)
	cfg.Sources = []config.SourceConfig{
		{Name: "dead", Kind: "m3u", URL: "http://127.0.0.1:1/x.m3u", RateLimit: 100},
		{Name: "alive", Kind: "m3u", URL: srv.URL, RateLimit: 100},
	}

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	NewRefresher(cfg, co, pool).RefreshAll(context.Background())

	pl, ok := co.snaps.Playlist(cfg.Sources[1].Key())
	require.True(t, ok)
	assert.Len(t, pl.Streams, 1)
}

func TestRefreshAllSurvivesRejectedCredentials(t *testing.T) {
	// The panel answers with HTML instead of an account block, which the
	// Xtream client reports as a wrapped credential rejection.
	panel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>portal moved</html>"))
	}))
	defer panel.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(m3uDoc))
	}))
	defer srv.Close()

	co, cfg, _ := testCoordinator(t)
	cfg.Sources = []config.SourceConfig{
		{Name: "rejected", Kind: "xtream", URL: panel.URL, Username: "u", Password: "p", RateLimit: 100},
		{Name: "alive", Kind: "m3u", URL: srv.URL, RateLimit: 100},
	}

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	NewRefresher(cfg, co, pool).RefreshAll(context.Background())

	_, ok := co.snaps.Playlist(cfg.Sources[0].Key())
	assert.False(t, ok, "rejected source should not be cached")

	pl, ok := co.snaps.Playlist(cfg.Sources[1].Key())
	require.True(t, ok)
	assert.Len(t, pl.Streams, 1)
}

func TestStopTerminatesLoop(t *testing.T) {
	co, cfg, _ := testCoordinator(t)
	pool, err := ants.NewPool(1)
	require.NoError(t, err)
	defer pool.Release()

	r := NewRefresher(cfg, co, pool)

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	r.Stop()
	<-done
}
