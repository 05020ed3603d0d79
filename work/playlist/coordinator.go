// Package playlist loads source playlists through the cache policy: the
// network wins when reachable, a fresh snapshot answers when it is not, a
// stale snapshot beats an empty screen, and an empty playlist is the floor.
package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"iptv-core/work/cache"
	"iptv-core/work/client"
	"iptv-core/work/config"
	"iptv-core/work/epg"
	"iptv-core/work/logger"
	"iptv-core/work/metrics"
	"iptv-core/work/parser"
	"iptv-core/work/store"
	"iptv-core/work/types"
	"iptv-core/work/utils"
	"iptv-core/work/xtream"
)

// Coordinator ties a snapshot store and the in-memory cache to the two
// ingestion pipelines. One instance serves all configured sources.
type Coordinator struct {
	cfg   *config.Config
	http  *client.HeaderSettingClient
	store store.Store
	snaps *cache.Snapshots
}

// NewCoordinator wires the coordinator.
func NewCoordinator(cfg *config.Config, httpClient *client.HeaderSettingClient, st store.Store, snaps *cache.Snapshots) *Coordinator {
	return &Coordinator{
		cfg:   cfg,
		http:  httpClient,
		store: st,
		snaps: snaps,
	}
}

// Snapshots exposes the in-memory cache for the HTTP surface.
func (co *Coordinator) Snapshots() *cache.Snapshots {
	return co.snaps
}

// Load fetches one source's playlist, running the full fallback chain. A
// blank source yields an empty playlist without error. A rejected Xtream
// credential check surfaces as xtream.ErrAuthFailed and never falls back to
// cache; every other failure walks the snapshot chain.
func (co *Coordinator) Load(ctx context.Context, src *config.SourceConfig) (*types.Playlist, error) {
	start := time.Now()
	defer func() {
		metrics.LoadDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	}()

	eff := effectiveSource(src)
	if eff.URL == "" {
		logger.Debug("{playlist - Load} source %s has no URL, serving empty playlist", src.Name)
		return emptyPlaylist(types.SourceKind(eff.Kind)), nil
	}

	// Cache under the configured source's identity, not the rewritten one,
	// so readers keyed on the configuration always find the result.
	key := src.Key()

	var (
		pl  *types.Playlist
		err error
	)
	if eff.Kind == "xtream" {
		pl, err = co.loadXtream(ctx, eff, key)
	} else {
		pl, err = co.loadM3U(ctx, eff, key)
	}
	if err != nil {
		return nil, err
	}

	metrics.StreamsParsed.WithLabelValues(src.Name).Set(float64(len(pl.Streams)))
	return pl, nil
}

// loadM3U runs the raw-M3U pipeline: GET the address, persist the raw text,
// parse it. Parse results are never an error, only possibly empty, so the
// fallback chain triggers on fetch failure alone.
func (co *Coordinator) loadM3U(ctx context.Context, src *config.SourceConfig, key string) (*types.Playlist, error) {
	body, err := co.fetch(ctx, src, src.URL, co.cfg.PlaylistTimeout)
	if err != nil {
		logger.Warn("{playlist - loadM3U} fetch failed for %s (%s): %v", src.Name, utils.LogURL(co.cfg, src.URL), err)
		metrics.FetchAttempts.WithLabelValues(src.Name, "error").Inc()
		return co.fallbackM3U(src, key), nil
	}
	metrics.FetchAttempts.WithLabelValues(src.Name, "success").Inc()

	if werr := co.store.Write(key, body); werr != nil {
		logger.Warn("{playlist - loadM3U} snapshot write failed for %s: %v", src.Name, werr)
	}

	pl := parseM3U(body, src.URL)
	co.snaps.SetPlaylist(key, pl, false)
	logger.Info("{playlist - loadM3U} loaded %d streams in %d categories from %s", len(pl.Streams), len(pl.Categories), src.Name)
	return pl, nil
}

// fallbackM3U walks the snapshot chain for a raw M3U source.
func (co *Coordinator) fallbackM3U(src *config.SourceConfig, key string) *types.Playlist {
	payload, age, err := co.store.Read(key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("{playlist - fallbackM3U} snapshot read failed for %s: %v", src.Name, err)
		}
		metrics.CacheServes.WithLabelValues(src.Name, "empty").Inc()
		return emptyPlaylist(types.SourceKindM3U)
	}

	stale := age > co.cfg.PlaylistTTL
	pl := parseM3U(payload, src.URL)
	co.snaps.SetPlaylist(key, pl, stale)
	metrics.CacheServes.WithLabelValues(src.Name, freshness(stale)).Inc()
	logger.Info("{playlist - fallbackM3U} serving %s snapshot for %s (age %s)", freshness(stale), src.Name, age.Round(time.Second))
	return pl
}

// loadXtream runs the Xtream pipeline. The persisted snapshot is the
// canonical playlist JSON, so a cache fallback needs no re-normalization.
func (co *Coordinator) loadXtream(ctx context.Context, src *config.SourceConfig, key string) (*types.Playlist, error) {
	xc, err := xtream.New(co.cfg, src, co.http)
	if err != nil {
		logger.Warn("{playlist - loadXtream} source %s misconfigured: %v", src.Name, err)
		metrics.FetchAttempts.WithLabelValues(src.Name, "error").Inc()
		return co.fallbackXtream(src, key), nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, co.cfg.PlaylistTimeout)
	defer cancel()

	pl, err := xc.FetchCatalog(fetchCtx)
	if err != nil {
		if errors.Is(err, xtream.ErrAuthFailed) {
			metrics.AuthFailures.WithLabelValues(src.Name).Inc()
			logger.Error("{playlist - loadXtream} credentials rejected for %s", src.Name)
			return nil, err
		}
		logger.Warn("{playlist - loadXtream} fetch failed for %s: %v", src.Name, err)
		metrics.FetchAttempts.WithLabelValues(src.Name, "error").Inc()
		return co.fallbackXtream(src, key), nil
	}
	metrics.FetchAttempts.WithLabelValues(src.Name, "success").Inc()

	if raw, merr := json.Marshal(pl); merr == nil {
		if werr := co.store.Write(key, raw); werr != nil {
			logger.Warn("{playlist - loadXtream} snapshot write failed for %s: %v", src.Name, werr)
		}
	}

	co.snaps.SetPlaylist(key, pl, false)
	logger.Info("{playlist - loadXtream} loaded %d streams in %d categories from %s", len(pl.Streams), len(pl.Categories), src.Name)
	return pl, nil
}

// fallbackXtream walks the snapshot chain for an Xtream source.
func (co *Coordinator) fallbackXtream(src *config.SourceConfig, key string) *types.Playlist {
	payload, age, err := co.store.Read(key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("{playlist - fallbackXtream} snapshot read failed for %s: %v", src.Name, err)
		}
		metrics.CacheServes.WithLabelValues(src.Name, "empty").Inc()
		return emptyPlaylist(types.SourceKindXtream)
	}

	var pl types.Playlist
	if uerr := json.Unmarshal(payload, &pl); uerr != nil {
		logger.Warn("{playlist - fallbackXtream} snapshot for %s is corrupt: %v", src.Name, uerr)
		metrics.CacheServes.WithLabelValues(src.Name, "empty").Inc()
		return emptyPlaylist(types.SourceKindXtream)
	}

	stale := age > co.cfg.PlaylistTTL
	co.snaps.SetPlaylist(key, &pl, stale)
	metrics.CacheServes.WithLabelValues(src.Name, freshness(stale)).Inc()
	logger.Info("{playlist - fallbackXtream} serving %s snapshot for %s (age %s)", freshness(stale), src.Name, age.Round(time.Second))
	return &pl
}

const guideSource = "epg"

// LoadGuide fetches the now/next guide and runs the same fallback chain
// under the EPG TTL. A blank guide URL disables the pipeline.
func (co *Coordinator) LoadGuide(ctx context.Context) map[string]epg.Schedule {
	if co.cfg.EPGURL == "" {
		return map[string]epg.Schedule{}
	}

	start := time.Now()
	defer func() {
		metrics.LoadDuration.WithLabelValues(guideSource).Observe(time.Since(start).Seconds())
	}()

	key := "epg:" + co.cfg.EPGURL
	body, err := co.fetch(ctx, nil, co.cfg.EPGURL, co.cfg.EPGTimeout)
	if err != nil {
		logger.Warn("{playlist - LoadGuide} fetch failed (%s): %v", utils.LogURL(co.cfg, co.cfg.EPGURL), err)
		metrics.FetchAttempts.WithLabelValues(guideSource, "error").Inc()
		return co.fallbackGuide(key)
	}
	metrics.FetchAttempts.WithLabelValues(guideSource, "success").Inc()

	if werr := co.store.Write(key, body); werr != nil {
		logger.Warn("{playlist - LoadGuide} snapshot write failed: %v", werr)
	}

	guide := epg.Parse(body)
	co.snaps.SetGuide(guide, false)
	logger.Info("{playlist - LoadGuide} loaded schedules for %d channels", len(guide))
	return guide
}

// fallbackGuide walks the snapshot chain for the guide.
func (co *Coordinator) fallbackGuide(key string) map[string]epg.Schedule {
	payload, age, err := co.store.Read(key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("{playlist - fallbackGuide} snapshot read failed: %v", err)
		}
		metrics.CacheServes.WithLabelValues(guideSource, "empty").Inc()
		return map[string]epg.Schedule{}
	}

	stale := age > co.cfg.EPGTTL
	guide := epg.Parse(payload)
	co.snaps.SetGuide(guide, stale)
	metrics.CacheServes.WithLabelValues(guideSource, freshness(stale)).Inc()
	logger.Info("{playlist - fallbackGuide} serving %s guide snapshot (age %s)", freshness(stale), age.Round(time.Second))
	return guide
}

// fetch GETs one address with a bounded deadline, sending the source's
// request headers when a source is given.
func (co *Coordinator) fetch(ctx context.Context, src *config.SourceConfig, requestURL string, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	var resp *http.Response
	if src != nil {
		resp, err = co.http.DoWithHeaders(req, src.UserAgent, src.ReqOrigin, src.ReqReferrer)
	} else {
		resp, err = co.http.Do(req)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// effectiveSource resolves how a source should be ingested. An M3U address
// carrying username/password query parameters is a get.php-style Xtream
// export, so it is rewritten into Xtream credentials against the panel base.
func effectiveSource(src *config.SourceConfig) *config.SourceConfig {
	if src.Kind == "xtream" || src.URL == "" {
		return src
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return src
	}
	q := u.Query()
	user, pass := q.Get("username"), q.Get("password")
	if user == "" || pass == "" || u.Host == "" {
		// A scheme-less address parses with an empty host; without a panel
		// base to rebuild, the plain M3U path is the only workable route.
		return src
	}

	eff := *src
	eff.Kind = "xtream"
	eff.Username = user
	eff.Password = pass
	eff.URL = u.Scheme + "://" + u.Host
	return &eff
}

func parseM3U(payload []byte, sourceURL string) *types.Playlist {
	result := parser.ParseSource(string(payload), sourceURL)
	return &types.Playlist{
		SourceKind: types.SourceKindM3U,
		Streams:    result.Streams,
		Categories: result.Categories,
	}
}

func emptyPlaylist(kind types.SourceKind) *types.Playlist {
	if kind != types.SourceKindXtream {
		kind = types.SourceKindM3U
	}
	return &types.Playlist{
		SourceKind: kind,
		Streams:    []types.Stream{},
		Categories: []types.Category{},
	}
}

func freshness(stale bool) string {
	if stale {
		return "stale"
	}
	return "fresh"
}
