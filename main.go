package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iptv-core/work/cache"
	"iptv-core/work/client"
	"iptv-core/work/config"
	"iptv-core/work/database"
	"iptv-core/work/handlers"
	"iptv-core/work/logger"
	"iptv-core/work/middleware"
	"iptv-core/work/playlist"
	"iptv-core/work/store"
)

var (
	Version = "v0.1.0" // default version
)

func main() {
	configPath := os.Getenv("IPTV_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg := config.Load(configPath)
	logger.SetLevel(cfg.LogLevel)

	snapshotStore, cleanup, err := buildStore(cfg)
	if err != nil {
		logger.Error("{main} Failed to initialize snapshot store: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	httpClient := client.NewHeaderSettingClient()

	workerPool, err := ants.NewPool(cfg.WorkerThreads, ants.WithPreAlloc(true))
	if err != nil {
		logger.Error("{main} Failed to create worker pool: %v", err)
		os.Exit(1)
	}
	defer workerPool.Release()

	snaps := cache.NewSnapshots()
	coordinator := playlist.NewCoordinator(cfg, httpClient, snapshotStore, snaps)
	refresher := playlist.NewRefresher(cfg, coordinator, workerPool)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go refresher.Start(ctx)
	defer refresher.Stop()

	catalog := &handlers.Catalog{Cfg: cfg, Co: coordinator}

	router := mux.NewRouter()
	router.HandleFunc("/playlist", middleware.Gzip(handlers.HandlePlaylist(catalog))).Methods("GET")
	router.HandleFunc("/{group}/playlist", middleware.Gzip(handlers.HandleGroupPlaylist(catalog))).Methods("GET")
	router.HandleFunc("/api/catalog", middleware.Gzip(handlers.HandleCatalog(catalog))).Methods("GET")
	router.HandleFunc("/api/categories", middleware.Gzip(handlers.HandleCategories(catalog))).Methods("GET")
	router.HandleFunc("/api/epg", middleware.Gzip(handlers.HandleGuide(catalog))).Methods("GET")
	router.HandleFunc("/api/epg/{channel}", handlers.HandleChannelGuide(catalog)).Methods("GET")
	router.HandleFunc("/api/status", handlers.HandleStatus(catalog)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	logger.Info("{main} Starting IPTV core %s", Version)
	logger.Info("{main} Server configuration:")
	logger.Info("{main}   - Listen Address: %s", cfg.ListenAddr)
	logger.Info("{main}   - Store Backend: %s", cfg.StoreBackend)
	logger.Info("{main}   - Worker Threads: %d", cfg.WorkerThreads)
	logger.Info("{main}   - Sources: %d", len(cfg.Sources))
	logger.Info("{main}   - Playlist TTL: %s", cfg.PlaylistTTL)
	logger.Info("{main}   - EPG TTL: %s", cfg.EPGTTL)
	logger.Info("{main}   - Refresh Interval: %s", cfg.RefreshInterval)
	logger.Info("{main}   - Stream Sort Attr.: %s", cfg.SortField)
	logger.Info("{main}   - Stream Sort Dir.: %s", cfg.SortDirection)
	logger.Info("{main}   - URL Obfuscation: %v", cfg.ObfuscateUrls)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("{main} Server failed: %v", err)
		os.Exit(1)
	}
}

// buildStore selects the snapshot store backend. The sqlite backend keeps
// everything in one WAL-mode database file; the file backend writes one
// snapshot file per source under the cache directory.
func buildStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.StoreBackend == "sqlite" {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return database.NewSnapshotStore(db), func() { db.Close() }, nil
	}

	fs, err := store.NewFileStore(cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
