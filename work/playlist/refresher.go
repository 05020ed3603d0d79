package playlist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"iptv-core/work/config"
	"iptv-core/work/logger"
	"iptv-core/work/xtream"
)

// Refresher drives the background sync: an initial load at startup, then a
// periodic re-load of every source plus the guide. Source loads fan out
// through the shared worker pool.
type Refresher struct {
	cfg      *config.Config
	co       *Coordinator
	pool     *ants.Pool
	stopChan chan bool
}

// NewRefresher wires the background sync worker.
func NewRefresher(cfg *config.Config, co *Coordinator, pool *ants.Pool) *Refresher {
	return &Refresher{
		cfg:      cfg,
		co:       co,
		pool:     pool,
		stopChan: make(chan bool, 1),
	}
}

// RefreshAll loads every configured source and the guide once. Each load
// populates the in-memory cache as a side effect, so callers who only want
// the cache warm can ignore the absence of a return value.
func (r *Refresher) RefreshAll(ctx context.Context) {
	logger.Debug("{playlist - RefreshAll} Starting refresh for %d configured sources", len(r.cfg.Sources))

	var wg sync.WaitGroup
	for i := range r.cfg.Sources {
		src := &r.cfg.Sources[i]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if _, err := r.co.Load(ctx, src); err != nil {
				if errors.Is(err, xtream.ErrAuthFailed) || ctx.Err() != nil {
					logger.Warn("{playlist - RefreshAll} refresh of %s aborted: %v", src.Name, err)
					return
				}
				logger.Warn("{playlist - RefreshAll} refresh of %s failed: %v", src.Name, err)
			}
		}
		if err := r.pool.Submit(task); err != nil {
			logger.Warn("{playlist - RefreshAll} worker pool rejected refresh of %s: %v", src.Name, err)
			go task()
		}
	}
	wg.Wait()

	r.co.LoadGuide(ctx)
	logger.Debug("{playlist - RefreshAll} Refresh complete")
}

// Start runs the refresh loop. It blocks, so launch it in its own goroutine.
// The loop performs one refresh immediately, then one per RefreshInterval,
// and terminates when Stop is called or the context is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	logger.Debug("{playlist - Start} Starting refresh loop (interval: %s)", r.cfg.RefreshInterval)

	r.RefreshAll(ctx)

	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("{playlist - Start} Refresh loop stopped: %v", ctx.Err())
			return
		case <-r.stopChan:
			logger.Debug("{playlist - Start} Refresh loop stopped")
			return
		case <-ticker.C:
			logger.Debug("{playlist - Start} Triggering scheduled refresh")
			r.RefreshAll(ctx)
		}
	}
}

// Stop signals the refresh loop to terminate. The send is non-blocking so
// callers never hang when the loop has already exited.
func (r *Refresher) Stop() {
	select {
	case r.stopChan <- true:
	default:
	}
}
