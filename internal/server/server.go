// Package server implements the HTTP API, middleware, and background status refresh workers.
package server

import (
	"net/http"
	"time"

	"github.com/acrc-community/acrc/internal/config"
	"github.com/acrc-community/acrc/internal/game"
	"github.com/acrc-community/acrc/internal/geoip"
	"github.com/acrc-community/acrc/internal/ingest"
	"github.com/acrc-community/acrc/internal/status"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New creates a new Server instance with the provided storage, GeoIP provider, and configuration.
// geo may be nil.
func New(store *storage.Repository, geo *geoip.Provider, cfg *config.Config) *Server {
	return &Server{
		storage:         store,
		status:          status.New(store, game.New(cfg.Probe), geo),
		pipeline:        ingest.New(cfg.Content.UploadDir, cfg.Content.ExtractDir, cfg.Server.PublicURL),
		authToken:       cfg.Server.AuthToken,
		uploadDir:       cfg.Content.UploadDir,
		uploadLimit:     cfg.Server.UploadLimit,
		workers:         cfg.Probe.Workers,
		trustProxy:      cfg.Server.TrustProxy,
		softLimitDur:    cfg.Probe.SoftLimitDur,
		refreshInterval: cfg.Probe.RefreshInterval,

		limiter:  newIPLimiter(cfg.RateLimit.HardLimitCount, cfg.RateLimit.HardLimitWin),
		queue:    make(chan refreshJob, 1000),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers initializes the background refresh workers, the cache cleanup routine
// and, when enabled, the periodic refresh scheduler.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	go s.gcSoftLimitCache()
	go s.limiter.gc(s.shutdown)

	if s.refreshInterval > 0 {
		s.sched.Add(1)
		go s.scheduleRefresh()
	}
}

// StopWorkers stops the background goroutines and waits for queued refreshes to finish.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	s.sched.Wait()
	close(s.queue)
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	public := func(h http.HandlerFunc) http.Handler { return s.RateLimitMiddleware(h) }
	admin := func(h http.HandlerFunc) http.Handler { return AdminAuthMiddleware(s.authToken, h) }

	mux.Handle("GET /api/cars", public(s.handleListCars))
	mux.Handle("GET /api/cars/{id}", public(s.handleGetCar))
	mux.Handle("GET /api/cars/{ref}/download", public(s.handleDownloadCar))
	mux.Handle("GET /api/cars/{id}/model3d", public(s.handleModel3D))
	mux.Handle("POST /api/cars/upload", s.RateLimitMiddleware(admin(s.handleUploadCar)))
	mux.Handle("DELETE /api/cars/{id}", admin(s.handleDeleteCar))

	mux.Handle("GET /api/servers", public(s.handleListServers))
	mux.Handle("GET /api/servers/{id}", public(s.handleGetServer))
	mux.Handle("GET /api/servers/{id}/cars", public(s.handleServerCars))
	mux.Handle("POST /api/servers/parse-link", admin(s.handleParseLink))
	mux.Handle("POST /api/servers/create-from-link", admin(s.handleCreateFromLink))
	mux.Handle("POST /api/servers/{id}/update-status", admin(s.handleUpdateStatus))
	mux.Handle("DELETE /api/servers/{id}", admin(s.handleDeleteServer))

	uploads := http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(s.uploadDir))))
	mux.Handle("GET /uploads/", s.RateLimitMiddleware(uploads))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /api/version", http.HandlerFunc(handleVersion))

	return s.LoggingMiddleware(mux)
}

// gcSoftLimitCache periodically cleans up expired entries from the soft limit cache.
func (s *Server) gcSoftLimitCache() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			now := time.Now()
			s.seenCache.Range(func(key, value any) bool {
				if t, ok := value.(time.Time); !ok || now.Sub(t) > s.softLimitDur {
					s.seenCache.Delete(key)
				}
				return true
			})
		}
	}
}
