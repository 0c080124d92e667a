package server

import (
	"sync"
	"time"

	"github.com/acrc-community/acrc/internal/ingest"
	"github.com/acrc-community/acrc/internal/status"
	"github.com/acrc-community/acrc/internal/storage"
)

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background status refreshes.
type Server struct {
	// storage is the car and server catalog.
	storage *storage.Repository

	// status runs link parsing, probing and status refresh flows.
	status *status.Service

	// pipeline turns uploaded archives into car drafts.
	pipeline *ingest.Pipeline

	// limiter holds per-IP hard rate limiters shared by all public routes.
	limiter *ipLimiter

	// queue passes refresh jobs from the scheduler and handlers to background workers.
	queue chan refreshJob

	// shutdown broadcasts a stop signal to background goroutines.
	shutdown chan struct{}

	// seenCache maps an xxhash of a server address to the time it was last refreshed.
	// It backs the soft limit that skips refreshes of recently probed servers.
	seenCache sync.Map

	// authToken is the secret required by administrative endpoints.
	authToken string

	// uploadDir is served under /uploads/.
	uploadDir string

	// wg waits for background workers on shutdown.
	wg sync.WaitGroup

	// sched waits for the refresh scheduler, which must stop before the queue is closed.
	sched sync.WaitGroup

	// uploadLimit is the maximum accepted archive size in bytes.
	uploadLimit int64

	// workers is the number of background refresh workers.
	workers int

	// softLimitDur is the duration for which a scheduled refresh of a server is skipped
	// after it was last refreshed.
	softLimitDur time.Duration

	// refreshInterval is the period of the background refresh of all servers, 0 disables it.
	refreshInterval time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// refreshJob asks a worker to refresh one stored server.
type refreshJob struct {
	// ID of the server row.
	ID int64

	// Key is the soft limit cache key of the server address.
	Key uint64
}
