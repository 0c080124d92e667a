package server

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// softKey hashes the address of a server; servers without one are keyed by id.
func softKey(id int64, ip, port string) uint64 {
	if ip == "" || port == "" {
		return xxhash.Sum64String("id:" + strconv.FormatInt(id, 10))
	}

	return xxhash.Sum64String(net.JoinHostPort(ip, port))
}

// recentlyRefreshed reports whether key was refreshed within the soft limit.
func (s *Server) recentlyRefreshed(key uint64) bool {
	val, ok := s.seenCache.Load(key)
	if !ok {
		return false
	}
	lastSeen, ok := val.(time.Time)

	return ok && time.Since(lastSeen) < s.softLimitDur
}

// markRefreshed records a refresh of the server at ip:port.
func (s *Server) markRefreshed(ip, port string) {
	if ip == "" || port == "" {
		return
	}
	s.seenCache.Store(softKey(0, ip, port), time.Now())
}

// enqueue hands a refresh to the workers unless it hit the soft limit or the queue is full.
func (s *Server) enqueue(job refreshJob) bool {
	if s.recentlyRefreshed(job.Key) {
		log.Trace().Int64("id", job.ID).Msg("Refresh dropped by soft limit hit")
		return false
	}

	select {
	case s.queue <- job:
		return true
	default:
		log.Warn().Int64("id", job.ID).Msg("Queue full, refresh dropped")
		return false
	}
}

// scheduleRefresh enqueues every stored server each refresh interval.
func (s *Server) scheduleRefresh() {
	defer s.sched.Done()

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.enqueueAll()
		}
	}
}

func (s *Server) enqueueAll() {
	servers, err := s.storage.ListServersSubset(false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list servers for refresh")
		return
	}

	queued := 0
	for _, srv := range servers {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if s.enqueue(refreshJob{ID: srv.ID, Key: softKey(srv.ID, srv.ServerIP, srv.HTTPPort)}) {
			queued++
		}
	}

	log.Debug().Int("servers", len(servers)).Int("queued", queued).Msg("Scheduled status refresh")
}

// worker is a background goroutine that processes jobs from the refresh queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob refreshes one server. Probe timeouts bound its duration.
func (s *Server) processJob(job refreshJob) {
	res, err := s.status.Refresh(context.Background(), job.ID)
	if err != nil {
		log.Debug().Err(err).Int64("id", job.ID).Msg("Scheduled refresh failed")
		s.seenCache.Store(job.Key, time.Now())
		return
	}

	s.markRefreshed(res.Server.ServerIP, res.Server.HTTPPort)
	s.seenCache.Store(job.Key, time.Now())
}
