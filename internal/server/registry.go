package server

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/models"
)

// recordTimeout bounds the address lookup and write of one registry job.
const recordTimeout = 10 * time.Second

// enqueue hands a resolution result to the registry workers. Servers recorded within
// the soft window are skipped. A full queue or stopped workers drop the job instead of
// blocking the request.
func (s *Server) enqueue(q models.ServerQuery, res *models.StatusResult) {
	if s.registry == nil {
		return
	}

	// Soft Limit
	softKey := xxhash.Sum64String(q.Host + ":" + strconv.Itoa(int(q.Port)))
	if val, ok := s.seenCache.Load(softKey); ok {
		if lastSeen, ok := val.(time.Time); ok && time.Since(lastSeen) < s.softLimitDur {
			log.Trace().
				Str("host", q.Host).
				Uint16("port", q.Port).
				Msg("Dropped by soft limit hit")
			return
		}
	}
	s.seenCache.Store(softKey, time.Now())

	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.stopped {
		log.Debug().
			Str("host", q.Host).
			Uint16("port", q.Port).
			Msg("Workers stopped, registry update dropped")
		return
	}

	select {
	case s.queue <- registryJob{Query: q, Result: res}:
	default:
		log.Warn().
			Str("host", q.Host).
			Uint16("port", q.Port).
			Msg("Queue full, registry update dropped")
	}
}

// worker is a background goroutine that processes jobs from the registry queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.processJob(job)
	}
}

// processJob records a single resolution result.
func (s *Server) processJob(job registryJob) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.registry.Record(ctx, job.Query.Host, job.Query.Port, job.Result); err != nil {
		log.Error().Err(err).Str("host", job.Query.Host).Msg("Failed to save server to DB")
	}
}
