// Package maintenance provide tools for clean and update database
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/config"
	"github.com/woozymasta/mcstatus/internal/models"
)

// Store is the part of the repository maintenance works on.
type Store interface {
	GetServers() ([]models.Server, error)
	PruneOffline(before time.Time) (int64, error)
}

// Resolver resolves live status. *status.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, q models.ServerQuery) *models.StatusResult
}

// Recorder stores a resolution result. *registry.Registry implements it.
type Recorder interface {
	Record(ctx context.Context, host string, port uint16, res *models.StatusResult) error
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store Store, engine Resolver, rec Recorder) bool {
	// Prune Offline
	if cfg.Storage.PruneOffline > 0 {
		before := time.Now().Add(-cfg.Storage.PruneOffline)
		log.Info().Time("before", before).Msg("Pruning servers not online since...")

		count, err := store.PruneOffline(before)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if !cfg.Storage.CheckAll {
		// No flags set
		return false
	}

	log.Info().Msg("Fetching all servers for re-check...")
	servers, err := store.GetServers()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		return true
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return true
	}

	workers := max(cfg.Server.Workers, 1)
	log.Info().Int("count", len(servers)).Int("workers", workers).Msg("Starting 'Check All' task...")
	runWorkerPool(ctx, servers, workers, engine, rec)
	log.Info().Msg("Maintenance task completed")

	return true
}

func runWorkerPool(ctx context.Context, servers []models.Server, workers int, engine Resolver, rec Recorder) {
	jobs := make(chan models.Server, len(servers))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for srv := range jobs {
				processServer(ctx, srv, engine, rec)
			}
		}()
	}

	// Send jobs
	for _, srv := range servers {
		jobs <- srv
	}
	close(jobs)

	wg.Wait()
}

// queryFor rebuilds the request a tracked server was recorded with.
func queryFor(srv models.Server) models.ServerQuery {
	q := models.ServerQuery{Host: srv.Host, Family: models.FamilyJava}
	if srv.Port > 0 && srv.Port <= 65535 {
		q.Port = uint16(srv.Port)
	}
	if srv.Type == models.FamilyBedrock {
		q.Family = models.FamilyBedrock
	}
	return q
}

func processServer(ctx context.Context, srv models.Server, engine Resolver, rec Recorder) {
	logCtx := log.With().
		Str("host", srv.Host).
		Int("port", srv.Port).
		Logger()

	if ctx.Err() != nil {
		return
	}

	q := queryFor(srv)
	res := engine.Resolve(ctx, q)

	if err := rec.Record(ctx, q.Host, q.Port, res); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
		return
	}

	logCtx.Trace().Bool("online", res.Online).Msg("Server updated successfully")
}
