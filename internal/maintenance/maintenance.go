// Package maintenance provides one-shot catalog tasks: status re-probing and pruning of cars with missing archives.
package maintenance

import (
	"context"
	"errors"
	"os"

	"github.com/acrc-community/acrc/internal/config"
	"github.com/acrc-community/acrc/internal/game"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/acrc-community/acrc/internal/status"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/rs/zerolog/log"
)

// Run checks if any maintenance flags are set and executes the corresponding task.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository) bool {
	if cfg.Storage.PruneMissing {
		log.Info().Msg("Pruning cars with missing archives...")

		count, err := PruneMissing(store)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune cars")
		} else {
			log.Info().Int("deleted", count).Msg("Prune finished")
		}

		return true
	}

	var taskName string
	switch {
	case cfg.Storage.RefreshOffline:
		taskName = "Refresh Offline"
	case cfg.Storage.RefreshAll:
		taskName = "Refresh All"
	default:
		return false
	}

	servers, err := store.ListServersSubset(cfg.Storage.RefreshOffline)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		return true
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for maintenance")
		return true
	}

	log.Info().
		Int("count", len(servers)).
		Int("workers", cfg.Probe.Workers).
		Msgf("Starting '%s' task...", taskName)

	sum := Refresh(ctx, status.New(store, game.New(cfg.Probe), nil), servers, cfg.Probe.Workers)

	log.Info().
		Int("online", sum.Online).
		Int("offline", sum.Offline).
		Int("failed", sum.Failed).
		Msg("Maintenance task completed")

	return true
}

// Refresh re-probes servers with a bounded worker pool.
func Refresh(ctx context.Context, svc *status.Service, servers []models.Server, workers int) status.Summary {
	ids := make([]int64, 0, len(servers))
	for _, s := range servers {
		ids = append(ids, s.ID)
	}

	return svc.RefreshMany(ctx, ids, workers)
}

// PruneMissing deletes cars whose archive file is on record but gone from disk.
// Entries without a file path are kept.
func PruneMissing(store *storage.Repository) (int, error) {
	cars, err := store.ListCars("")
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, car := range cars {
		if car.FilePath == "" {
			continue
		}

		_, err := os.Stat(car.FilePath)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			continue
		}

		logCtx := log.With().Int64("id", car.ID).Str("path", car.FilePath).Logger()
		if err := store.DeleteCar(car.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logCtx.Error().Err(err).Msg("Failed to delete car")
			continue
		}

		logCtx.Debug().Msg("Car with missing archive deleted")
		deleted++
	}

	return deleted, nil
}
