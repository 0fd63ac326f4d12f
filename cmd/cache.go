package main

import (
	"context"
	"fmt"

	"github.com/ryantate/typingpool-sub000/internal/repositories"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/ui"
	"github.com/urfave/cli/v3"
)

// CacheCount reports how many unit snapshots the lifecycle cache holds.
func (r *Runner) CacheCount(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.openCache(cmd)
	if err != nil {
		return err
	}
	defer cache.Close()

	n, err := cache.Count(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("%d cached unit snapshot(s)", n))
}

// CacheRollback reverts the newest cache schema migration.
//
// Cached snapshots are disposable; the next command that opens the cache migrates it again.
func (r *Runner) CacheRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.CachePath())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to rollback cache schema: %w", err)
	}
	r.logger.Info("cache schema rolled back", "path", config.CachePath())
	return r.writePlain("%s\n", ui.Success("cache schema rolled back"))
}

func (r *Runner) openCache(cmd *cli.Command) (*repositories.UnitCache, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return repositories.OpenUnitCache(config.CachePath())
}

// cacheCommand inspects the lifecycle cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the lifecycle cache",
		Commands: []*cli.Command{
			{
				Name:   "count",
				Usage:  "Show the number of cached unit snapshots",
				Action: r.CacheCount,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the newest cache schema migration",
				Action: r.CacheRollback,
			},
		},
	}
}
