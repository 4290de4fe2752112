package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/watchx/internal/catalog"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/urfave/cli/v3"
)

// CachePrune drops expired pages and details from the catalog cache.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Catalog.CachePath
	if path == "" {
		return fmt.Errorf("%w: catalog.cache_path is not set", shared.ErrMissingConfig)
	}

	cache, err := catalog.OpenCache(path, r.config.Catalog.CacheTTL.Duration)
	if err != nil {
		return err
	}
	defer cache.Close()

	removed, err := cache.Prune()
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}

	r.logger.Info("pruned catalog cache", "path", path, "removed", removed)
	r.writePlain("✓ Removed %d expired entries from %s\n", removed, path)
	return nil
}
