package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lib/pq"

	"github.com/deusflow/newsqueue/internal/config"
	"github.com/deusflow/newsqueue/internal/retry"
	"github.com/deusflow/newsqueue/internal/rss"
	"github.com/deusflow/newsqueue/internal/storage"
)

// openStore picks Postgres when DATABASE_URL is set, the JSON file store
// otherwise. The database gets a few attempts since it often starts after us.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("using file store", "path", cfg.StoreFilePath)
		fs := storage.NewFileStore(cfg.StoreFilePath)
		if err := fs.Load(); err != nil {
			return nil, fmt.Errorf("load file store: %w", err)
		}
		return fs, nil
	}

	var store *storage.PostgresStore
	err := retry.WithRetry(ctx, retry.RetryConfig{
		MaxAttempts: cfg.RetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
	}, func() error {
		s, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Warn("database not reachable yet", "error", err)
			return connectError(err)
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("using postgres store")
	return store, nil
}

// connectError marks failures another attempt cannot fix: rejected
// credentials or a database that does not exist.
func connectError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28", "3D":
			return retry.Permanent(err)
		}
	}
	return err
}

// seed applies the YAML feed file. A missing file only ensures the default
// workspace exists.
func seed(ctx context.Context, store storage.Store, cfg *config.Config, log *slog.Logger) error {
	file, err := rss.LoadFeeds(cfg.FeedsConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("feed seed file not found", "path", cfg.FeedsConfigPath)
		_, err := store.EnsureWorkspace(ctx, cfg.DefaultWorkspace)
		return err
	}
	if err != nil {
		return err
	}
	return applySeed(ctx, store, file, log)
}

func applySeed(ctx context.Context, store storage.Store, file *rss.SeedFile, log *slog.Logger) error {
	for _, ws := range file.Workspaces {
		id, err := store.EnsureWorkspace(ctx, ws.Name)
		if err != nil {
			return fmt.Errorf("ensure workspace %q: %w", ws.Name, err)
		}
		if ws.PlaceholderImage != "" {
			if err := store.SetPlaceholderImage(ctx, id, ws.PlaceholderImage); err != nil {
				return fmt.Errorf("set placeholder for %q: %w", ws.Name, err)
			}
		}
		for _, f := range ws.Feeds {
			if _, err := store.UpsertFeedSource(ctx, f.Source(id)); err != nil {
				return fmt.Errorf("upsert feed %s: %w", f.URL, err)
			}
		}
		log.Info("workspace seeded", "workspace", ws.Name, "id", id, "feeds", len(ws.Feeds))
	}
	return nil
}
