package app

import (
	"context"
	"fmt"
	"net/url"

	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/storage"
)

// WorkspaceStatus is one line of the storage check.
type WorkspaceStatus struct {
	ID       int64
	Feeds    int
	New      int
	Archived int
}

// Check pings the store and counts feeds and entries per workspace. It backs
// the -check flag used to verify a deployment's database.
func (a *App) Check(ctx context.Context) ([]WorkspaceStatus, error) {
	return checkStore(ctx, a.store)
}

func checkStore(ctx context.Context, store storage.Store) ([]WorkspaceStatus, error) {
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping store: %w", err)
	}
	ids, err := store.WorkspaceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}

	out := make([]WorkspaceStatus, 0, len(ids))
	for _, id := range ids {
		st := WorkspaceStatus{ID: id}
		feeds, err := store.EnabledFeeds(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("workspace %d feeds: %w", id, err)
		}
		st.Feeds = len(feeds)

		entries, err := store.ListEntries(ctx, storage.EntryFilter{WorkspaceID: id})
		if err != nil {
			return nil, fmt.Errorf("workspace %d entries: %w", id, err)
		}
		for _, e := range entries {
			switch e.Status {
			case news.StatusNew:
				st.New++
			case news.StatusArchived:
				st.Archived++
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// StoreLabel names the configured backend with credentials hidden.
func (a *App) StoreLabel() string {
	if a.cfg.DatabaseURL == "" {
		return "file:" + a.cfg.StoreFilePath
	}
	return maskDSN(a.cfg.DatabaseURL)
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "postgres (unparsable DSN)"
	}
	return u.Redacted()
}
