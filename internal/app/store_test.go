package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/config"
	"github.com/deusflow/newsqueue/internal/logger"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/retry"
	"github.com/deusflow/newsqueue/internal/storage"
)

const seedYAML = `workspaces:
  - name: Nordic Desk
    placeholder_image: https://img.example.com/nordic.png
    feeds:
      - name: DR Nyheder
        url: https://www.dr.dk/nyheder/service/feeds/allenyheder
        category: Denmark
      - url: https://feeds.example.com/paused.xml
        enabled: false
`

func TestSeedAppliesFeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	ctx := context.Background()
	cfg := &config.Config{
		StoreFilePath:   filepath.Join(dir, "queue.json"),
		FeedsConfigPath: path,
	}
	store, err := openStore(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.IsType(t, &storage.FileStore{}, store)

	require.NoError(t, seed(ctx, store, cfg, logger.Nop()))
	// seeding twice does not duplicate anything
	require.NoError(t, seed(ctx, store, cfg, logger.Nop()))

	ids, err := store.WorkspaceIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	feeds, err := store.EnabledFeeds(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, "DR Nyheder", feeds[0].Name)
	require.Equal(t, "Denmark", feeds[0].Category)

	placeholder, err := store.PlaceholderImage(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, "https://img.example.com/nordic.png", placeholder)

	_, err = os.Stat(cfg.StoreFilePath)
	require.NoError(t, err)
}

func TestSeedWithoutFileCreatesDefaultWorkspace(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	cfg := &config.Config{
		FeedsConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
		DefaultWorkspace: "Default Workspace",
	}

	require.NoError(t, seed(ctx, store, cfg, logger.Nop()))
	ids, err := store.WorkspaceIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestCheckStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, applySeedForCheck(ctx, store))

	statuses, err := checkStore(ctx, store)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, 1, statuses[0].Feeds)
	require.Equal(t, 1, statuses[0].New)
}

func applySeedForCheck(ctx context.Context, store *storage.FileStore) error {
	ws, err := store.EnsureWorkspace(ctx, "W")
	if err != nil {
		return err
	}
	if _, err := store.UpsertFeedSource(ctx, news.FeedSource{WorkspaceID: ws, URL: "https://feeds.example.com/a.xml", Enabled: true}); err != nil {
		return err
	}
	return store.InsertEntry(ctx, &news.QueueEntry{WorkspaceID: ws, Headline: "Queued headline for check", SourceURL: "https://a.example.com/x"})
}

func TestMaskDSN(t *testing.T) {
	require.Equal(t, "postgres://news:xxxxx@db:5432/news?sslmode=disable",
		maskDSN("postgres://news:secret@db:5432/news?sslmode=disable"))
	require.Equal(t, "postgres (unparsable DSN)", maskDSN("host=db user=news"))
}

func TestConnectErrorStopsRetryingOnAuthFailure(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"bad password", fmt.Errorf("failed to connect to database: %w", &pq.Error{Code: "28P01"}), 1},
		{"missing database", &pq.Error{Code: "3D000"}, 1},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), 3},
		{"server starting up", &pq.Error{Code: "57P03"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retry.WithRetry(context.Background(), retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
				calls++
				return connectError(tt.err)
			})
			require.Error(t, err)
			require.Equal(t, tt.calls, calls)
		})
	}
}
