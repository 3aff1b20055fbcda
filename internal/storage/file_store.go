package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/deusflow/newsqueue/internal/news"
)

type workspaceRecord struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	PlaceholderImage string `json:"placeholder_image,omitempty"`
}

type fileState struct {
	NextID     int64             `json:"next_id"`
	Workspaces []workspaceRecord `json:"workspaces"`
	Feeds      []news.FeedSource `json:"feeds"`
	Entries    []news.QueueEntry `json:"entries"`
	Drafts     []news.Draft      `json:"drafts"`
}

// FileStore keeps everything in memory and, when filePath is set, mirrors it
// to a JSON file after every change. It is meant for single-process use.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	state    fileState
}

// NewFileStore creates a store backed by filePath. An empty path keeps the
// data in memory only.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// NewMemoryStore is a FileStore that never touches disk.
func NewMemoryStore() *FileStore {
	return NewFileStore("")
}

// Load loads existing data from file
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.filePath == "" {
		return nil
	}

	// Check if file exists
	if _, err := os.Stat(fs.filePath); os.IsNotExist(err) {
		// File doesn't exist, start empty
		return nil
	}

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) == 0 {
		return nil // Empty file
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}
	fs.state = state
	return nil
}

// Save writes current data to file
func (fs *FileStore) Save() error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.saveLocked()
}

func (fs *FileStore) saveLocked() error {
	if fs.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(fs.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, fs.filePath); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (fs *FileStore) nextID() int64 {
	fs.state.NextID++
	return fs.state.NextID
}

func (fs *FileStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (fs *FileStore) Close() error {
	return fs.Save()
}

func (fs *FileStore) EnsureWorkspace(_ context.Context, name string) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	name = strings.TrimSpace(name)
	if ws, ok := lo.Find(fs.state.Workspaces, func(w workspaceRecord) bool { return w.Name == name }); ok {
		return ws.ID, nil
	}
	ws := workspaceRecord{ID: fs.nextID(), Name: name}
	fs.state.Workspaces = append(fs.state.Workspaces, ws)
	return ws.ID, fs.saveLocked()
}

func (fs *FileStore) WorkspaceIDs(_ context.Context) ([]int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return lo.Map(fs.state.Workspaces, func(w workspaceRecord, _ int) int64 { return w.ID }), nil
}

func (fs *FileStore) UpsertFeedSource(_ context.Context, src news.FeedSource) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if src.Category == "" {
		src.Category = news.DefaultCategory
	}
	for i, f := range fs.state.Feeds {
		if f.WorkspaceID == src.WorkspaceID && f.URL == src.URL {
			fs.state.Feeds[i].Name = src.Name
			fs.state.Feeds[i].Category = src.Category
			return f.ID, fs.saveLocked()
		}
	}
	src.ID = fs.nextID()
	fs.state.Feeds = append(fs.state.Feeds, src)
	return src.ID, fs.saveLocked()
}

// SetFeedEnabled toggles a feed by id.
func (fs *FileStore) SetFeedEnabled(_ context.Context, feedID int64, enabled bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i := range fs.state.Feeds {
		if fs.state.Feeds[i].ID == feedID {
			fs.state.Feeds[i].Enabled = enabled
			return fs.saveLocked()
		}
	}
	return ErrNotFound
}

func (fs *FileStore) EnabledFeeds(_ context.Context, workspaceID int64) ([]news.FeedSource, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return lo.Filter(fs.state.Feeds, func(f news.FeedSource, _ int) bool {
		return f.WorkspaceID == workspaceID && f.Enabled
	}), nil
}

func (fs *FileStore) HasSourceURL(_ context.Context, workspaceID int64, urls ...string) (bool, error) {
	hashes := lo.Map(urls, func(u string, _ int) string { return news.URLHash(u) })
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return lo.ContainsBy(fs.state.Entries, func(e news.QueueEntry) bool {
		if e.WorkspaceID != workspaceID {
			return false
		}
		hash := e.URLHash
		if hash == "" {
			hash = news.URLHash(e.SourceURL)
		}
		return slices.Contains(urls, e.SourceURL) || slices.Contains(hashes, hash)
	}), nil
}

func (fs *FileStore) HasHeadline(_ context.Context, workspaceID int64, headline string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return lo.ContainsBy(fs.state.Entries, func(e news.QueueEntry) bool {
		return e.WorkspaceID == workspaceID && e.Headline == headline
	}), nil
}

func (fs *FileStore) HasHeadlinePrefix(_ context.Context, workspaceID int64, prefix string, n int) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return lo.ContainsBy(fs.state.Entries, func(e news.QueueEntry) bool {
		return e.WorkspaceID == workspaceID && news.HeadlinePrefix(e.Headline, n) == prefix
	}), nil
}

func (fs *FileStore) InsertEntry(ctx context.Context, e *news.QueueEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if e.Status == "" {
		e.Status = news.StatusNew
	}
	e.ID = fs.nextID()
	fs.state.Entries = append(fs.state.Entries, *e)
	if err := fs.saveLocked(); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (fs *FileStore) ListEntries(_ context.Context, f EntryFilter) ([]news.QueueEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := lo.Filter(fs.state.Entries, func(e news.QueueEntry, _ int) bool {
		return e.WorkspaceID == f.WorkspaceID && (f.Status == "" || e.Status == f.Status)
	})
	slices.SortStableFunc(out, func(a, b news.QueueEntry) int {
		if c := b.FetchedAt.Compare(a.FetchedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (fs *FileStore) ArchiveStale(_ context.Context, workspaceID int64, before time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := 0
	for i := range fs.state.Entries {
		e := &fs.state.Entries[i]
		if e.WorkspaceID == workspaceID && e.Status == news.StatusNew && e.FetchedAt.Before(before) {
			e.Status = news.StatusArchived
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, fs.saveLocked()
}

func (fs *FileStore) PurgeOlderThan(_ context.Context, workspaceID int64, before time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	kept := lo.Reject(fs.state.Entries, func(e news.QueueEntry, _ int) bool {
		return e.WorkspaceID == workspaceID && e.FetchedAt.Before(before)
	})
	n := len(fs.state.Entries) - len(kept)
	if n == 0 {
		return 0, nil
	}
	fs.state.Entries = kept
	return n, fs.saveLocked()
}

func (fs *FileStore) AddDraft(_ context.Context, d *news.Draft) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.ID = fs.nextID()
	fs.state.Drafts = append(fs.state.Drafts, *d)
	return fs.saveLocked()
}

func (fs *FileStore) DeleteOrphanDrafts(_ context.Context, workspaceID int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ids := make(map[int64]bool, len(fs.state.Entries))
	for _, e := range fs.state.Entries {
		ids[e.ID] = true
	}
	kept := lo.Reject(fs.state.Drafts, func(d news.Draft, _ int) bool {
		return d.WorkspaceID == workspaceID && !ids[d.NewsID]
	})
	n := len(fs.state.Drafts) - len(kept)
	if n == 0 {
		return 0, nil
	}
	fs.state.Drafts = kept
	return n, fs.saveLocked()
}

// Drafts lists the drafts of a workspace.
func (fs *FileStore) Drafts(workspaceID int64) []news.Draft {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return lo.Filter(fs.state.Drafts, func(d news.Draft, _ int) bool { return d.WorkspaceID == workspaceID })
}

func (fs *FileStore) PlaceholderImage(_ context.Context, workspaceID int64) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	ws, ok := lo.Find(fs.state.Workspaces, func(w workspaceRecord) bool { return w.ID == workspaceID })
	if !ok || strings.TrimSpace(ws.PlaceholderImage) == "" {
		return "", ErrNotFound
	}
	return ws.PlaceholderImage, nil
}

func (fs *FileStore) SetPlaceholderImage(_ context.Context, workspaceID int64, url string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i := range fs.state.Workspaces {
		if fs.state.Workspaces[i].ID == workspaceID {
			fs.state.Workspaces[i].PlaceholderImage = url
			return fs.saveLocked()
		}
	}
	return ErrNotFound
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
