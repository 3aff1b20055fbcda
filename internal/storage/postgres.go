package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/deusflow/newsqueue/internal/news"
)

// PostgresStore keeps the queue in PostgreSQL.
type PostgresStore struct {
	db  *sqlx.DB
	sb  sq.StatementBuilderType
	log *slog.Logger
}

type dbFeedSource struct {
	ID          int64  `db:"id"`
	WorkspaceID int64  `db:"workspace_id"`
	Name        string `db:"name"`
	URL         string `db:"url"`
	Category    string `db:"category"`
	Enabled     bool   `db:"enabled"`
}

type dbEntry struct {
	ID           int64     `db:"id"`
	WorkspaceID  int64     `db:"workspace_id"`
	Headline     string    `db:"headline"`
	Summary      string    `db:"summary"`
	SourceURL    string    `db:"source_url"`
	URLHash      string    `db:"url_hash"`
	SourceDomain string    `db:"source_domain"`
	Category     string    `db:"category"`
	PublishedAt  time.Time `db:"published_at"`
	ImageURL     string    `db:"image_url"`
	ImageMethod  string    `db:"image_method"`
	Status       string    `db:"status"`
	FetchedAt    time.Time `db:"fetched_at"`
}

var entryColumns = []string{
	"id", "workspace_id", "headline", "summary", "source_url", "url_hash", "source_domain",
	"category", "published_at", "image_url", "image_method", "status", "fetched_at",
}

// NewPostgresStore connects, pings and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string, log *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(ctx, db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info("PostgreSQL store connected")
	return &PostgresStore{
		db:  db,
		sb:  statementBuilder(),
		log: log,
	}, nil
}

func statementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) EnsureWorkspace(ctx context.Context, name string) (int64, error) {
	query, args, err := s.sb.Insert("workspaces").
		Columns("name").
		Values(strings.TrimSpace(name)).
		Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure workspace %q: %w", name, err)
	}
	return id, nil
}

func (s *PostgresStore) WorkspaceIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM workspaces ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return ids, nil
}

// UpsertFeedSource adds a feed or refreshes its name and category. The enabled
// flag is only set on insert so a feed disabled in the database stays off.
func (s *PostgresStore) UpsertFeedSource(ctx context.Context, src news.FeedSource) (int64, error) {
	category := src.Category
	if category == "" {
		category = news.DefaultCategory
	}
	query, args, err := s.sb.Insert("feed_sources").
		Columns("workspace_id", "name", "url", "category", "enabled").
		Values(src.WorkspaceID, src.Name, src.URL, category, src.Enabled).
		Suffix("ON CONFLICT (workspace_id, url) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert feed source: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) EnabledFeeds(ctx context.Context, workspaceID int64) ([]news.FeedSource, error) {
	query, args, err := s.sb.Select("id", "workspace_id", "name", "url", "category", "enabled").
		From("feed_sources").
		Where(sq.Eq{"workspace_id": workspaceID, "enabled": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbFeedSource
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	return lo.Map(rows, func(r dbFeedSource, _ int) news.FeedSource { return news.FeedSource(r) }), nil
}

// HasSourceURL matches the stored URL verbatim or by the hash of its
// canonical form, so tracking parameters and trailing slashes do not matter.
func (s *PostgresStore) HasSourceURL(ctx context.Context, workspaceID int64, urls ...string) (bool, error) {
	if len(urls) == 0 {
		return false, nil
	}
	return s.exists(ctx, s.sourceURLQuery(workspaceID, urls))
}

func (s *PostgresStore) HasHeadline(ctx context.Context, workspaceID int64, headline string) (bool, error) {
	return s.exists(ctx, s.headlineQuery(workspaceID, headline))
}

func (s *PostgresStore) HasHeadlinePrefix(ctx context.Context, workspaceID int64, prefix string, n int) (bool, error) {
	return s.exists(ctx, s.headlinePrefixQuery(workspaceID, prefix, n))
}

func (s *PostgresStore) sourceURLQuery(workspaceID int64, urls []string) sq.SelectBuilder {
	hashes := lo.Uniq(lo.Map(urls, func(u string, _ int) string { return news.URLHash(u) }))
	return s.sb.Select("1").From("news_queue").
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Or{sq.Eq{"source_url": urls}, sq.Eq{"url_hash": hashes}}).
		Limit(1)
}

func (s *PostgresStore) headlineQuery(workspaceID int64, headline string) sq.SelectBuilder {
	return s.sb.Select("1").From("news_queue").
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Eq{"headline": headline}).
		Limit(1)
}

// headlinePrefixQuery compares against a prefix built by news.HeadlinePrefix.
func (s *PostgresStore) headlinePrefixQuery(workspaceID int64, prefix string, n int) sq.SelectBuilder {
	return s.sb.Select("1").From("news_queue").
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Expr("LOWER(LEFT(headline, ?)) = ?", n, prefix)).
		Limit(1)
}

func (s *PostgresStore) exists(ctx context.Context, q sq.SelectBuilder) (bool, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = s.db.GetContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) InsertEntry(ctx context.Context, e *news.QueueEntry) error {
	status := e.Status
	if status == "" {
		status = news.StatusNew
	}
	query, args, err := s.sb.Insert("news_queue").
		Columns("workspace_id", "headline", "summary", "source_url", "url_hash", "source_domain",
			"category", "published_at", "image_url", "image_method", "status", "fetched_at").
		Values(e.WorkspaceID, e.Headline, e.Summary, e.SourceURL, e.URLHash, e.SourceDomain,
			e.Category, e.PublishedAt, e.ImageURL, e.ImageMethod, string(status), e.FetchedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	e.Status = status
	return nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, f EntryFilter) ([]news.QueueEntry, error) {
	q := s.sb.Select(entryColumns...).
		From("news_queue").
		Where(sq.Eq{"workspace_id": f.WorkspaceID}).
		OrderBy("fetched_at DESC", "id DESC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []dbEntry
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return lo.Map(rows, func(r dbEntry, _ int) news.QueueEntry {
		return news.QueueEntry{
			ID:           r.ID,
			WorkspaceID:  r.WorkspaceID,
			Headline:     r.Headline,
			Summary:      r.Summary,
			SourceURL:    r.SourceURL,
			URLHash:      r.URLHash,
			SourceDomain: r.SourceDomain,
			Category:     r.Category,
			PublishedAt:  r.PublishedAt,
			ImageURL:     r.ImageURL,
			ImageMethod:  r.ImageMethod,
			Status:       news.Status(r.Status),
			FetchedAt:    r.FetchedAt,
		}
	}), nil
}

func (s *PostgresStore) ArchiveStale(ctx context.Context, workspaceID int64, before time.Time) (int, error) {
	return s.execCount(ctx, "archive stale", s.archiveQuery(workspaceID, before))
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, workspaceID int64, before time.Time) (int, error) {
	return s.execCount(ctx, "purge entries", s.purgeQuery(workspaceID, before))
}

func (s *PostgresStore) archiveQuery(workspaceID int64, before time.Time) sq.UpdateBuilder {
	return s.sb.Update("news_queue").
		Set("status", string(news.StatusArchived)).
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Eq{"status": string(news.StatusNew)}).
		Where(sq.Lt{"fetched_at": before})
}

func (s *PostgresStore) purgeQuery(workspaceID int64, before time.Time) sq.DeleteBuilder {
	return s.sb.Delete("news_queue").
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where(sq.Lt{"fetched_at": before})
}

func (s *PostgresStore) AddDraft(ctx context.Context, d *news.Draft) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	query, args, err := s.sb.Insert("ai_drafts").
		Columns("workspace_id", "news_id", "title", "created_at").
		Values(d.WorkspaceID, d.NewsID, d.Title, d.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&d.ID); err != nil {
		return fmt.Errorf("add draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteOrphanDrafts(ctx context.Context, workspaceID int64) (int, error) {
	return s.execCount(ctx, "delete orphan drafts", s.orphanDraftsQuery(workspaceID))
}

func (s *PostgresStore) orphanDraftsQuery(workspaceID int64) sq.DeleteBuilder {
	return s.sb.Delete("ai_drafts").
		Where(sq.Eq{"workspace_id": workspaceID}).
		Where("NOT EXISTS (SELECT 1 FROM news_queue n WHERE n.id = ai_drafts.news_id)")
}

func (s *PostgresStore) execCount(ctx context.Context, op string, q sq.Sqlizer) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func (s *PostgresStore) PlaceholderImage(ctx context.Context, workspaceID int64) (string, error) {
	query, args, err := s.sb.Select("placeholder_image_url").
		From("workspace_settings").
		Where(sq.Eq{"workspace_id": workspaceID}).
		ToSql()
	if err != nil {
		return "", err
	}

	var url string
	err = s.db.GetContext(ctx, &url, query, args...)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && strings.TrimSpace(url) == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load placeholder: %w", err)
	}
	return url, nil
}

func (s *PostgresStore) SetPlaceholderImage(ctx context.Context, workspaceID int64, url string) error {
	query, args, err := s.sb.Insert("workspace_settings").
		Columns("workspace_id", "placeholder_image_url").
		Values(workspaceID, url).
		Suffix("ON CONFLICT (workspace_id) DO UPDATE SET placeholder_image_url = EXCLUDED.placeholder_image_url, updated_at = NOW()").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save placeholder: %w", err)
	}
	return nil
}
