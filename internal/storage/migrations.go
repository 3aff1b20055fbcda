package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	version int
	name    string
	sql     string
}

// Migrations are applied in order and recorded in schema_migrations.
// Never edit an applied migration; add a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "workspaces_feeds_queue",
		sql: `
		CREATE TABLE IF NOT EXISTS workspaces (
			id BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS feed_sources (
			id BIGSERIAL PRIMARY KEY,
			workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT 'General',
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (workspace_id, url)
		);

		CREATE TABLE IF NOT EXISTS news_queue (
			id BIGSERIAL PRIMARY KEY,
			workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			headline TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			url_hash VARCHAR(64) NOT NULL,
			source_domain VARCHAR(255) NOT NULL DEFAULT '',
			category VARCHAR(100) NOT NULL DEFAULT 'General',
			published_at TIMESTAMPTZ NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			image_method VARCHAR(100) NOT NULL DEFAULT '',
			verified_score INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'grouped', 'archived')),
			fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_news_queue_ws_url ON news_queue(workspace_id, source_url);
		CREATE INDEX IF NOT EXISTS idx_news_queue_ws_hash ON news_queue(workspace_id, url_hash);
		CREATE INDEX IF NOT EXISTS idx_news_queue_ws_headline ON news_queue(workspace_id, headline);
		CREATE INDEX IF NOT EXISTS idx_news_queue_ws_status_fetched ON news_queue(workspace_id, status, fetched_at);
		`,
	},
	{
		version: 2,
		name:    "ai_drafts",
		sql: `
		CREATE TABLE IF NOT EXISTS ai_drafts (
			id BIGSERIAL PRIMARY KEY,
			workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			news_id BIGINT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_ai_drafts_ws_news ON ai_drafts(workspace_id, news_id);
		`,
	},
	{
		version: 3,
		name:    "workspace_settings",
		sql: `
		CREATE TABLE IF NOT EXISTS workspace_settings (
			workspace_id BIGINT PRIMARY KEY REFERENCES workspaces(id) ON DELETE CASCADE,
			placeholder_image_url TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`,
	},
}

// Migrate brings the schema up to the latest version.
func Migrate(ctx context.Context, db *sqlx.DB, log *slog.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
		log.Info("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

func apply(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
		return fmt.Errorf("migration %d: record: %w", m.version, err)
	}
	return tx.Commit()
}
