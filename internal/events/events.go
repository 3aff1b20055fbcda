// Package events announces newly queued entries to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/deusflow/newsqueue/internal/news"
)

// EntryCreated is published once per inserted queue entry.
type EntryCreated struct {
	CycleID     string    `json:"cycle_id"`
	WorkspaceID int64     `json:"workspace_id"`
	EntryID     int64     `json:"entry_id"`
	Headline    string    `json:"headline"`
	SourceURL   string    `json:"source_url"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	ImageMethod string    `json:"image_method"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func NewEntryCreated(cycleID string, e news.QueueEntry) EntryCreated {
	return EntryCreated{
		CycleID:     cycleID,
		WorkspaceID: e.WorkspaceID,
		EntryID:     e.ID,
		Headline:    e.Headline,
		SourceURL:   e.SourceURL,
		Category:    e.Category,
		ImageURL:    e.ImageURL,
		ImageMethod: e.ImageMethod,
		PublishedAt: e.PublishedAt,
		FetchedAt:   e.FetchedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev EntryCreated) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, EntryCreated) error { return nil }
func (Nop) Close() error                                { return nil }
