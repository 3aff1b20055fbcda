package news

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusNew      Status = "new"
	StatusGrouped  Status = "grouped"
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusGrouped, StatusArchived:
		return true
	}
	return false
}

const (
	// MinHeadlineRunes is the shortest headline that is eligible for the queue.
	MinHeadlineRunes = 10
	// MaxSummaryRunes bounds the plain-text summary stored with an entry.
	MaxSummaryRunes = 800
	// DefaultCategory is used when a feed has no category configured.
	DefaultCategory = "General"
)

// FeedSource is a configured feed subscription of a workspace.
type FeedSource struct {
	ID          int64
	WorkspaceID int64
	Name        string
	URL         string
	Category    string
	Enabled     bool
}

// Enclosure is a binary attachment declared by a feed entry.
type Enclosure struct {
	URL  string
	Type string
}

// CandidateItem is one parsed feed entry that has not been persisted yet.
type CandidateItem struct {
	Headline     string
	Summary      string // plain text, truncated to MaxSummaryRunes
	URL          string
	PublishedAt  time.Time
	DateKnown    bool // false when PublishedAt fell back to the fetch time
	SourceDomain string
	Category     string
	FeedURL      string

	// Image hints from the feed, used by the embedded-metadata tier.
	Media      []string
	Thumbnails []string
	Enclosures []Enclosure
	RawSummary string
	RawContent string
}

// Eligible reports whether the headline is long enough to be queued.
func (c CandidateItem) Eligible() bool {
	return len([]rune(strings.TrimSpace(c.Headline))) >= MinHeadlineRunes
}

// Image tiers, in resolution order.
const (
	TierEmbedded    = "embedded"
	TierStock       = "stock"
	TierAI          = "ai"
	TierPlaceholder = "placeholder"
)

// ImageRef is a resolved image URL plus the method label that produced it.
type ImageRef struct {
	URL    string
	Method string // "<tier>:<detail>", e.g. "stock:unsplash:keywords"
}

// Tier returns the tier part of the method label.
func (r ImageRef) Tier() string {
	tier, _, _ := strings.Cut(r.Method, ":")
	return tier
}

// QueueEntry is the persisted unit of work handed to downstream collaborators.
type QueueEntry struct {
	ID           int64
	WorkspaceID  int64
	Headline     string
	Summary      string
	SourceURL    string
	URLHash      string
	SourceDomain string
	Category     string
	PublishedAt  time.Time
	ImageURL     string
	ImageMethod  string
	Status       Status
	FetchedAt    time.Time
}

// NewQueueEntry promotes a candidate to a queue entry with status new.
func NewQueueEntry(workspaceID int64, c CandidateItem, img ImageRef, now time.Time) QueueEntry {
	category := c.Category
	if category == "" {
		category = DefaultCategory
	}
	return QueueEntry{
		WorkspaceID:  workspaceID,
		Headline:     strings.TrimSpace(c.Headline),
		Summary:      c.Summary,
		SourceURL:    c.URL,
		URLHash:      URLHash(c.URL),
		SourceDomain: c.SourceDomain,
		Category:     category,
		PublishedAt:  c.PublishedAt,
		ImageURL:     img.URL,
		ImageMethod:  img.Method,
		Status:       StatusNew,
		FetchedAt:    now,
	}
}

// Draft is an authoring artifact that references a queue entry.
// Only the retention sweeper touches drafts here.
type Draft struct {
	ID          int64
	WorkspaceID int64
	NewsID      int64
	Title       string
	CreatedAt   time.Time
}
