// Package dedup decides whether a candidate item was already queued for a
// workspace.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deusflow/newsqueue/internal/news"
)

// Reason names the check that matched.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonURL      Reason = "url"
	ReasonHeadline Reason = "headline"
	ReasonPrefix   Reason = "headline_prefix"
)

// DefaultPrefixLength is the number of leading headline runes compared.
const DefaultPrefixLength = 50

// Store is the slice of the queue store the index queries.
type Store interface {
	HasSourceURL(ctx context.Context, workspaceID int64, urls ...string) (bool, error)
	HasHeadline(ctx context.Context, workspaceID int64, headline string) (bool, error)
	HasHeadlinePrefix(ctx context.Context, workspaceID int64, prefix string, n int) (bool, error)
}

// Index checks candidates against the persisted history of a workspace.
type Index struct {
	store     Store
	prefixLen int
}

func NewIndex(store Store, prefixLen int) *Index {
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLength
	}
	return &Index{store: store, prefixLen: prefixLen}
}

// PrefixLength returns the configured prefix length in runes.
func (i *Index) PrefixLength() int { return i.prefixLen }

// IsDuplicate runs the URL, headline and headline-prefix checks in that order
// and stops at the first match. URLs compare by canonical form on both sides.
// Store errors are returned as-is.
func (i *Index) IsDuplicate(ctx context.Context, workspaceID int64, c news.CandidateItem) (bool, Reason, error) {
	if raw := strings.TrimSpace(c.URL); raw != "" {
		urls := []string{raw}
		if canonical := news.CanonicalURL(raw); canonical != raw {
			urls = append(urls, canonical)
		}
		found, err := i.store.HasSourceURL(ctx, workspaceID, urls...)
		if err != nil {
			return false, ReasonNone, fmt.Errorf("dedup url: %w", err)
		}
		if found {
			return true, ReasonURL, nil
		}
	}

	headline := strings.TrimSpace(c.Headline)
	found, err := i.store.HasHeadline(ctx, workspaceID, headline)
	if err != nil {
		return false, ReasonNone, fmt.Errorf("dedup headline: %w", err)
	}
	if found {
		return true, ReasonHeadline, nil
	}

	found, err = i.store.HasHeadlinePrefix(ctx, workspaceID, news.HeadlinePrefix(headline, i.prefixLen), i.prefixLen)
	if err != nil {
		return false, ReasonNone, fmt.Errorf("dedup headline prefix: %w", err)
	}
	if found {
		return true, ReasonPrefix, nil
	}
	return false, ReasonNone, nil
}

// Claims holds items accepted earlier in the same cycle that are not stored
// yet, so the same three checks also apply between them.
type Claims struct {
	mu        sync.Mutex
	prefixLen int
	urls      map[string]struct{}
	headlines map[string]struct{}
	prefixes  map[string]struct{}
}

func NewClaims(prefixLen int) *Claims {
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLength
	}
	return &Claims{
		prefixLen: prefixLen,
		urls:      make(map[string]struct{}),
		headlines: make(map[string]struct{}),
		prefixes:  make(map[string]struct{}),
	}
}

// Seen reports the reason c collides with a claimed item, or ReasonNone.
// It does not record c; use Mark for that.
func (cl *Claims) Seen(c news.CandidateItem) Reason {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if raw := strings.TrimSpace(c.URL); raw != "" {
		if _, ok := cl.urls[news.URLHash(raw)]; ok {
			return ReasonURL
		}
	}
	headline := strings.TrimSpace(c.Headline)
	if _, ok := cl.headlines[headline]; ok {
		return ReasonHeadline
	}
	if _, ok := cl.prefixes[news.HeadlinePrefix(headline, cl.prefixLen)]; ok {
		return ReasonPrefix
	}
	return ReasonNone
}

// Mark records c as claimed.
func (cl *Claims) Mark(c news.CandidateItem) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if raw := strings.TrimSpace(c.URL); raw != "" {
		cl.urls[news.URLHash(raw)] = struct{}{}
	}
	headline := strings.TrimSpace(c.Headline)
	cl.headlines[headline] = struct{}{}
	cl.prefixes[news.HeadlinePrefix(headline, cl.prefixLen)] = struct{}{}
}
