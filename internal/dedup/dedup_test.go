package dedup_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/dedup"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/storage"
)

type fakeStore struct {
	urls      []string
	headlines []string
	err       error
}

func (f *fakeStore) HasSourceURL(_ context.Context, _ int64, urls ...string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, stored := range f.urls {
		for _, u := range urls {
			if stored == u {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeStore) HasHeadline(_ context.Context, _ int64, headline string) (bool, error) {
	for _, h := range f.headlines {
		if h == headline {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasHeadlinePrefix(_ context.Context, _ int64, prefix string, n int) (bool, error) {
	for _, h := range f.headlines {
		if news.HeadlinePrefix(h, n) == prefix {
			return true, nil
		}
	}
	return false, nil
}

const longHeadline = "European Central Bank holds interest rates steady as inflation cools further"

func TestIndexIsDuplicate(t *testing.T) {
	store := &fakeStore{
		urls:      []string{"https://news.example.com/a"},
		headlines: []string{longHeadline},
	}
	idx := dedup.NewIndex(store, 50)
	ctx := context.Background()

	tests := []struct {
		name   string
		item   news.CandidateItem
		dup    bool
		reason dedup.Reason
	}{
		{
			name:   "same url with tracking query",
			item:   news.CandidateItem{Headline: "Something else entirely here", URL: "https://news.example.com/a/?utm_source=rss"},
			dup:    true,
			reason: dedup.ReasonURL,
		},
		{
			name:   "exact headline",
			item:   news.CandidateItem{Headline: longHeadline, URL: "https://other.example.com/b"},
			dup:    true,
			reason: dedup.ReasonHeadline,
		},
		{
			name:   "same first 50 runes",
			item:   news.CandidateItem{Headline: longHeadline[:50] + " and markets rally", URL: "https://other.example.com/c"},
			dup:    true,
			reason: dedup.ReasonPrefix,
		},
		{
			name:   "prefix compare ignores case",
			item:   news.CandidateItem{Headline: strings.ToUpper(longHeadline[:50]) + "!", URL: "https://other.example.com/d"},
			dup:    true,
			reason: dedup.ReasonPrefix,
		},
		{
			name: "fresh item",
			item: news.CandidateItem{Headline: "Completely different headline about sport", URL: "https://other.example.com/e"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup, reason, err := idx.IsDuplicate(ctx, 1, tt.item)
			require.NoError(t, err)
			require.Equal(t, tt.dup, dup)
			require.Equal(t, tt.reason, reason)
		})
	}
}

func TestIndexMatchesCanonicalFormOfStoredURL(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for i, u := range []string{"https://x.test/a/", "https://x.test/b?utm=rss"} {
		e := news.NewQueueEntry(1, news.CandidateItem{Headline: fmt.Sprintf("Stored headline number %d", i), URL: u}, news.ImageRef{}, time.Now())
		require.NoError(t, store.InsertEntry(ctx, &e))
	}
	idx := dedup.NewIndex(store, 50)

	for _, u := range []string{"https://x.test/a", "https://x.test/b"} {
		dup, reason, err := idx.IsDuplicate(ctx, 1, news.CandidateItem{Headline: "A different headline for " + u, URL: u})
		require.NoError(t, err)
		require.True(t, dup, u)
		require.Equal(t, dedup.ReasonURL, reason)
	}
}

func TestIndexPrefixWithSpaceAtCut(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	stored := "Central bank raises interest rates again amid the inflation surge"
	e := news.NewQueueEntry(1, news.CandidateItem{Headline: stored, URL: "https://x.test/1"}, news.ImageRef{}, time.Now())
	require.NoError(t, store.InsertEntry(ctx, &e))

	dup, reason, err := dedup.NewIndex(store, 50).IsDuplicate(ctx, 1, news.CandidateItem{
		Headline: "Central bank raises interest rates again amid the inflation fears",
		URL:      "https://y.test/2",
	})
	require.NoError(t, err)
	require.True(t, dup)
	require.Equal(t, dedup.ReasonPrefix, reason)
}

func TestIndexPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	idx := dedup.NewIndex(&fakeStore{err: boom}, 0)

	_, _, err := idx.IsDuplicate(context.Background(), 1, news.CandidateItem{Headline: longHeadline, URL: "https://x.test/a"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, dedup.DefaultPrefixLength, idx.PrefixLength())
}

func TestClaims(t *testing.T) {
	claims := dedup.NewClaims(50)
	first := news.CandidateItem{Headline: longHeadline, URL: "https://news.example.com/a"}

	require.Equal(t, dedup.ReasonNone, claims.Seen(first))
	claims.Mark(first)

	require.Equal(t, dedup.ReasonURL, claims.Seen(news.CandidateItem{Headline: "Unrelated but long headline", URL: "https://news.example.com/a/"}))
	require.Equal(t, dedup.ReasonHeadline, claims.Seen(news.CandidateItem{Headline: longHeadline, URL: "https://b.example.com/"}))
	require.Equal(t, dedup.ReasonPrefix, claims.Seen(news.CandidateItem{Headline: longHeadline[:50] + " again", URL: "https://c.example.com/"}))
	require.Equal(t, dedup.ReasonNone, claims.Seen(news.CandidateItem{Headline: "Unrelated but long headline", URL: "https://d.example.com/"}))

	claims.Mark(news.CandidateItem{Headline: "Slash first then bare", URL: "https://x.test/p/?utm=rss"})
	require.Equal(t, dedup.ReasonURL, claims.Seen(news.CandidateItem{Headline: "Another unrelated headline", URL: "https://x.test/p"}))
}
