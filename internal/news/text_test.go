package news

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlainSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "plain", in: "Hello world", max: 800, want: "Hello world"},
		{name: "tags", in: "<p>Hello <b>big</b></p><p>world</p>", max: 800, want: "Hello big world"},
		{name: "entities", in: "Fish &amp; chips", max: 800, want: "Fish & chips"},
		{name: "whitespace", in: "a\n\n  b\t c", max: 800, want: "a b c"},
		{name: "truncated", in: "abcdefghij", max: 4, want: "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PlainSummary(tt.in, tt.max))
		})
	}
}

func TestPlainSummaryCapsAt800Runes(t *testing.T) {
	in := strings.Repeat("ж", 2000)
	got := PlainSummary(in, MaxSummaryRunes)
	require.Len(t, []rune(got), MaxSummaryRunes)
}

func TestCanonicalURL(t *testing.T) {
	require.Equal(t, "https://x.test/a", CanonicalURL("https://x.test/a/?utm_source=rss#top"))
	require.Equal(t, "https://x.test/a", CanonicalURL("https://x.test/a"))
	require.Equal(t, URLHash("https://x.test/a?x=1"), URLHash("https://x.test/a/"))
	require.Len(t, URLHash("https://x.test/a"), 64)
}

func TestKeywordsDropsStopWordsAndBoilerplate(t *testing.T) {
	got := Keywords("Apple announces the new iPhone launch event in California today", 4)
	require.Equal(t, []string{"apple", "iphone", "launch", "event"}, got)

	require.Empty(t, Keywords("The a of", 4))
}

func TestHeadlinePrefix(t *testing.T) {
	h := strings.Repeat("Ab", 40)
	require.Equal(t, strings.ToLower(h[:50]), HeadlinePrefix(h, 50))
	require.Equal(t, "short", HeadlinePrefix("  Short ", 50))

	// rune 50 is a space and stays, as with LOWER(LEFT(headline, 50))
	spaced := "Central bank raises interest rates again amid the inflation surge"
	got := HeadlinePrefix(spaced, 50)
	require.Len(t, []rune(got), 50)
	require.Equal(t, "central bank raises interest rates again amid the ", got)
	require.Empty(t, HeadlinePrefix(spaced, 0))
}

func TestDomain(t *testing.T) {
	require.Equal(t, "example.com", Domain("https://www.Example.com/news/1"))
	require.Equal(t, "", Domain("not a url"))
}

func TestCandidateEligible(t *testing.T) {
	require.False(t, CandidateItem{Headline: "Too short"}.Eligible())
	require.True(t, CandidateItem{Headline: "Long enough"}.Eligible())
}

func TestNewQueueEntry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := CandidateItem{Headline: " Example Headline Text ", URL: "https://x.test/a", SourceDomain: "x.test"}
	e := NewQueueEntry(7, c, ImageRef{URL: "https://img.test/a.jpg", Method: "embedded:media_content"}, now)

	require.Equal(t, int64(7), e.WorkspaceID)
	require.Equal(t, "Example Headline Text", e.Headline)
	require.Equal(t, StatusNew, e.Status)
	require.Equal(t, DefaultCategory, e.Category)
	require.Equal(t, URLHash("https://x.test/a"), e.URLHash)
	require.Equal(t, "embedded", ImageRef{Method: e.ImageMethod}.Tier())
}
