package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/deusflow/newsqueue/internal/news"
)

// ErrFeedUnreachable is returned when both retrieval paths failed.
var ErrFeedUnreachable = errors.New("feed unreachable")

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	feedAccept       = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	maxFeedBytes     = 10 << 20
)

// Fetcher downloads feeds and turns their entries into candidate items.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxItems int
	log      *slog.Logger
	now      func() time.Time
}

func NewFetcher(timeout time.Duration, maxItems int, log *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxItems <= 0 {
		maxItems = 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		maxItems: maxItems,
		log:      log,
		now:      time.Now,
	}
}

// Fetch retrieves src and returns its entries as a lazy sequence of at most
// maxItems candidates. A feed that downloads but does not parse yields an
// empty sequence and no error.
func (f *Fetcher) Fetch(ctx context.Context, src news.FeedSource) (iter.Seq[news.CandidateItem], error) {
	feed, err := f.fetchPrimary(ctx, src.URL)
	if err != nil {
		var perr *parseError
		if errors.As(err, &perr) {
			f.log.Warn("feed did not parse", "feed", src.URL, "error", perr.err)
			return empty, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.log.Warn("feed request failed, trying alternate path", "feed", src.URL, "error", err)
		feed, err = f.fetchAlternate(ctx, src.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFeedUnreachable, src.URL, err)
		}
	}

	fetchedAt := f.now()
	feedHost := news.Domain(feed.Link)
	if feedHost == "" {
		feedHost = news.Domain(src.URL)
	}

	items := feed.Items
	if len(items) > f.maxItems {
		items = items[:f.maxItems]
	}

	return func(yield func(news.CandidateItem) bool) {
		for _, it := range items {
			if it == nil {
				continue
			}
			c := f.toCandidate(it, src, feedHost, fetchedAt)
			if !c.Eligible() {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}, nil
}

type parseError struct{ err error }

func (e *parseError) Error() string { return "parse feed: " + e.err.Error() }

func (f *Fetcher) fetchPrimary(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", feedAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &parseError{err: err}
	}
	return feed, nil
}

// fetchAlternate lets gofeed do the request itself, without custom headers.
func (f *Fetcher) fetchAlternate(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = f.client
	return parser.ParseURLWithContext(url, ctx)
}

func (f *Fetcher) toCandidate(it *gofeed.Item, src news.FeedSource, feedHost string, fetchedAt time.Time) news.CandidateItem {
	link := strings.TrimSpace(it.Link)
	if link == "" && len(it.Links) > 0 {
		link = strings.TrimSpace(it.Links[0])
	}

	domain := news.Domain(link)
	if domain == "" {
		domain = feedHost
	}

	raw := it.Description
	if strings.TrimSpace(raw) == "" {
		raw = it.Content
	}

	published, known := publishedAt(it)
	if !known {
		published = fetchedAt
	}

	c := news.CandidateItem{
		Headline:     news.CollapseSpace(it.Title),
		Summary:      news.PlainSummary(raw, news.MaxSummaryRunes),
		URL:          link,
		PublishedAt:  published,
		DateKnown:    known,
		SourceDomain: domain,
		Category:     src.Category,
		FeedURL:      src.URL,
		Media:        mediaURLs(it, "content"),
		Thumbnails:   mediaURLs(it, "thumbnail"),
		RawSummary:   it.Description,
		RawContent:   it.Content,
	}
	if it.Image != nil && it.Image.URL != "" && !lo.Contains(c.Media, it.Image.URL) {
		c.Thumbnails = lo.Uniq(append(c.Thumbnails, it.Image.URL))
	}
	for _, enc := range it.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		c.Enclosures = append(c.Enclosures, news.Enclosure{URL: enc.URL, Type: enc.Type})
	}
	return c
}

func publishedAt(it *gofeed.Item) (time.Time, bool) {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed, true
	}
	if it.UpdatedParsed != nil {
		return *it.UpdatedParsed, true
	}
	for _, raw := range []string{it.Published, it.Updated} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// mediaURLs collects media:<name> urls, including those nested in media:group.
func mediaURLs(it *gofeed.Item, name string) []string {
	media, ok := it.Extensions["media"]
	if !ok {
		return nil
	}

	var urls []string
	for _, e := range media[name] {
		if isImageMedia(e.Attrs) {
			urls = append(urls, e.Attrs["url"])
		}
	}
	for _, group := range media["group"] {
		for _, e := range group.Children[name] {
			if isImageMedia(e.Attrs) {
				urls = append(urls, e.Attrs["url"])
			}
		}
	}
	return lo.Uniq(lo.Compact(urls))
}

func isImageMedia(attrs map[string]string) bool {
	if attrs["url"] == "" {
		return false
	}
	if medium := attrs["medium"]; medium != "" && medium != "image" {
		return false
	}
	if typ := attrs["type"]; typ != "" && !strings.HasPrefix(typ, "image/") {
		return false
	}
	return true
}

func empty(func(news.CandidateItem) bool) {}
