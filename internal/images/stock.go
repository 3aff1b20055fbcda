package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/deusflow/newsqueue/internal/cache"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/scraper"
)

// Provider kinds.
const (
	// KindRedirect providers answer a query by redirecting to an image.
	KindRedirect = "redirect"
	// KindHTML providers return a result page that has to be scraped.
	KindHTML = "html"
)

// StockProvider is a public image search endpoint. URL contains {query}.
type StockProvider struct {
	Name string
	Kind string
	URL  string
}

type StockConfig struct {
	Providers     []StockProvider
	Timeout       time.Duration
	CacheTTL      time.Duration
	RatePerSecond float64 // per provider; <= 0 = unlimited
	KeywordLimit  int
	Concurrency   int
}

// Stock searches stock photo providers, first with the whole cleaned
// headline and then with a few keywords.
type Stock struct {
	providers    []StockProvider
	limiters     []*rate.Limiter
	client       *http.Client
	cache        *cache.Cache[string]
	ttl          time.Duration
	timeout      time.Duration
	keywordLimit int
	sem          *semaphore.Weighted
	requests     atomic.Int64
	log          *slog.Logger
}

func NewStock(cfg StockConfig, c *cache.Cache[string], log *slog.Logger) *Stock {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if cfg.KeywordLimit <= 0 {
		cfg.KeywordLimit = 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if c == nil {
		c = cache.New[string]()
	}
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	limiters := make([]*rate.Limiter, len(cfg.Providers))
	for i := range limiters {
		limiters[i] = rate.NewLimiter(limit, 1)
	}

	return &Stock{
		providers:    cfg.Providers,
		limiters:     limiters,
		client:       &http.Client{Timeout: cfg.Timeout},
		cache:        c,
		ttl:          cfg.CacheTTL,
		timeout:      cfg.Timeout,
		keywordLimit: cfg.KeywordLimit,
		sem:          semaphore.NewWeighted(int64(cfg.Concurrency)),
		log:          log,
	}
}

func (s *Stock) Name() string { return news.TierStock }

// Requests counts outbound provider requests, cache hits excluded.
func (s *Stock) Requests() int64 { return s.requests.Load() }

func (s *Stock) Find(ctx context.Context, c news.CandidateItem, accept Acceptor) (news.ImageRef, bool) {
	if len(s.providers) == 0 {
		return news.ImageRef{}, false
	}

	query := news.CleanQuery(c.Headline)
	if query != "" {
		if ref, ok := s.search(ctx, query, "", accept); ok {
			return ref, true
		}
	}

	keywords := strings.Join(news.Keywords(c.Headline, s.keywordLimit), " ")
	if keywords == "" || strings.EqualFold(keywords, query) {
		return news.ImageRef{}, false
	}
	return s.search(ctx, keywords, ":keywords", accept)
}

func (s *Stock) search(ctx context.Context, query, suffix string, accept Acceptor) (news.ImageRef, bool) {
	for i, p := range s.providers {
		if ctx.Err() != nil {
			return news.ImageRef{}, false
		}
		if u, ok := s.lookup(ctx, i, query, accept); ok {
			return news.ImageRef{URL: u, Method: news.TierStock + ":" + p.Name + suffix}, true
		}
	}
	return news.ImageRef{}, false
}

// lookup answers from cache when possible. Misses are cached too, transport
// failures are not. Cached hits still go through accept.
func (s *Stock) lookup(ctx context.Context, i int, query string, accept Acceptor) (string, bool) {
	p := s.providers[i]
	key := cache.Key(p.Name, strings.ToLower(query))
	if u, ok := s.cache.Get(key); ok {
		return u, u != "" && accept(ctx, u)
	}

	hits, err := s.fetch(ctx, i, query)
	if err != nil {
		s.log.Warn("stock provider failed", "provider", p.Name, "query", query, "error", err)
		return "", false
	}

	for _, u := range hits {
		if accept(ctx, u) {
			s.cache.Set(key, u, s.ttl)
			return u, true
		}
	}
	s.cache.Set(key, "", s.ttl)
	return "", false
}

func (s *Stock) fetch(ctx context.Context, i int, query string) ([]string, error) {
	p := s.providers[i]

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if err := s.limiters[i].Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := expandTemplate(p.URL, query)
	s.requests.Add(1)

	switch p.Kind {
	case KindRedirect:
		return s.followRedirect(ctx, target)
	case KindHTML:
		page, err := scraper.ExtractImages(ctx, s.client, target)
		if err != nil {
			return nil, err
		}
		return page.Images, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}

// followRedirect returns the URL the provider finally landed on. It has to
// pass the same validation as any other candidate.
func (s *Stock) followRedirect(ctx context.Context, target string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newsqueue/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return []string{final}, nil
}

// expandTemplate substitutes {query}, escaping for the path or the query
// string depending on where the placeholder sits.
func expandTemplate(tmpl, query string) string {
	at := strings.Index(tmpl, "{query}")
	q := strings.Index(tmpl, "?")
	var escaped string
	if q >= 0 && q < at {
		escaped = url.QueryEscape(query)
	} else {
		escaped = url.PathEscape(query)
	}
	return strings.ReplaceAll(tmpl, "{query}", escaped)
}
