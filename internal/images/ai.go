package images

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/deusflow/newsqueue/internal/aisearch"
	"github.com/deusflow/newsqueue/internal/metrics"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/ratelimit"
)

// Searcher is a search-augmented model that replies with image URLs in text.
type Searcher interface {
	Name() string
	// FiltersDomains reports whether the backend applies the domain
	// allow-list itself.
	FiltersDomains() bool
	Search(ctx context.Context, headline, category string) (string, error)
}

type AIConfig struct {
	AllowedDomains []string
	Timeout        time.Duration
	Concurrency    int
}

// AI is the web search tier. It spends one budget unit per call.
type AI struct {
	searcher Searcher
	budget   *ratelimit.Budget
	allowed  []string
	timeout  time.Duration
	sem      *semaphore.Weighted
	metrics  *metrics.Metrics
	calls    atomic.Int64
	log      *slog.Logger
}

func NewAI(searcher Searcher, budget *ratelimit.Budget, cfg AIConfig, m *metrics.Metrics, log *slog.Logger) *AI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &AI{
		searcher: searcher,
		budget:   budget,
		allowed:  cfg.AllowedDomains,
		timeout:  cfg.Timeout,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		metrics:  m,
		log:      log,
	}
}

func (a *AI) Name() string { return news.TierAI }

// Calls counts searcher invocations.
func (a *AI) Calls() int64 { return a.calls.Load() }

func (a *AI) Find(ctx context.Context, c news.CandidateItem, accept Acceptor) (news.ImageRef, bool) {
	if a.searcher == nil {
		return news.ImageRef{}, false
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return news.ImageRef{}, false
	}
	defer a.sem.Release(1)

	if a.budget != nil {
		if err := a.budget.Use(); err != nil {
			a.log.Debug("ai search skipped", "reason", err)
			return news.ImageRef{}, false
		}
	}

	a.calls.Add(1)
	if a.metrics != nil {
		a.metrics.IncrementAIAttempts()
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.searcher.Search(ctx, c.Headline, c.Category)
	if err != nil {
		a.log.Warn("ai search failed", "backend", a.searcher.Name(), "error", err)
		return news.ImageRef{}, false
	}

	for _, u := range aisearch.ExtractImageURLs(reply) {
		if !a.searcher.FiltersDomains() && !aisearch.AllowedHost(u, a.allowed) {
			a.log.Debug("ai result outside allow-list", "url", u)
			continue
		}
		if accept(ctx, u) {
			if a.metrics != nil {
				a.metrics.IncrementAIHits()
			}
			return news.ImageRef{URL: u, Method: news.TierAI + ":" + a.searcher.Name()}, true
		}
	}
	return news.ImageRef{}, false
}
