// Package images finds an illustrative image for a candidate item through an
// ordered chain of tiers: embedded feed metadata, stock photo search, AI web
// search and finally a placeholder.
package images

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deusflow/newsqueue/internal/metrics"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/storage"
)

const DefaultPlaceholder = "https://placehold.co/1200x630/png?text=News"

// CleanChecker is an external image quality check, e.g. a watermark detector.
type CleanChecker interface {
	IsClean(ctx context.Context, imageURL string) bool
}

// PlaceholderSource returns the workspace placeholder or storage.ErrNotFound.
type PlaceholderSource interface {
	PlaceholderImage(ctx context.Context, workspaceID int64) (string, error)
}

// Acceptor decides whether an image URL found by a tier may be used. The
// same checks run for every tier.
type Acceptor func(ctx context.Context, imageURL string) bool

// Tier is one strategy of the chain. Find reports false when it has nothing;
// failures inside a tier are logged by the tier and never returned.
type Tier interface {
	Name() string
	Find(ctx context.Context, c news.CandidateItem, accept Acceptor) (news.ImageRef, bool)
}

type Resolver struct {
	tiers        []Tier
	placeholders PlaceholderSource
	fallback     string
	checker      CleanChecker
	metrics      *metrics.Metrics
	log          *slog.Logger
}

type Option func(*Resolver)

// WithCleanChecker consults checker after URL validation in every tier but
// the placeholder.
func WithCleanChecker(checker CleanChecker) Option {
	return func(r *Resolver) { r.checker = checker }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithDefaultPlaceholder overrides the hard-coded last resort URL.
func WithDefaultPlaceholder(url string) Option {
	return func(r *Resolver) {
		if url != "" {
			r.fallback = url
		}
	}
}

// NewResolver builds a resolver that tries tiers in the given order. Nil
// tiers are skipped, so optional tiers can be passed unconditionally.
func NewResolver(placeholders PlaceholderSource, log *slog.Logger, tiers []Tier, opts ...Option) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{
		placeholders: placeholders,
		fallback:     DefaultPlaceholder,
		metrics:      metrics.Global,
		log:          log,
	}
	for _, t := range tiers {
		if t != nil {
			r.tiers = append(r.tiers, t)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve always returns an image reference.
func (r *Resolver) Resolve(ctx context.Context, c news.CandidateItem, workspaceID int64) news.ImageRef {
	for _, tier := range r.tiers {
		if ctx.Err() != nil {
			break
		}
		if ref, ok := tier.Find(ctx, c, r.accept); ok {
			r.record(ref)
			return ref
		}
		r.log.Debug("image tier found nothing", "tier", tier.Name(), "headline", c.Headline)
	}

	ref := r.placeholder(ctx, workspaceID)
	r.record(ref)
	return ref
}

func (r *Resolver) accept(ctx context.Context, imageURL string) bool {
	if !ValidImageURL(imageURL) {
		return false
	}
	if r.checker != nil && !r.checker.IsClean(ctx, imageURL) {
		r.log.Debug("image rejected by clean check", "url", imageURL)
		return false
	}
	return true
}

func (r *Resolver) placeholder(ctx context.Context, workspaceID int64) news.ImageRef {
	if r.placeholders != nil {
		url, err := r.placeholders.PlaceholderImage(context.WithoutCancel(ctx), workspaceID)
		switch {
		case err == nil && url != "":
			return news.ImageRef{URL: url, Method: news.TierPlaceholder + ":workspace"}
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			r.log.Warn("failed to load workspace placeholder", "workspace", workspaceID, "error", err)
		}
	}
	return news.ImageRef{URL: r.fallback, Method: news.TierPlaceholder + ":default"}
}

func (r *Resolver) record(ref news.ImageRef) {
	if r.metrics != nil {
		r.metrics.RecordImage(ref.Tier(), ref.Method)
	}
}
