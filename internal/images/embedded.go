package images

import (
	"context"
	"path"
	"strings"

	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/scraper"
)

// Embedded reads image hints the feed already carried. It makes no network calls.
type Embedded struct{}

func (Embedded) Name() string { return news.TierEmbedded }

func (Embedded) Find(ctx context.Context, c news.CandidateItem, accept Acceptor) (news.ImageRef, bool) {
	sources := []struct {
		method string
		urls   func() []string
	}{
		{"media_content", func() []string { return c.Media }},
		{"thumbnail", func() []string { return c.Thumbnails }},
		{"enclosure", func() []string { return imageEnclosures(c.Enclosures) }},
		{"summary_img", func() []string { return scraper.ImagesFromFragment(c.RawSummary) }},
		{"content_img", func() []string { return scraper.ImagesFromFragment(c.RawContent) }},
	}

	for _, src := range sources {
		for _, u := range src.urls() {
			if accept(ctx, u) {
				return news.ImageRef{URL: u, Method: news.TierEmbedded + ":" + src.method}, true
			}
		}
	}
	return news.ImageRef{}, false
}

// imageEnclosures lists enclosures typed image/* first, then untyped ones
// whose URL has an image extension. The type alone does not make a URL valid.
func imageEnclosures(encs []news.Enclosure) []string {
	var typed, untyped []string
	for _, e := range encs {
		switch {
		case strings.HasPrefix(strings.ToLower(e.Type), "image/"):
			typed = append(typed, e.URL)
		case e.Type == "" && imageExtensions[strings.ToLower(path.Ext(stripQuery(e.URL)))]:
			untyped = append(untyped, e.URL)
		}
	}
	return append(typed, untyped...)
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
