package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Page is the outcome of loading an HTML page for its images.
type Page struct {
	URL    string
	Images []string // absolute, in document order, de-duplicated
}

// ExtractImages loads an HTML page and returns the image URLs found on it.
func ExtractImages(ctx context.Context, client *http.Client, pageURL string) (*Page, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	// Get HTML page
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	images, err := ImagesFromHTML(finalURL, resp.Body)
	if err != nil {
		return nil, err
	}
	return &Page{URL: finalURL, Images: images}, nil
}

// ImagesFromHTML parses a full HTML document. Social preview tags come first,
// then images matched by the site selectors, then every other <img>.
func ImagesFromHTML(base string, r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	var found []string
	doc.Find(`meta[property="og:image"], meta[property="og:image:url"], meta[name="twitter:image"]`).Each(func(i int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			found = append(found, content)
		}
	})

	for _, selector := range selectorsBySource(base) {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			found = append(found, imgSources(s)...)
		})
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		found = append(found, imgSources(s)...)
	})

	return normalize(base, found), nil
}

// ImagesFromFragment returns the <img> sources of an HTML fragment such as a
// feed item's description.
func ImagesFromFragment(markup string) []string {
	if !strings.Contains(markup, "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var found []string
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		found = append(found, imgSources(s)...)
	})
	return normalize("", found)
}

// selectorsBySource picks result-grid selectors by site.
func selectorsBySource(pageURL string) []string {
	switch {
	case strings.Contains(pageURL, "pexels.com"):
		return []string{"article img", "a[href*='/photo/'] img"}
	case strings.Contains(pageURL, "unsplash.com"):
		return []string{"figure img", "a[href*='/photos/'] img"}
	case strings.Contains(pageURL, "pixabay.com"):
		return []string{".result img", "a[href*='/photos/'] img"}
	case strings.Contains(pageURL, "wikimedia.org"):
		return []string{".searchResultImage img", ".mw-file-element"}
	default:
		return []string{"main img", "article img", "figure img"}
	}
}

// imgSources returns src, then data-src, then the widest srcset candidate.
func imgSources(s *goquery.Selection) []string {
	var out []string
	if src, ok := s.Attr("src"); ok {
		out = append(out, src)
	}
	if src, ok := s.Attr("data-src"); ok {
		out = append(out, src)
	}
	if srcset, ok := s.Attr("srcset"); ok {
		if best := widestFromSrcset(srcset); best != "" {
			out = append(out, best)
		}
	}
	return out
}

func widestFromSrcset(srcset string) string {
	var best string
	bestWidth := -1
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			fmt.Sscanf(fields[1], "%dw", &width)
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}

// normalize resolves relative references against base and drops empties,
// data URIs and repeats.
func normalize(base string, raw []string) []string {
	baseURL, _ := url.Parse(base)

	out := lo.FilterMap(raw, func(ref string, _ int) (string, bool) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
			return "", false
		}
		u, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		if baseURL != nil && !u.IsAbs() {
			u = baseURL.ResolveReference(u)
		}
		return u.String(), true
	})
	return lo.Uniq(out)
}
