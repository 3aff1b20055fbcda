package aisearch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	reImageURL = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]]+?\.(?:jpe?g|png|gif|webp|avif)(?:\?[^\s"'<>()\[\]]*)?`)
	reAnyURL   = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]]+`)
)

// ExtractImageURLs pulls URLs out of a model reply. URLs ending in an image
// extension come first, then any other URL in order of appearance.
func ExtractImageURLs(text string) []string {
	images := reImageURL.FindAllString(text, -1)
	rest := reAnyURL.FindAllString(text, -1)

	out := make([]string, 0, len(images)+len(rest))
	out = append(out, lo.Map(images, trimPunct)...)
	out = append(out, lo.Map(rest, trimPunct)...)
	return lo.Uniq(out)
}

func trimPunct(s string, _ int) string {
	return strings.TrimRight(s, ".,;:!*`")
}

// AllowedHost reports whether the URL host is one of allowed or a subdomain
// of one. An empty allow-list allows everything.
func AllowedHost(raw string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return lo.ContainsBy(allowed, func(domain string) bool {
		domain = strings.ToLower(strings.TrimSpace(domain))
		return host == domain || strings.HasSuffix(host, "."+domain)
	})
}
