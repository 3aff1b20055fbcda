package news

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var reTags = regexp.MustCompile(`<[^>]*>`)

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return reTags.ReplaceAllString(s, " ")
	}
	// keep words in adjacent block elements apart
	doc.Find("p, br, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return doc.Text()
}

// CollapseSpace squeezes any whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

// PlainSummary turns feed markup into a bounded plain-text summary.
func PlainSummary(raw string, max int) string {
	return Truncate(CollapseSpace(StripHTML(raw)), max)
}

// CleanQuery keeps letters, digits and spaces only (Unicode-aware).
func CleanQuery(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b = append(b, r)
		} else {
			b = append(b, ' ')
		}
	}
	return CollapseSpace(string(b))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "for": true,
	"by": true, "with": true, "from": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "its": true, "it": true,
	"this": true, "that": true, "these": true, "those": true, "after": true,
	"before": true, "over": true, "into": true, "about": true, "new": true,
	"will": true, "has": true, "have": true, "had": true, "not": true,
	"than": true, "more": true, "how": true, "why": true, "what": true,
	"who": true, "when": true, "where": true, "amid": true, "via": true,
}

// Verbs that feeds put in front of almost every headline.
var boilerplateVerbs = map[string]bool{
	"announces": true, "announced": true, "launches": true, "launched": true,
	"reports": true, "reported": true, "says": true, "said": true,
	"unveils": true, "unveiled": true, "reveals": true, "revealed": true,
	"introduces": true, "introduced": true, "releases": true, "released": true,
	"confirms": true, "confirmed": true, "plans": true, "update": true,
	"updates": true, "breaking": true, "watch": true, "live": true,
}

// Keywords returns up to limit significant headline words, in headline order.
func Keywords(headline string, limit int) []string {
	words := strings.Fields(strings.ToLower(CleanQuery(headline)))
	out := make([]string, 0, limit)
	seen := map[string]bool{}
	for _, w := range words {
		if limit > 0 && len(out) >= limit {
			break
		}
		if stopWords[w] || boilerplateVerbs[w] || seen[w] {
			continue
		}
		if len([]rune(w)) <= 2 {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// HeadlinePrefix is the lower-cased first n runes of a trimmed headline.
// A space at the cut is kept so the result matches LOWER(LEFT(headline, n)).
func HeadlinePrefix(headline string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(headline))
	if len(runes) > n {
		runes = runes[:n]
	}
	return strings.ToLower(string(runes))
}

// CanonicalURL strips query, fragment and trailing slash.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			raw = raw[:i]
		}
		return strings.TrimRight(raw, "/")
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// URLHash is the hex sha256 of the canonical URL.
func URLHash(raw string) string {
	h := sha256.Sum256([]byte(CanonicalURL(raw)))
	return hex.EncodeToString(h[:])
}

// Domain extracts the host of a URL without a www. prefix.
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
