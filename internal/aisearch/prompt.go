// Package aisearch asks search-augmented chat models for a news image URL.
package aisearch

import (
	"fmt"
	"strings"
)

// SystemInstruction is sent as the system message to every backend.
func SystemInstruction(allowed []string) string {
	var b strings.Builder
	b.WriteString("You find photographs for news articles. ")
	b.WriteString("Reply with exactly one direct image URL and nothing else. ")
	b.WriteString("The URL must point to an image file (jpg, jpeg, png or webp) that exists right now. ")
	b.WriteString("Never return placeholder, example, dummy, logo or icon images, never invent links, ")
	b.WriteString("and never return a page URL instead of an image URL.")
	if len(allowed) > 0 {
		fmt.Fprintf(&b, " Only use images hosted on these domains: %s.", strings.Join(allowed, ", "))
	}
	b.WriteString(" If you cannot find a suitable image, reply with NONE.")
	return b.String()
}

// UserPrompt describes the article to illustrate: its headline and, when
// known, the feed category.
func UserPrompt(headline, category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Sprintf("Find a relevant photo for this news headline: %q", headline)
	}
	return fmt.Sprintf("Find a relevant photo for this news headline: %q\nCategory: %s", headline, category)
}
