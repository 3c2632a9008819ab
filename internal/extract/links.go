// File: internal/extract/links.go
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one harvested anchor record.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
	Date string `json:"date,omitempty"`
}

// IsNavigableHref reports whether an href points somewhere worth following.
// Empty values, fragments and non-HTTP schemes are rejected.
func IsNavigableHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}

// ResolveURL makes href absolute against base. An unparsable href comes back
// empty rather than poisoning downstream navigation.
func ResolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// CollectLinks scans the whole document for anchors and resolves them against
// base. It is the fallback when a targeted selector yields nothing.
func CollectLinks(htmlContent string, base *url.URL) []Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []Link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := sel.AttrOr("href", "")
		if !IsNavigableHref(href) {
			return
		}
		resolved := ResolveURL(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, Link{
			Href: resolved,
			Text: strings.TrimSpace(sel.Text()),
		})
	})
	return links
}
