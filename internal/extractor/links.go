package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagelens/pagelens/internal/util"
)

// ClassifyLinks partitions the anchor targets in doc into internal and
// external sets relative to baseDomain. Relative hrefs are resolved against
// baseURL, non-http(s) targets are discarded, and resolved URLs are
// deduplicated in first-seen order. Malformed individual hrefs are skipped,
// never fatal.
//
// A link is internal iff its registrable domain equals baseDomain, so
// subdomains of the same site count as internal.
func ClassifyLinks(doc *goquery.Document, baseURL *url.URL, baseDomain string) LinkSet {
	links := NewLinkSet()
	if doc == nil || baseURL == nil {
		return links
	}

	seen := make(map[string]struct{})
	baseDomain = strings.ToLower(baseDomain)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := baseURL.ResolveReference(ref)
		scheme := strings.ToLower(resolved.Scheme)
		if scheme != "http" && scheme != "https" {
			// mailto:, javascript:, tel: and friends
			return
		}

		absolute := resolved.String()
		if _, dup := seen[absolute]; dup {
			return
		}
		seen[absolute] = struct{}{}

		if util.RegistrableDomain(resolved.Hostname()) == baseDomain {
			links.Internal = append(links.Internal, absolute)
		} else {
			links.External = append(links.External, absolute)
		}
	})

	return links
}
