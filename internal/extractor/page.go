package extractor

import (
	"context"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// PageProcessor turns one URL into a PageResult: fetch, then extract, then
// (for homepages) classify links.
type PageProcessor struct {
	fetcher *Fetcher
}

// NewPageProcessor creates a processor on top of a shared Fetcher.
func NewPageProcessor(fetcher *Fetcher) *PageProcessor {
	return &PageProcessor{fetcher: fetcher}
}

// ProcessPage fetches and extracts a single URL. The result is fully
// assembled before it is returned and never mutated afterwards.
func (p *PageProcessor) ProcessPage(ctx context.Context, targetURL string, timeout time.Duration, maxRetries int) PageResult {
	result, _ := p.process(ctx, targetURL, timeout, maxRetries)
	return result
}

// ProcessHome fetches and extracts a homepage, attaching the internal and
// external links discovered on it. baseDomain is the registrable domain the
// links are classified against.
func (p *PageProcessor) ProcessHome(ctx context.Context, homeURL, baseDomain string, timeout time.Duration, maxRetries int) HomeResult {
	home := HomeResult{Links: NewLinkSet()}

	result, doc := p.process(ctx, homeURL, timeout, maxRetries)
	home.PageResult = result

	if result.Success && doc != nil {
		if base, err := url.Parse(homeURL); err == nil {
			home.Links = ClassifyLinks(doc, base, baseDomain)
		}
	}

	return home
}

func (p *PageProcessor) process(ctx context.Context, targetURL string, timeout time.Duration, maxRetries int) (PageResult, *goquery.Document) {
	result := PageResult{URL: targetURL}

	status, raw, fetchErr := p.fetcher.Fetch(ctx, targetURL, timeout, maxRetries)
	if status != 0 {
		statusCopy := status
		result.StatusCode = &statusCopy
	}
	if fetchErr != nil {
		result.Error = fetchErr
		return result, nil
	}

	content, doc, parseErr := ExtractContent(raw)
	if parseErr != nil {
		result.Error = parseErr
		return result, nil
	}

	result.Body = &content.Body
	result.Text = &content.Text
	result.Success = true

	log.Debug().
		Str("url", targetURL).
		Int("status", status).
		Int("body_bytes", len(content.Body)).
		Int("text_chars", len(content.Text)).
		Msg("Page processed")

	return result, doc
}
