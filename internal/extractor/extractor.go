package extractor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/observability"
	"github.com/pagelens/pagelens/internal/util"
)

// Options control a single extraction. Zero values fall back to the
// extractor's configured defaults.
type Options struct {
	Timeout    time.Duration // per fetch attempt
	MaxRetries int
}

// Extractor orchestrates the fetch-extract-classify pipeline for one input
// URL: the target page and its derived homepage are processed concurrently
// and merged into a single result. It owns the shared HTTP transport;
// create one at startup and Close it at shutdown.
type Extractor struct {
	config  *Config
	fetcher *Fetcher
	pages   *PageProcessor
}

// New creates an Extractor with the given configuration. A nil config uses
// defaults.
func New(config *Config) *Extractor {
	if config == nil {
		config = DefaultConfig()
	}
	fetcher := NewFetcher(config)
	return &Extractor{
		config:  config,
		fetcher: fetcher,
		pages:   NewPageProcessor(fetcher),
	}
}

// Close releases the extractor's transport resources.
func (e *Extractor) Close() {
	e.fetcher.Close()
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() *Config {
	return e.config
}

// Extract processes one input URL. The target page and the homepage are
// fetched independently; a failure on either side is captured in its own
// result and never blocks the other. The only way Extract itself fails is
// when the input URL does not normalise, reported as ErrInvalidURL.
func (e *Extractor) Extract(ctx context.Context, rawURL string, opts Options) (*ExtractionResult, *ErrorInfo) {
	site, err := util.ParseSite(rawURL)
	if err != nil {
		log.Debug().Str("url", rawURL).Err(err).Msg("Rejected unparseable URL")
		return nil, &ErrorInfo{Kind: ErrInvalidURL, Message: err.Error()}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = e.config.MaxRetries
	}

	ctx, span := observability.StartExtractionSpan(ctx, rawURL)
	defer span.End()

	start := time.Now()
	result := &ExtractionResult{
		OriginalURL: rawURL,
		HomeURL:     site.HomeURL,
	}

	// Structured join: both sides always run to completion, each outcome
	// collected independently with no short-circuit on first failure.
	done := make(chan struct{})
	go func() {
		defer close(done)
		result.HomeData = e.pages.ProcessHome(ctx, site.HomeURL, site.Domain, timeout, maxRetries)
	}()
	result.PageData = e.pages.ProcessPage(ctx, site.Canonical, timeout, maxRetries)
	<-done

	elapsed := time.Since(start)
	result.Timing = Timing{
		ProcessingTimeSeconds: elapsed.Seconds(),
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
	}

	observability.RecordExtraction(ctx, observability.ExtractionMetrics{
		PageSuccess: result.PageData.Success,
		HomeSuccess: result.HomeData.Success,
		Duration:    elapsed,
	})

	log.Info().
		Str("url", rawURL).
		Bool("page_success", result.PageData.Success).
		Bool("home_success", result.HomeData.Success).
		Dur("duration", elapsed).
		Msg("Extraction completed")

	return result, nil
}

// failedExtraction builds the inline-error entry recorded for a URL whose
// extraction could not even start (e.g. invalid input inside a batch).
func failedExtraction(rawURL string, errInfo *ErrorInfo) ExtractionResult {
	return ExtractionResult{
		OriginalURL: rawURL,
		PageData: PageResult{
			URL:   rawURL,
			Error: errInfo,
		},
		HomeData: HomeResult{
			PageResult: PageResult{Error: errInfo},
			Links:      NewLinkSet(),
		},
		Timing: Timing{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}
