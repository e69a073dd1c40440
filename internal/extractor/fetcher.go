package extractor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher performs single HTTP GETs with a per-attempt timeout and a
// bounded retry policy. One pooled transport is shared by every fetch for
// the lifetime of the process; http.Transport is safe for concurrent use,
// so callers need no locking.
type Fetcher struct {
	client *http.Client
	config *Config
}

// NewFetcher creates a Fetcher backed by a fresh connection pool.
func NewFetcher(config *Config) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Fetcher{
		// Per-attempt deadlines come from the request context, not the
		// client, so a caller-supplied timeout can vary per request.
		client: &http.Client{Transport: transport},
		config: config,
	}
}

// Close releases the pooled connections. Call once at shutdown.
func (f *Fetcher) Close() {
	if t, ok := f.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// Fetch performs a GET against targetURL, retrying transient failures up to
// maxRetries additional times. A completed HTTP response is never retried,
// whatever its status code: a 404 is a finished fetch, not a transient
// failure. Total attempts are capped at maxRetries+1.
//
// The returned status is non-zero whenever a response was received. The
// body is non-nil only when it was read fully; errInfo is nil iff the fetch
// completed.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, timeout time.Duration, maxRetries int) (status int, body []byte, errInfo *ErrorInfo) {
	if timeout <= 0 {
		timeout = f.config.DefaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempts := maxRetries + 1
	var lastStatus int
	var lastErr *ErrorInfo

	for attempt := 1; attempt <= attempts; attempt++ {
		status, body, errInfo := f.doAttempt(ctx, targetURL, timeout)
		if errInfo == nil {
			return status, body, nil
		}
		if errInfo.Kind == ErrInvalidURL {
			return 0, nil, errInfo
		}

		if status != 0 {
			lastStatus = status
		}
		lastErr = errInfo

		log.Debug().
			Str("url", targetURL).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("kind", string(errInfo.Kind)).
			Str("error", errInfo.Message).
			Msg("Fetch attempt failed")

		if ctx.Err() != nil {
			break
		}
		if attempt < attempts && f.config.RetryDelay > 0 {
			select {
			case <-time.After(f.config.RetryDelay):
			case <-ctx.Done():
				return lastStatus, nil, lastErr
			}
		}
	}

	log.Warn().
		Str("url", targetURL).
		Int("attempts", attempts).
		Str("kind", string(lastErr.Kind)).
		Msg("Fetch exhausted retries")

	return lastStatus, nil, lastErr
}

// doAttempt runs one GET under its own deadline.
func (f *Fetcher) doAttempt(ctx context.Context, targetURL string, timeout time.Duration) (int, []byte, *ErrorInfo) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, nil, &ErrorInfo{Kind: ErrInvalidURL, Message: err.Error()}
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, classifyFetchError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		// Headers arrived but the body didn't; keep the status and treat
		// the truncation like any other transport failure.
		return resp.StatusCode, nil, classifyFetchError(err)
	}

	return resp.StatusCode, body, nil
}

// classifyFetchError maps a transport error onto the result taxonomy:
// deadline and net timeouts become ErrTimeout, everything else at the
// network level (DNS, refused, reset) becomes ErrConnection.
func classifyFetchError(err error) *ErrorInfo {
	msg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorInfo{Kind: ErrTimeout, Message: msg}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ErrorInfo{Kind: ErrTimeout, Message: msg}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &ErrorInfo{Kind: ErrTimeout, Message: msg}
	}

	return &ErrorInfo{Kind: ErrConnection, Message: msg}
}
