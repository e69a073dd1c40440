package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/extractor"
)

// Version is the current API version (can be set via ldflags at build time)
var Version = "1.0.0"

// defaults and bounds for caller-supplied knobs
const (
	defaultTimeoutSeconds = 10
	maxTimeoutSeconds     = 120
	defaultMaxRetries     = 2
	maxMaxRetries         = 10
	maxBatchURLs          = 100
)

// ExtractorService is the part of the extraction pipeline the API depends on
type ExtractorService interface {
	Extract(ctx context.Context, rawURL string, opts extractor.Options) (*extractor.ExtractionResult, *extractor.ErrorInfo)
	Batch(ctx context.Context, urls []string, opts extractor.BatchOptions) *extractor.BatchResult
}

// Handler holds dependencies for API handlers
type Handler struct {
	Extractor ExtractorService
}

// NewHandler creates a new API handler with dependencies
func NewHandler(svc ExtractorService) *Handler {
	return &Handler{Extractor: svc}
}

// SetupRoutes configures all API routes
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/extract", h.ExtractPage)
	mux.HandleFunc("/extract/batch", h.BatchExtract)
}

// HealthCheck handles basic health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}
	WriteHealthy(w, r, "pagelens", Version)
}

// ExtractPage handles GET /extract?url=...&timeout=...&max_retries=...
//
// The response is the full ExtractionResult. Per-side failures (homepage
// unreachable, target connection refused) still return 200 with the error
// inline; only a URL that fails normalisation (400) or a target fetch that
// exhausts retries on timeout (408) changes the status code.
func (h *Handler) ExtractPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		BadRequest(w, r, "url parameter is required")
		return
	}

	opts := extractor.Options{
		Timeout:    queryTimeout(r),
		MaxRetries: queryMaxRetries(r),
	}

	result, errInfo := h.Extractor.Extract(r.Context(), rawURL, opts)
	if errInfo != nil {
		switch errInfo.Kind {
		case extractor.ErrInvalidURL:
			BadRequest(w, r, errInfo.Message)
		default:
			sentry.CaptureException(errInfo)
			InternalError(w, r, fmt.Errorf("extraction failed: %s", errInfo.Message))
		}
		return
	}

	if pageErr := result.PageData.Error; pageErr != nil && pageErr.Kind == extractor.ErrTimeout {
		RequestTimeout(w, r, fmt.Sprintf("target fetch timed out after retries: %s", pageErr.Message))
		return
	}

	WriteJSON(w, r, result, http.StatusOK)
}

// BatchExtractRequest is the body of POST /extract/batch
type BatchExtractRequest struct {
	URLs        []string `json:"urls"`
	Timeout     *int     `json:"timeout,omitempty"`
	MaxRetries  *int     `json:"max_retries,omitempty"`
	Concurrency *int     `json:"concurrency,omitempty"`
}

// BatchExtract handles POST /extract/batch. The response is always 200 with
// per-item errors inline; one URL's failure never changes the envelope for
// the rest.
func (h *Handler) BatchExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	var req BatchExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if len(req.URLs) == 0 {
		BadRequest(w, r, "urls must contain at least one URL")
		return
	}
	if len(req.URLs) > maxBatchURLs {
		BadRequest(w, r, fmt.Sprintf("urls is limited to %d entries per batch", maxBatchURLs))
		return
	}

	opts := extractor.BatchOptions{
		Options: extractor.Options{
			Timeout:    clampSeconds(req.Timeout),
			MaxRetries: clampRetries(req.MaxRetries),
		},
	}
	if req.Concurrency != nil {
		opts.Concurrency = *req.Concurrency
	}

	log.Info().
		Str("request_id", GetRequestID(r)).
		Int("urls", len(req.URLs)).
		Msg("Batch extraction requested")

	result := h.Extractor.Batch(r.Context(), req.URLs, opts)
	WriteJSON(w, r, result, http.StatusOK)
}

func queryTimeout(r *http.Request) time.Duration {
	seconds := defaultTimeoutSeconds
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			seconds = parsed
		}
	}
	return clampSeconds(&seconds)
}

func queryMaxRetries(r *http.Request) int {
	retries := defaultMaxRetries
	if raw := r.URL.Query().Get("max_retries"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			retries = parsed
		}
	}
	return clampRetries(&retries)
}

func clampSeconds(seconds *int) time.Duration {
	s := defaultTimeoutSeconds
	if seconds != nil {
		s = *seconds
	}
	if s < 1 {
		s = 1
	}
	if s > maxTimeoutSeconds {
		s = maxTimeoutSeconds
	}
	return time.Duration(s) * time.Second
}

func clampRetries(retries *int) int {
	n := defaultMaxRetries
	if retries != nil {
		n = *retries
	}
	if n < 0 {
		n = 0
	}
	if n > maxMaxRetries {
		n = maxMaxRetries
	}
	return n
}
