package benchmarks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/extractor"
	"github.com/pagelens/pagelens/internal/util"
)

const benchPage = `<html><head><title>Benchmark page</title>
<style>body { margin: 0 }</style></head><body>
<nav><a href="/">Home</a><a href="/about">About</a><a href="/pricing">Pricing</a></nav>
<article>
<h1>Heading for the benchmark article</h1>
<p>First paragraph with a reasonable amount of prose so that text extraction
has something representative to chew on during the benchmark run.</p>
<p>Second paragraph with an <a href="https://external.example.org/ref">outbound
reference</a> and an <a href="/internal/page">internal one</a>.</p>
</article>
<script>console.log("ignored");</script>
<footer><a href="mailto:team@example.com">Contact</a></footer>
</body></html>`

// Benchmark URL derivation - hot path, runs once per input URL
func BenchmarkParseSite(b *testing.B) {
	rawURL := "https://www.example.com/path/to/page?query=value#fragment"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		util.ParseSite(rawURL)
	}
}

func BenchmarkRegistrableDomain(b *testing.B) {
	host := "news.subdomain.example.co.uk"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		util.RegistrableDomain(host)
	}
}

// Benchmark content extraction - the dominant CPU cost per page
func BenchmarkExtractContent(b *testing.B) {
	raw := []byte(benchPage)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractor.ExtractContent(raw)
	}
}

// Benchmark link classification - runs once per homepage
func BenchmarkClassifyLinks(b *testing.B) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(benchPage))
	if err != nil {
		b.Fatal(err)
	}
	base, err := url.Parse("https://www.example.com/")
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractor.ClassifyLinks(doc, base, "example.com")
	}
}

// Benchmark response encoding - hot path for API responses
func BenchmarkWriteJSONResult(b *testing.B) {
	status := 200
	body := strings.Repeat("<p>content</p>", 50)
	text := strings.Repeat("content ", 50)
	result := &extractor.ExtractionResult{
		OriginalURL: "https://www.example.com/page",
		HomeURL:     "https://www.example.com/",
		PageData: extractor.PageResult{
			URL:        "https://www.example.com/page",
			StatusCode: &status,
			Body:       &body,
			Text:       &text,
			Success:    true,
		},
		HomeData: extractor.HomeResult{
			PageResult: extractor.PageResult{
				URL:        "https://www.example.com/",
				StatusCode: &status,
				Success:    true,
			},
			Links: extractor.LinkSet{
				Internal: []string{"https://www.example.com/about", "https://www.example.com/pricing"},
				External: []string{"https://external.example.org/ref"},
			},
		},
		Timing: extractor.Timing{ProcessingTimeSeconds: 0.25, Timestamp: "2026-08-31T12:00:00Z"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// Benchmark middleware - wraps every request
func BenchmarkRequestIDMiddleware(b *testing.B) {
	handler := api.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/extract", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}
}
