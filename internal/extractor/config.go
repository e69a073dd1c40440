package extractor

import (
	"time"
)

// Config holds the configuration for an extractor instance
type Config struct {
	DefaultTimeout time.Duration // Per-attempt timeout when a request doesn't specify one
	MaxRetries     int           // Additional attempts after the first failed fetch
	RetryDelay     time.Duration // Delay between retry attempts (0 = retry immediately)
	MaxConcurrency int           // Default concurrency cap for batch extraction
	UserAgent      string        // User agent string for outbound requests
	MaxBodySize    int64         // Cap on response body bytes read per fetch
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: 10 * time.Second,
		MaxRetries:     2,
		RetryDelay:     0, // transient failures are retried immediately
		MaxConcurrency: 5,
		UserAgent:      "Pagelens/1.0 (+https://pagelens.dev/about)",
		MaxBodySize:    10 << 20,
	}
}
