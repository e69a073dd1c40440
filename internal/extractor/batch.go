package extractor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// BatchOptions control a multi-URL extraction. Concurrency caps the number
// of URLs orchestrated simultaneously; zero falls back to the configured
// default.
type BatchOptions struct {
	Options
	Concurrency int
}

// maxBatchConcurrency bounds the caller-supplied concurrency to keep
// outbound connections in check; each URL already fans out into two fetches.
const maxBatchConcurrency = 20

// Batch runs Extract over every URL under a concurrency cap. Each URL's
// outcome is captured independently: a total failure, including an invalid
// URL, is recorded as a failed entry and never aborts the batch. Results
// preserve input order regardless of completion order, and TotalTime is the
// wall-clock span of the whole batch, not the sum of per-item times.
func (e *Extractor) Batch(ctx context.Context, urls []string, opts BatchOptions) *BatchResult {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = e.config.MaxConcurrency
	}
	if concurrency > maxBatchConcurrency {
		concurrency = maxBatchConcurrency
	}

	start := time.Now()
	results := make([]ExtractionResult, len(urls))

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, rawURL := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Batch cancelled while waiting for a slot; record the
			// remainder as failed entries rather than dropping them.
			results[i] = failedExtraction(rawURL, &ErrorInfo{Kind: ErrUnknown, Message: err.Error()})
			continue
		}

		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			defer sem.Release(1)

			result, errInfo := e.Extract(ctx, rawURL, opts.Options)
			if errInfo != nil {
				results[i] = failedExtraction(rawURL, errInfo)
				return
			}
			results[i] = *result
		}(i, rawURL)
	}

	wg.Wait()

	batch := &BatchResult{
		Results:   results,
		TotalTime: time.Since(start).Seconds(),
	}
	for i := range results {
		// An entry counts as successful when its target page produced
		// usable content; the homepage side is supplementary.
		if results[i].PageData.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}

	log.Info().
		Int("urls", len(urls)).
		Int("successful", batch.Successful).
		Int("failed", batch.Failed).
		Int("concurrency", concurrency).
		Float64("total_time", batch.TotalTime).
		Msg("Batch extraction completed")

	return batch
}
