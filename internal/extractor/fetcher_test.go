package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyServer fails the first `failures` requests by dropping the
// connection, then serves a small HTML page.
func flakyServer(t *testing.T, failures int) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if int(n) <= failures {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok, "test server must support hijacking")
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>recovered</p></body></html>"))
	}))
	return ts, &calls
}

func TestFetchSucceedsFirstAttempt(t *testing.T) {
	ts, calls := flakyServer(t, 0)
	defer ts.Close()

	f := NewFetcher(nil)
	defer f.Close()

	status, body, errInfo := f.Fetch(context.Background(), ts.URL, 2*time.Second, 2)
	require.Nil(t, errInfo)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "recovered")
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	// Fails twice, succeeds on the third attempt; max_retries=2 allows
	// exactly three attempts.
	ts, calls := flakyServer(t, 2)
	defer ts.Close()

	f := NewFetcher(nil)
	defer f.Close()

	status, body, errInfo := f.Fetch(context.Background(), ts.URL, 2*time.Second, 2)
	require.Nil(t, errInfo)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestFetchExhaustsRetriesOnConnectionErrors(t *testing.T) {
	ts, calls := flakyServer(t, 100)
	defer ts.Close()

	f := NewFetcher(nil)
	defer f.Close()

	status, body, errInfo := f.Fetch(context.Background(), ts.URL, 2*time.Second, 1)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrConnection, errInfo.Kind)
	assert.Equal(t, 0, status)
	assert.Nil(t, body)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "attempts must be capped at max_retries+1")
}

func TestFetchConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listens here any more

	f := NewFetcher(nil)
	defer f.Close()

	_, _, errInfo := f.Fetch(context.Background(), ts.URL, time.Second, 0)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrConnection, errInfo.Kind)
}

func TestFetchTimeoutKind(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer ts.Close()

	f := NewFetcher(nil)
	defer f.Close()

	_, _, errInfo := f.Fetch(context.Background(), ts.URL, 50*time.Millisecond, 1)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrTimeout, errInfo.Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "timeouts are transient and retried")
}

// A completed HTTP response is never retried, whatever its status code.
func TestFetchDoesNotRetryCompletedResponses(t *testing.T) {
	statuses := []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusTooManyRequests}

	for _, wantStatus := range statuses {
		var calls int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(wantStatus)
			_, _ = w.Write([]byte("<html><body>gone</body></html>"))
		}))

		f := NewFetcher(nil)
		status, body, errInfo := f.Fetch(context.Background(), ts.URL, time.Second, 3)

		assert.Nil(t, errInfo)
		assert.Equal(t, wantStatus, status)
		assert.NotEmpty(t, body)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d is a completed fetch, not a transient failure", wantStatus)

		f.Close()
		ts.Close()
	}
}

func TestFetchInvalidURLNotRetried(t *testing.T) {
	f := NewFetcher(nil)
	defer f.Close()

	_, _, errInfo := f.Fetch(context.Background(), "http://%zz invalid", time.Second, 3)
	require.NotNil(t, errInfo)
	assert.Equal(t, ErrInvalidURL, errInfo.Kind)
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(nil)
	defer f.Close()

	_, _, errInfo := f.Fetch(ctx, ts.URL, time.Second, 5)
	require.NotNil(t, errInfo, "cancelled context must not keep retrying")
}
