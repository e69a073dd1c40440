package extractor

// ErrorKind classifies a failure captured in a result.
type ErrorKind string

const (
	ErrInvalidURL ErrorKind = "invalid_url"
	ErrTimeout    ErrorKind = "timeout"
	ErrConnection ErrorKind = "connection"
	ErrHTTPStatus ErrorKind = "http_status"
	ErrParse      ErrorKind = "parse"
	ErrUnknown    ErrorKind = "unknown"
)

// ErrorInfo carries a classified failure inside a result. Failures are
// reported inline per item rather than raised, so a bad URL or unreachable
// homepage never aborts the surrounding request.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ErrorInfo) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// PageResult is the outcome of fetching and extracting a single URL.
// StatusCode is set whenever a response was received, even when Success is
// false. Body and Text are present only on success. Success means "usable
// content was retrieved", not "the HTTP status was 2xx": a 404 that returns
// parsable HTML is still a successful extraction, and the status code is
// left for the caller to interpret.
type PageResult struct {
	URL        string     `json:"url"`
	StatusCode *int       `json:"status_code"`
	Error      *ErrorInfo `json:"error"`
	Body       *string    `json:"body"`
	Text       *string    `json:"text"`
	Success    bool       `json:"success"`
}

// LinkSet partitions the hyperlinks discovered on a homepage. Both slices
// hold absolute URLs, deduplicated, in first-seen document order.
type LinkSet struct {
	Internal []string `json:"internal"`
	External []string `json:"external"`
}

// NewLinkSet returns an empty LinkSet that serialises as [] rather than null.
func NewLinkSet() LinkSet {
	return LinkSet{Internal: []string{}, External: []string{}}
}

// HomeResult is a PageResult for a site homepage, extended with the
// classified links found on it.
type HomeResult struct {
	PageResult
	Links LinkSet `json:"links"`
}

// Timing records how long an extraction took and when it was captured.
type Timing struct {
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Timestamp             string  `json:"timestamp"`
}

// ExtractionResult is the combined outcome for one input URL: the target
// page and its derived homepage, processed independently.
type ExtractionResult struct {
	OriginalURL string     `json:"original_url"`
	HomeURL     string     `json:"home_url"`
	PageData    PageResult `json:"page_data"`
	HomeData    HomeResult `json:"home_data"`
	Timing      Timing     `json:"timing"`
}

// BatchResult aggregates the outcomes of a multi-URL extraction. Results
// preserve input order regardless of completion order, and
// Successful+Failed always equals len(Results).
type BatchResult struct {
	Results    []ExtractionResult `json:"results"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	TotalTime  float64            `json:"total_time"`
}
