package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default fetch parameters. The retry bound is deliberately small: it
// covers transient origin flakiness inside one verification run, nothing
// more.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultAttempts = 3
	DefaultBackoff  = 500 * time.Millisecond
)

// HTTPSource serves artifacts from an HTTP origin. Transport errors and
// 5xx responses are retried a bounded number of times with fixed backoff;
// 4xx responses are terminal because retrying cannot change them.
type HTTPSource struct {
	baseURL  string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewHTTPSource creates a source for the origin at baseURL with default
// client timeout and retry policy.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: DefaultTimeout},
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
	}
}

// SetClient replaces the HTTP client, for custom timeouts or transports.
func (s *HTTPSource) SetClient(client *http.Client) {
	s.client = client
}

// SetRetry configures the retry policy. Attempts below 1 are clamped to 1.
func (s *HTTPSource) SetRetry(attempts int, backoff time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	s.attempts = attempts
	s.backoff = backoff
}

// Fetch retrieves an artifact, retrying per the source's policy.
func (s *HTTPSource) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	url := s.baseURL + "/" + strings.TrimPrefix(relPath, "/")

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		data, retryable, err := s.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts failed: %v", ErrUnavailable, s.attempts, lastErr)
}

func (s *HTTPSource) fetchOnce(ctx context.Context, url string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("reading %s: %w", url, err)
		}
		return body, false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("%w: %s returned status %d", ErrNotFound, url, resp.StatusCode)
	default:
		return nil, true, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
}
