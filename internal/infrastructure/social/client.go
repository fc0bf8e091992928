package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veylhq/veyl/internal/pkg/metrics"
)

const (
	// callTimeout bounds every outbound platform API call
	callTimeout = 20 * time.Second

	maxRetries   = 2
	retryBackoff = 500 * time.Millisecond
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: callTimeout}
}

// APIError is a non-2xx answer from a platform API. The body is kept
// verbatim so callers and logs see exactly what the platform said.
type APIError struct {
	Platform   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Platform, e.Operation, e.StatusCode, e.Body)
}

// getJSON issues a GET, retrying network errors and 5xx answers a bounded
// number of times, and returns the body. Non-2xx terminal answers come back
// as *APIError.
func getJSON(ctx context.Context, client *http.Client, platform, operation, rawURL string, header http.Header) ([]byte, error) {
	start := time.Now()
	var body []byte
	var err error
	defer func() {
		metrics.RecordProviderCall(platform, operation, time.Since(start), err)
	}()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetries.WithLabelValues(platform, operation).Inc()
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				err = ctx.Err()
				return nil, err
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if reqErr != nil {
			err = reqErr
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, doErr := client.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}

		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			lastErr = &APIError{
				Platform:   platform,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Body:       truncate(body),
			}
			continue
		}
		if resp.StatusCode >= 300 {
			err = &APIError{
				Platform:   platform,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Body:       truncate(body),
			}
			return nil, err
		}

		return body, nil
	}

	err = lastErr
	return nil, err
}

// postJSON issues a JSON POST with the same retry policy as getJSON
func postJSON(ctx context.Context, client *http.Client, platform, operation, rawURL string, header http.Header, payload []byte) ([]byte, error) {
	start := time.Now()
	var body []byte
	var err error
	defer func() {
		metrics.RecordProviderCall(platform, operation, time.Since(start), err)
	}()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetries.WithLabelValues(platform, operation).Inc()
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				err = ctx.Err()
				return nil, err
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(payload)))
		if reqErr != nil {
			err = reqErr
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, doErr := client.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}

		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			lastErr = &APIError{
				Platform:   platform,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Body:       truncate(body),
			}
			continue
		}
		if resp.StatusCode >= 300 {
			err = &APIError{
				Platform:   platform,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Body:       truncate(body),
			}
			return nil, err
		}

		return body, nil
	}

	err = lastErr
	return nil, err
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}
