package oauth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veylhq/veyl/internal/pkg/metrics"
)

const (
	// callTimeout bounds every outbound provider call
	callTimeout = 20 * time.Second

	// maxRetries is the bounded retry count for transient failures
	maxRetries = 2

	retryBackoff = 500 * time.Millisecond
)

// newHTTPClient returns the client used for all provider calls
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: callTimeout}
}

// doWithRetry performs an HTTP request, retrying transient failures
// (network errors and 5xx responses) a small bounded number of times with
// backoff. Non-5xx responses are returned as-is; classifying them is the
// caller's job since 4xx bodies carry provider error detail.
func doWithRetry(ctx context.Context, client *http.Client, provider, operation string, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetries.WithLabelValues(provider, operation).Inc()
			select {
			case <-time.After(retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &ProviderError{
				Provider:   provider,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Body:       http.StatusText(resp.StatusCode),
			}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// getJSON issues a GET with retries and returns status code and body
func getJSON(ctx context.Context, client *http.Client, provider, operation, rawURL string, header http.Header) (int, []byte, error) {
	resp, err := doWithRetry(ctx, client, provider, operation, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

// postForm issues a form POST with retries and returns status code and body
func postForm(ctx context.Context, client *http.Client, provider, operation, rawURL string, form url.Values) (int, []byte, error) {
	encoded := form.Encode()

	resp, err := doWithRetry(ctx, client, provider, operation, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader([]byte(encoded)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

// truncateBody bounds an error body so log lines stay readable
func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}
