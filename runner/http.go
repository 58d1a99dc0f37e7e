package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIClient issues the direct HTTP calls made by api steps and assertion
// probes. It performs a single attempt per call; any retrying happens in the
// retry engine above it, never here.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client resolving relative URLs against baseURL.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve turns a spec-relative URL into an absolute one.
func (c *APIClient) Resolve(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return c.baseURL + url
}

// Do performs one HTTP call and returns the status code and response body.
// Bodies are capped at 1 MiB; assertion matchers never need more.
func (c *APIClient) Do(ctx context.Context, method, url string, headers map[string]string, body string) (int, string, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), c.Resolve(url), reader)
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, string(data), nil
}

// CheckReachable probes the base URL once. Any HTTP response counts as
// reachable; only transport-level failures do not.
func (c *APIClient) CheckReachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("target %s is not reachable: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return nil
}
