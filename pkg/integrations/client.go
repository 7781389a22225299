package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/matzehuels/pmux/pkg/cache"
	"github.com/matzehuels/pmux/pkg/httputil"
	"github.com/matzehuels/pmux/pkg/observability"
)

// Client provides shared HTTP functionality for registry clients.
// It handles metadata caching, retry logic, and common request headers.
type Client struct {
	http     *http.Client
	download *http.Client
	cache    cache.Cache
	prefix   string
	ttl      time.Duration
	headers  map[string]string
}

// NewClient creates a Client backed by c. Keys passed to [Client.Cached] are
// stored under prefix with the given ttl. Headers are applied to all requests
// made through this client; pass nil if none are needed. A nil cache disables
// caching.
func NewClient(c cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:     NewHTTPClient(),
		download: NewDownloadClient(),
		cache:    c,
		prefix:   prefix,
		ttl:      ttl,
		headers:  headers,
	}
}

// WithHTTPClient replaces both the metadata and download HTTP clients.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	c.download = h
	return c
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	key = c.prefix + key
	if !refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if json.Unmarshal(data, v) == nil {
				return nil
			}
		}
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	resp, err := c.doRequest(ctx, c.http, url, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// ProgressFunc wraps a response body, e.g. to drive a progress bar.
// size is -1 when the server did not send a Content-Length.
type ProgressFunc func(r io.Reader, size int64) io.Reader

// Download streams url into the file at path, creating or truncating it on
// every attempt. Transient failures are retried. It returns the number of
// bytes written.
func (c *Client) Download(ctx context.Context, url, path string, progress ProgressFunc) (int64, error) {
	var written int64
	err := httputil.RetryWithBackoff(ctx, func() error {
		resp, err := c.doRequest(ctx, c.download, url, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		var body io.Reader = resp.Body
		if progress != nil {
			body = progress(body, resp.ContentLength)
		}
		n, copyErr := io.Copy(f, body)
		closeErr := f.Close()
		if copyErr != nil {
			return httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, copyErr))
		}
		if closeErr != nil {
			return closeErr
		}
		written = n
		return nil
	})
	return written, err
}

func (c *Client) doRequest(ctx context.Context, hc *http.Client, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := hc.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code == http.StatusServiceUnavailable:
		after := httputil.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return httputil.RetryAfter(fmt.Errorf("%w: status %d", ErrNetwork, code), after)
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
