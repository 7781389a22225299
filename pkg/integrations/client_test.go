package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/pmux/pkg/cache"
	"github.com/matzehuels/pmux/pkg/httputil"
)

func newTestClient(t *testing.T, srv *httptest.Server, headers map[string]string) (*Client, cache.Cache) {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	client := NewClient(c, "test:", time.Hour, headers)
	if srv != nil {
		client.WithHTTPClient(srv.Client())
	}
	return client, c
}

func TestNewClient(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer token"}
	client, c := newTestClient(t, nil, headers)

	if client.http == nil || client.download == nil {
		t.Error("NewClient() http clients are nil")
	}
	if client.cache != c {
		t.Error("NewClient() cache not set correctly")
	}
	if client.headers["Authorization"] != "Bearer token" {
		t.Error("NewClient() headers not set correctly")
	}

	if NewClient(nil, "", 0, nil).cache == nil {
		t.Error("NewClient(nil) should fall back to a null cache")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, nil)

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
	if !strings.HasPrefix(ua, "pmux/") {
		t.Errorf("User-Agent = %q, want pmux/ prefix", ua)
	}
}

func TestClientGetWithHeadersOverridesDefaults(t *testing.T) {
	var received string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, map[string]string{"Authorization": "Bearer default"})

	var resp map[string]string
	err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"Authorization": "Bearer override"}, &resp)
	if err != nil {
		t.Fatalf("GetWithHeaders() error: %v", err)
	}
	if received != "Bearer override" {
		t.Errorf("header = %q, want %q", received, "Bearer override")
	}
}

func TestClientGet404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, nil)

	var resp map[string]string
	err := client.Get(context.Background(), server.URL, &resp)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestClientGet500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, nil)

	var resp map[string]string
	err := client.Get(context.Background(), server.URL, &resp)
	if err == nil {
		t.Fatal("Get() should return error for 500")
	}
	if !httputil.IsRetryable(err) {
		t.Errorf("Get() error should be retryable, got %T", err)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Get() error should wrap ErrNetwork, got %v", err)
	}
}

func TestClientCached(t *testing.T) {
	client, backend := newTestClient(t, nil, nil)

	type testData struct {
		Value string `json:"value"`
	}

	fetchCount := 0
	fetch := func(v *testData) func() error {
		return func() error {
			fetchCount++
			*v = testData{Value: "fetched"}
			return nil
		}
	}

	var first testData
	if err := client.Cached(context.Background(), "key", false, &first, fetch(&first)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	var second testData
	if err := client.Cached(context.Background(), "key", false, &second, fetch(&second)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if fetchCount != 1 {
		t.Errorf("fetch count = %d, want 1", fetchCount)
	}
	if second.Value != "fetched" {
		t.Errorf("cached value = %q, want %q", second.Value, "fetched")
	}
	if _, ok, _ := backend.Get(context.Background(), "test:key"); !ok {
		t.Error("entry should be stored under the client prefix")
	}

	var third testData
	if err := client.Cached(context.Background(), "key", true, &third, fetch(&third)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if fetchCount != 2 {
		t.Errorf("refresh should bypass cache, fetch count = %d", fetchCount)
	}
}

func TestClientCachedFetchError(t *testing.T) {
	client, _ := newTestClient(t, nil, nil)

	var value string
	fetchCount := 0
	err := client.Cached(context.Background(), "missing", false, &value, func() error {
		fetchCount++
		return ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Cached() error = %v, want ErrNotFound", err)
	}
	if fetchCount != 1 {
		t.Errorf("non-retryable error should not retry, fetch count = %d", fetchCount)
	}
}

func TestClientDownload(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("tarball bytes"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, nil)
	path := filepath.Join(t.TempDir(), "pkg.tgz")

	var wrapped bool
	n, err := client.Download(context.Background(), server.URL, path, func(r io.Reader, size int64) io.Reader {
		wrapped = true
		return r
	})
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if n != int64(len("tarball bytes")) {
		t.Errorf("Download() = %d bytes", n)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "tarball bytes" {
		t.Errorf("file content = %q", data)
	}
	if !wrapped {
		t.Error("progress wrapper was not applied")
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestClientDownload404(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client, _ := newTestClient(t, server, nil)
	path := filepath.Join(t.TempDir(), "pkg.tgz")
	_, err := client.Download(context.Background(), server.URL, path, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("404 should not create the destination file")
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantType   error
		isRetryErr bool
	}{
		{name: "200 OK", code: 200},
		{name: "204 No Content", code: 204},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "429 Too Many Requests", code: 429, wantErr: true, isRetryErr: true},
		{name: "500 Internal Server Error", code: 500, wantErr: true, isRetryErr: true},
		{name: "503 Service Unavailable", code: 503, wantErr: true, isRetryErr: true},
		{name: "400 Bad Request", code: 400, wantErr: true, wantType: ErrNetwork},
		{name: "403 Forbidden", code: 403, wantErr: true, wantType: ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(&http.Response{StatusCode: tt.code, Header: http.Header{}})

			if !tt.wantErr {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("checkStatus() should return error")
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			if tt.isRetryErr != httputil.IsRetryable(err) {
				t.Errorf("checkStatus() retryable = %v, want %v", !tt.isRetryErr, tt.isRetryErr)
			}
		})
	}
}

func TestCheckStatusRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "2")

	var re *httputil.RetryableError
	if !errors.As(checkStatus(resp), &re) {
		t.Fatal("429 should be retryable")
	}
	if re.After != 2*time.Second {
		t.Errorf("After = %v, want 2s", re.After)
	}
}
