package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/matzehuels/pmux/pkg/buildinfo"
)

const (
	httpTimeout     = 30 * time.Second
	downloadTimeout = 5 * time.Minute
)

// UserAgent is sent with every registry request.
var UserAgent = "pmux/" + buildinfo.Version

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, non-2xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for metadata requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NewDownloadClient creates an HTTP client for tarball downloads.
func NewDownloadClient() *http.Client {
	return &http.Client{Timeout: downloadTimeout}
}
