// Package observability provides instrumentation hooks for detection,
// pinned downloads, the metadata cache and outgoing HTTP calls.
//
// Libraries emit events through the registered hooks; the defaults are no-ops.
// The CLI registers debug-logging hooks under --verbose, and embedders can
// register their own (metrics, tracing) at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPinHooks(&myPinHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pin().OnDownloadStart(ctx, name, version)
//	// ... download and extract ...
//	observability.Pin().OnDownloadComplete(ctx, name, version, size, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Detect Hooks
// =============================================================================

// DetectHooks receives events from package manager detection.
type DetectHooks interface {
	// OnDetect records the outcome of one detection call. layer is the
	// evidence layer that matched ("" when nothing did).
	OnDetect(ctx context.Context, cwd, layer, manager string, duration time.Duration)
}

// =============================================================================
// Pin Hooks
// =============================================================================

// PinHooks receives events from pinned version execution.
type PinHooks interface {
	// OnCacheHit records that a pinned version was already extracted.
	OnCacheHit(ctx context.Context, name, version string)

	// OnDownloadStart records the start of a tarball download.
	OnDownloadStart(ctx context.Context, name, version string)

	// OnDownloadComplete records the end of download, verification and extraction.
	OnDownloadComplete(ctx context.Context, name, version string, size int64, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from registry metadata cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopDetectHooks is a no-op implementation of DetectHooks.
type NoopDetectHooks struct{}

func (NoopDetectHooks) OnDetect(context.Context, string, string, string, time.Duration) {}

// NoopPinHooks is a no-op implementation of PinHooks.
type NoopPinHooks struct{}

func (NoopPinHooks) OnCacheHit(context.Context, string, string)      {}
func (NoopPinHooks) OnDownloadStart(context.Context, string, string) {}
func (NoopPinHooks) OnDownloadComplete(context.Context, string, string, int64, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	detectHooks DetectHooks = NoopDetectHooks{}
	pinHooks    PinHooks    = NoopPinHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetDetectHooks registers custom detection hooks.
func SetDetectHooks(h DetectHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		detectHooks = h
	}
}

// SetPinHooks registers custom pinned execution hooks.
// This should be called once at application startup before any downloads.
func SetPinHooks(h PinHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pinHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Detect returns the registered detection hooks.
func Detect() DetectHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return detectHooks
}

// Pin returns the registered pinned execution hooks.
func Pin() PinHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pinHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	detectHooks = NoopDetectHooks{}
	pinHooks = NoopPinHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
