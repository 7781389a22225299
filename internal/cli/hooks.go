package cli

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pmux/pkg/observability"
)

var registerHooksOnce sync.Once

// registerDebugHooks routes instrumentation events to the debug log.
func registerDebugHooks(l *log.Logger) {
	registerHooksOnce.Do(func() {
		observability.SetDetectHooks(detectLogHooks{l})
		observability.SetPinHooks(pinLogHooks{l})
		observability.SetCacheHooks(cacheLogHooks{l})
		observability.SetHTTPHooks(httpLogHooks{l})
	})
}

type detectLogHooks struct{ l *log.Logger }

func (h detectLogHooks) OnDetect(_ context.Context, cwd, layer, manager string, d time.Duration) {
	if manager == "" {
		h.l.Debug("nothing detected", "cwd", cwd, "duration", d)
		return
	}
	h.l.Debug("detected", "manager", manager, "layer", layer, "cwd", cwd, "duration", d)
}

type pinLogHooks struct{ l *log.Logger }

func (h pinLogHooks) OnCacheHit(_ context.Context, name, version string) {
	h.l.Debug("pinned cache hit", "manager", name, "version", version)
}

func (h pinLogHooks) OnDownloadStart(_ context.Context, name, version string) {
	h.l.Debug("pinned download start", "manager", name, "version", version)
}

func (h pinLogHooks) OnDownloadComplete(_ context.Context, name, version string, size int64, d time.Duration, err error) {
	if err != nil {
		h.l.Debug("pinned download failed", "manager", name, "version", version, "err", err)
		return
	}
	h.l.Debug("pinned download complete", "manager", name, "version", version, "bytes", size, "duration", d)
}

type cacheLogHooks struct{ l *log.Logger }

func (h cacheLogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.l.Debug("metadata cache hit", "scope", keyType)
}

func (h cacheLogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.l.Debug("metadata cache miss", "scope", keyType)
}

func (h cacheLogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.l.Debug("metadata cache set", "scope", keyType, "bytes", size)
}

type httpLogHooks struct{ l *log.Logger }

func (h httpLogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.l.Debug("http request", "method", method, "host", host, "path", path)
}

func (h httpLogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.l.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h httpLogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.l.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
