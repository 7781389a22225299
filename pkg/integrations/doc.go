// Package integrations provides the HTTP plumbing shared by registry clients.
//
// [Client] wraps net/http with retry for transient failures, JSON metadata
// caching through [cache.Cache], instrumentation via observability hooks, and
// file downloads that restart cleanly on retry. Registry specifics live in
// subpackages:
//
//   - [npm]: package metadata and tarball URLs on an npm-compatible registry
//
// # Errors
//
// A 404 maps to [ErrNotFound]. Other non-2xx responses and transport failures
// wrap [ErrNetwork]; 429 and 5xx responses are retryable.
//
// [npm]: github.com/matzehuels/pmux/pkg/integrations/npm
// [cache.Cache]: github.com/matzehuels/pmux/pkg/cache.Cache
package integrations
