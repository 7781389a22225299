// Package httputil provides retry helpers for registry and tarball requests.
//
// [Retry] re-runs an operation with exponential backoff, but only for errors
// wrapped with [Retryable]. Callers decide what is transient:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Everything else, including 404s and integrity failures, is returned
// immediately:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// Process exit codes of package manager runs are never retried; that policy
// belongs to the caller.
package httputil
