// Package pkg provides the libraries behind pmux, a runner that picks the
// right JavaScript package manager for a project and executes it.
//
// # Overview
//
// A project is governed by one of npm, yarn (classic or berry), pnpm, bun or
// deno. pmux finds out which one from the evidence on disk and in the process
// environment, translates a high-level operation (install, add, run, ...)
// into that manager's argv, and runs it. When package.json pins an exact
// version ("packageManager": "pnpm@9.1.0"), that release is downloaded from
// the registry, verified, cached and run through the JavaScript runtime
// instead of whatever happens to be on PATH.
//
// # Architecture
//
//	cwd ──▶ [detect] ──▶ manager.Descriptor
//	                          │
//	              [command].Build(op, options) ──▶ argv
//	                          │
//	           [pin].ResolveExecution ──▶ process.Plan
//	            │  (pinned: registry ▶ integrity ▶ distcache)
//	            ▼
//	       [process].Executor.Run
//
// [ops] strings these steps together and is what the CLI calls.
//
// # Main Packages
//
// ## Domain
//
// [manager] - The package manager table, descriptors, the packageManager
// field grammar and explicit NAME@VERSION overrides.
//
// [detect] - Layered detection: manifest field, deno config, marker files,
// lock files, the npm_config_user_agent signal and the invocation path.
//
// [command] - Per-manager argv for install, add, remove, run, dlx and dedupe.
//
// [ops] - High-level operations in a project directory.
//
// ## Pinned execution
//
// [pin] - Decides when a declared version can be pinned and produces
// execution plans, populating the cache at most once per version.
//
// [distcache] - On-disk store of extracted releases guarded by file locks.
//
// [integrity] - Verifies downloads against SRI, prefixed or bare hex digests.
//
// ## Infrastructure
//
// [integrations] and [integrations/npm] - Registry HTTP client with retries
// and cached metadata.
//
// [cache] - Metadata cache backends: file, Redis and a no-op cache.
//
// [config] - TOML configuration with environment overrides.
//
// [observability] - Hooks for detection, downloads, cache and HTTP events.
//
// [errors] - Coded errors shared by every package.
//
// # Quick Start
//
//	store, _ := distcache.New("")
//	registry, _ := npm.NewClient("", cache.NewNullCache(), time.Hour)
//	r := ops.NewRunner(detect.New(), pin.New(store, registry), nil, nil)
//	err := r.Install(ctx, ops.Options{Cwd: "./app", Detect: detect.DefaultOptions()})
//
// # Testing
//
//	go test ./pkg/...
//
// [manager]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/manager
// [detect]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/detect
// [command]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/command
// [ops]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/ops
// [pin]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/pin
// [distcache]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/distcache
// [integrity]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/integrity
// [integrations]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/integrations
// [integrations/npm]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/integrations/npm
// [cache]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/pmux/pkg/errors
package pkg
