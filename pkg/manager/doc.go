// Package manager defines the JavaScript package managers pmux knows about
// and the [Descriptor] that identifies one concrete manager instance.
//
// # Names
//
// [Name] is a closed enumeration: npm, yarn, pnpm, bun and deno. Code that
// varies by manager switches on a Name value rather than comparing strings.
//
// # Descriptors
//
// A [Descriptor] carries the resolved identity of a manager for a project:
// the command to invoke, an optional pinned version and build metadata, the
// lock and marker files that count as evidence for it, and any warnings
// raised while parsing the "packageManager" manifest field. Descriptors are
// values; every constructor in this package returns fresh slices so two
// descriptors never share backing arrays.
//
// # Static metadata
//
// [Known] returns the ordered metadata table used by lock file detection.
// [Lookup] selects metadata for a (name, major version) pair, preferring an
// exact major version entry over the generic one:
//
//	d := manager.Lookup(manager.Yarn, "3")
//	d.MarkerFiles // [".yarnrc.yml"]
//
// # Manifest field
//
// [ParseField] parses NAME[@VERSION[+BUILDMETA]] leniently and never fails on
// malformed input. [ParseSpec] is the strict variant used for explicit user
// overrides such as the CLI --pm flag.
package manager
