// Package detect determines which package manager governs a directory tree.
//
// Detection is an ordered list of evidence providers. Directory providers
// inspect one directory at a time while the [Detector] walks from the start
// directory toward the filesystem root:
//
//  1. [ManifestProvider]: the "packageManager" field of package.json, or a
//     deno config file.
//  2. [LockFileProvider]: marker files (pnpm-workspace.yaml, .yarnrc.yml,
//     deno.json) and then lock files, each in table order.
//
// The first directory with a match wins. When the walk finds nothing,
// process providers run once:
//
//  3. [RuntimeSignalProvider]: the npm_config_user_agent environment variable
//     set by the manager that launched this process.
//  4. [InvocationPathProvider]: a path segment of the invoked program naming
//     a manager, such as ~/.pnpm/... or node_modules/.npm/....
//
// No match is a normal outcome and is reported as ok == false. Malformed
// project files never produce errors; only a start directory that cannot be
// read does.
//
//	d, ok, err := detect.New().Detect(ctx, ".", detect.DefaultOptions())
package detect
