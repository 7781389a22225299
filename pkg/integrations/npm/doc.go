// Package npm is a client for npm-compatible registries.
//
// It serves two callers: the "info" command, which resolves a package spec
// to a concrete version through dist-tags, and pinned execution, which needs
// the tarball of an exact package manager release.
//
// # Usage
//
//	client, err := npm.NewClient("", cache, 24*time.Hour)
//	info, err := client.FetchPackage(ctx, "pnpm@latest-9", false)
//	fmt.Println(info.Version, info.Tarball)
//
//	n, err := client.DownloadTarball(ctx, "yarn", "1.22.19", "/tmp/yarn.tgz", nil)
//
// # Version Selection
//
// A spec without a version resolves the "latest" dist-tag. A version that
// names a dist-tag resolves through it; anything else must be an exact
// published version. Semver ranges are not resolved.
//
// # Caching
//
// Packuments are cached per package name. Pass refresh=true to bypass the
// cache. Tarballs are never cached here; see pkg/distcache.
package npm
