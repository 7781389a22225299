// Package distcache stores extracted package manager distributions on disk.
//
// Each cached release lives at <root>/<name>/<version>/package, mirroring the
// layout of an npm tarball after extraction. An entry is present only once
// its package.json exists; partially written entries are never visible
// because [Store.Populate] fills a staging directory and renames it into
// place.
//
// Populate takes a per-version file lock so that separate pmux processes
// racing to fetch the same release download it once between them.
package distcache
