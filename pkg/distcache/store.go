package distcache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"

	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/manifest"
)

// HomeEnv overrides the pmux home directory.
const HomeEnv = "PMUX_HOME"

const (
	packageDir    = "package"
	lockRetry     = 100 * time.Millisecond
	stagingPrefix = ".staging-"
)

// DefaultRoot returns $PMUX_HOME/cache, falling back to ~/.pmux/cache.
func DefaultRoot() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, "cache"), nil
	}
	return homedir.Expand("~/.pmux/cache")
}

// Entry is one cached distribution.
type Entry struct {
	Name    string
	Version string
	Dir     string
	Size    int64
	ModTime time.Time
}

// Store is a distribution cache rooted at a directory.
type Store struct {
	root string
}

// New returns a store rooted at root. An empty root selects [DefaultRoot].
// The directory is created lazily.
func New(root string) (*Store, error) {
	if root == "" {
		r, err := DefaultRoot()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve cache directory")
		}
		root = r
	}
	return &Store{root: root}, nil
}

// Root returns the cache root.
func (s *Store) Root() string { return s.root }

// Dir returns <root>/<name>/<version>/package.
func (s *Store) Dir(name, version string) string {
	return filepath.Join(s.versionDir(name, version), packageDir)
}

// ManifestPath returns the package.json of a cached release.
func (s *Store) ManifestPath(name, version string) string {
	return filepath.Join(s.Dir(name, version), manifest.PackageJSONFile)
}

// Has reports whether name@version is fully cached.
func (s *Store) Has(name, version string) bool {
	info, err := os.Stat(s.ManifestPath(name, version))
	return err == nil && info.Mode().IsRegular()
}

// BinPath resolves the executable a cached release exposes under bin.
// The package.json "bin" field may be a string or a map keyed by command.
func (s *Store) BinPath(name, version, bin string) (string, error) {
	pkg, err := manifest.Read(s.ManifestPath(name, version))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidManifest, err, "read cached %s@%s", name, version)
	}
	rel, ok := pkg.Bin(bin)
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "%s@%s exposes no %q executable", name, version, bin)
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if err := errors.ValidatePath(rel); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir(name, version), filepath.FromSlash(rel)), nil
}

// Populate materializes name@version using fill, which must write the
// package contents into the staging directory it is given. If the release
// is already present, fill is not called. On any failure nothing is left
// behind at the final location.
func (s *Store) Populate(ctx context.Context, name, version string, fill func(staging string) error) error {
	if err := validateEntry(name, version); err != nil {
		return err
	}
	if s.Has(name, version) {
		return nil
	}

	parent := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}

	lock := flock.New(filepath.Join(parent, "."+version+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return err
	}
	if !locked {
		return ctx.Err()
	}
	defer lock.Unlock()

	// Another process may have finished while we waited.
	if s.Has(name, version) {
		return nil
	}

	staging := filepath.Join(parent, stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := fill(staging); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(staging, manifest.PackageJSONFile)); err != nil {
		return errors.Wrap(errors.ErrCodeExtractionFailed, err, "%s@%s: archive has no %s", name, version, manifest.PackageJSONFile)
	}

	dest := s.versionDir(name, version)
	// A previous crash can leave a directory without package.json.
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if err := os.Rename(staging, filepath.Join(dest, packageDir)); err != nil {
		os.RemoveAll(dest)
		return fmt.Errorf("install %s@%s: %w", name, version, err)
	}
	return nil
}

// List returns every complete cached release, sorted by name then version.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() || path == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), stagingPrefix) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		depth := 3
		if strings.HasPrefix(parts[0], "@") {
			depth = 4
		}
		if len(parts) < depth {
			return nil
		}
		if parts[depth-1] != packageDir {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(path, manifest.PackageJSONFile)); err != nil {
			return filepath.SkipDir
		}
		version := parts[depth-2]
		name := strings.Join(parts[:depth-2], "/")
		size, mod := dirStats(path)
		entries = append(entries, Entry{Name: name, Version: version, Dir: path, Size: size, ModTime: mod})
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Version, b.Version)
	})
	return entries, nil
}

// Remove deletes one cached release. Removing a missing entry is not an error.
func (s *Store) Remove(name, version string) error {
	if err := validateEntry(name, version); err != nil {
		return err
	}
	return os.RemoveAll(s.versionDir(name, version))
}

// Clear deletes the whole cache.
func (s *Store) Clear() error {
	return os.RemoveAll(s.root)
}

func validateEntry(name, version string) error {
	if err := errors.ValidatePackageName(name); err != nil {
		return err
	}
	if version == "" || strings.ContainsAny(version, "/\\") || version == "." || version == ".." {
		return errors.New(errors.ErrCodeInvalidInput, "invalid version %q", version)
	}
	return nil
}

func (s *Store) versionDir(name, version string) string {
	return filepath.Join(s.root, filepath.FromSlash(name), version)
}

func dirStats(dir string) (int64, time.Time) {
	var size int64
	var mod time.Time
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
			if info.ModTime().After(mod) {
				mod = info.ModTime()
			}
		}
		return nil
	})
	return size, mod
}
