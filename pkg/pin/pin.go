// Package pin runs exact package manager versions from a local cache.
//
// A descriptor that names npm, pnpm or yarn classic together with an exact
// version is "pinned": instead of invoking whatever binary is on PATH, the
// release tarball is downloaded from the registry once, verified against the
// descriptor's build metadata, extracted into a [distcache.Store], and run
// through a JavaScript runtime. Everything else is invoked directly.
//
//	m := pin.New(store, registry, pin.WithLogger(logger))
//	plan, err := m.ResolveExecution(ctx, desc, []string{"install"})
//	// plan: node ~/.pmux/cache/pnpm/9.1.0/package/bin/pnpm.cjs install
package pin

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/pmux/pkg/distcache"
	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/integrations"
	"github.com/matzehuels/pmux/pkg/integrity"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/observability"
	"github.com/matzehuels/pmux/pkg/process"
)

// DefaultRuntime executes cached entry points.
const DefaultRuntime = "node"

// Fetcher downloads release tarballs. *npm.Client implements it.
type Fetcher interface {
	DownloadTarball(ctx context.Context, name, version, path string, progress integrations.ProgressFunc) (int64, error)
}

// ProgressFactory returns a progress wrapper for one download, or nil.
type ProgressFactory func(name, version string) integrations.ProgressFunc

// Manager resolves execution plans for pinned descriptors.
type Manager struct {
	store    *distcache.Store
	fetcher  Fetcher
	runtime  string
	tempDir  string
	progress ProgressFactory
	logger   *log.Logger
	group    singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithRuntime sets the executable that runs cached entry points.
func WithRuntime(runtime string) Option {
	return func(m *Manager) {
		if runtime != "" {
			m.runtime = runtime
		}
	}
}

// WithTempDir sets where tarballs are downloaded before extraction.
func WithTempDir(dir string) Option {
	return func(m *Manager) { m.tempDir = dir }
}

// WithProgress attaches a progress wrapper to every download.
func WithProgress(f ProgressFactory) Option {
	return func(m *Manager) { m.progress = f }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns a Manager storing releases in store and fetching them with f.
func New(store *distcache.Store, f Fetcher, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		fetcher: f,
		runtime: DefaultRuntime,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying distribution cache.
func (m *Manager) Store() *distcache.Store { return m.store }

// Eligible reports whether d is run from the cache: the manager must be
// published under its own name (npm, pnpm, yarn classic) and carry an exact
// MAJOR.MINOR.PATCH[-PRE] version other than the 0.0.0 placeholder.
func Eligible(d manager.Descriptor) bool {
	switch d.Name {
	case manager.NPM, manager.PNPM:
	case manager.Yarn:
		if d.IsBerry() {
			return false
		}
	default:
		return false
	}
	return d.HasVersion() && exactVersion(d.Version)
}

func exactVersion(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	core, _, _ := strings.Cut(s, "-")
	if strings.Count(core, ".") != 2 {
		return false
	}
	_, err := version.NewSemver(s)
	return err == nil
}

// ResolveExecution returns how to run d with args. Ineligible descriptors
// run d.Command directly; eligible ones run the cached entry point through
// the runtime, populating the cache first when needed.
func (m *Manager) ResolveExecution(ctx context.Context, d manager.Descriptor, args []string) (process.Plan, error) {
	if !Eligible(d) {
		cmd := d.Command
		if cmd == "" {
			cmd = d.Name.String()
		}
		return process.Plan{Command: cmd, Args: slices.Clone(args)}, nil
	}
	bin, err := m.Ensure(ctx, d)
	if err != nil {
		return process.Plan{}, err
	}
	return process.Plan{Command: m.runtime, Args: append([]string{bin}, args...)}, nil
}

// Cached reports whether d is pinned and its release is already cached.
func (m *Manager) Cached(d manager.Descriptor) bool {
	return Eligible(d) && m.store.Has(d.Name.String(), d.Version)
}

// Ensure makes sure d's release is cached and returns its entry point.
func (m *Manager) Ensure(ctx context.Context, d manager.Descriptor) (string, error) {
	if !Eligible(d) {
		return "", errors.Unsupported("%s cannot be pinned", d.Spec())
	}
	name, ver := d.Name.String(), d.Version

	if m.store.Has(name, ver) {
		observability.Pin().OnCacheHit(ctx, name, ver)
		m.logger.Debug("pinned version cached", "manager", name, "version", ver)
	} else {
		// The download is shared by every caller waiting on this version, so
		// it must not end with whichever caller started it.
		ch := m.group.DoChan(name+"@"+ver, func() (any, error) {
			return nil, m.populate(context.WithoutCancel(ctx), d)
		})
		select {
		case <-ctx.Done():
			return "", errors.Wrap(errors.ErrCodeDownloadFailed, ctx.Err(), "download %s@%s", name, ver)
		case res := <-ch:
			if res.Err != nil {
				return "", res.Err
			}
		}
	}

	bin, err := m.store.BinPath(name, ver, d.Name.String())
	if err != nil {
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeExtractionFailed
		}
		return "", errors.Wrap(code, err, "resolve %s entry point of %s@%s", d.Name, name, ver)
	}
	return bin, nil
}

func (m *Manager) populate(ctx context.Context, d manager.Descriptor) error {
	name, ver := d.Name.String(), d.Version
	var (
		ran   bool
		size  int64
		start time.Time
	)

	err := m.store.Populate(ctx, name, ver, func(staging string) error {
		ran, start = true, time.Now()
		observability.Pin().OnDownloadStart(ctx, name, ver)
		m.logger.Info("downloading pinned version", "manager", name, "version", ver)

		tmp := filepath.Join(m.tempDirOrDefault(), "pmux-"+uuid.NewString()+".tgz")
		defer os.Remove(tmp)

		var progress integrations.ProgressFunc
		if m.progress != nil {
			progress = m.progress(name, ver)
		}
		n, err := m.fetcher.DownloadTarball(ctx, name, ver, tmp, progress)
		if err != nil {
			return errors.Wrap(errors.ErrCodeDownloadFailed, err, "download %s@%s", name, ver)
		}
		size = n

		if d.BuildMeta != "" {
			ok, err := integrity.Verify(tmp, d.BuildMeta)
			if err != nil {
				return errors.Wrap(errors.ErrCodeIntegrityMismatch, err, "verify %s@%s", name, ver)
			}
			if !ok {
				return errors.New(errors.ErrCodeIntegrityMismatch, "%s@%s does not match %s", name, ver, d.BuildMeta)
			}
		}

		if err := distcache.ExtractTarball(tmp, staging); err != nil {
			return errors.Wrap(errors.ErrCodeExtractionFailed, err, "extract %s@%s", name, ver)
		}
		return nil
	})
	if err != nil && errors.GetCode(err) == "" {
		err = errors.Wrap(errors.ErrCodeExtractionFailed, err, "install %s@%s", name, ver)
	}

	if ran {
		observability.Pin().OnDownloadComplete(ctx, name, ver, size, time.Since(start), err)
	}
	if err != nil {
		m.logger.Debug("pinned version failed", "manager", name, "version", ver, "err", err)
	}
	return err
}

func (m *Manager) tempDirOrDefault() string {
	if m.tempDir != "" {
		return m.tempDir
	}
	return os.TempDir()
}
