package detect

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/observability"
)

// Options selects which evidence layers run. The zero value checks only the
// start directory with every layer enabled; use DefaultOptions to walk up.
type Options struct {
	IncludeParentDirs    bool
	IgnorePackageJSON    bool
	IgnoreLockFile       bool
	IgnoreRuntimeSignal  bool
	IgnoreInvocationPath bool

	// QuietWarnings stops manifest sanitization warnings from being logged.
	// They are still attached to the returned descriptor.
	QuietWarnings bool
}

// DefaultOptions walks parent directories with every layer enabled.
func DefaultOptions() Options {
	return Options{IncludeParentDirs: true}
}

// Result describes where a descriptor came from.
type Result struct {
	Descriptor manager.Descriptor
	Layer      string
	Dir        string // empty for process layers
}

// Detector runs the detection protocol.
type Detector struct {
	probe          Probe
	getenv         func(string) string
	invocationPath func() string
	logger         *log.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithProbe replaces filesystem access.
func WithProbe(p Probe) Option { return func(d *Detector) { d.probe = p } }

// WithEnv replaces os.Getenv for the runtime signal layer.
func WithEnv(getenv func(string) string) Option { return func(d *Detector) { d.getenv = getenv } }

// WithInvocationPath replaces the program path inspected by the invocation layer.
func WithInvocationPath(fn func() string) Option {
	return func(d *Detector) { d.invocationPath = fn }
}

// WithLogger sets the logger for debug output and manifest warnings.
func WithLogger(l *log.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Detector reading the real filesystem and process state.
func New(opts ...Option) *Detector {
	d := &Detector{
		probe:          OSProbe{},
		getenv:         os.Getenv,
		invocationPath: defaultInvocationPath,
		logger:         log.New(io.Discard),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func defaultInvocationPath() string {
	if len(os.Args) == 0 {
		return ""
	}
	return os.Args[0]
}

// Detect returns the package manager governing cwd.
func (d *Detector) Detect(ctx context.Context, cwd string, opts Options) (manager.Descriptor, bool, error) {
	r, ok, err := d.DetectResult(ctx, cwd, opts)
	return r.Descriptor, ok, err
}

// DetectResult is Detect with the matching layer and directory.
func (d *Detector) DetectResult(ctx context.Context, cwd string, opts Options) (Result, bool, error) {
	start := time.Now()
	r, ok, err := d.detect(ctx, cwd, opts)
	if err != nil {
		return Result{}, false, err
	}
	name := ""
	if ok {
		name = r.Descriptor.Name.String()
	}
	observability.Detect().OnDetect(ctx, cwd, r.Layer, name, time.Since(start))
	if ok && !opts.QuietWarnings {
		for _, w := range r.Descriptor.Warnings {
			d.logger.Warn(w)
		}
	}
	return r, ok, nil
}

func (d *Detector) detect(ctx context.Context, cwd string, opts Options) (Result, bool, error) {
	if cwd == "" {
		cwd = "."
	}
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return Result{}, false, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", cwd)
	}
	info, err := d.probe.Stat(dir)
	if err != nil {
		return Result{}, false, errors.Wrap(errors.ErrCodeInvalidPath, err, "read directory %s", dir)
	}
	if !info.IsDir() {
		return Result{}, false, errors.New(errors.ErrCodeInvalidPath, "%s is not a directory", dir)
	}

	dirProviders, procProviders := d.providers(opts)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}
		for _, p := range dirProviders {
			if desc, ok := p.DetectDir(ctx, dir); ok {
				d.logger.Debug("detected package manager", "manager", desc.String(), "layer", p.Layer(), "dir", dir)
				return Result{Descriptor: desc, Layer: p.Layer(), Dir: dir}, true, nil
			}
		}
		if !opts.IncludeParentDirs {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for _, p := range procProviders {
		if desc, ok := p.DetectProcess(ctx); ok {
			d.logger.Debug("detected package manager", "manager", desc.String(), "layer", p.Layer())
			return Result{Descriptor: desc, Layer: p.Layer()}, true, nil
		}
	}
	return Result{}, false, nil
}

// providers returns the enabled layers in precedence order.
func (d *Detector) providers(opts Options) ([]DirProvider, []ProcessProvider) {
	var dirs []DirProvider
	if !opts.IgnorePackageJSON {
		dirs = append(dirs, ManifestProvider{Probe: d.probe, Logger: d.logger})
	}
	if !opts.IgnoreLockFile {
		dirs = append(dirs, LockFileProvider{Probe: d.probe})
	}

	var procs []ProcessProvider
	if !opts.IgnoreRuntimeSignal {
		procs = append(procs, RuntimeSignalProvider{Getenv: d.getenv, Logger: d.logger})
	}
	if !opts.IgnoreInvocationPath {
		procs = append(procs, InvocationPathProvider{Path: d.invocationPath})
	}
	return dirs, procs
}
