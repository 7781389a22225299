// Package ops runs high-level package operations in a project directory.
//
// Every operation follows the same path: resolve the governing package
// manager (explicitly given or detected), build the argv for the requested
// operation, turn it into an execution plan (pinned or direct), and hand the
// plan to an executor in the project directory.
//
//	r := ops.NewRunner(detect.New(), pins, process.NewOSExecutor(logger), logger)
//	err := r.Add(ctx, []string{"vue"}, ops.Options{Cwd: dir, Dev: true})
package ops

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pmux/pkg/command"
	"github.com/matzehuels/pmux/pkg/detect"
	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/manifest"
	"github.com/matzehuels/pmux/pkg/pin"
	"github.com/matzehuels/pmux/pkg/process"
)

// ErrNotDetectedMessage is the message of the NOT_DETECTED error.
const ErrNotDetectedMessage = "No package manager auto-detected."

// Options configures one operation.
type Options struct {
	// Cwd is the project directory; empty means the process working directory.
	Cwd string
	// PackageManager skips detection when set.
	PackageManager *manager.Descriptor
	// Detect controls detection when PackageManager is nil.
	Detect detect.Options

	Silent    bool
	Short     bool
	Dev       bool
	Global    bool
	Frozen    bool
	Workspace command.Workspace
	// Packages are extra packages for Dlx.
	Packages []string
	// RecreateLockfile controls Dedupe. Nil recreates only for managers
	// without a dedupe command.
	RecreateLockfile *bool
	// Env is appended to the child environment.
	Env []string
	// DryRun leaves pinned releases that are not cached yet alone and
	// plans the manager's own command instead.
	DryRun bool
}

func (o Options) dir() (string, error) {
	if o.Cwd != "" {
		return filepath.Abs(o.Cwd)
	}
	return os.Getwd()
}

func (o Options) commandOptions() command.Options {
	return command.Options{
		Short:     o.Short,
		Frozen:    o.Frozen,
		Dev:       o.Dev,
		Global:    o.Global,
		Workspace: o.Workspace,
		Packages:  o.Packages,
	}
}

// Invocation is a fully prepared operation.
type Invocation struct {
	Descriptor manager.Descriptor
	Op         command.Op
	Argv       []string
	Plan       process.Plan
	Dir        string
}

// Runner executes operations.
type Runner struct {
	Detector *detect.Detector
	Pins     *pin.Manager
	Exec     process.Executor
	Logger   *log.Logger
}

// NewRunner creates a runner. A nil detector uses [detect.New], nil pins
// disables pinned execution, a nil executor spawns real processes and a nil
// logger discards output.
func NewRunner(d *detect.Detector, pins *pin.Manager, exec process.Executor, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if d == nil {
		d = detect.New(detect.WithLogger(logger))
	}
	if exec == nil {
		exec = process.NewOSExecutor(logger)
	}
	return &Runner{Detector: d, Pins: pins, Exec: exec, Logger: logger}
}

// Resolve returns the explicit descriptor or detects one from opts.Cwd.
func (r *Runner) Resolve(ctx context.Context, opts Options) (manager.Descriptor, error) {
	if opts.PackageManager != nil && !opts.PackageManager.IsZero() {
		return opts.PackageManager.Clone(), nil
	}
	dir, err := opts.dir()
	if err != nil {
		return manager.Descriptor{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve working directory")
	}
	d, ok, err := r.Detector.Detect(ctx, dir, opts.Detect)
	if err != nil {
		return manager.Descriptor{}, err
	}
	if !ok {
		return manager.Descriptor{}, errors.New(errors.ErrCodeNotDetected, ErrNotDetectedMessage)
	}
	return d, nil
}

// Prepare resolves everything needed for op without running it. Pinned
// releases are downloaded here.
func (r *Runner) Prepare(ctx context.Context, op command.Op, co command.Options, opts Options) (Invocation, error) {
	d, err := r.Resolve(ctx, opts)
	if err != nil {
		return Invocation{}, err
	}
	dir, err := opts.dir()
	if err != nil {
		return Invocation{}, err
	}
	if err := checkWorkspace(dir, co.Workspace); err != nil {
		return Invocation{}, err
	}
	argv, err := command.Build(d, op, co)
	if err != nil {
		return Invocation{}, err
	}

	var plan process.Plan
	switch {
	case r.Pins == nil:
		plan = process.Plan{Command: d.Command, Args: argv}
	case opts.DryRun && pin.Eligible(d) && !r.Pins.Cached(d):
		r.Logger.Info("pinned release not cached, showing the unpinned command", "manager", d.Spec())
		plan = process.Plan{Command: d.Command, Args: argv}
	default:
		plan, err = r.Pins.ResolveExecution(ctx, d, argv)
		if err != nil {
			return Invocation{}, err
		}
	}
	return Invocation{Descriptor: d, Op: op, Argv: argv, Plan: plan, Dir: dir}, nil
}

// checkWorkspace rejects a named workspace that the project in dir does not
// declare. Projects without declared workspaces are left to the manager.
func checkWorkspace(dir string, ws command.Workspace) error {
	if ws.Name == "" {
		return nil
	}
	pkgs, source := manifest.WorkspacePackages(dir)
	if source == "" {
		return nil
	}
	want := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(ws.Name)), "./")
	names := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Name == ws.Name || p.Dir == want {
			return nil
		}
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workspace %q not found: %s matches no packages", ws.Name, source)
	}
	return errors.New(errors.ErrCodeInvalidInput, "workspace %q not found in %s (have %s)", ws.Name, source, strings.Join(names, ", "))
}

func (r *Runner) do(ctx context.Context, op command.Op, co command.Options, opts Options) error {
	inv, err := r.Prepare(ctx, op, co, opts)
	if err != nil {
		return err
	}
	r.Logger.Debug("running", "op", op, "manager", inv.Descriptor.Spec(), "cmd", inv.Plan.String(), "dir", inv.Dir)
	return r.Exec.Run(ctx, inv.Plan, process.Options{Dir: inv.Dir, Silent: opts.Silent, Env: opts.Env})
}

// Install installs the project's dependencies.
func (r *Runner) Install(ctx context.Context, opts Options) error {
	return r.do(ctx, command.Install, opts.commandOptions(), opts)
}

// Add adds dependencies.
func (r *Runner) Add(ctx context.Context, names []string, opts Options) error {
	co := opts.commandOptions()
	co.Names = names
	return r.do(ctx, command.Add, co, opts)
}

// Remove removes dependencies.
func (r *Runner) Remove(ctx context.Context, names []string, opts Options) error {
	co := opts.commandOptions()
	co.Names = names
	return r.do(ctx, command.Remove, co, opts)
}

// RunScript runs a package.json script (a task under deno).
func (r *Runner) RunScript(ctx context.Context, script string, args []string, opts Options) error {
	co := opts.commandOptions()
	co.Script, co.Args = script, args
	return r.do(ctx, command.Run, co, opts)
}

// Dlx downloads and executes a package binary.
func (r *Runner) Dlx(ctx context.Context, pkg string, args []string, opts Options) error {
	co := opts.commandOptions()
	co.Script, co.Args = pkg, args
	return r.do(ctx, command.Dlx, co, opts)
}

// Dedupe deduplicates the dependency tree. Managers without a dedupe
// command have their lockfiles deleted and reinstalled instead, unless
// opts.RecreateLockfile is explicitly false.
func (r *Runner) Dedupe(ctx context.Context, opts Options) error {
	d, err := r.Resolve(ctx, opts)
	if err != nil {
		return err
	}
	opts.PackageManager = &d

	_, buildErr := command.Build(d, command.Dedupe, opts.commandOptions())
	supported := buildErr == nil
	recreate := !supported
	if opts.RecreateLockfile != nil {
		recreate = *opts.RecreateLockfile
	}

	if recreate {
		dir, err := opts.dir()
		if err != nil {
			return err
		}
		for _, lf := range d.LockFiles {
			path := filepath.Join(dir, lf)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
			r.Logger.Debug("removed lockfile", "path", path)
		}
		return r.Install(ctx, opts)
	}
	if !supported {
		return buildErr
	}
	return r.do(ctx, command.Dedupe, opts.commandOptions(), opts)
}

// EnsureInstalled makes sure name is present in <cwd>/node_modules. A
// dependency already declared in package.json is restored with a plain
// install; anything else is added. It reports whether a command ran.
func (r *Runner) EnsureInstalled(ctx context.Context, name string, opts Options) (bool, error) {
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return false, err
	}
	dir, err := opts.dir()
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(filepath.Join(dir, "node_modules", filepath.FromSlash(name), "package.json")); err == nil {
		return false, nil
	}

	pkg, err := manifest.ReadDir(dir)
	switch {
	case err == nil && pkg.HasDependency(name):
		r.Logger.Debug("declared dependency missing, installing", "name", name)
		return true, r.Install(ctx, opts)
	case err != nil && !manifest.IsNotExist(err):
		return false, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read %s", filepath.Join(dir, manifest.PackageJSONFile))
	}
	return true, r.Add(ctx, []string{name}, opts)
}
