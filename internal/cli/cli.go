// Package cli implements the pmux command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pmux/pkg/buildinfo"
	"github.com/matzehuels/pmux/pkg/cache"
	"github.com/matzehuels/pmux/pkg/config"
	"github.com/matzehuels/pmux/pkg/detect"
	"github.com/matzehuels/pmux/pkg/distcache"
	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/integrations/npm"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/ops"
	"github.com/matzehuels/pmux/pkg/pin"
	"github.com/matzehuels/pmux/pkg/process"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "pmux"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// exec runs plans; nil spawns real processes.
	exec process.Executor
	// interactive reports whether prompts may be shown.
	interactive func() bool

	flags globalFlags
}

type globalFlags struct {
	cwd       string
	pm        string
	config    string
	silent    bool
	short     bool
	noParents bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:      newLogger(w, level),
		interactive: stdinIsTerminal,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pmux runs the right JavaScript package manager for a project",
		Long: `pmux detects which package manager (npm, yarn, pnpm, bun or deno) governs a
project and runs installs, scripts and one-off binaries through it. Versions
pinned in package.json's "packageManager" field are downloaded, verified and
cached so the exact release runs without a global install.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.cwd, "cwd", "C", "", "project directory (default: current directory)")
	pf.StringVar(&c.flags.pm, "pm", "", "package manager to use instead of detecting one (e.g. pnpm@9.1.0)")
	pf.StringVar(&c.flags.config, "config", "", "config file (default: $PMUX_HOME/config.toml or ~/.config/pmux/config.toml)")
	pf.BoolVarP(&c.flags.silent, "silent", "s", false, "capture package manager output unless it fails")
	pf.BoolVar(&c.flags.short, "short", false, "prefer short verbs and flags (i, -D, npx)")
	pf.BoolVar(&c.flags.noParents, "no-parents", false, "only inspect the project directory, not its ancestors")

	root.AddCommand(c.detectCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.dlxCommand())
	root.AddCommand(c.dedupeCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Environment - per-invocation wiring
// =============================================================================

// env is everything a command needs, built from config and flags.
type env struct {
	cfg      *config.Config
	metadata cache.Cache
	registry *npm.Client
	store    *distcache.Store
	pins     *pin.Manager
	runner   *ops.Runner
}

func (e *env) Close() {
	if e.metadata != nil {
		e.metadata.Close()
	}
}

// newEnv loads configuration and wires the library stack.
func (c *CLI) newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(c.flags.config)
	if err != nil {
		return nil, err
	}
	if c.flags.short {
		cfg.Short = true
	}
	if c.flags.noParents {
		cfg.Detect.NoParents = true
	}

	metadata, err := cfg.OpenMetadataCache(ctx)
	if err != nil {
		c.Logger.Warn("metadata cache unavailable, continuing without it", "err", err)
		metadata = cache.NewNullCache()
	}
	registry, err := cfg.NewRegistry(metadata)
	if err != nil {
		metadata.Close()
		return nil, err
	}
	store, err := cfg.DistStore()
	if err != nil {
		metadata.Close()
		return nil, err
	}

	pinOpts := []pin.Option{pin.WithRuntime(cfg.Runtime), pin.WithLogger(c.Logger)}
	if stderrIsTerminal() && !c.flags.silent {
		pinOpts = append(pinOpts, pin.WithProgress(newDownloadProgress(os.Stderr)))
	}
	pins := pin.New(store, registry, pinOpts...)

	detector := detect.New(detect.WithLogger(c.Logger))
	exec := c.exec
	if exec == nil {
		exec = process.NewOSExecutor(c.Logger)
	}

	return &env{
		cfg:      cfg,
		metadata: metadata,
		registry: registry,
		store:    store,
		pins:     pins,
		runner:   ops.NewRunner(detector, pins, exec, c.Logger),
	}, nil
}

// opsOptions translates global flags and config into operation options.
func (c *CLI) opsOptions(e *env) (ops.Options, error) {
	opts := ops.Options{
		Cwd:    c.flags.cwd,
		Detect: e.cfg.DetectOptions(),
		Silent: c.flags.silent,
		Short:  e.cfg.Short,
	}
	if c.flags.pm != "" {
		d, err := manager.ParseSpec(c.flags.pm)
		if err != nil {
			return opts, err
		}
		opts.PackageManager = &d
	}
	return opts, nil
}

// resolve fills opts.PackageManager, offering a picker when nothing is
// detected and the session is interactive.
func (c *CLI) resolve(ctx context.Context, e *env, opts ops.Options) (ops.Options, error) {
	d, err := e.runner.Resolve(ctx, opts)
	if err == nil {
		opts.PackageManager = &d
		return opts, nil
	}
	if !errors.Is(err, errors.ErrCodeNotDetected) || c.flags.silent || !c.interactive() {
		return opts, err
	}

	printWarning("%s", ops.ErrNotDetectedMessage)
	picked, ok, perr := pickManager()
	if perr != nil {
		return opts, perr
	}
	if !ok {
		return opts, err
	}
	opts.PackageManager = &picked
	return opts, nil
}

func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func stderrIsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}
