package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pmux/pkg/command"
	"github.com/matzehuels/pmux/pkg/ops"
	"github.com/matzehuels/pmux/pkg/process"
)

// opFlags holds flags shared by the dependency commands.
type opFlags struct {
	dev       bool
	global    bool
	frozen    bool
	workspace string
	wsRoot    bool
	dryRun    bool
}

func (f *opFlags) bindDev(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.dev, "dev", "D", false, "target devDependencies")
}

func (f *opFlags) bindGlobal(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.global, "global", "g", false, "operate on globally installed packages")
}

func (f *opFlags) bindWorkspace(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.workspace, "workspace", "w", "", "target a named workspace")
	cmd.Flags().BoolVarP(&f.wsRoot, "workspace-root", "W", false, "target the workspace root")
	cmd.MarkFlagsMutuallyExclusive("workspace", "workspace-root")
}

func (f *opFlags) bindDryRun(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the command instead of running it (pinned releases are not downloaded)")
}

func (f *opFlags) apply(opts *ops.Options) {
	opts.Dev = f.dev
	opts.Global = f.global
	opts.Frozen = f.frozen
	opts.Workspace = command.Workspace{Root: f.wsRoot, Name: f.workspace}
	opts.DryRun = f.dryRun
}

// runOp wires an environment, resolves the package manager and hands the
// prepared options to fn.
func (c *CLI) runOp(cmd *cobra.Command, f *opFlags, fn func(context.Context, *ops.Runner, ops.Options) error) error {
	ctx := cmd.Context()
	e, err := c.newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	opts, err := c.opsOptions(e)
	if err != nil {
		return err
	}
	if f != nil {
		f.apply(&opts)
	}
	if opts, err = c.resolve(ctx, e, opts); err != nil {
		return err
	}
	if f != nil && f.dryRun {
		e.runner.Exec = dryRunExecutor{w: cmd.OutOrStdout()}
	}
	return fn(ctx, e.runner, opts)
}

func (c *CLI) installCommand() *cobra.Command {
	var f opFlags

	cmd := &cobra.Command{
		Use:     "install [packages...]",
		Aliases: []string{"i"},
		Short:   "Install project dependencies, or add packages",
		Long: `Install the project's dependencies with the detected package manager.
With package arguments this behaves like "pmux add".

Examples:
  pmux install
  pmux install --frozen       # fail instead of updating the lockfile
  pmux i -D vitest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, &f, func(ctx context.Context, r *ops.Runner, opts ops.Options) error {
				if len(args) > 0 {
					return r.Add(ctx, args, opts)
				}
				return r.Install(ctx, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&f.frozen, "frozen", false, "install exactly what the lockfile records")
	f.bindDev(cmd)
	f.bindGlobal(cmd)
	f.bindWorkspace(cmd)
	f.bindDryRun(cmd)
	return cmd
}

func (c *CLI) addCommand() *cobra.Command {
	var f opFlags

	cmd := &cobra.Command{
		Use:   "add <packages...>",
		Short: "Add dependencies",
		Long: `Add dependencies with the detected package manager.

Examples:
  pmux add vue
  pmux add -D typescript @types/node
  pmux add -w web lodash      # into the "web" workspace
  pmux add -g serve`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, &f, func(ctx context.Context, r *ops.Runner, opts ops.Options) error {
				return r.Add(ctx, args, opts)
			})
		},
	}

	f.bindDev(cmd)
	f.bindGlobal(cmd)
	f.bindWorkspace(cmd)
	f.bindDryRun(cmd)
	return cmd
}

func (c *CLI) removeCommand() *cobra.Command {
	var f opFlags

	cmd := &cobra.Command{
		Use:     "remove <packages...>",
		Aliases: []string{"rm", "uninstall"},
		Short:   "Remove dependencies",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, &f, func(ctx context.Context, r *ops.Runner, opts ops.Options) error {
				return r.Remove(ctx, args, opts)
			})
		},
	}

	f.bindDev(cmd)
	f.bindGlobal(cmd)
	f.bindWorkspace(cmd)
	f.bindDryRun(cmd)
	return cmd
}

func (c *CLI) runCommand() *cobra.Command {
	var f opFlags

	cmd := &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a package.json script",
		Long: `Run a package.json script, or a deno task, with the detected package manager.
Flags after the script name are passed to the script.

Examples:
  pmux run build
  pmux run test --watch
  pmux run -w web dev`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, &f, func(ctx context.Context, r *ops.Runner, opts ops.Options) error {
				return r.RunScript(ctx, args[0], args[1:], opts)
			})
		},
	}

	cmd.Flags().SetInterspersed(false)
	f.bindWorkspace(cmd)
	f.bindDryRun(cmd)
	return cmd
}

func (c *CLI) dlxCommand() *cobra.Command {
	var (
		f        opFlags
		packages []string
	)

	cmd := &cobra.Command{
		Use:     "dlx <package> [args...]",
		Aliases: []string{"x", "exec"},
		Short:   "Download and run a package binary",
		Long: `Download a package and run its binary without adding it to the project
(npm exec, pnpm dlx, yarn dlx, bun x, deno run).

Examples:
  pmux dlx cowsay hello
  pmux dlx -p typescript -p ts-node ts-node script.ts`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOp(cmd, &f, func(ctx context.Context, r *ops.Runner, opts ops.Options) error {
				opts.Packages = packages
				return r.Dlx(ctx, args[0], args[1:], opts)
			})
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringSliceVarP(&packages, "package", "p", nil, "additional packages to install before running")
	f.bindDryRun(cmd)
	return cmd
}

func (c *CLI) dedupeCommand() *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Deduplicate dependencies",
		Long: `Deduplicate the dependency tree. Package managers without a dedupe
command (bun, deno, yarn classic) have their lockfiles deleted and
dependencies reinstalled instead.

Examples:
  pmux dedupe
  pmux dedupe --recreate-lockfile    # always delete lockfiles and reinstall`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runOp(cmd, nil, func(ctx context.Context, r *ops.Runner, opts ops.Options) error {
				if cmd.Flags().Changed("recreate-lockfile") {
					opts.RecreateLockfile = &recreate
				}
				return r.Dedupe(ctx, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&recreate, "recreate-lockfile", false, "delete lockfiles and reinstall")
	return cmd
}

// dryRunExecutor prints plans instead of running them.
type dryRunExecutor struct {
	w io.Writer
}

func (d dryRunExecutor) Run(_ context.Context, plan process.Plan, _ process.Options) error {
	_, err := fmt.Fprintln(d.w, plan.String())
	return err
}
