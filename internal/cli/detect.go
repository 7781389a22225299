package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/ops"
)

// detectCommand prints the package manager governing the project directory.
func (c *CLI) detectCommand() *cobra.Command {
	var spec bool

	cmd := &cobra.Command{
		Use:   "detect [dir]",
		Short: "Show which package manager governs a directory",
		Long: `Show which package manager governs a directory and the evidence that
selected it: the package.json "packageManager" field, a deno config,
marker or lock files, the invoking package manager's user agent, or the
path pmux was started from.

The workspaces declared in pnpm-workspace.yaml or package.json and the
commands pmux would run are listed as well.

Examples:
  pmux detect
  pmux detect ./packages/web
  pmux detect --spec          # print only NAME[@VERSION], for scripts`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			dir := c.flags.cwd
			if len(args) == 1 {
				dir = args[0]
			}

			opts := e.cfg.DetectOptions()
			opts.QuietWarnings = true
			r, ok, err := e.runner.Detector.DetectResult(ctx, dir, opts)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(errors.ErrCodeNotDetected, ops.ErrNotDetectedMessage)
			}

			if spec {
				fmt.Fprintln(cmd.OutOrStdout(), r.Descriptor.Spec())
				return nil
			}
			printDescriptor(r.Descriptor, r.Layer, r.Dir)
			printWorkspaces(r.Dir)
			printCommands(r.Descriptor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&spec, "spec", false, "print only NAME[@VERSION[+BUILD]]")
	return cmd
}
