package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/process"
)

// Execute runs the pmux CLI with os.Args and returns the error of the
// failed command, if any.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level, plus debug-logging instrumentation
//     hooks for detection, downloads and HTTP calls
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context, args []string) error {
	return newRoot(New(os.Stderr, LogInfo)).execute(ctx, args)
}

type rootCmd struct {
	cli     *CLI
	cmd     *cobra.Command
	verbose bool
}

func newRoot(c *CLI) *rootCmd {
	r := &rootCmd{cli: c, cmd: c.RootCommand()}
	r.cmd.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "enable verbose logging")
	r.cmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		level := LogInfo
		if r.verbose {
			level = LogDebug
			registerDebugHooks(c.Logger)
		}
		c.SetLogLevel(level)
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	}
	return r
}

func (r *rootCmd) setOutput(w io.Writer) {
	r.cmd.SetOut(w)
	r.cmd.SetErr(w)
}

func (r *rootCmd) execute(ctx context.Context, args []string) error {
	r.cmd.SetArgs(args)
	return r.cmd.ExecuteContext(ctx)
}

// ExitCode maps an error returned by Execute to a process exit code. A
// package manager that exited non-zero propagates its own code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if stderrors.Is(err, context.Canceled) {
		return 130
	}
	var exitErr *process.ExitError
	if stderrors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// Report prints err for the user unless the child process already did.
func Report(w io.Writer, err error) {
	if stderrors.Is(err, context.Canceled) {
		return
	}
	var exitErr *process.ExitError
	if stderrors.As(err, &exitErr) && exitErr.Output == "" {
		return
	}
	if code := errors.GetCode(err); code != "" {
		fmt.Fprintf(w, "%s %s %s\n", styleIconError.Render(iconError), errors.UserMessage(err), StyleDim.Render("("+string(code)+")"))
		return
	}
	fmt.Fprintf(w, "%s %v\n", styleIconError.Render(iconError), err)
}
