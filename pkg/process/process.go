// Package process runs execution plans as blocking child processes.
package process

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// Plan is a ready-to-spawn invocation: either a package manager binary
// directly, or a runtime running a cached entry point.
type Plan struct {
	Command string
	Args    []string
}

// String renders the plan for display.
func (p Plan) String() string {
	return strings.Join(append([]string{p.Command}, p.Args...), " ")
}

// Equal reports whether two plans invoke the same argv.
func (p Plan) Equal(o Plan) bool {
	return p.Command == o.Command && slices.Equal(p.Args, o.Args)
}

// Options controls how a plan is spawned.
type Options struct {
	Dir string
	// Env entries are appended to the parent environment.
	Env []string
	// Silent captures output instead of inheriting the terminal. Captured
	// output is attached to the ExitError on failure.
	Silent bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor spawns plans.
type Executor interface {
	Run(ctx context.Context, plan Plan, opts Options) error
}

// ExitError reports a child that ran but exited non-zero.
type ExitError struct {
	Plan   Plan
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Plan, e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// OSExecutor runs plans with os/exec.
type OSExecutor struct {
	Logger *log.Logger
}

// NewOSExecutor returns an executor logging to logger (nil discards).
func NewOSExecutor(logger *log.Logger) *OSExecutor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &OSExecutor{Logger: logger}
}

// Run blocks until the child exits. A non-zero exit is an *ExitError; a
// child that could not be started is returned as-is.
func (x *OSExecutor) Run(ctx context.Context, plan Plan, opts Options) error {
	cmd := exec.CommandContext(ctx, plan.Command, plan.Args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var captured bytes.Buffer
	if opts.Silent {
		cmd.Stdout = &captured
		cmd.Stderr = &captured
	} else {
		cmd.Stdin = cmp.Or[io.Reader](opts.Stdin, os.Stdin)
		cmd.Stdout = cmp.Or[io.Writer](opts.Stdout, os.Stdout)
		cmd.Stderr = cmp.Or[io.Writer](opts.Stderr, os.Stderr)
	}

	if x.Logger != nil {
		x.Logger.Debug("exec", "cmd", plan.String(), "dir", opts.Dir)
	}
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Plan: plan, Code: exitErr.ExitCode(), Output: captured.String()}
	}
	return fmt.Errorf("run %s: %w", plan.Command, err)
}
