// Package command builds package manager argv for high-level operations.
//
// [Build] is a pure function of a descriptor, an [Op] and [Options]: it
// performs no I/O and never mutates its inputs. The returned argv excludes
// the executable, so it can be handed to a pinned execution plan or run
// against d.Command directly. [Format] renders the full command line for
// display, using the short launchers (npx, pnpx, bunx) when asked to.
package command

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/manager"
)

// Op is a package manager operation.
type Op int

const (
	Install Op = iota
	Add
	Remove
	Run
	Dlx
	Dedupe
)

var opNames = [...]string{"install", "add", "remove", "run", "dlx", "dedupe"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Workspace selects a workspace target. The zero value targets nothing.
type Workspace struct {
	Root bool   // the workspace root / all workspaces
	Name string // a named workspace package; wins over Root
}

// IsZero reports whether no workspace is targeted.
func (w Workspace) IsZero() bool { return !w.Root && w.Name == "" }

// Options parameterizes an operation. Fields irrelevant to an operation are
// ignored.
type Options struct {
	// Short selects abbreviated verbs and flags (i, -D) over long ones.
	Short bool
	// Frozen installs strictly from the lockfile.
	Frozen bool
	Dev    bool
	Global bool

	Workspace Workspace

	// Names are the dependencies for Add and Remove.
	Names []string
	// Script is the script for Run, or the package to execute for Dlx.
	Script string
	// Packages are extra packages made available to a Dlx invocation.
	Packages []string
	// Args are passed through after the script or package.
	Args []string
}

// Build returns the argv (without the executable) that performs op with
// the manager described by d.
func Build(d manager.Descriptor, op Op, opts Options) ([]string, error) {
	if !d.Name.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no package manager")
	}
	switch op {
	case Install:
		return install(d, opts), nil
	case Add:
		return add(d, opts)
	case Remove:
		return remove(d, opts)
	case Run:
		return run(d, opts)
	case Dlx:
		return dlx(d, opts)
	case Dedupe:
		return dedupe(d, opts)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown operation %d", op)
	}
}

func install(d manager.Descriptor, opts Options) []string {
	verb := "install"
	if opts.Short {
		verb = "i"
	}
	if !opts.Frozen {
		return []string{verb}
	}
	switch d.Name {
	case manager.NPM:
		return []string{"ci"}
	case manager.Yarn:
		if d.IsBerry() {
			return []string{verb, "--immutable"}
		}
		return []string{verb, "--frozen-lockfile"}
	case manager.Deno:
		return []string{verb, "--frozen"}
	default:
		return []string{verb, "--frozen-lockfile"}
	}
}

func add(d manager.Descriptor, opts Options) ([]string, error) {
	if len(opts.Names) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no dependencies to add")
	}
	ws, err := workspaceArgs(d, opts.Workspace)
	if err != nil {
		return nil, err
	}
	names := opts.Names
	if d.Name == manager.Deno {
		names = denoNames(names)
	}

	var args []string
	switch d.Name {
	case manager.Yarn:
		args = append(args, ws...)
		if opts.Global {
			if d.IsBerry() {
				return nil, errors.Unsupported("yarn %s has no global add", d.Dialect())
			}
			args = append(args, "global")
		}
		args = append(args, "add")
		args = appendIf(args, opts.Dev, devFlag(d, opts.Short))
	case manager.Deno:
		if opts.Global {
			args = append(args, "install", "-g")
		} else {
			args = append(args, "add")
		}
		args = append(args, ws...)
		args = appendIf(args, opts.Dev, devFlag(d, opts.Short))
	default:
		verb := "add"
		if d.Name == manager.NPM {
			verb = "install"
			if opts.Short {
				verb = "i"
			}
		}
		args = append(args, verb)
		args = append(args, ws...)
		args = appendIf(args, opts.Dev, devFlag(d, opts.Short))
		args = appendIf(args, opts.Global, "-g")
	}
	return append(args, names...), nil
}

func remove(d manager.Descriptor, opts Options) ([]string, error) {
	if len(opts.Names) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no dependencies to remove")
	}
	ws, err := workspaceArgs(d, opts.Workspace)
	if err != nil {
		return nil, err
	}

	var args []string
	switch d.Name {
	case manager.Yarn:
		args = append(args, ws...)
		if opts.Global {
			if d.IsBerry() {
				return nil, errors.Unsupported("yarn %s has no global remove", d.Dialect())
			}
			args = append(args, "global")
		}
		args = append(args, "remove")
	case manager.Deno:
		if opts.Global {
			args = append(args, "uninstall", "-g")
		} else {
			args = append(args, "remove")
		}
		args = append(args, ws...)
	default:
		verb := "remove"
		if d.Name == manager.NPM {
			verb = "uninstall"
		}
		args = append(args, verb)
		args = append(args, ws...)
		// bun removes from every dependency group and rejects --dev here.
		args = appendIf(args, opts.Dev && d.Name != manager.Bun, devFlag(d, opts.Short))
		args = appendIf(args, opts.Global, "-g")
	}
	return append(args, opts.Names...), nil
}

func run(d manager.Descriptor, opts Options) ([]string, error) {
	if opts.Script == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no script to run")
	}
	ws, err := workspaceArgs(d, opts.Workspace)
	if err != nil {
		return nil, err
	}

	var args []string
	switch d.Name {
	case manager.Yarn:
		args = append(args, ws...)
		args = append(args, "run")
	case manager.Deno:
		args = append(args, "task")
	default:
		args = append(args, "run")
		args = append(args, ws...)
	}
	args = append(args, opts.Script)
	return append(args, opts.Args...), nil
}

func dlx(d manager.Descriptor, opts Options) ([]string, error) {
	if opts.Script == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no package to execute")
	}

	var args []string
	pkg := opts.Script
	switch d.Name {
	case manager.NPM:
		args = []string{"exec"}
	case manager.PNPM:
		args = []string{"dlx"}
	case manager.Bun:
		args = []string{"x"}
	case manager.Yarn:
		if !d.IsBerry() {
			return nil, errors.Unsupported("yarn classic has no dlx")
		}
		args = []string{"dlx"}
	case manager.Deno:
		if len(opts.Packages) > 0 {
			return nil, errors.Unsupported("deno run -A does not support multiple packages")
		}
		args = []string{"run", "-A"}
		if !strings.HasPrefix(pkg, "npm:") {
			pkg = "npm:" + pkg
		}
	}

	flag := "--package"
	if opts.Short && (d.Name == manager.NPM || d.Name == manager.Yarn) {
		flag = "-p"
	}
	for _, p := range opts.Packages {
		args = append(args, flag+"="+p)
	}
	args = append(args, pkg)
	return append(args, opts.Args...), nil
}

func dedupe(d manager.Descriptor, opts Options) ([]string, error) {
	switch {
	case d.Name == manager.NPM, d.Name == manager.PNPM, d.Name == manager.Yarn && d.IsBerry():
		return []string{"dedupe"}, nil
	default:
		return nil, errors.Unsupported("%s does not support dedupe", d)
	}
}

func workspaceArgs(d manager.Descriptor, ws Workspace) ([]string, error) {
	if ws.IsZero() {
		return nil, nil
	}
	if ws.Name != "" {
		switch d.Name {
		case manager.NPM:
			return []string{"-w", ws.Name}, nil
		case manager.PNPM, manager.Bun:
			return []string{"--filter", ws.Name}, nil
		case manager.Yarn:
			if d.IsBerry() {
				return []string{"workspace", ws.Name}, nil
			}
			return []string{"--cwd", ws.Name}, nil
		default:
			return nil, errors.Unsupported("%s does not support workspace targeting", d.Name)
		}
	}
	switch {
	case d.Name == manager.NPM:
		return []string{"--workspaces"}, nil
	case d.Name == manager.PNPM:
		return []string{"--workspace-root"}, nil
	case d.Name == manager.Yarn && !d.IsBerry():
		return []string{"-W"}, nil
	default:
		return nil, nil
	}
}

func devFlag(d manager.Descriptor, short bool) string {
	switch {
	case short:
		return "-D"
	case d.Name == manager.NPM, d.Name == manager.PNPM:
		return "--save-dev"
	default:
		return "--dev"
	}
}

var schemeRE = regexp.MustCompile(`^(npm|jsr|file):.+$`)

// denoNames returns names with bare registry names rewritten to npm:NAME.
func denoNames(names []string) []string {
	out := slices.Clone(names)
	for i, n := range out {
		if !schemeRE.MatchString(n) {
			out[i] = "npm:" + n
		}
	}
	return out
}

func appendIf(args []string, cond bool, v string) []string {
	if cond {
		return append(args, v)
	}
	return args
}

// Format renders the full command line for op, quoting arguments that need
// it. With opts.Short, dlx uses the short launchers npx, pnpx and bunx.
func Format(d manager.Descriptor, op Op, opts Options) (string, error) {
	args, err := Build(d, op, opts)
	if err != nil {
		return "", err
	}
	exe := d.Command
	if exe == "" {
		exe = d.Name.String()
	}
	if op == Dlx && opts.Short {
		switch d.Name {
		case manager.NPM:
			exe, args = "npx", args[1:]
		case manager.PNPM:
			exe, args = "pnpx", args[1:]
		case manager.Bun:
			exe, args = "bunx", args[1:]
		}
	}
	return Join(append([]string{exe}, args...)), nil
}

// Join quotes and joins argv for display.
func Join(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'$`\\") {
			a = strconv.Quote(a)
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
