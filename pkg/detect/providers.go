package detect

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/manifest"
)

// Layer names reported to hooks and logs.
const (
	LayerManifest       = "manifest"
	LayerLockFile       = "lockfile"
	LayerRuntimeSignal  = "runtime"
	LayerInvocationPath = "invocation"
)

// DirProvider finds evidence inside a single directory.
type DirProvider interface {
	Layer() string
	DetectDir(ctx context.Context, dir string) (manager.Descriptor, bool)
}

// ProcessProvider finds evidence in the running process.
type ProcessProvider interface {
	Layer() string
	DetectProcess(ctx context.Context) (manager.Descriptor, bool)
}

// =============================================================================
// Manifest
// =============================================================================

// denoConfigFiles count as deno evidence at the manifest layer.
var denoConfigFiles = []string{"deno.json", "deno.jsonc"}

// ManifestProvider reads the "packageManager" field of package.json.
type ManifestProvider struct {
	Probe  Probe
	Logger *log.Logger
}

func (p ManifestProvider) Layer() string { return LayerManifest }

func (p ManifestProvider) DetectDir(_ context.Context, dir string) (manager.Descriptor, bool) {
	if d, ok := p.fromPackageJSON(dir); ok {
		return d, true
	}
	for _, name := range denoConfigFiles {
		if exists(p.Probe, filepath.Join(dir, name)) {
			return manager.Lookup(manager.Deno, ""), true
		}
	}
	return manager.Descriptor{}, false
}

func (p ManifestProvider) fromPackageJSON(dir string) (manager.Descriptor, bool) {
	path := filepath.Join(dir, manifest.PackageJSONFile)
	data, err := p.Probe.ReadFile(path)
	if err != nil {
		return manager.Descriptor{}, false
	}
	pkg, err := manifest.Parse(data)
	if err != nil {
		p.Logger.Debug("ignoring malformed manifest", "path", path, "error", err)
		return manager.Descriptor{}, false
	}
	raw, ok := pkg.PackageManager()
	if !ok {
		return manager.Descriptor{}, false
	}
	field, ok := manager.ParseField(raw)
	if !ok {
		p.Logger.Debug("ignoring empty packageManager field", "path", path, "value", raw)
		return manager.Descriptor{}, false
	}
	d, ok := field.Descriptor()
	if !ok {
		p.Logger.Debug("ignoring unknown package manager", "path", path, "name", field.Name)
		return manager.Descriptor{}, false
	}
	return d, true
}

// =============================================================================
// Lock files
// =============================================================================

// LockFileProvider reports the first manager whose marker or lock file
// exists. Marker files are checked before lock files so that a directory
// holding yarn.lock and .yarnrc.yml resolves to berry, not classic.
type LockFileProvider struct {
	Probe Probe
}

func (p LockFileProvider) Layer() string { return LayerLockFile }

func (p LockFileProvider) DetectDir(_ context.Context, dir string) (manager.Descriptor, bool) {
	known := manager.Known()
	for _, d := range known {
		if p.anyExists(dir, d.MarkerFiles) {
			return d, true
		}
	}
	for _, d := range known {
		if p.anyExists(dir, d.LockFiles) {
			return d, true
		}
	}
	return manager.Descriptor{}, false
}

func (p LockFileProvider) anyExists(dir string, names []string) bool {
	return slices.ContainsFunc(names, func(name string) bool {
		return exists(p.Probe, filepath.Join(dir, name))
	})
}

// =============================================================================
// Runtime signal
// =============================================================================

// UserAgentEnv is set by npm, yarn, pnpm and bun for child processes,
// e.g. "pnpm/9.1.0 npm/? node/v20.11.0 linux x64".
const UserAgentEnv = "npm_config_user_agent"

// RuntimeSignalProvider reads the launching manager from the environment.
type RuntimeSignalProvider struct {
	Getenv func(string) string
	Logger *log.Logger
}

func (p RuntimeSignalProvider) Layer() string { return LayerRuntimeSignal }

func (p RuntimeSignalProvider) DetectProcess(context.Context) (manager.Descriptor, bool) {
	ua := strings.TrimSpace(p.Getenv(UserAgentEnv))
	if ua == "" {
		return manager.Descriptor{}, false
	}
	first, _, _ := strings.Cut(ua, " ")
	name, v, _ := strings.Cut(first, "/")
	n, ok := manager.ParseName(name)
	if !ok {
		p.Logger.Debug("ignoring user agent", "value", ua)
		return manager.Descriptor{}, false
	}
	if !validVersion(v) {
		v = ""
	}
	return manager.New(n, v, ""), true
}

func validVersion(v string) bool {
	_, err := version.NewVersion(v)
	return err == nil
}

// =============================================================================
// Invocation path
// =============================================================================

// InvocationPathProvider matches a path segment of the invoked program
// against manager commands, with or without a leading dot.
type InvocationPathProvider struct {
	Path func() string
}

func (p InvocationPathProvider) Layer() string { return LayerInvocationPath }

func (p InvocationPathProvider) DetectProcess(context.Context) (manager.Descriptor, bool) {
	path := p.Path()
	if path == "" {
		return manager.Descriptor{}, false
	}
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	for _, d := range manager.Known() {
		for _, seg := range segments {
			if seg == d.Command || seg == "."+d.Command {
				return d, true
			}
		}
	}
	return manager.Descriptor{}, false
}
