package ops

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pmux/pkg/command"
	"github.com/matzehuels/pmux/pkg/detect"
	"github.com/matzehuels/pmux/pkg/distcache"
	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/integrations"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/pin"
	"github.com/matzehuels/pmux/pkg/process"
)

type call struct {
	Plan process.Plan
	Opts process.Options
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (r *recorder) Run(_ context.Context, plan process.Plan, opts process.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{plan, opts})
	return r.err
}

func (r *recorder) argv(t *testing.T) []string {
	t.Helper()
	require.Len(t, r.calls, 1)
	p := r.calls[0].Plan
	return append([]string{p.Command}, p.Args...)
}

func newRunner() (*Runner, *recorder) {
	rec := &recorder{}
	d := detect.New(
		detect.WithEnv(func(string) string { return "" }),
		detect.WithInvocationPath(func() string { return "" }),
	)
	return NewRunner(d, nil, rec, nil), rec
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func project(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("{}"), 0o644))
	}
	return dir
}

func TestInstallDetected(t *testing.T) {
	r, rec := newRunner()
	dir := project(t, "pnpm-lock.yaml")

	require.NoError(t, r.Install(context.Background(), Options{Cwd: dir, Frozen: true, Silent: true}))
	assert.Equal(t, []string{"pnpm", "install", "--frozen-lockfile"}, rec.argv(t))
	assert.Equal(t, dir, rec.calls[0].Opts.Dir)
	assert.True(t, rec.calls[0].Opts.Silent)
}

func TestAddExplicitManager(t *testing.T) {
	r, rec := newRunner()
	d := manager.New(manager.Deno, "", "")
	err := r.Add(context.Background(), []string{"left-pad"}, Options{Cwd: t.TempDir(), PackageManager: &d, Dev: true, Short: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"deno", "add", "-D", "npm:left-pad"}, rec.argv(t))
}

func TestRemoveRunDlx(t *testing.T) {
	ctx := context.Background()
	dir := project(t, "yarn.lock", ".yarnrc.yml")

	r, rec := newRunner()
	require.NoError(t, r.Remove(ctx, []string{"vue"}, Options{Cwd: dir, Workspace: command.Workspace{Name: "web"}}))
	assert.Equal(t, []string{"yarn", "workspace", "web", "remove", "vue"}, rec.argv(t))

	r, rec = newRunner()
	require.NoError(t, r.RunScript(ctx, "dev", []string{"--open"}, Options{Cwd: dir}))
	assert.Equal(t, []string{"yarn", "run", "dev", "--open"}, rec.argv(t))

	r, rec = newRunner()
	require.NoError(t, r.Dlx(ctx, "cowsay", []string{"hi"}, Options{Cwd: dir}))
	assert.Equal(t, []string{"yarn", "dlx", "cowsay", "hi"}, rec.argv(t))
}

func TestNotDetected(t *testing.T) {
	r, rec := newRunner()
	err := r.Install(context.Background(), Options{Cwd: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotDetected))
	assert.Equal(t, ErrNotDetectedMessage, errors.UserMessage(err))
	assert.Empty(t, rec.calls)
}

func TestUnsupportedHasNoSideEffects(t *testing.T) {
	r, rec := newRunner()
	dir := project(t, "deno.json")
	err := r.Dlx(context.Background(), "cowsay", nil, Options{Cwd: dir, Packages: []string{"a"}})
	assert.True(t, errors.Is(err, errors.ErrCodeUnsupported))
	assert.Empty(t, rec.calls)
}

func TestExecutorErrorPropagates(t *testing.T) {
	r, rec := newRunner()
	rec.err = &process.ExitError{Code: 1}
	err := r.Install(context.Background(), Options{Cwd: project(t, "package-lock.json")})
	var exitErr *process.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestDedupe(t *testing.T) {
	ctx := context.Background()

	t.Run("supported", func(t *testing.T) {
		r, rec := newRunner()
		dir := project(t, "package-lock.json")
		require.NoError(t, r.Dedupe(ctx, Options{Cwd: dir}))
		assert.Equal(t, []string{"npm", "dedupe"}, rec.argv(t))
		assert.FileExists(t, filepath.Join(dir, "package-lock.json"))
	})

	t.Run("recreate by default", func(t *testing.T) {
		r, rec := newRunner()
		dir := project(t, "bun.lockb", "bun.lock")
		require.NoError(t, r.Dedupe(ctx, Options{Cwd: dir}))
		assert.Equal(t, []string{"bun", "install"}, rec.argv(t))
		assert.NoFileExists(t, filepath.Join(dir, "bun.lockb"))
		assert.NoFileExists(t, filepath.Join(dir, "bun.lock"))
	})

	t.Run("recreate explicitly", func(t *testing.T) {
		r, rec := newRunner()
		dir := project(t, "pnpm-lock.yaml")
		yes := true
		require.NoError(t, r.Dedupe(ctx, Options{Cwd: dir, RecreateLockfile: &yes}))
		assert.Equal(t, []string{"pnpm", "install"}, rec.argv(t))
		assert.NoFileExists(t, filepath.Join(dir, "pnpm-lock.yaml"))
	})

	t.Run("refuse", func(t *testing.T) {
		r, rec := newRunner()
		dir := project(t, "yarn.lock")
		no := false
		err := r.Dedupe(ctx, Options{Cwd: dir, RecreateLockfile: &no})
		assert.True(t, errors.Is(err, errors.ErrCodeUnsupported))
		assert.Empty(t, rec.calls)
		assert.FileExists(t, filepath.Join(dir, "yarn.lock"))
	})
}

func TestEnsureInstalled(t *testing.T) {
	ctx := context.Background()
	dir := project(t, "package-lock.json")

	r, rec := newRunner()
	ran, err := r.EnsureInstalled(ctx, "@nuxt/kit", Options{Cwd: dir})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"npm", "install", "@nuxt/kit"}, rec.argv(t))

	pkgDir := filepath.Join(dir, "node_modules", "@nuxt", "kit")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "package.json"), []byte("{}"), 0o644))

	r, rec = newRunner()
	ran, err = r.EnsureInstalled(ctx, "@nuxt/kit", Options{Cwd: dir})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, rec.calls)

	_, err = r.EnsureInstalled(ctx, "Bad Name", Options{Cwd: dir})
	assert.Error(t, err)
}

func TestEnsureInstalledDeclaredDependency(t *testing.T) {
	dir := project(t, "pnpm-lock.yaml")
	writeFile(t, dir, "package.json", `{"devDependencies": {"vitest": "^1.0.0"}}`)

	r, rec := newRunner()
	ran, err := r.EnsureInstalled(context.Background(), "vitest", Options{Cwd: dir})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"pnpm", "install"}, rec.argv(t))

	writeFile(t, dir, "package.json", `{not json`)
	r, rec = newRunner()
	_, err = r.EnsureInstalled(context.Background(), "vitest", Options{Cwd: dir})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidManifest))
	assert.Empty(t, rec.calls)
}

func TestWorkspaceMustBeDeclared(t *testing.T) {
	ctx := context.Background()
	dir := project(t, "pnpm-lock.yaml")
	writeFile(t, dir, "pnpm-workspace.yaml", "packages:\n  - 'apps/*'\n")
	writeFile(t, dir, "apps/web/package.json", `{"name": "@acme/web"}`)

	for _, name := range []string{"@acme/web", "apps/web", "./apps/web"} {
		r, rec := newRunner()
		require.NoError(t, r.Add(ctx, []string{"vue"}, Options{Cwd: dir, Workspace: command.Workspace{Name: name}}), name)
		assert.Equal(t, []string{"pnpm", "add", "--filter", name, "vue"}, rec.argv(t))
	}

	r, rec := newRunner()
	err := r.Add(ctx, []string{"vue"}, Options{Cwd: dir, Workspace: command.Workspace{Name: "docs"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), "@acme/web")
	assert.Empty(t, rec.calls)
}

type failingFetcher struct{ t *testing.T }

func (f failingFetcher) DownloadTarball(context.Context, string, string, string, integrations.ProgressFunc) (int64, error) {
	f.t.Error("dry run must not download")
	return 0, nil
}

func TestPrepareDryRunSkipsDownload(t *testing.T) {
	store, err := distcache.New(t.TempDir())
	require.NoError(t, err)
	r, _ := newRunner()
	r.Pins = pin.New(store, failingFetcher{t})

	d := manager.New(manager.PNPM, "9.1.0", "")
	inv, err := r.Prepare(context.Background(), command.Install, command.Options{}, Options{Cwd: t.TempDir(), PackageManager: &d, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, process.Plan{Command: "pnpm", Args: []string{"install"}}, inv.Plan)
	assert.False(t, store.Has("pnpm", "9.1.0"))
}

func TestPrepare(t *testing.T) {
	r, rec := newRunner()
	dir := project(t, "package-lock.json")
	inv, err := r.Prepare(context.Background(), command.Add, command.Options{Names: []string{"vue"}}, Options{Cwd: dir})
	require.NoError(t, err)
	assert.Equal(t, manager.NPM, inv.Descriptor.Name)
	assert.Equal(t, []string{"install", "vue"}, inv.Argv)
	assert.Equal(t, process.Plan{Command: "npm", Args: []string{"install", "vue"}}, inv.Plan)
	assert.Empty(t, rec.calls)
}
