package pin

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pmux/pkg/distcache"
	"github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/integrations"
	"github.com/matzehuels/pmux/pkg/integrations/npm"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/process"
)

func packTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

type registry struct {
	srv       *httptest.Server
	tarballs  map[string][]byte
	downloads atomic.Int32

	// When set, tarball requests signal started and block until release
	// is closed.
	started chan struct{}
	release chan struct{}
}

func newRegistry(t *testing.T) *registry {
	t.Helper()
	reg := &registry{tarballs: map[string][]byte{
		"pnpm-9.1.0.tgz": packTarball(t, map[string]string{
			"package/package.json": `{"name":"pnpm","version":"9.1.0","bin":{"pnpm":"bin/pnpm.cjs","pnpx":"bin/pnpx.cjs"}}`,
			"package/bin/pnpm.cjs": "#!/usr/bin/env node",
		}),
		"yarn-1.22.19.tgz": packTarball(t, map[string]string{
			"package/package.json": `{"name":"yarn","bin":{"yarn":"./bin/yarn.js","yarnpkg":"./bin/yarn.js"}}`,
			"package/bin/yarn.js":  "#!/usr/bin/env node",
		}),
		"npm-10.2.0.tgz": packTarball(t, map[string]string{
			"package/package.json":   `{"name":"npm","bin":{"npm":"bin/npm-cli.js"}}`,
			"package/bin/npm-cli.js": "#!/usr/bin/env node",
		}),
		"pnpm-8.0.0.tgz": []byte("this is not gzip"),
		"pnpm-8.1.0.tgz": packTarball(t, map[string]string{"package/README.md": "no manifest"}),
	}}

	r := chi.NewRouter()
	r.Get("/{name}/-/{file}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := reg.tarballs[chi.URLParam(r, "file")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		reg.downloads.Add(1)
		if reg.release != nil {
			reg.started <- struct{}{}
			<-reg.release
		}
		w.Write(data)
	})
	reg.srv = httptest.NewServer(r)
	t.Cleanup(reg.srv.Close)
	return reg
}

func newManager(t *testing.T, reg *registry, opts ...Option) (*Manager, string) {
	t.Helper()
	client, err := npm.NewClient(reg.srv.URL, nil, 0)
	require.NoError(t, err)
	client.WithHTTPClient(reg.srv.Client())

	store, err := distcache.New(t.TempDir())
	require.NoError(t, err)
	tmp := t.TempDir()
	return New(store, client, append([]Option{WithTempDir(tmp)}, opts...)...), tmp
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestEligible(t *testing.T) {
	tests := []struct {
		desc manager.Descriptor
		want bool
	}{
		{manager.New(manager.PNPM, "9.1.0", ""), true},
		{manager.New(manager.NPM, "10.2.0", ""), true},
		{manager.New(manager.Yarn, "1.22.19", ""), true},
		{manager.New(manager.PNPM, "9.0.0-rc.1", ""), true},
		{manager.New(manager.Yarn, "3.6.0", ""), false},
		{manager.New(manager.Bun, "1.1.0", ""), false},
		{manager.New(manager.Deno, "1.40.0", ""), false},
		{manager.New(manager.PNPM, "0.0.0", ""), false},
		{manager.New(manager.PNPM, "", ""), false},
		{manager.New(manager.PNPM, "9", ""), false},
		{manager.New(manager.PNPM, "9.1", ""), false},
		{manager.New(manager.PNPM, "latest", ""), false},
		{manager.New(manager.PNPM, "v9.1.0", ""), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Eligible(tt.desc), tt.desc.Spec())
	}
}

func TestResolveExecutionDirect(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg)

	args := []string{"install"}
	for _, d := range []manager.Descriptor{
		manager.Lookup(manager.PNPM, ""),
		manager.New(manager.Bun, "1.1.0", ""),
		manager.New(manager.Yarn, "4.0.0", ""),
	} {
		plan, err := m.ResolveExecution(context.Background(), d, args)
		require.NoError(t, err)
		assert.Equal(t, process.Plan{Command: d.Command, Args: []string{"install"}}, plan)
	}
	assert.Zero(t, reg.downloads.Load())
}

func TestResolveExecutionPinned(t *testing.T) {
	reg := newRegistry(t)
	m, tmp := newManager(t, reg)
	d := manager.New(manager.PNPM, "9.1.0", "")

	first, err := m.ResolveExecution(context.Background(), d, []string{"install", "--frozen-lockfile"})
	require.NoError(t, err)
	bin := filepath.Join(m.Store().Root(), "pnpm", "9.1.0", "package", "bin", "pnpm.cjs")
	assert.Equal(t, process.Plan{Command: "node", Args: []string{bin, "install", "--frozen-lockfile"}}, first)

	second, err := m.ResolveExecution(context.Background(), d, []string{"install", "--frozen-lockfile"})
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
	assert.Equal(t, int32(1), reg.downloads.Load())

	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestResolveExecutionYarnClassicAndNpm(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg, WithRuntime("bun"))

	plan, err := m.ResolveExecution(context.Background(), manager.New(manager.Yarn, "1.22.19", ""), []string{"add", "left-pad"})
	require.NoError(t, err)
	assert.Equal(t, "bun", plan.Command)
	assert.Equal(t, "yarn.js", filepath.Base(plan.Args[0]))
	assert.Equal(t, []string{"add", "left-pad"}, plan.Args[1:])

	bin, err := m.Ensure(context.Background(), manager.New(manager.NPM, "10.2.0", ""))
	require.NoError(t, err)
	assert.Equal(t, "npm-cli.js", filepath.Base(bin))
}

func TestResolveExecutionIntegrity(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg)
	good := "sha256." + sha256Hex(reg.tarballs["pnpm-9.1.0.tgz"])
	bad := "sha256." + sha256Hex([]byte("something else"))

	_, err := m.ResolveExecution(context.Background(), manager.New(manager.PNPM, "9.1.0", bad), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeIntegrityMismatch))
	assert.Contains(t, err.Error(), "pnpm@9.1.0")
	assert.False(t, m.Store().Has("pnpm", "9.1.0"))
	assert.NoDirExists(t, filepath.Join(m.Store().Root(), "pnpm", "9.1.0"))

	_, err = m.ResolveExecution(context.Background(), manager.New(manager.PNPM, "9.1.0", good), nil)
	require.NoError(t, err)
	assert.True(t, m.Store().Has("pnpm", "9.1.0"))
}

func TestResolveExecutionUnknownDigestFormat(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg)

	_, err := m.ResolveExecution(context.Background(), manager.New(manager.PNPM, "9.1.0", "md5.abcdef"), nil)
	require.NoError(t, err)
}

func TestResolveExecutionFailures(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg)

	tests := []struct {
		version string
		code    errors.Code
	}{
		{"7.0.0", errors.ErrCodeDownloadFailed},
		{"8.0.0", errors.ErrCodeExtractionFailed},
		{"8.1.0", errors.ErrCodeExtractionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			_, err := m.ResolveExecution(context.Background(), manager.New(manager.PNPM, tt.version, ""), nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Contains(t, err.Error(), "pnpm@"+tt.version)
			assert.NoDirExists(t, filepath.Join(m.Store().Root(), "pnpm", tt.version))
		})
	}
}

func TestResolveExecutionConcurrent(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg)
	d := manager.New(manager.PNPM, "9.1.0", "")

	const n = 8
	plans := make([]process.Plan, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, err := m.ResolveExecution(context.Background(), d, []string{"-v"})
			assert.NoError(t, err)
			plans[i] = plan
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), reg.downloads.Load())
	for _, p := range plans[1:] {
		assert.True(t, plans[0].Equal(p))
	}
	assert.FileExists(t, m.Store().ManifestPath("pnpm", "9.1.0"))
}

func TestEnsureSurvivesFirstCallerCancel(t *testing.T) {
	reg := newRegistry(t)
	reg.started = make(chan struct{}, 1)
	reg.release = make(chan struct{})
	m, _ := newManager(t, reg)
	d := manager.New(manager.PNPM, "9.1.0", "")

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := m.Ensure(ctxA, d)
		errA <- err
	}()
	<-reg.started

	errB := make(chan error, 1)
	go func() {
		_, err := m.Ensure(context.Background(), d)
		errB <- err
	}()

	cancelA()
	err := <-errA
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.Is(err, errors.ErrCodeDownloadFailed))

	close(reg.release)
	require.NoError(t, <-errB)
	assert.Equal(t, int32(1), reg.downloads.Load())
	assert.FileExists(t, m.Store().ManifestPath("pnpm", "9.1.0"))
}

func TestResolveExecutionSeparateManagers(t *testing.T) {
	// Two managers sharing a cache root model two processes.
	reg := newRegistry(t)
	client, err := npm.NewClient(reg.srv.URL, nil, 0)
	require.NoError(t, err)
	client.WithHTTPClient(reg.srv.Client())
	root := t.TempDir()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := distcache.New(root)
			assert.NoError(t, err)
			_, err = New(store, client).Ensure(context.Background(), manager.New(manager.Yarn, "1.22.19", ""))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), reg.downloads.Load())
}

func TestEnsureIneligible(t *testing.T) {
	reg := newRegistry(t)
	m, _ := newManager(t, reg)
	_, err := m.Ensure(context.Background(), manager.New(manager.Bun, "1.1.0", ""))
	assert.True(t, errors.Is(err, errors.ErrCodeUnsupported))
}

func TestProgressFactory(t *testing.T) {
	reg := newRegistry(t)
	var label string
	m, _ := newManager(t, reg, WithProgress(func(name, version string) integrations.ProgressFunc {
		label = name + "@" + version
		return nil
	}))
	_, err := m.Ensure(context.Background(), manager.New(manager.PNPM, "9.1.0", ""))
	require.NoError(t, err)
	assert.Equal(t, "pnpm@9.1.0", label)
}
