package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pmux/pkg/errors"
)

func TestParseName(t *testing.T) {
	for _, n := range Names() {
		got, ok := ParseName(n.String())
		require.True(t, ok, n.String())
		assert.Equal(t, n, got)
	}

	_, ok := ParseName("corepack")
	assert.False(t, ok)
	_, ok = ParseName("unknown")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Name(42).String())
}

func TestDistributed(t *testing.T) {
	assert.True(t, NPM.Distributed())
	assert.True(t, PNPM.Distributed())
	assert.True(t, Yarn.Distributed())
	assert.False(t, Bun.Distributed())
	assert.False(t, Deno.Distributed())
	assert.False(t, Unknown.Distributed())
}

func TestKnownOrder(t *testing.T) {
	var got []string
	for _, d := range Known() {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"npm", "pnpm", "bun", "yarn (classic)", "yarn (berry)", "deno"}, got)
}

func TestKnownReturnsCopies(t *testing.T) {
	a := Known()
	a[0].LockFiles[0] = "mutated"
	b := Known()
	assert.Equal(t, "package-lock.json", b[0].LockFiles[0])
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name        string
		pm          Name
		major       string
		wantMajor   string
		wantMarkers []string
	}{
		{"yarn exact classic", Yarn, "1", "1", nil},
		{"yarn exact berry", Yarn, "3", "3", []string{".yarnrc.yml"}},
		{"yarn generic fallback", Yarn, "4", "1", nil},
		{"yarn no major", Yarn, "", "1", nil},
		{"pnpm", PNPM, "9", "", []string{"pnpm-workspace.yaml"}},
		{"deno", Deno, "", "", []string{"deno.json", "deno.jsonc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Lookup(tt.pm, tt.major)
			assert.Equal(t, tt.pm, d.Name)
			assert.Equal(t, tt.pm.String(), d.Command)
			assert.Equal(t, tt.wantMajor, d.MajorVersion)
			assert.Equal(t, tt.wantMarkers, d.MarkerFiles)
		})
	}

	assert.True(t, Lookup(Unknown, "").IsZero())
}

func TestNewKeepsDeclaredMajor(t *testing.T) {
	d := New(Yarn, "4.1.0", "")
	assert.Equal(t, "4", d.MajorVersion)
	assert.Equal(t, []string{"yarn.lock"}, d.LockFiles)
	assert.True(t, d.IsBerry())

	d = New(Yarn, "3.6.4", "sha256.abc")
	assert.Equal(t, []string{".yarnrc.yml"}, d.MarkerFiles)
	assert.Equal(t, "yarn@3.6.4+sha256.abc", d.Spec())
}

func TestDialect(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want Dialect
	}{
		{Descriptor{Name: Yarn, MajorVersion: "1"}, DialectYarnClassic},
		{Descriptor{Name: Yarn, MajorVersion: "0"}, DialectYarnClassic},
		{Descriptor{Name: Yarn}, DialectYarnClassic},
		{Descriptor{Name: Yarn, MajorVersion: "2"}, DialectYarnBerry},
		{Descriptor{Name: Yarn, MajorVersion: "4"}, DialectYarnBerry},
		{Descriptor{Name: PNPM, MajorVersion: "9"}, DialectDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.Dialect(), tt.d.Spec()+"/"+tt.d.MajorVersion)
	}
}

func TestWithWarningDoesNotAlias(t *testing.T) {
	base := Descriptor{Name: NPM, Warnings: make([]string, 0, 4)}
	a := base.WithWarning("a")
	b := base.WithWarning("b")
	assert.Equal(t, []string{"a"}, a.Warnings)
	assert.Equal(t, []string{"b"}, b.Warnings)
	assert.Empty(t, base.Warnings)
}

func TestParseField(t *testing.T) {
	tests := []struct {
		input     string
		ok        bool
		name      string
		version   string
		buildMeta string
		warned    bool
	}{
		{input: "", ok: false},
		{input: "-", ok: false},
		{input: "*", ok: false},
		{input: "npm", ok: true, name: "npm", version: "0.0.0"},
		{input: "^npm", ok: true, name: "npm", version: "0.0.0", warned: true},
		{input: "unknown-name", ok: true, name: "unknown-name", version: "0.0.0"},
		{input: "npm@1.2.3", ok: true, name: "npm", version: "1.2.3"},
		{input: "pnpm@9.15.4+sha512.b2dc20e2fc72b3e", ok: true, name: "pnpm", version: "9.15.4", buildMeta: "sha512.b2dc20e2fc72b3e"},
		{input: "~^&yarn@1.0.0", ok: true, name: "yarn", version: "1.0.0", warned: true},
		{input: "@scope/pm@2.0.0", ok: true, name: "@scope/pm", version: "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, ok := ParseField(tt.input)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.name, f.Name)
			assert.Equal(t, tt.version, f.Version)
			assert.Equal(t, tt.buildMeta, f.BuildMeta)
			if tt.warned {
				require.Len(t, f.Warnings, 1)
				raw, _ := splitNameVersion(tt.input)
				assert.Equal(t,
					"Abnormal characters found in `packageManager` field, sanitizing from `"+raw+"` to `"+tt.name+"`",
					f.Warnings[0])
			} else {
				assert.Empty(t, f.Warnings)
			}
		})
	}
}

func TestFieldDescriptor(t *testing.T) {
	f, ok := ParseField("~^&yarn@1.0.0")
	require.True(t, ok)
	d, ok := f.Descriptor()
	require.True(t, ok)
	assert.Equal(t, Yarn, d.Name)
	assert.Equal(t, "1.0.0", d.Version)
	assert.Equal(t, "1", d.MajorVersion)
	assert.Len(t, d.Warnings, 1)

	f, ok = ParseField("unknown-name@1.0.0")
	require.True(t, ok)
	_, ok = f.Descriptor()
	assert.False(t, ok)
}

func TestParseSpec(t *testing.T) {
	d, err := ParseSpec("pnpm")
	require.NoError(t, err)
	assert.Equal(t, PNPM, d.Name)
	assert.Empty(t, d.Version)

	d, err = ParseSpec("yarn@4.0.2")
	require.NoError(t, err)
	assert.True(t, d.IsBerry())
	assert.Equal(t, "4.0.2", d.Version)

	_, err = ParseSpec("yrn")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Contains(t, err.Error(), `did you mean "yarn"`)

	_, err = ParseSpec("npm@+sha1.x")
	assert.Error(t, err)

	_, err = ParseSpec("")
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "yarn", Suggest("yrn"))
	assert.Equal(t, "pnpm", Suggest("pnpmx"))
	assert.Equal(t, "", Suggest("zzz"))

	tests := map[string]string{
		"pnpn": "pnpm",
		"yarm": "yarn",
		"nmp":  "npm",
		"ynar": "yarn",
		"bnu":  "bun",
		"dneo": "deno",
		"PNPN": "pnpm",
	}
	for in, want := range tests {
		assert.Equal(t, want, Suggest(in), "Suggest(%q)", in)
	}
	assert.Equal(t, "", Suggest("composer"))
}
