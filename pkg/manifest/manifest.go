// Package manifest reads the project files pmux inspects: package.json and
// pnpm-workspace.yaml.
//
// Decoding is lenient. Fields with an unexpected JSON type decode as absent
// instead of failing the whole document, because detection must degrade
// rather than abort on odd project files.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// PackageJSONFile is the project manifest filename.
const PackageJSONFile = "package.json"

// Package is the subset of package.json pmux cares about.
type Package struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`

	PackageManagerRaw json.RawMessage `json:"packageManager"`
	BinRaw            json.RawMessage `json:"bin"`
	WorkspacesRaw     json.RawMessage `json:"workspaces"`
}

// Read parses the package.json at path.
func Read(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ReadDir parses dir/package.json.
func ReadDir(dir string) (*Package, error) {
	return Read(filepath.Join(dir, PackageJSONFile))
}

// Parse decodes a package.json document.
func Parse(data []byte) (*Package, error) {
	var p Package
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PackageManager returns the "packageManager" field when it is a non-empty string.
func (p *Package) PackageManager() (string, bool) {
	var s string
	if len(p.PackageManagerRaw) == 0 || json.Unmarshal(p.PackageManagerRaw, &s) != nil || s == "" {
		return "", false
	}
	return s, true
}

// Bin returns the entry point for the executable called name. The "bin"
// field is either a single path (used for any name) or a map keyed by
// executable name.
func (p *Package) Bin(name string) (string, bool) {
	if len(p.BinRaw) == 0 {
		return "", false
	}
	var single string
	if err := json.Unmarshal(p.BinRaw, &single); err == nil {
		return single, single != ""
	}
	var m map[string]string
	if err := json.Unmarshal(p.BinRaw, &m); err != nil {
		return "", false
	}
	path, ok := m[name]
	return path, ok && path != ""
}

// Workspaces returns the workspace globs declared either as an array or
// as {"packages": [...]}.
func (p *Package) Workspaces() []string {
	if len(p.WorkspacesRaw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(p.WorkspacesRaw, &list); err == nil {
		return list
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(p.WorkspacesRaw, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

// HasDependency reports whether name is listed in dependencies or devDependencies.
func (p *Package) HasDependency(name string) bool {
	if _, ok := p.Dependencies[name]; ok {
		return true
	}
	_, ok := p.DevDependencies[name]
	return ok
}
