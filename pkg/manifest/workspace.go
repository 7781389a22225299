package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// PnpmWorkspaceFile is pnpm's workspace definition file.
const PnpmWorkspaceFile = "pnpm-workspace.yaml"

// PnpmWorkspace is the subset of pnpm-workspace.yaml pmux reports on.
type PnpmWorkspace struct {
	Packages []string          `yaml:"packages"`
	Catalog  map[string]string `yaml:"catalog"`
}

// ReadPnpmWorkspace parses dir/pnpm-workspace.yaml.
func ReadPnpmWorkspace(dir string) (*PnpmWorkspace, error) {
	data, err := os.ReadFile(filepath.Join(dir, PnpmWorkspaceFile))
	if err != nil {
		return nil, err
	}
	var ws PnpmWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Workspaces returns the workspace globs for the project rooted at dir and
// the file they were declared in. pnpm-workspace.yaml wins over package.json.
// Missing or unreadable files yield no globs.
func Workspaces(dir string) (globs []string, source string) {
	ws, err := ReadPnpmWorkspace(dir)
	if err == nil && len(ws.Packages) > 0 {
		return ws.Packages, PnpmWorkspaceFile
	}
	pkg, err := ReadDir(dir)
	if err != nil {
		return nil, ""
	}
	if globs := pkg.Workspaces(); len(globs) > 0 {
		return globs, PackageJSONFile
	}
	return nil, ""
}

// IsNotExist reports whether err means the manifest file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// WorkspacePackage is a package matched by the workspace globs.
type WorkspacePackage struct {
	Name string
	Dir  string // slash-separated, relative to the workspace root
}

// WorkspacePackages expands the workspace globs of the project rooted at
// dir into the packages they match, sorted by directory. "**" matches a
// single directory level and "!" globs exclude matches. Directories
// without a readable package.json are skipped. source is empty when no
// workspaces are declared.
func WorkspacePackages(dir string) (pkgs []WorkspacePackage, source string) {
	globs, source := Workspaces(dir)
	var include, exclude []string
	for _, g := range globs {
		g = strings.TrimSuffix(strings.ReplaceAll(g, "**", "*"), "/")
		if neg, ok := strings.CutPrefix(g, "!"); ok {
			exclude = append(exclude, path.Clean(neg))
			continue
		}
		include = append(include, g)
	}

	seen := make(map[string]bool)
	for _, g := range include {
		matches, err := filepath.Glob(filepath.Join(dir, filepath.FromSlash(g)))
		if err != nil {
			continue
		}
		for _, m := range matches {
			rel, err := filepath.Rel(dir, m)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] || excluded(rel, exclude) {
				continue
			}
			pkg, err := ReadDir(m)
			if err != nil {
				continue
			}
			seen[rel] = true
			pkgs = append(pkgs, WorkspacePackage{Name: pkg.Name, Dir: rel})
		}
	}
	slices.SortFunc(pkgs, func(a, b WorkspacePackage) int { return strings.Compare(a.Dir, b.Dir) })
	return pkgs, source
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		// "dir/*" also excludes dir itself.
		if base, ok := strings.CutSuffix(p, "/*"); ok {
			if ok, _ := path.Match(base, rel); ok {
				return true
			}
		}
	}
	return false
}
