package npm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/matzehuels/pmux/pkg/cache"
	pmerrors "github.com/matzehuels/pmux/pkg/errors"
	"github.com/matzehuels/pmux/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// PackageInfo is one resolved version of a registry package.
type PackageInfo struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	License     string            `json:"license,omitempty"`
	HomePage    string            `json:"homepage,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	Engines     map[string]string `json:"engines,omitempty"`
	Tarball     string            `json:"tarball"`
	Integrity   string            `json:"integrity,omitempty"` // SRI, e.g. "sha512-..."
	Shasum      string            `json:"shasum,omitempty"`    // hex sha1
	DistTags    map[string]string `json:"dist_tags"`
	Versions    []string          `json:"versions"` // ascending
}

// Client talks to an npm-compatible registry.
type Client struct {
	*integrations.Client
	registry string
}

// NewClient creates a client for registry (DefaultRegistry when empty).
// Metadata responses are cached in c for ttl; c may be nil.
func NewClient(registry string, c cache.Cache, ttl time.Duration) (*Client, error) {
	registry = strings.TrimRight(registry, "/")
	if registry == "" {
		registry = DefaultRegistry
	}
	if err := pmerrors.ValidateURL(registry); err != nil {
		return nil, err
	}
	return &Client{
		Client:   integrations.NewClient(c, "npm:", ttl, nil),
		registry: registry,
	}, nil
}

// Registry returns the registry base URL without a trailing slash.
func (c *Client) Registry() string { return c.registry }

// TarballURL returns {registry}/{name}/-/{basename}-{version}.tgz, the
// conventional tarball location. For unscoped names basename equals name.
func (c *Client) TarballURL(name, version string) string {
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", c.registry, name, base, version)
}

// DownloadTarball fetches the tarball for name@version into path.
func (c *Client) DownloadTarball(ctx context.Context, name, version, path string, progress integrations.ProgressFunc) (int64, error) {
	return c.Download(ctx, c.TarballURL(name, version), path, progress)
}

// FetchPackage resolves spec (name, name@version or name@tag) against the
// registry. Without a version the "latest" dist-tag is used.
func (c *Client) FetchPackage(ctx context.Context, spec string, refresh bool) (*PackageInfo, error) {
	name, want := ParseSpec(spec)
	if err := pmerrors.ValidateNpmPackageName(name); err != nil {
		return nil, err
	}
	if want == "" {
		want = "latest"
	}

	var doc registryResponse
	err := c.Cached(ctx, name, refresh, &doc, func() error {
		return c.fetch(ctx, name, &doc)
	})
	if err != nil {
		return nil, err
	}

	resolved := want
	if tagged, ok := doc.DistTags[want]; ok {
		resolved = tagged
	}
	v, ok := doc.Versions[resolved]
	if !ok {
		return nil, fmt.Errorf("%w: version %s@%s", integrations.ErrNotFound, name, resolved)
	}

	return &PackageInfo{
		Name:        doc.Name,
		Version:     resolved,
		Description: v.Description,
		License:     extractField(v.License, "type"),
		HomePage:    v.HomePage,
		Repository:  extractField(v.Repository, "url"),
		Engines:     v.Engines,
		Tarball:     v.Dist.Tarball,
		Integrity:   v.Dist.Integrity,
		Shasum:      v.Dist.Shasum,
		DistTags:    doc.DistTags,
		Versions:    sortedVersions(doc.Versions),
	}, nil
}

func (c *Client) fetch(ctx context.Context, name string, doc *registryResponse) error {
	if err := c.Get(ctx, c.registry+"/"+EncodeName(name), doc); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: npm package %s", err, name)
		}
		return err
	}
	return nil
}

// ParseSpec splits "name@version" and "@scope/name@version".
func ParseSpec(spec string) (name, version string) {
	spec = strings.TrimSpace(spec)
	start := 0
	if strings.HasPrefix(spec, "@") {
		slash := strings.Index(spec, "/")
		if slash < 0 {
			return spec, ""
		}
		start = slash + 1
	}
	at := strings.Index(spec[start:], "@")
	if at < 0 {
		return spec, ""
	}
	return spec[:start+at], spec[start+at+1:]
}

// EncodeName escapes a package name for the metadata URL, keeping the
// leading "@" of scoped names: "@scope/pkg" becomes "@scope%2Fpkg".
func EncodeName(name string) string {
	if strings.HasPrefix(name, "@") {
		return "@" + url.PathEscape(name[1:])
	}
	return url.PathEscape(name)
}

func sortedVersions(m map[string]versionDetails) []string {
	type pair struct {
		raw string
		v   *version.Version
	}
	parsed := make([]pair, 0, len(m))
	var invalid []string
	for raw := range m {
		if v, err := version.NewVersion(raw); err == nil {
			parsed = append(parsed, pair{raw, v})
		} else {
			invalid = append(invalid, raw)
		}
	}
	slices.SortFunc(parsed, func(a, b pair) int { return a.v.Compare(b.v) })
	slices.Sort(invalid)

	out := make([]string, 0, len(m))
	for _, p := range parsed {
		out = append(out, p.raw)
	}
	return append(out, invalid...)
}

func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

type registryResponse struct {
	Name     string                    `json:"name"`
	DistTags map[string]string         `json:"dist-tags"`
	Versions map[string]versionDetails `json:"versions"`
}

type versionDetails struct {
	Description string            `json:"description"`
	License     any               `json:"license"`
	Repository  any               `json:"repository"`
	HomePage    string            `json:"homepage"`
	Engines     map[string]string `json:"engines"`
	Dist        distInfo          `json:"dist"`
}

type distInfo struct {
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
	Shasum    string `json:"shasum"`
}
