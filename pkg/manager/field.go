package manager

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/pmux/pkg/errors"
)

// DefaultVersion is used when a manifest field names a manager without a version.
const DefaultVersion = "0.0.0"

var leadingNonWord = regexp.MustCompile(`^\W+`)

// Field is the parsed form of a "packageManager" manifest value.
type Field struct {
	Name      string
	Version   string
	BuildMeta string
	Warnings  []string
}

// MajorVersion returns the first dot segment of the version.
func (f Field) MajorVersion() string { return MajorOf(f.Version) }

// ParseField parses NAME[@VERSION[+BUILDMETA]]. It never fails on malformed
// input: names outside the registry charset have leading non-word characters
// stripped and a warning recorded. ok is false when no name remains.
//
// Scoped names keep their leading "@": "@scope/pm@1.0.0" has name "@scope/pm".
func ParseField(raw string) (f Field, ok bool) {
	raw = strings.TrimSpace(raw)
	name, rest := splitNameVersion(raw)

	version, meta, _ := strings.Cut(rest, "+")
	f.Version = version
	f.BuildMeta = meta
	if f.Version == "" {
		f.Version = DefaultVersion
	}

	if name == "" || name == "-" {
		return Field{}, false
	}
	if !errors.IsNpmPackageName(name) {
		sanitized := leadingNonWord.ReplaceAllString(name, "")
		if sanitized != name {
			f.Warnings = append(f.Warnings, fmt.Sprintf(
				"Abnormal characters found in `packageManager` field, sanitizing from `%s` to `%s`",
				name, sanitized))
		}
		name = sanitized
	}
	if name == "" {
		return Field{}, false
	}
	f.Name = name
	return f, true
}

// Descriptor converts f into a descriptor. ok is false when the name is
// not a known manager.
func (f Field) Descriptor() (Descriptor, bool) {
	n, ok := ParseName(f.Name)
	if !ok {
		return Descriptor{}, false
	}
	d := New(n, f.Version, f.BuildMeta)
	d.Warnings = append(d.Warnings, f.Warnings...)
	return d, true
}

// splitNameVersion splits at the first "@" that is not a scope prefix.
func splitNameVersion(s string) (name, version string) {
	start := 0
	if strings.HasPrefix(s, "@") {
		start = 1
	}
	i := strings.Index(s[start:], "@")
	if i < 0 {
		return s, ""
	}
	return s[:start+i], s[start+i+1:]
}

// MajorOf returns the first dot-delimited segment of version.
func MajorOf(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}
