package manager

import (
	"slices"
	"strconv"
	"strings"
)

// Descriptor identifies a concrete package manager instance.
// Treat it as immutable; use the With* methods to derive variants.
type Descriptor struct {
	Name         Name
	Command      string   // executable, normally Name.String()
	Version      string   // empty when unknown
	MajorVersion string   // first dot segment of Version, or table metadata
	BuildMeta    string   // integrity digest from "name@version+meta"
	LockFiles    []string // lock files that are evidence for this manager
	MarkerFiles  []string // config files that are evidence for this manager
	Warnings     []string // non-fatal anomalies found while resolving
}

// Dialect distinguishes version families of one manager.
type Dialect int

const (
	DialectDefault Dialect = iota
	DialectYarnClassic
	DialectYarnBerry
)

func (d Dialect) String() string {
	switch d {
	case DialectYarnClassic:
		return "classic"
	case DialectYarnBerry:
		return "berry"
	}
	return "default"
}

// Dialect returns the dialect selected by (Name, MajorVersion). Yarn without a
// parseable major version is treated as classic.
func (d Descriptor) Dialect() Dialect {
	if d.Name != Yarn {
		return DialectDefault
	}
	if major, err := strconv.Atoi(d.MajorVersion); err == nil && major >= 2 {
		return DialectYarnBerry
	}
	return DialectYarnClassic
}

// IsBerry reports whether d is yarn 2 or newer.
func (d Descriptor) IsBerry() bool { return d.Dialect() == DialectYarnBerry }

// IsZero reports whether d was never populated.
func (d Descriptor) IsZero() bool { return d.Name == Unknown }

// HasVersion reports whether a concrete version was declared. The "0.0.0"
// placeholder used for versionless manifest fields does not count.
func (d Descriptor) HasVersion() bool {
	return d.Version != "" && d.Version != DefaultVersion
}

// DetectionFiles returns the lock files followed by the marker files.
func (d Descriptor) DetectionFiles() []string {
	out := make([]string, 0, len(d.LockFiles)+len(d.MarkerFiles))
	out = append(out, d.LockFiles...)
	return append(out, d.MarkerFiles...)
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	d.LockFiles = slices.Clone(d.LockFiles)
	d.MarkerFiles = slices.Clone(d.MarkerFiles)
	d.Warnings = slices.Clone(d.Warnings)
	return d
}

// WithWarning returns a copy of d with msg appended to Warnings.
func (d Descriptor) WithWarning(msg string) Descriptor {
	c := d.Clone()
	c.Warnings = append(c.Warnings, msg)
	return c
}

// Spec renders d as NAME[@VERSION[+BUILDMETA]].
func (d Descriptor) Spec() string {
	var b strings.Builder
	b.WriteString(d.Name.String())
	if d.Version != "" {
		b.WriteString("@")
		b.WriteString(d.Version)
		if d.BuildMeta != "" {
			b.WriteString("+")
			b.WriteString(d.BuildMeta)
		}
	}
	return b.String()
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	s := d.Spec()
	if d.Name == Yarn && d.Version == "" && d.MajorVersion != "" {
		s += " (" + d.Dialect().String() + ")"
	}
	return s
}
