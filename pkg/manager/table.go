package manager

// entry is one row of the static metadata table.
type entry struct {
	name        Name
	major       string
	lockFiles   []string
	markerFiles []string
}

// table is ordered; lock file detection reports the first matching row.
var table = []entry{
	{name: NPM, lockFiles: []string{"package-lock.json"}},
	{name: PNPM, lockFiles: []string{"pnpm-lock.yaml"}, markerFiles: []string{"pnpm-workspace.yaml"}},
	{name: Bun, lockFiles: []string{"bun.lockb", "bun.lock"}},
	{name: Yarn, major: "1", lockFiles: []string{"yarn.lock"}},
	{name: Yarn, major: "3", lockFiles: []string{"yarn.lock"}, markerFiles: []string{".yarnrc.yml"}},
	{name: Deno, lockFiles: []string{"deno.lock"}, markerFiles: []string{"deno.json", "deno.jsonc"}},
}

func (e entry) descriptor() Descriptor {
	return Descriptor{
		Name:         e.name,
		Command:      e.name.String(),
		MajorVersion: e.major,
		LockFiles:    append([]string(nil), e.lockFiles...),
		MarkerFiles:  append([]string(nil), e.markerFiles...),
	}
}

// Known returns the metadata table in detection order.
func Known() []Descriptor {
	out := make([]Descriptor, len(table))
	for i, e := range table {
		out[i] = e.descriptor()
	}
	return out
}

// Lookup returns metadata for name, preferring an entry registered for the
// exact major version. The result is versionless. Unknown names return a
// zero Descriptor.
func Lookup(name Name, major string) Descriptor {
	if major != "" {
		for _, e := range table {
			if e.name == name && e.major == major {
				return e.descriptor()
			}
		}
	}
	for _, e := range table {
		if e.name == name {
			return e.descriptor()
		}
	}
	return Descriptor{}
}

// New builds a descriptor for name at version, attaching table metadata.
// An empty version leaves the table's major version in place.
func New(name Name, version, buildMeta string) Descriptor {
	major := MajorOf(version)
	d := Lookup(name, major)
	if d.IsZero() {
		return Descriptor{}
	}
	d.Version = version
	d.BuildMeta = buildMeta
	if major != "" {
		d.MajorVersion = major
	}
	return d
}
