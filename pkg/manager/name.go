package manager

// Name identifies a package manager family.
type Name int

const (
	Unknown Name = iota
	NPM
	Yarn
	PNPM
	Bun
	Deno
)

var names = [...]string{
	Unknown: "unknown",
	NPM:     "npm",
	Yarn:    "yarn",
	PNPM:    "pnpm",
	Bun:     "bun",
	Deno:    "deno",
}

// Names returns every known manager in table order.
func Names() []Name {
	return []Name{NPM, PNPM, Bun, Yarn, Deno}
}

// String returns the lowercase manager name.
func (n Name) String() string {
	if n < 0 || int(n) >= len(names) {
		return names[Unknown]
	}
	return names[n]
}

// Valid reports whether n is one of the known managers.
func (n Name) Valid() bool {
	return n > Unknown && int(n) < len(names)
}

// ParseName maps a manager name to its Name. Matching is exact: the
// manifest field and the runtime user agent both use lowercase names.
func ParseName(s string) (Name, bool) {
	for i, v := range names {
		if Name(i) != Unknown && v == s {
			return Name(i), true
		}
	}
	return Unknown, false
}

// Distributed reports whether the manager is published to the npm registry
// under its own name and can therefore be fetched by version.
func (n Name) Distributed() bool {
	switch n {
	case NPM, Yarn, PNPM:
		return true
	case Bun, Deno, Unknown:
		return false
	}
	return false
}
