package manager

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"

	"github.com/matzehuels/pmux/pkg/errors"
)

// ParseSpec parses an explicit NAME[@VERSION[+BUILDMETA]] override.
// Unlike ParseField it rejects unknown names, suggesting the closest
// known manager when there is one, and leaves Version empty when none
// is given.
func ParseSpec(spec string) (Descriptor, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Descriptor{}, errors.New(errors.ErrCodeInvalidInput, "package manager cannot be empty")
	}
	raw, rest := splitNameVersion(spec)
	n, ok := ParseName(strings.ToLower(raw))
	if !ok {
		if s := Suggest(raw); s != "" {
			return Descriptor{}, errors.New(errors.ErrCodeInvalidInput,
				"unknown package manager %q (did you mean %q?)", raw, s)
		}
		return Descriptor{}, errors.New(errors.ErrCodeInvalidInput, "unknown package manager %q", raw)
	}
	version, meta, _ := strings.Cut(rest, "+")
	if version == "" && meta != "" {
		return Descriptor{}, errors.New(errors.ErrCodeInvalidInput, "build metadata without version in %q", spec)
	}
	return New(n, version, meta), nil
}

// Suggest returns the known manager name closest to s, or "". Subsequence
// matches ("yrn") are preferred; otherwise the name within two edits
// ("pnpn", "nmp") wins.
func Suggest(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return ""
	}
	known := make([]string, 0, len(Names()))
	for _, n := range Names() {
		known = append(known, n.String())
	}
	if m := fuzzy.Find(s, known); len(m) > 0 {
		return m[0].Str
	}
	// The input may contain a known name plus noise, e.g. "pnpmx".
	best := ""
	for _, k := range known {
		if len(k) > len(best) && len(fuzzy.Find(k, []string{s})) > 0 {
			best = k
		}
	}
	if best != "" {
		return best
	}

	bestDist := maxSuggestDistance + 1
	for _, k := range known {
		if d := levenshtein.ComputeDistance(s, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

const maxSuggestDistance = 2
