package manifest

import (
	"path"
	"strings"

	"studioforge/pkg/types"
)

// applyExclusions removes entries whose destination matches a denylist
// pattern. Entries in the required-set are never removed, whatever the
// denylist says: a filter must not be able to break the embedded runtime.
// Patterns with glob metacharacters match via path.Match against the full
// dest path and its base name; plain patterns match any path segment,
// mirroring name filters like "tkinter" or "testdata".
func applyExclusions(m types.BundleManifest, patterns, required []string) types.BundleManifest {
	if len(patterns) == 0 {
		return m
	}
	req := make(map[string]struct{}, len(required))
	for _, r := range required {
		req[r] = struct{}{}
	}
	filter := func(entries []types.ManifestEntry) []types.ManifestEntry {
		keep := entries[:0]
		for _, e := range entries {
			_, isRequired := req[e.Dest]
			if !isRequired && matchesAny(e.Dest, patterns) {
				m.Excluded = append(m.Excluded, e.Dest)
				continue
			}
			keep = append(keep, e)
		}
		return keep
	}
	m.RegularFiles = filter(m.RegularFiles)
	m.NativeBinaries = filter(m.NativeBinaries)
	return m
}

func matchesAny(dest string, patterns []string) bool {
	for _, pat := range patterns {
		if matches(dest, pat) {
			return true
		}
	}
	return false
}

func matches(dest, pat string) bool {
	if strings.ContainsAny(pat, "*?[") {
		if ok, _ := path.Match(pat, dest); ok {
			return true
		}
		if ok, _ := path.Match(pat, path.Base(dest)); ok {
			return true
		}
		return false
	}
	for _, seg := range strings.Split(dest, "/") {
		if seg == pat {
			return true
		}
	}
	return false
}
