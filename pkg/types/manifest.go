package types

import "sort"

// ManifestEntry maps one file on disk to its destination inside the package.
// Dest is always slash-separated and relative to the package root.
type ManifestEntry struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
	// Origin is the dependency that contributed a native binary, empty for
	// regular source-tree files.
	Origin string `json:"origin,omitempty"`
}

// BundleManifest is the complete, validated list of files and native
// binaries to embed in a package. Membership is deterministic for identical
// inputs; ordering is normalized by Sort.
type BundleManifest struct {
	RegularFiles   []ManifestEntry `json:"regular_files"`
	NativeBinaries []ManifestEntry `json:"native_binaries"`
	Excluded       []string        `json:"excluded,omitempty"`
}

// Entries returns regular files followed by native binaries.
func (m BundleManifest) Entries() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(m.RegularFiles)+len(m.NativeBinaries))
	out = append(out, m.RegularFiles...)
	out = append(out, m.NativeBinaries...)
	return out
}

// Sort orders both entry sets by destination path.
func (m *BundleManifest) Sort() {
	byDest := func(s []ManifestEntry) {
		sort.Slice(s, func(i, j int) bool { return s[i].Dest < s[j].Dest })
	}
	byDest(m.RegularFiles)
	byDest(m.NativeBinaries)
	sort.Strings(m.Excluded)
}

// DestSet returns the set of destination paths across both entry kinds.
func (m BundleManifest) DestSet() map[string]struct{} {
	set := make(map[string]struct{}, len(m.RegularFiles)+len(m.NativeBinaries))
	for _, e := range m.Entries() {
		set[e.Dest] = struct{}{}
	}
	return set
}
