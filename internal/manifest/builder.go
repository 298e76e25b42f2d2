// Package manifest assembles the validated list of files and native
// binaries to embed in a package: source trees are walked, installed
// dependencies contribute their shared libraries and auxiliary data,
// platform-conditional GUI backends are pruned, size filters are applied,
// and the result is cross-checked against the required-set.
package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"studioforge/internal/buildenv"
	"studioforge/internal/config"
	"studioforge/internal/deps"
	"studioforge/internal/pack"
	"studioforge/pkg/types"
)

// IncompleteError reports required runtime files missing from the filtered
// manifest. It is fatal: packaging an incomplete bundle produces an
// artifact that cannot start.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "manifest incomplete, required files missing: " + strings.Join(e.Missing, ", ")
}

// Builder produces BundleManifests. Given identical inputs the file set is
// identical across runs.
type Builder struct {
	Log zerolog.Logger

	// Launcher is the path of the launcher binary to embed at the packaging
	// entry point. Every packager starts the bundle through it, so a build
	// without one cannot produce a working artifact.
	Launcher string
}

// Build collects, filters and validates the manifest for one build.
func (b *Builder) Build(env *buildenv.Environment, cfg config.Config, target types.BuildTarget) (types.BundleManifest, error) {
	var m types.BundleManifest

	prune := prunedBackends(cfg.Backends, target)

	for _, tree := range cfg.SourceTrees {
		entries, err := collectTree(tree, prune)
		if err != nil {
			return m, fmt.Errorf("collect %s: %w", tree.Root, err)
		}
		m.RegularFiles = append(m.RegularFiles, entries...)
	}

	for _, dep := range env.Installed() {
		libs, aux, err := collectDependency(env, dep)
		if err != nil {
			return m, fmt.Errorf("collect dependency %s: %w", dep, err)
		}
		m.NativeBinaries = append(m.NativeBinaries, libs...)
		m.RegularFiles = append(m.RegularFiles, aux...)
	}

	m = applyExclusions(m, cfg.Exclude, cfg.Required)

	// The launcher joins after filtering: no denylist may strip the entry
	// point every packager boots the bundle through.
	launcher, err := b.launcherEntry(target)
	if err != nil {
		return m, err
	}
	m.NativeBinaries = append(m.NativeBinaries, launcher)

	if err := checkCollisions(m); err != nil {
		return m, err
	}
	if err := checkRequired(m, cfg.Required); err != nil {
		return m, err
	}
	m.Sort()
	b.Log.Info().
		Str("launcher", b.Launcher).
		Int("regular_files", len(m.RegularFiles)).
		Int("native_binaries", len(m.NativeBinaries)).
		Int("excluded", len(m.Excluded)).
		Msg("manifest built")
	return m, nil
}

// prunedBackends returns the backend subtrees that must NOT ship for this
// target: every configured GUI-shell backend except the target's own.
func prunedBackends(backends map[string]string, target types.BuildTarget) []string {
	var prune []string
	for osFam, subtree := range backends {
		if osFam != string(target.OS) {
			prune = append(prune, path.Clean(filepath.ToSlash(subtree)))
		}
	}
	sort.Strings(prune)
	return prune
}

// pruneWithinTree rewrites backend subtree spellings relative to the tree
// root so pruning matches whether the root and the backend table use
// relative or absolute paths. A spelling anchored at the root's base name
// ("app/shell/gtk" against root /work/checkout/app) counts as inside too.
func pruneWithinTree(root string, prune []string) []string {
	rootSlash := path.Clean(filepath.ToSlash(root))
	base := path.Base(rootSlash)
	var out []string
	for _, p := range prune {
		switch {
		case p == rootSlash || p == base:
			out = append(out, ".")
		case strings.HasPrefix(p, rootSlash+"/"):
			out = append(out, strings.TrimPrefix(p, rootSlash+"/"))
		case strings.HasPrefix(p, base+"/"):
			out = append(out, strings.TrimPrefix(p, base+"/"))
		}
	}
	return out
}

func collectTree(tree config.SourceTree, prune []string) ([]types.ManifestEntry, error) {
	destPrefix := tree.Dest
	if destPrefix == "" {
		destPrefix = path.Base(filepath.ToSlash(tree.Root))
	}
	localPrune := pruneWithinTree(tree.Root, prune)
	var out []types.ManifestEntry
	err := filepath.WalkDir(tree.Root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(tree.Root, p)
		if rerr != nil {
			return rerr
		}
		relSlash := filepath.ToSlash(rel)
		if d.IsDir() {
			if underAny(relSlash, localPrune) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || underAny(relSlash, localPrune) {
			return nil
		}
		out = append(out, types.ManifestEntry{
			Source: p,
			Dest:   path.Join(destPrefix, relSlash),
		})
		return nil
	})
	return out, err
}

// launcherEntry maps the configured launcher binary to the entry-point
// destination packagers boot the bundle through.
func (b *Builder) launcherEntry(target types.BuildTarget) (types.ManifestEntry, error) {
	if b.Launcher == "" {
		return types.ManifestEntry{}, fmt.Errorf("no launcher binary configured for %s", target.Triple())
	}
	fi, err := os.Stat(b.Launcher)
	if err != nil {
		return types.ManifestEntry{}, fmt.Errorf("launcher binary: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return types.ManifestEntry{}, fmt.Errorf("launcher binary %s is not a regular file", b.Launcher)
	}
	return types.ManifestEntry{
		Source: b.Launcher,
		Dest:   pack.EntryDest(target),
		Origin: "launcher",
	}, nil
}

func collectDependency(env *buildenv.Environment, dep string) (libs, aux []types.ManifestEntry, err error) {
	root := env.DepDir(dep)
	err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return rerr
		}
		entry := types.ManifestEntry{
			Source: p,
			Dest:   path.Join("lib", dep, filepath.ToSlash(rel)),
			Origin: dep,
		}
		if deps.IsSharedLib(d.Name()) {
			libs = append(libs, entry)
		} else {
			aux = append(aux, entry)
		}
		return nil
	})
	return libs, aux, err
}

func underAny(p string, prefixes []string) bool {
	for _, pre := range prefixes {
		if p == pre || strings.HasPrefix(p, pre+"/") {
			return true
		}
	}
	return false
}

func checkCollisions(m types.BundleManifest) error {
	seen := map[string]string{}
	for _, e := range m.Entries() {
		if prev, ok := seen[e.Dest]; ok && prev != e.Source {
			return fmt.Errorf("destination collision: %s provided by both %s and %s", e.Dest, prev, e.Source)
		}
		seen[e.Dest] = e.Source
	}
	return nil
}

func checkRequired(m types.BundleManifest, required []string) error {
	dests := m.DestSet()
	var missing []string
	for _, req := range required {
		if _, ok := dests[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &IncompleteError{Missing: missing}
	}
	return nil
}
