// Package pack turns a validated bundle manifest into the final platform
// artifact. One Packager implementation exists per OS family; selection is
// by the build target, and a host with no packaging procedure at all is a
// fatal configuration error.
package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"studioforge/internal/common/execx"
	"studioforge/internal/common/fsutil"
	"studioforge/internal/config"
	"studioforge/pkg/types"
)

// UnsupportedError means no packaging procedure exists for the target OS.
type UnsupportedError struct {
	Target types.BuildTarget
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("no packaging procedure for target %s", e.Target.Triple())
}

// PackagingError means the packaging procedure ran but the expected
// artifact is absent or empty afterwards. Artifact existence is the
// correctness gate, not the external tool's exit code.
type PackagingError struct {
	Path string
	Err  error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging failed, artifact %s: %v", e.Path, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Packager produces one artifact kind for one OS family.
type Packager interface {
	Kind() types.ArtifactKind
	// ArtifactPath is the final output location for the target; it is what
	// clean-before-build removes.
	ArtifactPath(outDir string, target types.BuildTarget) string
	Package(ctx context.Context, m types.BundleManifest, target types.BuildTarget, outDir string) (types.PackageArtifact, error)
}

// Options carries the cross-packager inputs.
type Options struct {
	App    config.AppMeta
	Runner execx.Runner
	Log    zerolog.Logger
	// Entry is the manifest dest path of the bundled launcher executable.
	Entry string
}

// DefaultEntry is the launcher location inside every bundle.
const DefaultEntry = "bin/studiolauncher"

// EntryDest returns the manifest destination the launcher binary must
// occupy for the target. The manifest builder places the launcher there;
// every packager reads it back from the same spot.
func EntryDest(t types.BuildTarget) string {
	if t.OS == types.OSWindows {
		return DefaultEntry + ".exe"
	}
	return DefaultEntry
}

func (o Options) entry() string {
	if o.Entry != "" {
		return o.Entry
	}
	return DefaultEntry
}

// ForTarget selects the packager for the target's OS family.
func ForTarget(t types.BuildTarget, opts Options) (Packager, error) {
	switch t.OS {
	case types.OSMacOS:
		return &DarwinPackager{Options: opts, MakeDMG: true}, nil
	case types.OSWindows:
		return &WindowsPackager{Options: opts}, nil
	case types.OSLinux:
		return &LinuxPackager{Options: opts}, nil
	default:
		return nil, &UnsupportedError{Target: t}
	}
}

// Clean removes any prior artifact for the target before a new build
// starts, so a failed run can never leave a half-written artifact behind a
// stale successful one.
func Clean(p Packager, outDir string, target types.BuildTarget) error {
	return os.RemoveAll(p.ArtifactPath(outDir, target))
}

// stage materializes the manifest under dir, preserving dest paths.
func stage(m types.BundleManifest, dir string) error {
	for _, e := range m.Entries() {
		dst := filepath.Join(dir, filepath.FromSlash(e.Dest))
		if err := fsutil.CopyFile(e.Source, dst); err != nil {
			return fmt.Errorf("stage %s: %w", e.Dest, err)
		}
	}
	return nil
}

// verify gates on the artifact actually existing with non-zero size and
// returns the completed PackageArtifact.
func verify(path string, kind types.ArtifactKind, target types.BuildTarget) (types.PackageArtifact, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return types.PackageArtifact{}, &PackagingError{Path: path, Err: err}
	}
	var size int64
	if fi.IsDir() {
		size, err = fsutil.DirSize(path)
		if err != nil {
			return types.PackageArtifact{}, &PackagingError{Path: path, Err: err}
		}
	} else {
		size = fi.Size()
	}
	if size == 0 {
		return types.PackageArtifact{}, &PackagingError{Path: path, Err: fmt.Errorf("artifact is empty")}
	}
	return types.PackageArtifact{Target: target, Kind: kind, Path: path, SizeBytes: size}, nil
}
