package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studioforge/internal/common/execx"
	"studioforge/pkg/types"
)

// DarwinPackager assembles a macOS application bundle and, by default,
// wraps it in a compressed disk image with an /Applications symlink for
// drag-install semantics.
type DarwinPackager struct {
	Options
	// MakeDMG controls whether the bundle is wrapped in a disk image.
	MakeDMG bool
}

func (p *DarwinPackager) Kind() types.ArtifactKind {
	if p.MakeDMG {
		return types.KindDiskImage
	}
	return types.KindAppBundle
}

func (p *DarwinPackager) ArtifactPath(outDir string, target types.BuildTarget) string {
	if p.MakeDMG {
		return filepath.Join(outDir, fmt.Sprintf("%s-%s.dmg", p.fileStem(), target.Slug()))
	}
	return filepath.Join(outDir, p.App.Name+".app")
}

func (p *DarwinPackager) fileStem() string {
	return strings.ReplaceAll(p.App.Name, " ", "-")
}

func (p *DarwinPackager) Package(ctx context.Context, m types.BundleManifest, target types.BuildTarget, outDir string) (types.PackageArtifact, error) {
	staging := filepath.Join(outDir, ".staging-"+target.Slug())
	if err := os.RemoveAll(staging); err != nil {
		return types.PackageArtifact{}, err
	}
	defer os.RemoveAll(staging)

	bundle := filepath.Join(staging, p.App.Name+".app")
	resources := filepath.Join(bundle, "Contents", "Resources")
	macos := filepath.Join(bundle, "Contents", "MacOS")
	if err := stage(m, resources); err != nil {
		return types.PackageArtifact{}, err
	}
	if err := os.MkdirAll(macos, 0o755); err != nil {
		return types.PackageArtifact{}, err
	}
	if err := p.writeExecShim(filepath.Join(macos, p.fileStem())); err != nil {
		return types.PackageArtifact{}, err
	}
	plist := filepath.Join(bundle, "Contents", "Info.plist")
	if err := os.WriteFile(plist, []byte(p.infoPlist()), 0o644); err != nil {
		return types.PackageArtifact{}, err
	}

	final := p.ArtifactPath(outDir, target)
	if err := os.RemoveAll(final); err != nil {
		return types.PackageArtifact{}, err
	}
	if !p.MakeDMG {
		if err := os.Rename(bundle, final); err != nil {
			return types.PackageArtifact{}, err
		}
		return verify(final, p.Kind(), target)
	}

	// drag-install symlink next to the bundle inside the image
	if err := os.Symlink("/Applications", filepath.Join(staging, "Applications")); err != nil {
		return types.PackageArtifact{}, err
	}
	err := p.Runner.Run(ctx, execx.Cmd{
		Path: "hdiutil",
		Args: []string{"create", "-volname", p.App.Name, "-srcfolder", staging, "-ov", "-format", "UDZO", final},
	})
	if err != nil {
		return types.PackageArtifact{}, &PackagingError{Path: final, Err: err}
	}
	return verify(final, p.Kind(), target)
}

// writeExecShim writes the Contents/MacOS entry point that hands off to the
// bundled launcher under Resources.
func (p *DarwinPackager) writeExecShim(path string) error {
	script := fmt.Sprintf("#!/bin/sh\nexec \"$(dirname \"$0\")/../Resources/%s\" \"$@\"\n", p.entry())
	return os.WriteFile(path, []byte(script), 0o755)
}

func (p *DarwinPackager) infoPlist() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString("<plist version=\"1.0\">\n<dict>\n")
	kv := func(k, v string) {
		fmt.Fprintf(&b, "\t<key>%s</key>\n\t<string>%s</string>\n", k, v)
	}
	kv("CFBundleName", p.App.Name)
	kv("CFBundleDisplayName", p.App.Name)
	kv("CFBundleIdentifier", p.App.Identifier)
	kv("CFBundleShortVersionString", p.App.Version)
	kv("CFBundleExecutable", p.fileStem())
	kv("CFBundlePackageType", "APPL")
	// dark-mode support: opt out of forced Aqua when the app handles dark mode
	fmt.Fprintf(&b, "\t<key>NSRequiresAquaSystemAppearance</key>\n\t<%t/>\n", !p.App.DarkMode)
	b.WriteString("</dict>\n</plist>\n")
	return b.String()
}
