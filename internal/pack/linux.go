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

// LinuxPackager assembles a self-contained executable, lays out a minimal
// AppDir around it (desktop-menu descriptor, AppRun launch script, the
// executable) and invokes appimagetool to produce the single-file
// portable image.
type LinuxPackager struct {
	Options
	// Tool is the image-building utility; defaults to appimagetool.
	Tool string
}

func (p *LinuxPackager) Kind() types.ArtifactKind { return types.KindFilesystemImage }

func (p *LinuxPackager) ArtifactPath(outDir string, target types.BuildTarget) string {
	return filepath.Join(outDir, fmt.Sprintf("%s-%s.AppImage", p.fileStem(), target.Slug()))
}

func (p *LinuxPackager) fileStem() string {
	return strings.ReplaceAll(p.App.Name, " ", "-")
}

func (p *LinuxPackager) tool() string {
	if p.Tool != "" {
		return p.Tool
	}
	return "appimagetool"
}

func (p *LinuxPackager) Package(ctx context.Context, m types.BundleManifest, target types.BuildTarget, outDir string) (types.PackageArtifact, error) {
	appDir := filepath.Join(outDir, ".appdir-"+target.Slug())
	if err := os.RemoveAll(appDir); err != nil {
		return types.PackageArtifact{}, err
	}
	defer os.RemoveAll(appDir)

	exe := filepath.Join(appDir, "usr", "bin", p.fileStem())
	if err := assembleSelfExe(m, p.entry(), exe); err != nil {
		return types.PackageArtifact{}, &PackagingError{Path: exe, Err: err}
	}
	if err := p.writeAppRun(appDir); err != nil {
		return types.PackageArtifact{}, err
	}
	if err := p.writeDesktopEntry(appDir); err != nil {
		return types.PackageArtifact{}, err
	}

	final := p.ArtifactPath(outDir, target)
	if err := os.RemoveAll(final); err != nil {
		return types.PackageArtifact{}, err
	}
	err := p.Runner.Run(ctx, execx.Cmd{
		Path: p.tool(),
		Args: []string{appDir, final},
		Env:  append(os.Environ(), "ARCH="+goArch(target.Arch)),
	})
	if err != nil {
		return types.PackageArtifact{}, &PackagingError{Path: final, Err: err}
	}
	return verify(final, p.Kind(), target)
}

// writeAppRun writes the launch-indirection script the desktop entry and
// image runtime both point at.
func (p *LinuxPackager) writeAppRun(appDir string) error {
	script := fmt.Sprintf("#!/bin/sh\nHERE=\"$(dirname \"$(readlink -f \"$0\")\")\"\nexec \"$HERE/usr/bin/%s\" \"$@\"\n", p.fileStem())
	return os.WriteFile(filepath.Join(appDir, "AppRun"), []byte(script), 0o755)
}

func (p *LinuxPackager) writeDesktopEntry(appDir string) error {
	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=AppRun
Icon=%s
Categories=Utility;
X-AppImage-Version=%s
`, p.App.Name, p.fileStem(), p.App.Version)
	return os.WriteFile(filepath.Join(appDir, p.fileStem()+".desktop"), []byte(entry), 0o644)
}

func goArch(a types.Arch) string {
	if a == types.ArchARM64 {
		return "aarch64"
	}
	return "x86_64"
}
