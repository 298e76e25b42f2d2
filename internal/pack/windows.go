package pack

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"studioforge/internal/common/execx"
	"studioforge/pkg/types"
)

// WindowsPackager assembles the single self-contained executable and,
// when running on a Windows host, optionally drops a desktop shortcut.
type WindowsPackager struct {
	Options
	// Shortcut creates a desktop shortcut pointing at the executable.
	Shortcut bool
}

func (p *WindowsPackager) Kind() types.ArtifactKind { return types.KindInstallerExe }

func (p *WindowsPackager) ArtifactPath(outDir string, target types.BuildTarget) string {
	stem := strings.ReplaceAll(p.App.Name, " ", "-")
	return filepath.Join(outDir, fmt.Sprintf("%s-%s.exe", stem, target.Slug()))
}

func (p *WindowsPackager) Package(ctx context.Context, m types.BundleManifest, target types.BuildTarget, outDir string) (types.PackageArtifact, error) {
	final := p.ArtifactPath(outDir, target)
	entry := p.entry()
	if !strings.HasSuffix(entry, ".exe") {
		entry += ".exe"
	}
	if err := assembleSelfExe(m, entry, final); err != nil {
		return types.PackageArtifact{}, &PackagingError{Path: final, Err: err}
	}
	art, err := verify(final, p.Kind(), target)
	if err != nil {
		return types.PackageArtifact{}, err
	}
	if p.Shortcut && runtime.GOOS == "windows" {
		// best effort: a missing shortcut is an inconvenience, not a failure
		if err := p.createShortcut(ctx, final); err != nil {
			p.Log.Warn().Err(err).Msg("desktop shortcut creation failed")
		}
	}
	return art, nil
}

func (p *WindowsPackager) createShortcut(ctx context.Context, exePath string) error {
	script := fmt.Sprintf(
		`$s=(New-Object -ComObject WScript.Shell).CreateShortcut("$env:USERPROFILE\Desktop\%s.lnk");$s.TargetPath=%q;$s.Save()`,
		p.App.Name, exePath)
	return p.Runner.Run(ctx, execx.Cmd{
		Path: "powershell",
		Args: []string{"-NoProfile", "-Command", script},
	})
}
