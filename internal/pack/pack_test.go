package pack

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"studioforge/internal/common/execx"
	"studioforge/internal/config"
	"studioforge/pkg/types"
)

var linuxTarget = types.BuildTarget{OS: types.OSLinux, Arch: types.ArchAMD64, Acceleration: types.AccelNone}

// fakeRunner records commands and can simulate artifact-producing tools.
type fakeRunner struct {
	cmds  []execx.Cmd
	onRun func(execx.Cmd) error
}

func (f *fakeRunner) Run(_ context.Context, c execx.Cmd) error {
	f.cmds = append(f.cmds, c)
	if f.onRun != nil {
		return f.onRun(c)
	}
	return nil
}

func appMeta() config.AppMeta {
	return config.AppMeta{Name: "LocalLLM Studio", Version: "1.0.0", Identifier: "com.localllm.studio", DarkMode: true}
}

// testManifest builds a minimal manifest including the launcher entry.
func testManifest(t *testing.T, entry string) types.BundleManifest {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		entry:         "launcher-binary",
		"app/main.py": "entry",
		"lib/llama-binding/libllama.so": "elf",
	}
	var m types.BundleManifest
	for dest, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(dest))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
			t.Fatalf("write: %v", err)
		}
		e := types.ManifestEntry{Source: p, Dest: dest}
		if dest == "lib/llama-binding/libllama.so" {
			e.Origin = "llama-binding"
			m.NativeBinaries = append(m.NativeBinaries, e)
		} else {
			m.RegularFiles = append(m.RegularFiles, e)
		}
	}
	m.Sort()
	return m
}

func TestForTargetSelection(t *testing.T) {
	opts := Options{App: appMeta(), Runner: &fakeRunner{}, Log: zerolog.Nop()}
	cases := []struct {
		os   types.OS
		kind types.ArtifactKind
	}{
		{types.OSMacOS, types.KindDiskImage},
		{types.OSWindows, types.KindInstallerExe},
		{types.OSLinux, types.KindFilesystemImage},
	}
	for _, tc := range cases {
		p, err := ForTarget(types.BuildTarget{OS: tc.os, Arch: types.ArchAMD64, Acceleration: types.AccelNone}, opts)
		if err != nil {
			t.Fatalf("%s: %v", tc.os, err)
		}
		if p.Kind() != tc.kind {
			t.Fatalf("%s: got kind %s want %s", tc.os, p.Kind(), tc.kind)
		}
	}
}

func TestForTargetUnsupported(t *testing.T) {
	_, err := ForTarget(types.BuildTarget{OS: "beos"}, Options{})
	var ue *UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnsupportedError, got %v", err)
	}
}

func TestSelfExeRoundTrip(t *testing.T) {
	m := testManifest(t, DefaultEntry)
	out := filepath.Join(t.TempDir(), "studio")
	if err := assembleSelfExe(m, DefaultEntry, out); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	size, err := ReadSelfExeTrailer(out)
	if err != nil {
		t.Fatalf("trailer: %v", err)
	}
	if size <= 0 {
		t.Fatalf("payload size must be positive, got %d", size)
	}
	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Mode().Perm()&0o100 == 0 {
		t.Fatal("output must be executable")
	}
}

func TestSelfExeExtractRestoresBundle(t *testing.T) {
	m := testManifest(t, DefaultEntry)
	out := filepath.Join(t.TempDir(), "studio")
	if err := assembleSelfExe(m, DefaultEntry, out); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	dest := t.TempDir()
	if err := ExtractSelfExe(out, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dest, "app", "main.py"))
	if err != nil {
		t.Fatalf("extracted file: %v", err)
	}
	if string(body) != "entry" {
		t.Fatalf("content: %q", body)
	}
	// the launcher stub forms the file head and is not re-extracted
	if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(DefaultEntry))); !os.IsNotExist(err) {
		t.Fatal("stub must not appear in the extracted payload")
	}
}

func TestExtractSelfExeRejectsPlainFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "not-packaged")
	if err := os.WriteFile(p, []byte("just a binary with no trailer at all"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ExtractSelfExe(p, t.TempDir()); err == nil {
		t.Fatal("expected magic validation failure")
	}
}

func TestSelfExeMissingLauncher(t *testing.T) {
	m := testManifest(t, "bin/other")
	if err := assembleSelfExe(m, DefaultEntry, filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error when launcher entry absent")
	}
}

func TestLinuxPackagerBuildsAppDirAndImage(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{}
	var sawAppRun, sawDesktop bool
	fr.onRun = func(c execx.Cmd) error {
		// appimagetool <appdir> <out>: inspect the AppDir, then emit the image
		appDir, out := c.Args[0], c.Args[1]
		if b, err := os.ReadFile(filepath.Join(appDir, "AppRun")); err == nil && len(b) > 0 {
			sawAppRun = true
		}
		if b, err := os.ReadFile(filepath.Join(appDir, "LocalLLM-Studio.desktop")); err == nil && len(b) > 0 {
			sawDesktop = true
		}
		return os.WriteFile(out, []byte("appimage"), 0o755)
	}
	p := &LinuxPackager{Options: Options{App: appMeta(), Runner: fr, Log: zerolog.Nop()}}
	m := testManifest(t, DefaultEntry)
	art, err := p.Package(context.Background(), m, linuxTarget, outDir)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if art.Kind != types.KindFilesystemImage {
		t.Fatalf("kind: %s", art.Kind)
	}
	if !sawAppRun {
		t.Fatal("AppDir missing launch-indirection script")
	}
	if !sawDesktop {
		t.Fatal("AppDir missing desktop-menu descriptor")
	}
	if art.SizeBytes == 0 {
		t.Fatal("artifact size must be non-zero")
	}
	if len(fr.cmds) != 1 || fr.cmds[0].Path != "appimagetool" {
		t.Fatalf("unexpected tool invocation: %+v", fr.cmds)
	}
}

func TestLinuxPackagerReportsMissingArtifact(t *testing.T) {
	fr := &fakeRunner{} // tool "succeeds" but writes nothing
	p := &LinuxPackager{Options: Options{App: appMeta(), Runner: fr, Log: zerolog.Nop()}}
	m := testManifest(t, DefaultEntry)
	_, err := p.Package(context.Background(), m, linuxTarget, t.TempDir())
	var pe *PackagingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PackagingError, got %v", err)
	}
}

func TestLinuxPackagerIdempotent(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{}
	fr.onRun = func(c execx.Cmd) error {
		return os.WriteFile(c.Args[1], []byte("appimage"), 0o755)
	}
	p := &LinuxPackager{Options: Options{App: appMeta(), Runner: fr, Log: zerolog.Nop()}}
	m := testManifest(t, DefaultEntry)
	if _, err := p.Package(context.Background(), m, linuxTarget, outDir); err != nil {
		t.Fatalf("first package: %v", err)
	}
	if _, err := p.Package(context.Background(), m, linuxTarget, outDir); err != nil {
		t.Fatalf("second package: %v", err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	count := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".AppImage" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one artifact, found %d", count)
	}
}

func TestWindowsPackagerProducesExe(t *testing.T) {
	outDir := t.TempDir()
	p := &WindowsPackager{Options: Options{App: appMeta(), Runner: &fakeRunner{}, Log: zerolog.Nop()}}
	winTarget := types.BuildTarget{OS: types.OSWindows, Arch: types.ArchAMD64, Acceleration: types.AccelNone}
	m := testManifest(t, DefaultEntry+".exe")
	art, err := p.Package(context.Background(), m, winTarget, outDir)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if art.Kind != types.KindInstallerExe {
		t.Fatalf("kind: %s", art.Kind)
	}
	if filepath.Ext(art.Path) != ".exe" {
		t.Fatalf("artifact path: %s", art.Path)
	}
	if _, err := ReadSelfExeTrailer(art.Path); err != nil {
		t.Fatalf("exe payload invalid: %v", err)
	}
}

func TestWindowsPackagerFailureLeavesNoArtifact(t *testing.T) {
	outDir := t.TempDir()
	p := &WindowsPackager{Options: Options{App: appMeta(), Runner: &fakeRunner{}, Log: zerolog.Nop()}}
	winTarget := types.BuildTarget{OS: types.OSWindows, Arch: types.ArchAMD64, Acceleration: types.AccelNone}
	m := testManifest(t, DefaultEntry+".exe")
	// a payload source vanishing mid-assembly fails after the stub was
	// already written out
	for _, e := range m.RegularFiles {
		if e.Dest == "app/main.py" {
			if err := os.Remove(e.Source); err != nil {
				t.Fatalf("remove: %v", err)
			}
		}
	}
	if _, err := p.Package(context.Background(), m, winTarget, outDir); err == nil {
		t.Fatal("expected packaging failure")
	}
	final := p.ArtifactPath(outDir, winTarget)
	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Fatal("failed packaging must not leave a truncated executable")
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("output dir must stay empty after a failed run, found %v", entries)
	}
}

func TestEntryDest(t *testing.T) {
	winTarget := types.BuildTarget{OS: types.OSWindows, Arch: types.ArchAMD64, Acceleration: types.AccelNone}
	if got := EntryDest(winTarget); got != DefaultEntry+".exe" {
		t.Fatalf("windows entry: %s", got)
	}
	if got := EntryDest(linuxTarget); got != DefaultEntry {
		t.Fatalf("linux entry: %s", got)
	}
}

func TestDarwinPackagerBundleOnly(t *testing.T) {
	outDir := t.TempDir()
	p := &DarwinPackager{Options: Options{App: appMeta(), Runner: &fakeRunner{}, Log: zerolog.Nop()}, MakeDMG: false}
	macTarget := types.BuildTarget{OS: types.OSMacOS, Arch: types.ArchARM64, Acceleration: types.AccelMetal}
	m := testManifest(t, DefaultEntry)
	art, err := p.Package(context.Background(), m, macTarget, outDir)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if art.Kind != types.KindAppBundle {
		t.Fatalf("kind: %s", art.Kind)
	}
	plist, err := os.ReadFile(filepath.Join(art.Path, "Contents", "Info.plist"))
	if err != nil {
		t.Fatalf("plist: %v", err)
	}
	for _, want := range []string{"com.localllm.studio", "LocalLLM Studio", "NSRequiresAquaSystemAppearance", "<false/>"} {
		if !contains(string(plist), want) {
			t.Fatalf("plist missing %q:\n%s", want, plist)
		}
	}
	if _, err := os.Stat(filepath.Join(art.Path, "Contents", "Resources", "app", "main.py")); err != nil {
		t.Fatalf("payload missing from bundle: %v", err)
	}
}

func TestDarwinPackagerDMGInvokesHdiutil(t *testing.T) {
	outDir := t.TempDir()
	fr := &fakeRunner{}
	fr.onRun = func(c execx.Cmd) error {
		return os.WriteFile(c.Args[len(c.Args)-1], []byte("dmg"), 0o644)
	}
	p := &DarwinPackager{Options: Options{App: appMeta(), Runner: fr, Log: zerolog.Nop()}, MakeDMG: true}
	macTarget := types.BuildTarget{OS: types.OSMacOS, Arch: types.ArchARM64, Acceleration: types.AccelMetal}
	m := testManifest(t, DefaultEntry)
	art, err := p.Package(context.Background(), m, macTarget, outDir)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if art.Kind != types.KindDiskImage {
		t.Fatalf("kind: %s", art.Kind)
	}
	if len(fr.cmds) != 1 || fr.cmds[0].Path != "hdiutil" {
		t.Fatalf("hdiutil not invoked: %+v", fr.cmds)
	}
}

func TestContainerPackagerEmitsBothFlavorDetails(t *testing.T) {
	for _, flavor := range []Flavor{FlavorCPU, FlavorCUDA} {
		outDir := t.TempDir()
		p := &ContainerPackager{Options: Options{App: appMeta(), Runner: &fakeRunner{}, Log: zerolog.Nop()}, Flavor: flavor}
		m := testManifest(t, DefaultEntry)
		art, err := p.Package(context.Background(), m, linuxTarget, outDir)
		if err != nil {
			t.Fatalf("%s: package: %v", flavor, err)
		}
		df, err := os.ReadFile(filepath.Join(art.Path, "Dockerfile"))
		if err != nil {
			t.Fatalf("%s: dockerfile: %v", flavor, err)
		}
		for _, want := range []string{"EXPOSE 7860 8000", "HEALTHCHECK", "/healthz"} {
			if !contains(string(df), want) {
				t.Fatalf("%s: dockerfile missing %q", flavor, want)
			}
		}
		if flavor == FlavorCUDA && !contains(string(df), "nvidia/cuda") {
			t.Fatal("cuda flavor must use the CUDA base image")
		}
	}
}

func TestClean(t *testing.T) {
	outDir := t.TempDir()
	p := &LinuxPackager{Options: Options{App: appMeta(), Runner: &fakeRunner{}, Log: zerolog.Nop()}}
	stale := p.ArtifactPath(outDir, linuxTarget)
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Clean(p, outDir, linuxTarget); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale artifact must be removed")
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
