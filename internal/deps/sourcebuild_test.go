package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studioforge/internal/common/execx"
	"studioforge/pkg/types"
)

// fakeRunner records commands and can simulate the build by dropping files
// into the build directory.
type fakeRunner struct {
	cmds   []execx.Cmd
	onRun  func(execx.Cmd) error
}

func (f *fakeRunner) Run(_ context.Context, c execx.Cmd) error {
	f.cmds = append(f.cmds, c)
	if f.onRun != nil {
		return f.onRun(c)
	}
	return nil
}

func hasArg(c execx.Cmd, want string) bool {
	for _, a := range c.Args {
		if a == want {
			return true
		}
	}
	return false
}

func TestSourceBuildPassesMetalFlag(t *testing.T) {
	srcDir := t.TempDir()
	fr := &fakeRunner{}
	fr.onRun = func(c execx.Cmd) error {
		// simulate the build emitting a dylib once the build step runs
		if hasArg(c, "--build") {
			buildDir := c.Args[1]
			if err := os.MkdirAll(buildDir, 0o755); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(buildDir, "libllama.dylib"), []byte("lib"), 0o644)
		}
		return nil
	}
	s := &SourceBuildStrategy{Dir: srcDir, Runner: fr, Env: []string{"PATH=/usr/bin"}}
	tgt := types.BuildTarget{OS: types.OSMacOS, Arch: types.ArchARM64, Acceleration: types.AccelMetal}
	dest := t.TempDir()
	if err := s.Acquire(context.Background(), tgt, dest); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(fr.cmds) != 2 {
		t.Fatalf("expected configure+build, got %d commands", len(fr.cmds))
	}
	if !hasArg(fr.cmds[0], "-DGGML_METAL=ON") {
		t.Fatalf("metal flag missing: %v", fr.cmds[0].Args)
	}
	if _, err := os.Stat(filepath.Join(dest, "libllama.dylib")); err != nil {
		t.Fatalf("built lib not collected: %v", err)
	}
}

func TestSourceBuildSanitizesCompileEnv(t *testing.T) {
	srcDir := t.TempDir()
	fr := &fakeRunner{}
	fr.onRun = func(c execx.Cmd) error {
		if hasArg(c, "--build") {
			buildDir := c.Args[1]
			_ = os.MkdirAll(buildDir, 0o755)
			return os.WriteFile(filepath.Join(buildDir, "libllama.so"), []byte("lib"), 0o644)
		}
		return nil
	}
	base := []string{
		"PATH=/usr/bin",
		"CPATH=/usr/include" + string(filepath.ListSeparator) + "/home/u/anaconda3/include",
	}
	s := &SourceBuildStrategy{Dir: srcDir, Runner: fr, Env: base}
	tgt := types.BuildTarget{OS: types.OSLinux, Arch: types.ArchAMD64, Acceleration: types.AccelCUDA}
	if err := s.Acquire(context.Background(), tgt, t.TempDir()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	for _, c := range fr.cmds {
		for _, kv := range c.Env {
			if strings.Contains(kv, "anaconda") {
				t.Fatalf("conflicting search path leaked into compile env: %s", kv)
			}
		}
	}
	if base[1] != "CPATH=/usr/include"+string(filepath.ListSeparator)+"/home/u/anaconda3/include" {
		t.Fatal("caller environment must stay untouched")
	}
	if !hasArg(fr.cmds[0], "-DGGML_CUDA=ON") {
		t.Fatalf("cuda flag missing: %v", fr.cmds[0].Args)
	}
}

func TestSourceBuildFailsWithoutOutput(t *testing.T) {
	srcDir := t.TempDir()
	fr := &fakeRunner{} // build "succeeds" but emits nothing
	s := &SourceBuildStrategy{Dir: srcDir, Runner: fr, Env: []string{}}
	tgt := types.BuildTarget{OS: types.OSLinux, Arch: types.ArchAMD64, Acceleration: types.AccelNone}
	if err := s.Acquire(context.Background(), tgt, t.TempDir()); err == nil {
		t.Fatal("expected failure when no shared library is produced")
	}
}

func TestSourceBuildMissingDir(t *testing.T) {
	s := &SourceBuildStrategy{Dir: filepath.Join(t.TempDir(), "nope"), Runner: &fakeRunner{}}
	tgt := types.BuildTarget{OS: types.OSLinux, Arch: types.ArchAMD64, Acceleration: types.AccelNone}
	if err := s.Acquire(context.Background(), tgt, t.TempDir()); err == nil {
		t.Fatal("expected error for missing source dir")
	}
}

func TestIsSharedLib(t *testing.T) {
	for _, name := range []string{"libllama.so", "libllama.so.1", "ggml.dylib", "llama.dll"} {
		if !IsSharedLib(name) {
			t.Errorf("%s should be a shared lib", name)
		}
	}
	for _, name := range []string{"llama.h", "README.md", "llama"} {
		if IsSharedLib(name) {
			t.Errorf("%s should not be a shared lib", name)
		}
	}
}
