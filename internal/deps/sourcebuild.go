package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studioforge/internal/common/execx"
	"studioforge/internal/common/fsutil"
	"studioforge/pkg/types"
)

// SourceBuildStrategy compiles the native binding from a source checkout
// with CMake, passing acceleration flags derived from the target. The
// compilation environment is a sanitized copy of the process environment;
// the sanitization never leaks back to the invoking process.
type SourceBuildStrategy struct {
	// Dir is the source checkout root.
	Dir string
	// Runner executes the external toolchain.
	Runner execx.Runner
	// Env, when non-nil, is the base environment before sanitization.
	// Defaults to os.Environ().
	Env []string
}

func (s *SourceBuildStrategy) Name() string { return "source:" + s.Dir }

func (s *SourceBuildStrategy) Acquire(ctx context.Context, target types.BuildTarget, destDir string) error {
	if !fsutil.PathExists(s.Dir) {
		return fmt.Errorf("source dir %s does not exist", s.Dir)
	}
	base := s.Env
	if base == nil {
		base = os.Environ()
	}
	env := SanitizeSearchPaths(base)

	buildDir := filepath.Join(s.Dir, "build-"+string(target.Acceleration))
	configure := execx.Cmd{
		Path: "cmake",
		Args: append([]string{
			"-S", s.Dir,
			"-B", buildDir,
			"-DCMAKE_BUILD_TYPE=Release",
			"-DBUILD_SHARED_LIBS=ON",
		}, AccelFlags(target.Acceleration)...),
		Env: env,
	}
	if err := s.Runner.Run(ctx, configure); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	build := execx.Cmd{
		Path: "cmake",
		Args: []string{"--build", buildDir, "--config", "Release", "-j"},
		Env:  env,
	}
	if err := s.Runner.Run(ctx, build); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	n, err := collectSharedLibs(buildDir, destDir)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("build completed but no shared libraries found under %s", buildDir)
	}
	return nil
}

// AccelFlags returns the CMake flags enabling the acceleration backend.
func AccelFlags(a types.Acceleration) []string {
	switch a {
	case types.AccelMetal:
		return []string{"-DGGML_METAL=ON"}
	case types.AccelCUDA:
		return []string{"-DGGML_CUDA=ON"}
	default:
		return []string{"-DGGML_METAL=OFF", "-DGGML_CUDA=OFF"}
	}
}

// collectSharedLibs copies shared libraries from the build tree into dest.
func collectSharedLibs(buildDir, dest string) (int, error) {
	count := 0
	err := filepath.WalkDir(buildDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !IsSharedLib(d.Name()) {
			return nil
		}
		if err := fsutil.CopyFile(p, filepath.Join(dest, d.Name())); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// IsSharedLib reports whether name looks like a native shared library.
// Versioned ELF names such as libllama.so.1 count as well.
func IsSharedLib(name string) bool {
	switch filepath.Ext(name) {
	case ".so", ".dylib", ".dll":
		return true
	}
	return strings.Contains(name, ".so.")
}
