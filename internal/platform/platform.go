// Package platform derives the BuildTarget for a build invocation from the
// host environment, including which hardware-acceleration backend the native
// inference binding should be built or fetched for.
package platform

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"studioforge/pkg/types"
)

// CUDAProbe reports whether a CUDA-capable runtime is present on the host.
// The default probe shells out to nvidia-smi; tests substitute their own.
type CUDAProbe func(ctx context.Context) (bool, error)

// Resolver computes the host BuildTarget.
type Resolver struct {
	Log zerolog.Logger
	// GOOS/GOARCH default to the runtime values; overridable for tests.
	GOOS   string
	GOARCH string
	CUDA   CUDAProbe
}

// NewResolver returns a Resolver for the current host.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{Log: log, GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, CUDA: probeNvidiaSMI}
}

// Resolve derives the BuildTarget. Acceleration policy: Apple silicon gets
// Metal unconditionally; every other platform probes for CUDA and degrades
// to CPU-only when the runtime is absent or the probe itself fails. An
// unsupported host never fails here; whether a packaging procedure exists
// for the OS is checked separately by the packager selection.
func (r *Resolver) Resolve(ctx context.Context) (types.BuildTarget, error) {
	osFam, err := types.ParseOS(r.GOOS)
	if err != nil {
		return types.BuildTarget{}, fmt.Errorf("resolve host profile: %w", err)
	}
	arch, err := types.ParseArch(r.GOARCH)
	if err != nil {
		return types.BuildTarget{}, fmt.Errorf("resolve host profile: %w", err)
	}
	t := types.BuildTarget{OS: osFam, Arch: arch, Acceleration: types.AccelNone}

	if osFam == types.OSMacOS && arch == types.ArchARM64 {
		t.Acceleration = types.AccelMetal
		return t, nil
	}
	ok, err := r.cudaProbe(ctx)
	if err != nil {
		r.Log.Warn().Err(err).Msg("acceleration probe failed, falling back to CPU-only")
		return t, nil
	}
	if ok {
		t.Acceleration = types.AccelCUDA
	}
	return t, nil
}

// WithOverride applies a user-supplied acceleration override to a resolved
// target. An override never fails; it is the user's explicit choice.
func WithOverride(t types.BuildTarget, accel types.Acceleration) types.BuildTarget {
	t.Acceleration = accel
	return t
}

func (r *Resolver) cudaProbe(ctx context.Context) (bool, error) {
	if r.CUDA == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.CUDA(ctx)
}

func probeNvidiaSMI(ctx context.Context) (bool, error) {
	p, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false, nil
	}
	if err := exec.CommandContext(ctx, p, "-L").Run(); err != nil {
		return false, fmt.Errorf("nvidia-smi probe: %w", err)
	}
	return true, nil
}
