package types

import (
	"fmt"
	"strings"
)

// OS is the operating-system family of a build target.
type OS string

const (
	OSMacOS   OS = "macos"
	OSWindows OS = "windows"
	OSLinux   OS = "linux"
)

// Arch is the CPU architecture of a build target.
type Arch string

const (
	ArchAMD64 Arch = "x86_64"
	ArchARM64 Arch = "arm64"
)

// Acceleration identifies the hardware-acceleration backend the native
// inference binding is built against.
type Acceleration string

const (
	AccelNone  Acceleration = "none"
	AccelMetal Acceleration = "metal"
	AccelCUDA  Acceleration = "cuda"
)

// BuildTarget describes the platform a build produces an artifact for.
// It is resolved once per build invocation and never mutated afterwards.
type BuildTarget struct {
	// Operating-system family.
	// example: linux
	OS OS `json:"os" example:"linux"`
	// CPU architecture.
	// example: x86_64
	Arch Arch `json:"arch" example:"x86_64"`
	// Selected acceleration backend.
	// example: cuda
	Acceleration Acceleration `json:"acceleration" example:"cuda"`
}

// Triple returns the canonical "os/arch/accel" form used in artifact and
// environment names.
func (t BuildTarget) Triple() string {
	return fmt.Sprintf("%s/%s/%s", t.OS, t.Arch, t.Acceleration)
}

// Slug returns a filesystem-safe form of Triple.
func (t BuildTarget) Slug() string {
	return strings.ReplaceAll(t.Triple(), "/", "-")
}

// ParseOS maps common spellings (including GOOS values) to an OS family.
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(s) {
	case "macos", "darwin", "osx":
		return OSMacOS, nil
	case "windows", "win":
		return OSWindows, nil
	case "linux":
		return OSLinux, nil
	default:
		return "", fmt.Errorf("unknown os: %q", s)
	}
}

// ParseArch maps common spellings (including GOARCH values) to an Arch.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86_64", "amd64", "x64":
		return ArchAMD64, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("unknown arch: %q", s)
	}
}

// ParseAcceleration maps a user-supplied override to an Acceleration.
func ParseAcceleration(s string) (Acceleration, error) {
	switch strings.ToLower(s) {
	case "none", "cpu":
		return AccelNone, nil
	case "metal":
		return AccelMetal, nil
	case "cuda":
		return AccelCUDA, nil
	default:
		return "", fmt.Errorf("unknown acceleration: %q", s)
	}
}
