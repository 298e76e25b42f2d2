package types

// ArtifactKind is the packaging format of a produced artifact.
type ArtifactKind string

const (
	// KindAppBundle is a macOS .app directory.
	KindAppBundle ArtifactKind = "app_bundle"
	// KindDiskImage is a compressed macOS disk image wrapping the bundle.
	KindDiskImage ArtifactKind = "disk_image"
	// KindInstallerExe is a Windows self-contained executable.
	KindInstallerExe ArtifactKind = "installer_exe"
	// KindFilesystemImage is a Linux single-file portable image.
	KindFilesystemImage ArtifactKind = "filesystem_image"
	// KindContainerContext is a container build context with Dockerfiles
	// for the CPU-only and accelerated image flavors.
	KindContainerContext ArtifactKind = "container_context"
)

// PackageArtifact is the terminal output of one successful build.
type PackageArtifact struct {
	Target BuildTarget `json:"target"`
	Kind   ArtifactKind `json:"kind" example:"filesystem_image"`
	// Absolute path of the produced artifact.
	// example: /home/user/dist/LocalLLM-Studio-linux-x86_64-none.AppImage
	Path string `json:"path"`
	// Size of the artifact in bytes. Always greater than zero for a
	// successful build.
	SizeBytes int64 `json:"size_bytes" example:"73400320"`
}
