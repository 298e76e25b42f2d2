package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studioforge/pkg/types"
)

// Flavor is a container image variant.
type Flavor string

const (
	// FlavorCPU is the CPU-only base image.
	FlavorCPU Flavor = "cpu"
	// FlavorCUDA is the GPU-accelerated variant.
	FlavorCUDA Flavor = "cuda"
)

// Container ports: interactive UI and programmatic API.
const (
	ContainerUIPort  = 7860
	ContainerAPIPort = 8000
)

// ContainerPackager emits a container build context for one image flavor:
// the staged bundle plus a Dockerfile exposing the UI and API ports with a
// liveness check against the launcher's health endpoint.
type ContainerPackager struct {
	Options
	Flavor Flavor
}

func (p *ContainerPackager) Kind() types.ArtifactKind { return types.KindContainerContext }

func (p *ContainerPackager) ArtifactPath(outDir string, _ types.BuildTarget) string {
	return filepath.Join(outDir, "container-"+string(p.Flavor))
}

func (p *ContainerPackager) Package(ctx context.Context, m types.BundleManifest, target types.BuildTarget, outDir string) (types.PackageArtifact, error) {
	if err := ctx.Err(); err != nil {
		return types.PackageArtifact{}, err
	}
	root := p.ArtifactPath(outDir, target)
	if err := os.RemoveAll(root); err != nil {
		return types.PackageArtifact{}, err
	}
	if err := stage(m, filepath.Join(root, "bundle")); err != nil {
		return types.PackageArtifact{}, err
	}
	df := filepath.Join(root, "Dockerfile")
	if err := os.WriteFile(df, []byte(p.dockerfile()), 0o644); err != nil {
		return types.PackageArtifact{}, err
	}
	return verify(root, p.Kind(), target)
}

func (p *ContainerPackager) dockerfile() string {
	base := "debian:bookworm-slim"
	if p.Flavor == FlavorCUDA {
		base = "nvidia/cuda:12.4.1-runtime-ubuntu22.04"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n\n", base)
	b.WriteString("RUN apt-get update && apt-get install -y --no-install-recommends curl ca-certificates \\\n")
	b.WriteString("    && rm -rf /var/lib/apt/lists/*\n\n")
	b.WriteString("COPY bundle/ /opt/app/\n")
	fmt.Fprintf(&b, "RUN chmod +x /opt/app/%s\n\n", p.entry())
	fmt.Fprintf(&b, "EXPOSE %d %d\n", ContainerUIPort, ContainerAPIPort)
	fmt.Fprintf(&b, "HEALTHCHECK --interval=10s --timeout=3s --start-period=30s \\\n")
	fmt.Fprintf(&b, "    CMD curl -sf http://127.0.0.1:%d/healthz || exit 1\n\n", ContainerAPIPort)
	fmt.Fprintf(&b, "ENTRYPOINT [\"/opt/app/%s\", \"--ui-port\", \"%d\", \"--api-port\", \"%d\"]\n",
		p.entry(), ContainerUIPort, ContainerAPIPort)
	return b.String()
}
