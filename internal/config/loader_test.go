package config

import (
	"os"
	"path/filepath"
	"testing"

	"studioforge/pkg/types"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func checkSemantic(t *testing.T, cfg Config) {
	t.Helper()
	if cfg.App.Name != "Studio" || cfg.App.Version != "2.0" {
		t.Fatalf("unexpected app meta: %+v", cfg.App)
	}
	if cfg.OutputDir != "out" {
		t.Fatalf("unexpected output dir: %q", cfg.OutputDir)
	}
	if cfg.Launcher != "bin/studiolauncher" {
		t.Fatalf("unexpected launcher: %q", cfg.Launcher)
	}
	if len(cfg.SourceTrees) != 1 || cfg.SourceTrees[0].Root != "app" {
		t.Fatalf("unexpected source trees: %+v", cfg.SourceTrees)
	}
	if cfg.Backends["linux"] != "app/shell/gtk" {
		t.Fatalf("unexpected backends: %+v", cfg.Backends)
	}
	if len(cfg.Dependencies) != 1 {
		t.Fatalf("unexpected dependencies: %+v", cfg.Dependencies)
	}
	d := cfg.Dependencies[0]
	if d.Name != "llama-binding" || !d.Required || len(d.Strategies) != 2 {
		t.Fatalf("unexpected dependency: %+v", d)
	}
	if d.Strategies[0].Kind != "prebuilt" || d.Strategies[1].Kind != "source" {
		t.Fatalf("strategy order not preserved: %+v", d.Strategies)
	}
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "build.yaml", `
app:
  name: Studio
  version: "2.0"
output_dir: out
launcher: bin/studiolauncher
source_trees:
  - root: app
backends:
  linux: app/shell/gtk
dependencies:
  - name: llama-binding
    required: true
    strategies:
      - kind: prebuilt
        url: https://example.com/a.tar.gz
      - kind: source
        dir: third_party/llama.cpp
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkSemantic(t, cfg)
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "build.json", `{
  "app": {"name": "Studio", "version": "2.0"},
  "output_dir": "out",
  "launcher": "bin/studiolauncher",
  "source_trees": [{"root": "app"}],
  "backends": {"linux": "app/shell/gtk"},
  "dependencies": [{
    "name": "llama-binding",
    "required": true,
    "strategies": [
      {"kind": "prebuilt", "url": "https://example.com/a.tar.gz"},
      {"kind": "source", "dir": "third_party/llama.cpp"}
    ]
  }]
}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkSemantic(t, cfg)
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "build.toml", `
output_dir = "out"
launcher = "bin/studiolauncher"

[app]
name = "Studio"
version = "2.0"

[[source_trees]]
root = "app"

[backends]
linux = "app/shell/gtk"

[[dependencies]]
name = "llama-binding"
required = true

[[dependencies.strategies]]
kind = "prebuilt"
url = "https://example.com/a.tar.gz"

[[dependencies.strategies]]
kind = "source"
dir = "third_party/llama.cpp"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkSemantic(t, cfg)
}

func TestLoadHCL(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "build.hcl", `
output_dir = "out"
launcher   = "bin/studiolauncher"

app {
  name    = "Studio"
  version = "2.0"
}

source_tree "app" {}

backend "linux" {
  tree = "app/shell/gtk"
}

dependency "llama-binding" {
  required = true

  strategy "prebuilt" {
    url = "https://example.com/a.tar.gz"
  }

  strategy "source" {
    dir = "third_party/llama.cpp"
  }
}
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checkSemantic(t, cfg)
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "build.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatal("expected unsupported extension error")
	}
}

func TestValidateRequiredWithoutStrategies(t *testing.T) {
	cfg := Config{Dependencies: []Dependency{{Name: "binding", Required: true}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for required dependency without strategies")
	}
}

func TestValidateUnknownStrategyKind(t *testing.T) {
	cfg := Config{Dependencies: []Dependency{{
		Name: "binding", Required: true,
		Strategies: []Strategy{{Kind: "teleport"}},
	}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown strategy kind")
	}
}

func TestDependencySpecs(t *testing.T) {
	cfg := Default()
	specs := cfg.DependencySpecs()
	if len(specs) != len(cfg.Dependencies) {
		t.Fatalf("spec count mismatch: %d vs %d", len(specs), len(cfg.Dependencies))
	}
	if specs[0].Strategies[0].Kind != types.StrategyPrebuilt {
		t.Fatalf("prebuilt must come first: %+v", specs[0].Strategies)
	}
	if specs[0].Strategies[0].Params["url"] == "" {
		t.Fatalf("url param not carried: %+v", specs[0].Strategies[0])
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
