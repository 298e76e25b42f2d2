// Package config loads the static build configuration: the dependency table,
// declared source trees, exclusion filters, the required-set, and the
// application metadata stamped into packages.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"studioforge/pkg/types"
)

// AppMeta is the metadata embedded into the produced package.
type AppMeta struct {
	Name       string `json:"name" yaml:"name" toml:"name"`
	Version    string `json:"version" yaml:"version" toml:"version"`
	Identifier string `json:"identifier" yaml:"identifier" toml:"identifier"`
	DarkMode   bool   `json:"dark_mode" yaml:"dark_mode" toml:"dark_mode"`
}

// Strategy is one acquisition strategy in a dependency's ordered chain.
type Strategy struct {
	Kind   string `json:"kind" yaml:"kind" toml:"kind"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty" toml:"sha256,omitempty"`
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
}

// Dependency declares one native component and how to obtain it.
type Dependency struct {
	Name       string     `json:"name" yaml:"name" toml:"name"`
	Required   bool       `json:"required" yaml:"required" toml:"required"`
	Strategies []Strategy `json:"strategies" yaml:"strategies" toml:"strategies"`
}

// SourceTree maps a checkout subtree to a destination prefix in the bundle.
type SourceTree struct {
	Root string `json:"root" yaml:"root" toml:"root"`
	Dest string `json:"dest,omitempty" yaml:"dest,omitempty" toml:"dest,omitempty"`
}

// Config holds the full build configuration. Zero values fall back to
// Default() in the CLI.
type Config struct {
	App       AppMeta `json:"app" yaml:"app" toml:"app"`
	OutputDir string  `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	// Launcher is the path of the launcher binary embedded at the bundle
	// entry point. Empty means locate one next to the orchestrator binary.
	Launcher    string       `json:"launcher,omitempty" yaml:"launcher,omitempty" toml:"launcher,omitempty"`
	SourceTrees []SourceTree `json:"source_trees" yaml:"source_trees" toml:"source_trees"`
	// Backends maps an OS family to the GUI-shell backend subtree included
	// only for that family; the other families' subtrees are pruned.
	Backends     map[string]string `json:"backends" yaml:"backends" toml:"backends"`
	Exclude      []string          `json:"exclude" yaml:"exclude" toml:"exclude"`
	Required     []string          `json:"required" yaml:"required" toml:"required"`
	Dependencies []Dependency      `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml, .hcl
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".hcl":
		if err := unmarshalHCL(path, b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate enforces the invariants the pipeline relies on: every required
// dependency carries at least one strategy, and strategy kinds parse.
func (c Config) Validate() error {
	for _, d := range c.Dependencies {
		if d.Required && len(d.Strategies) == 0 {
			return fmt.Errorf("dependency %q is required but declares no acquisition strategy", d.Name)
		}
		for _, s := range d.Strategies {
			switch types.StrategyKind(s.Kind) {
			case types.StrategyPrebuilt, types.StrategySource, types.StrategyLocal:
			default:
				return fmt.Errorf("dependency %q: unknown strategy kind %q", d.Name, s.Kind)
			}
		}
	}
	return nil
}

// DependencySpecs converts the configured dependency table into the typed
// specs the resolver consumes.
func (c Config) DependencySpecs() []types.DependencySpec {
	specs := make([]types.DependencySpec, 0, len(c.Dependencies))
	for _, d := range c.Dependencies {
		spec := types.DependencySpec{Name: d.Name, Required: d.Required}
		for _, s := range d.Strategies {
			params := map[string]string{}
			if s.URL != "" {
				params["url"] = s.URL
			}
			if s.SHA256 != "" {
				params["sha256"] = s.SHA256
			}
			if s.Dir != "" {
				params["dir"] = s.Dir
			}
			spec.Strategies = append(spec.Strategies, types.AcquisitionStrategy{
				Kind:   types.StrategyKind(s.Kind),
				Params: params,
			})
		}
		specs = append(specs, spec)
	}
	return specs
}
