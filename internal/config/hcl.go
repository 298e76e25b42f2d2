package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// HCL decoding uses a parallel block-structured schema: attributes and
// labeled blocks instead of the flat keys the marshaled formats share.
type hclRoot struct {
	App          *hclApp         `hcl:"app,block"`
	OutputDir    string          `hcl:"output_dir,optional"`
	Launcher     string          `hcl:"launcher,optional"`
	SourceTrees  []hclSourceTree `hcl:"source_tree,block"`
	Backends     []hclBackend    `hcl:"backend,block"`
	Exclude      []string        `hcl:"exclude,optional"`
	Required     []string        `hcl:"required,optional"`
	Dependencies []hclDependency `hcl:"dependency,block"`
}

type hclApp struct {
	Name       string `hcl:"name"`
	Version    string `hcl:"version"`
	Identifier string `hcl:"identifier,optional"`
	DarkMode   bool   `hcl:"dark_mode,optional"`
}

type hclSourceTree struct {
	Root string `hcl:"root,label"`
	Dest string `hcl:"dest,optional"`
}

type hclBackend struct {
	OS   string `hcl:"os,label"`
	Tree string `hcl:"tree"`
}

type hclDependency struct {
	Name       string        `hcl:"name,label"`
	Required   bool          `hcl:"required,optional"`
	Strategies []hclStrategy `hcl:"strategy,block"`
}

type hclStrategy struct {
	Kind   string `hcl:"kind,label"`
	URL    string `hcl:"url,optional"`
	SHA256 string `hcl:"sha256,optional"`
	Dir    string `hcl:"dir,optional"`
}

func unmarshalHCL(filename string, src []byte, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("parse %s: %s", filename, diags.Error())
	}
	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("decode %s: %s", filename, diags.Error())
	}

	if root.App != nil {
		cfg.App = AppMeta{
			Name:       root.App.Name,
			Version:    root.App.Version,
			Identifier: root.App.Identifier,
			DarkMode:   root.App.DarkMode,
		}
	}
	cfg.OutputDir = root.OutputDir
	cfg.Launcher = root.Launcher
	for _, t := range root.SourceTrees {
		cfg.SourceTrees = append(cfg.SourceTrees, SourceTree{Root: t.Root, Dest: t.Dest})
	}
	if len(root.Backends) > 0 {
		cfg.Backends = make(map[string]string, len(root.Backends))
		for _, b := range root.Backends {
			cfg.Backends[b.OS] = b.Tree
		}
	}
	cfg.Exclude = root.Exclude
	cfg.Required = root.Required
	for _, d := range root.Dependencies {
		dep := Dependency{Name: d.Name, Required: d.Required}
		for _, s := range d.Strategies {
			dep.Strategies = append(dep.Strategies, Strategy{
				Kind:   s.Kind,
				URL:    s.URL,
				SHA256: s.SHA256,
				Dir:    s.Dir,
			})
		}
		cfg.Dependencies = append(cfg.Dependencies, dep)
	}
	return nil
}
