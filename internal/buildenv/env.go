// Package buildenv provisions the disposable, per-build dependency
// environment. Each build target gets its own environment directory which
// is destroyed and recreated at the start of every build, so no stale state
// survives between runs and concurrent builds of different targets never
// share a directory.
package buildenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studioforge/internal/deps"
	"studioforge/pkg/types"
)

// CreateError is the fatal failure to provision an isolated environment.
type CreateError struct {
	Path string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("environment creation failed at %s: %v", e.Path, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// Environment is one isolated, build-scoped dependency tree.
type Environment struct {
	// ID is unique per build run.
	ID string
	// Root is the environment directory, exclusively owned by this build.
	Root   string
	Target types.BuildTarget

	installed []string
	skipped   []string
	lock      *flock.Flock
}

// Manager creates and populates isolated environments.
type Manager struct {
	// BaseDir holds one environment directory per target slug.
	BaseDir  string
	Log      zerolog.Logger
	Resolver *deps.Resolver
}

// NewManager returns a Manager rooted at baseDir.
func NewManager(baseDir string, log zerolog.Logger, resolver *deps.Resolver) *Manager {
	return &Manager{BaseDir: baseDir, Log: log, Resolver: resolver}
}

// Create destroys any existing environment for the target and provisions a
// fresh one. The per-target file lock is taken here and held until Destroy,
// so two builds of the same target cannot run concurrently.
func (m *Manager) Create(ctx context.Context, target types.BuildTarget) (*Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.BaseDir, 0o755); err != nil {
		return nil, &CreateError{Path: m.BaseDir, Err: err}
	}
	root := filepath.Join(m.BaseDir, target.Slug())
	lk := flock.New(root + ".lock")
	ok, err := lk.TryLock()
	if err != nil {
		return nil, &CreateError{Path: root, Err: err}
	}
	if !ok {
		return nil, &CreateError{Path: root, Err: fmt.Errorf("another build for target %s holds the environment lock", target.Triple())}
	}
	if err := os.RemoveAll(root); err != nil {
		_ = lk.Unlock()
		return nil, &CreateError{Path: root, Err: err}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		_ = lk.Unlock()
		return nil, &CreateError{Path: root, Err: err}
	}
	env := &Environment{
		ID:     uuid.NewString(),
		Root:   root,
		Target: target,
		lock:   lk,
	}
	m.Log.Info().Str("env", root).Str("build_id", env.ID).Msg("isolated environment created")
	return env, nil
}

// Install acquires one dependency into the environment. Required
// dependencies propagate resolver failures; optional ones are logged,
// recorded as skipped, and the build continues.
func (m *Manager) Install(ctx context.Context, env *Environment, spec types.DependencySpec) error {
	dest := env.DepDir(spec.Name)
	if err := m.Resolver.Resolve(ctx, spec, env.Target, dest); err != nil {
		if !spec.Required {
			m.Log.Warn().Str("dependency", spec.Name).Err(err).
				Msg("optional dependency unavailable, continuing without it")
			env.skipped = append(env.skipped, spec.Name)
			// remove the partial install so the manifest never sees it
			_ = os.RemoveAll(dest)
			return nil
		}
		return err
	}
	env.installed = append(env.installed, spec.Name)
	return nil
}

// Destroy removes the environment tree and releases the target lock.
func (m *Manager) Destroy(env *Environment) error {
	if env == nil {
		return nil
	}
	err := os.RemoveAll(env.Root)
	if env.lock != nil {
		_ = env.lock.Unlock()
	}
	return err
}

// Release drops the lock without deleting the tree (used once packaging has
// consumed the environment but the caller wants to inspect it).
func (e *Environment) Release() {
	if e.lock != nil {
		_ = e.lock.Unlock()
	}
}

// DepDir returns the directory a dependency installs into.
func (e *Environment) DepDir(name string) string {
	return filepath.Join(e.Root, name)
}

// Installed lists successfully installed dependencies in sorted order.
func (e *Environment) Installed() []string {
	out := append([]string(nil), e.installed...)
	sort.Strings(out)
	return out
}

// Skipped lists optional dependencies that could not be acquired.
func (e *Environment) Skipped() []string {
	out := append([]string(nil), e.skipped...)
	sort.Strings(out)
	return out
}
