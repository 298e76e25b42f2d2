// Package deps resolves native dependencies through ordered acquisition
// strategy chains: prebuilt artifacts are always tried before source
// compilation, and the first strategy to complete without error wins.
package deps

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"studioforge/internal/common/execx"
	"studioforge/pkg/types"
)

// Resolver tries each declared acquisition strategy for a dependency in
// order. The fallback chain here is the only sanctioned retry mechanism in
// the pipeline.
type Resolver struct {
	Log    zerolog.Logger
	Runner execx.Runner
	Client *http.Client
	// BuildStrategy converts a declared strategy into a runnable one.
	// Overridable in tests; defaults to buildStrategy.
	BuildStrategy func(types.AcquisitionStrategy, execx.Runner, *http.Client) (Strategy, error)
}

// NewResolver returns a Resolver using the real command runner.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{
		Log:    log,
		Runner: execx.ExecRunner{Log: log},
	}
}

// Resolve acquires one dependency into destDir. If every strategy fails it
// returns an *UnavailableError naming each attempted strategy exactly once.
func (r *Resolver) Resolve(ctx context.Context, spec types.DependencySpec, target types.BuildTarget, destDir string) error {
	build := r.BuildStrategy
	if build == nil {
		build = buildStrategy
	}
	attempts := make([]Attempt, 0, len(spec.Strategies))
	for _, decl := range spec.Strategies {
		strat, err := build(decl, r.Runner, r.Client)
		if err != nil {
			attempts = append(attempts, Attempt{Strategy: string(decl.Kind), Err: err})
			continue
		}
		r.Log.Info().
			Str("dependency", spec.Name).
			Str("strategy", strat.Name()).
			Msg("attempting acquisition")
		if err := strat.Acquire(ctx, target, destDir); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Log.Warn().
				Str("dependency", spec.Name).
				Str("strategy", strat.Name()).
				Err(err).
				Msg("strategy failed, trying next")
			attempts = append(attempts, Attempt{Strategy: strat.Name(), Err: err})
			continue
		}
		r.Log.Info().
			Str("dependency", spec.Name).
			Str("strategy", strat.Name()).
			Msg("acquired")
		return nil
	}
	return &UnavailableError{Dependency: spec.Name, Attempts: attempts}
}
