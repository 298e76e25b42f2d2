// Package orchestrator drives a full build: host profile resolution,
// isolated environment provisioning, dependency installation, manifest
// assembly and packaging, as one linear state machine. Any step failure is
// terminal for the run and names the step that failed.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studioforge/internal/buildenv"
	"studioforge/internal/common/execx"
	"studioforge/internal/config"
	"studioforge/internal/manifest"
	"studioforge/internal/pack"
	"studioforge/internal/platform"
	"studioforge/pkg/types"
)

// FailedStep identifies the pipeline step a failed build stopped at.
type FailedStep string

const (
	StepResolveProfile      FailedStep = "resolve_profile"
	StepCreateEnvironment   FailedStep = "create_environment"
	StepInstallDependencies FailedStep = "install_dependencies"
	StepBuildManifest       FailedStep = "build_manifest"
	StepPackage             FailedStep = "package"
)

// Result is the terminal outcome of one build run.
type Result struct {
	BuildID  string
	State    State
	Target   types.BuildTarget
	Artifact types.PackageArtifact
	// FailedStep is set only when State is StateFailed.
	FailedStep FailedStep
	// Skipped lists optional dependencies the build proceeded without.
	Skipped []string
}

// Orchestrator wires the pipeline stages together. Stage implementations
// are injected so each can be replaced in tests.
type Orchestrator struct {
	Log      zerolog.Logger
	Config   config.Config
	Platform *platform.Resolver
	Envs     *buildenv.Manager
	Manifest *manifest.Builder
	// PackagerFor selects the packager for a target; defaults to
	// pack.ForTarget.
	PackagerFor func(types.BuildTarget, pack.Options) (pack.Packager, error)
	Runner      execx.Runner

	// AccelOverride forces the acceleration backend instead of probing.
	AccelOverride types.Acceleration
	// KeepEnv leaves the environment tree on disk after the build for
	// inspection; the target lock is still released.
	KeepEnv bool
}

// New returns an Orchestrator with the default stage implementations.
// launcher is the path of the launcher binary the manifest embeds at the
// bundle entry point.
func New(cfg config.Config, log zerolog.Logger, envs *buildenv.Manager, runner execx.Runner, launcher string) *Orchestrator {
	return &Orchestrator{
		Log:         log,
		Config:      cfg,
		Platform:    platform.NewResolver(log),
		Envs:        envs,
		Manifest:    &manifest.Builder{Log: log, Launcher: launcher},
		PackagerFor: pack.ForTarget,
		Runner:      runner,
	}
}

// Build runs the pipeline to completion. The returned Result always carries
// the terminal state; on error it names the failed step, and no artifact is
// reported for a failed run.
func (o *Orchestrator) Build(ctx context.Context) (Result, error) {
	res := Result{BuildID: uuid.NewString(), State: StateInit}
	sm := newMachine()
	log := o.Log.With().Str("build_id", res.BuildID).Logger()

	fail := func(step FailedStep, err error) (Result, error) {
		sm.fail()
		res.State = sm.State()
		res.FailedStep = step
		log.Error().Str("step", string(step)).Err(err).Msg("build failed")
		return res, err
	}

	target, err := o.Platform.Resolve(ctx)
	if err != nil {
		return fail(StepResolveProfile, err)
	}
	if o.AccelOverride != "" {
		target = platform.WithOverride(target, o.AccelOverride)
	}
	res.Target = target
	if err := sm.advance(StateProfileResolved); err != nil {
		return fail(StepResolveProfile, err)
	}
	log.Info().Str("target", target.Triple()).Msg("host profile resolved")

	// Select the packager before any expensive work: a target with no
	// packaging procedure must halt the run up front.
	packager, err := o.packagerFor(target)
	if err != nil {
		return fail(StepResolveProfile, err)
	}

	env, err := o.Envs.Create(ctx, target)
	if err != nil {
		return fail(StepCreateEnvironment, err)
	}
	defer func() {
		if o.KeepEnv {
			env.Release()
			return
		}
		if derr := o.Envs.Destroy(env); derr != nil {
			log.Warn().Err(derr).Msg("environment cleanup failed")
		}
	}()
	if err := sm.advance(StateEnvironmentReady); err != nil {
		return fail(StepCreateEnvironment, err)
	}

	for _, spec := range o.Config.DependencySpecs() {
		if err := o.Envs.Install(ctx, env, spec); err != nil {
			return fail(StepInstallDependencies, err)
		}
	}
	res.Skipped = env.Skipped()
	if err := sm.advance(StateDependenciesInstalled); err != nil {
		return fail(StepInstallDependencies, err)
	}
	log.Info().Strs("installed", env.Installed()).Strs("skipped", env.Skipped()).
		Msg("dependencies installed")

	m, err := o.Manifest.Build(env, o.Config, target)
	if err != nil {
		return fail(StepBuildManifest, err)
	}
	if err := sm.advance(StateManifestBuilt); err != nil {
		return fail(StepBuildManifest, err)
	}

	// Stale artifact from a prior run goes first, so a failure below can
	// never leave an old artifact masquerading as this run's output.
	if err := pack.Clean(packager, o.Config.OutputDir, target); err != nil {
		return fail(StepPackage, err)
	}
	artifact, err := packager.Package(ctx, m, target, o.Config.OutputDir)
	if err != nil {
		return fail(StepPackage, err)
	}
	if err := sm.advance(StatePackaged); err != nil {
		return fail(StepPackage, err)
	}

	if err := sm.advance(StateDone); err != nil {
		return fail(StepPackage, err)
	}
	res.State = sm.State()
	res.Artifact = artifact
	log.Info().
		Str("artifact", artifact.Path).
		Int64("size_bytes", artifact.SizeBytes).
		Str("kind", string(artifact.Kind)).
		Msg("build complete")
	return res, nil
}

func (o *Orchestrator) packagerFor(target types.BuildTarget) (pack.Packager, error) {
	sel := o.PackagerFor
	if sel == nil {
		sel = pack.ForTarget
	}
	opts := pack.Options{App: o.Config.App, Runner: o.Runner, Log: o.Log}
	p, err := sel(target, opts)
	if err != nil {
		return nil, fmt.Errorf("select packager: %w", err)
	}
	return p, nil
}
