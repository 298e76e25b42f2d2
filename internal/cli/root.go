// Package cli is the studioforge command tree: build, detect, clean and
// container, sharing logging and configuration setup.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"studioforge/internal/buildenv"
	"studioforge/internal/common/execx"
	"studioforge/internal/common/fsutil"
	"studioforge/internal/config"
	"studioforge/internal/deps"
	"studioforge/internal/orchestrator"
	"studioforge/internal/pack"
	"studioforge/internal/platform"
	"studioforge/pkg/types"
)

type rootOptions struct {
	ConfigPath string
	OutputDir  string
	Accel      string
	LogLevel   string
	KeepEnv    bool
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Main runs the command tree and returns the process exit code.
func Main() int {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var log zerolog.Logger

	root := &cobra.Command{
		Use:           "studioforge",
		Short:         "Build and package the desktop LLM application for the current platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level",
		envDefault("STUDIOFORGE_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Build configuration file (yaml|json|toml|hcl); built-in defaults when omitted")
	root.PersistentFlags().StringVar(&opts.OutputDir, "output", "", "Artifact output directory (overrides config)")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		log = newLogger(opts.LogLevel)
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Run the full pipeline: resolve, provision, install, assemble, package",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), log, opts, "")
		},
	}
	buildCmd.Flags().StringVar(&opts.Accel, "accel", "auto", "Acceleration override: auto|none|metal|cuda")
	buildCmd.Flags().BoolVar(&opts.KeepEnv, "keep-env", false, "Keep the isolated environment on disk after the build")

	containerCmd := &cobra.Command{
		Use:   "container [cpu|cuda|all]",
		Short: "Produce container build contexts instead of a desktop artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flavor := "all"
			if len(args) == 1 {
				flavor = args[0]
			}
			switch flavor {
			case "cpu", "cuda", "all":
			default:
				return fmt.Errorf("unknown container flavor %q (want cpu, cuda or all)", flavor)
			}
			return runBuild(cmd.Context(), log, opts, flavor)
		},
	}
	containerCmd.Flags().StringVar(&opts.Accel, "accel", "auto", "Acceleration override: auto|none|metal|cuda")

	var detectJSON bool
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Print the resolved build target and a hardware summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd.Context(), log, detectJSON)
		},
	}
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Emit the report as JSON")

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove prior artifacts and the stale isolated environment for the host target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd.Context(), log, opts)
		},
	}

	root.AddCommand(buildCmd, containerCmd, detectCmd, cleanCmd)
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	out, err := fsutil.ExpandHome(cfg.OutputDir)
	if err != nil {
		return cfg, err
	}
	cfg.OutputDir = out
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseAccelOverride(s string) (types.Acceleration, error) {
	if s == "" || s == "auto" {
		return "", nil
	}
	return types.ParseAcceleration(s)
}

// signalContext cancels the returned context on SIGINT/SIGTERM so the
// running pipeline step stops instead of being killed mid-write.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newOrchestrator(cfg config.Config, log zerolog.Logger) (*orchestrator.Orchestrator, error) {
	launcher, err := locateLauncher(cfg)
	if err != nil {
		return nil, err
	}
	runner := execx.ExecRunner{Log: log}
	resolver := deps.NewResolver(log)
	envs := buildenv.NewManager(envBaseDir(), log, resolver)
	return orchestrator.New(cfg, log, envs, runner, launcher), nil
}

// locateLauncher finds the launcher binary the manifest embeds at the
// bundle entry point: the configured path when set, otherwise a
// studiolauncher binary installed next to this executable.
func locateLauncher(cfg config.Config) (string, error) {
	if cfg.Launcher != "" {
		p, err := fsutil.ExpandHome(cfg.Launcher)
		if err != nil {
			return "", err
		}
		if !fsutil.PathExists(p) {
			return "", fmt.Errorf("configured launcher %s does not exist", p)
		}
		return p, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(self)
	for _, name := range []string{"studiolauncher", "studiolauncher.exe"} {
		p := filepath.Join(dir, name)
		if fsutil.PathExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("no launcher binary found next to %s; set launcher in the config", self)
}

func envBaseDir() string {
	dir := "~/.studioforge/envs"
	if v := os.Getenv("STUDIOFORGE_ENV_DIR"); v != "" {
		dir = v
	}
	expanded, err := fsutil.ExpandHome(dir)
	if err != nil {
		return filepath.Join(os.TempDir(), "studioforge-envs")
	}
	return expanded
}

func runBuild(parent context.Context, log zerolog.Logger, opts *rootOptions, containerFlavor string) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	accel, err := parseAccelOverride(opts.Accel)
	if err != nil {
		return err
	}

	flavors := []pack.Flavor{""}
	switch containerFlavor {
	case "cpu":
		flavors = []pack.Flavor{pack.FlavorCPU}
	case "cuda":
		flavors = []pack.Flavor{pack.FlavorCUDA}
	case "all":
		flavors = []pack.Flavor{pack.FlavorCPU, pack.FlavorCUDA}
	}

	for _, flavor := range flavors {
		o, err := newOrchestrator(cfg, log)
		if err != nil {
			return err
		}
		o.AccelOverride = accel
		o.KeepEnv = opts.KeepEnv
		if flavor != "" {
			f := flavor
			o.PackagerFor = func(_ types.BuildTarget, po pack.Options) (pack.Packager, error) {
				return &pack.ContainerPackager{Options: po, Flavor: f}, nil
			}
		}
		res, err := o.Build(ctx)
		if err != nil {
			return fmt.Errorf("step %s: %w", res.FailedStep, err)
		}
		fmt.Printf("%s (%s, %d bytes)\n", res.Artifact.Path, res.Artifact.Kind, res.Artifact.SizeBytes)
	}
	return nil
}

func runDetect(parent context.Context, log zerolog.Logger, asJSON bool) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	rep, err := platform.NewResolver(log).Report(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	rep.WriteTable(os.Stdout)
	return nil
}

func runClean(parent context.Context, log zerolog.Logger, opts *rootOptions) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	target, err := platform.NewResolver(log).Resolve(ctx)
	if err != nil {
		return err
	}
	packager, err := pack.ForTarget(target, pack.Options{App: cfg.App, Runner: execx.ExecRunner{Log: log}, Log: log})
	if err != nil {
		return err
	}
	if err := pack.Clean(packager, cfg.OutputDir, target); err != nil {
		return err
	}
	for _, flavor := range []pack.Flavor{pack.FlavorCPU, pack.FlavorCUDA} {
		cp := &pack.ContainerPackager{Options: pack.Options{App: cfg.App, Log: log}, Flavor: flavor}
		if err := pack.Clean(cp, cfg.OutputDir, target); err != nil {
			return err
		}
	}
	envRoot := envBaseDir()
	if err := os.RemoveAll(envRoot); err != nil {
		return err
	}
	log.Info().Str("output", cfg.OutputDir).Str("envs", envRoot).Msg("cleaned")
	return nil
}
