package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"studioforge/internal/common/execx"
	"studioforge/internal/common/fsutil"
	"studioforge/internal/launcher"
	"studioforge/internal/pack"
)

const appVersion = "1.0.0"

func main() {
	defaultAPIPort := 8000
	if v := os.Getenv("STUDIOLAUNCHER_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			defaultAPIPort = n
		}
	}
	apiPort := flag.Int("api-port", defaultAPIPort, "Port for the launcher API (health, readiness, metrics)")
	uiPort := flag.Int("ui-port", 0, "Port for the embedded UI server (0 = first free port from 7860)")
	serverPath := flag.String("server", "", "Embedded UI server executable (defaults to ui-server next to the launcher)")
	startupTimeout := flag.Duration("startup-timeout", launcher.DefaultStartupTimeout, "How long to wait for the UI server before reporting failure")
	logLevel := flag.String("log-level", envOr("STUDIOLAUNCHER_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	flag.Parse()

	log := newLogger(*logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	port := *uiPort
	if port == 0 {
		p, err := launcher.FindFreePort(launcher.DefaultStartPort, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("ui port allocation failed")
		}
		port = p
	}

	bundleDir := ensureBundle(log)

	ui := &launcher.UIServer{
		Log:    log,
		Runner: execx.ExecRunner{Log: log},
		Path:   resolveServerPath(*serverPath, bundleDir),
		Port:   port,
	}
	log.Info().Str("server", ui.Path).Int("port", port).Msg("starting embedded ui server")
	uiDone := ui.Start(ctx)

	var ready atomic.Bool
	go func() {
		if err := ui.WaitReady(ctx, *startupTimeout); err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("ui server did not become ready")
			}
			return
		}
		ready.Store(true)
	}()

	mux := launcher.NewMux(launcher.MuxOptions{
		Log:     log,
		Ready:   ready.Load,
		UIURL:   ui.URL(),
		Version: appVersion,
	})
	srv := &http.Server{Addr: ":" + strconv.Itoa(*apiPort), Handler: mux}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("launcher api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("launcher api server error")
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-uiDone:
		// the ui process is the application; its exit ends the launcher
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("ui server exited with error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	cancel()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ensureBundle unpacks the payload appended to this executable into the
// storage directory on first run. A launcher running from an unpacked
// bundle (macOS .app, container image) carries no payload; that is not an
// error.
func ensureBundle(log zerolog.Logger) string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if _, err := pack.ReadSelfExeTrailer(exe); err != nil {
		return ""
	}
	storage, err := fsutil.ExpandHome("~/.localllm_studio")
	if err != nil {
		return ""
	}
	dir := filepath.Join(storage, "bundle")
	marker := filepath.Join(dir, ".unpacked")
	if fsutil.PathExists(marker) {
		return dir
	}
	log.Info().Str("dir", dir).Msg("unpacking application bundle")
	if err := os.RemoveAll(dir); err != nil {
		log.Fatal().Err(err).Msg("bundle unpack failed")
	}
	if err := pack.ExtractSelfExe(exe, dir); err != nil {
		log.Fatal().Err(err).Msg("bundle unpack failed")
	}
	if err := os.WriteFile(marker, []byte(appVersion+"\n"), 0o644); err != nil {
		log.Fatal().Err(err).Msg("bundle unpack failed")
	}
	return dir
}

// resolveServerPath defaults to the ui-server binary shipped in the bundle
// next to the launcher.
func resolveServerPath(flagValue, bundleDir string) string {
	if flagValue != "" {
		return flagValue
	}
	base := bundleDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return "ui-server"
		}
		base = filepath.Join(filepath.Dir(exe), "..")
	}
	return filepath.Join(base, "lib", "ui-server", "server")
}
