package launcher

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studioforge/internal/common/execx"
)

// UIServer supervises the embedded UI server process bundled next to the
// launcher. The process owns the interactive port; the launcher only gates
// on it becoming reachable.
type UIServer struct {
	Log    zerolog.Logger
	Runner execx.Runner
	// Path is the server executable inside the unpacked bundle.
	Path string
	Args []string
	Port int

	mu      sync.Mutex
	running bool
	exitErr error
}

// URL is the local address the UI server listens on.
func (s *UIServer) URL() string {
	return "http://127.0.0.1:" + strconv.Itoa(s.Port)
}

// Start launches the server process in the background. The returned channel
// yields the process exit error exactly once; canceling ctx terminates it.
func (s *UIServer) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go func() {
		err := s.Runner.Run(ctx, execx.Cmd{
			Path: s.Path,
			Args: append(append([]string(nil), s.Args...), "--port", strconv.Itoa(s.Port)),
		})
		s.mu.Lock()
		s.running = false
		s.exitErr = err
		s.mu.Unlock()
		if err != nil && ctx.Err() == nil {
			s.Log.Error().Err(err).Msg("ui server exited")
		}
		done <- err
	}()
	return done
}

// WaitReady blocks until the server answers on its URL or the timeout
// elapses.
func (s *UIServer) WaitReady(ctx context.Context, timeout time.Duration) error {
	if err := WaitForServer(ctx, nil, s.URL()+"/", timeout, 0); err != nil {
		return fmt.Errorf("ui server startup: %w", err)
	}
	s.Log.Info().Str("url", s.URL()).Msg("ui server ready")
	return nil
}

// Running reports whether the process is still alive.
func (s *UIServer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ExitErr returns the process exit error once it has stopped.
func (s *UIServer) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}
