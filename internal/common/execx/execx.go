// Package execx wraps external tool invocation so that packaging and
// source-build steps can be exercised with a fake runner in tests.
package execx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// Cmd describes one external command invocation.
type Cmd struct {
	Path string
	Args []string
	// Env, when non-nil, is the complete environment for the child process.
	// A nil Env inherits the parent environment. Strategies that sanitize
	// compiler search paths pass a filtered copy here so the mutation never
	// leaks into the invoking process.
	Env []string
	Dir string
}

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, c Cmd) error
}

// ExecRunner is the real Runner backed by os/exec. Output is streamed
// line-by-line through the logger at debug level.
type ExecRunner struct {
	Log zerolog.Logger
}

func (r ExecRunner) Run(ctx context.Context, c Cmd) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if c.Env != nil {
		cmd.Env = c.Env
	} else {
		cmd.Env = os.Environ()
	}
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Path, err)
	}
	go r.stream(c.Path, stdout)
	go r.stream(c.Path, stderr)
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %v: %w", c.Path, c.Args, err)
	}
	return nil
}

func (r ExecRunner) stream(tool string, rd io.Reader) {
	s := bufio.NewScanner(rd)
	for s.Scan() {
		r.Log.Debug().Str("tool", tool).Msg(s.Text())
	}
}

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
