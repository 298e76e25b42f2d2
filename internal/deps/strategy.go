package deps

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"studioforge/internal/common/execx"
	"studioforge/internal/common/fsutil"
	"studioforge/pkg/types"
)

// Strategy is one method of obtaining a dependency for a target.
type Strategy interface {
	// Name identifies the strategy in logs and unavailability errors.
	Name() string
	// Acquire installs the dependency into destDir for the given target.
	Acquire(ctx context.Context, target types.BuildTarget, destDir string) error
}

// buildStrategy constructs a concrete Strategy from its declared form.
func buildStrategy(s types.AcquisitionStrategy, runner execx.Runner, client *http.Client) (Strategy, error) {
	switch s.Kind {
	case types.StrategyPrebuilt:
		url := s.Params["url"]
		if url == "" {
			return nil, fmt.Errorf("prebuilt strategy missing url")
		}
		return &PrebuiltStrategy{URL: url, SHA256: s.Params["sha256"], Client: client}, nil
	case types.StrategySource:
		dir := s.Params["dir"]
		if dir == "" {
			return nil, fmt.Errorf("source strategy missing dir")
		}
		return &SourceBuildStrategy{Dir: dir, Runner: runner}, nil
	case types.StrategyLocal:
		dir := s.Params["dir"]
		if dir == "" {
			return nil, fmt.Errorf("local strategy missing dir")
		}
		return &LocalStrategy{Dir: dir}, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
}

// LocalStrategy copies a dependency from a directory already on disk,
// typically the checkout's own prebuilt server bundle.
type LocalStrategy struct {
	Dir string
}

func (s *LocalStrategy) Name() string { return "local:" + s.Dir }

func (s *LocalStrategy) Acquire(ctx context.Context, _ types.BuildTarget, destDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !fsutil.PathExists(s.Dir) {
		return fmt.Errorf("local dir %s does not exist", s.Dir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return fsutil.CopyTree(s.Dir, destDir)
}
