package deps

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNetworkUnavailable marks a prebuilt fetch that failed before any HTTP
// response was received. It is kept distinct from an ordinary fetch failure
// so the final unavailability message can say "network unreachable" instead
// of blaming the artifact server.
var ErrNetworkUnavailable = errors.New("network unreachable")

// Attempt records one failed acquisition strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// UnavailableError reports that every acquisition strategy for a dependency
// failed. It names the dependency and each attempted strategy exactly once.
type UnavailableError struct {
	Dependency string
	Attempts   []Attempt
}

func (e *UnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dependency %q unavailable after %d strategies:", e.Dependency, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, " [%s: %v]", a.Strategy, a.Err)
	}
	return b.String()
}

// Unwrap exposes the attempt errors for errors.Is matching, in particular
// ErrNetworkUnavailable.
func (e *UnavailableError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// IsUnavailable reports whether err is a dependency-unavailable failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
