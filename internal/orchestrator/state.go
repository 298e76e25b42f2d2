package orchestrator

import "fmt"

// State is the position of a build in the packaging pipeline. Transitions
// are strictly linear; a build can never skip a step or move backwards.
type State string

const (
	StateInit                  State = "init"
	StateProfileResolved       State = "profile_resolved"
	StateEnvironmentReady      State = "environment_ready"
	StateDependenciesInstalled State = "dependencies_installed"
	StateManifestBuilt         State = "manifest_built"
	StatePackaged              State = "packaged"
	StateDone                  State = "done"
	// StateFailed is terminal and reachable from any non-terminal state.
	StateFailed State = "failed"
)

// next maps each state to the only state it may advance to.
var next = map[State]State{
	StateInit:                  StateProfileResolved,
	StateProfileResolved:       StateEnvironmentReady,
	StateEnvironmentReady:      StateDependenciesInstalled,
	StateDependenciesInstalled: StateManifestBuilt,
	StateManifestBuilt:         StatePackaged,
	StatePackaged:              StateDone,
}

// machine tracks pipeline progress for one build run.
type machine struct {
	state State
}

func newMachine() *machine { return &machine{state: StateInit} }

func (m *machine) State() State { return m.state }

// advance moves to the given state, rejecting anything but the single legal
// successor. A rejected advance is a pipeline bug, not a build failure.
func (m *machine) advance(to State) error {
	want, ok := next[m.state]
	if !ok || want != to {
		return fmt.Errorf("illegal state transition %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}

// fail moves to the terminal failed state from anywhere but done.
func (m *machine) fail() {
	if m.state != StateDone {
		m.state = StateFailed
	}
}
