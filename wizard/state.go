// Package wizard is the control core of the setup wizard: the closed set of
// wizard states, the menu selections a user can make, and the transition
// engine that maps a state and an event to the next state.
//
// The package holds no state of its own. The caller owns the current State
// and the data gathered along the way (tokens, generated paths, update
// candidates) and feeds every user choice or collaborator result through
// Next.
package wizard

import "strings"

// Step identifies a wizard screen.
type Step uint8

const (
	StepRegistrySetup Step = iota + 1
	StepConfirmation
	StepEnvSetup
	StepConfigSelection
	StepUpdateList
	StepUpdatePulling
	StepInstalling
	StepSuccess
	StepError
)

func (s Step) String() string {
	switch s {
	case StepRegistrySetup:
		return "registry_setup"
	case StepConfirmation:
		return "confirmation"
	case StepEnvSetup:
		return "env_setup"
	case StepConfigSelection:
		return "config_selection"
	case StepUpdateList:
		return "update_list"
	case StepUpdatePulling:
		return "update_pulling"
	case StepInstalling:
		return "installing"
	case StepSuccess:
		return "success"
	case StepError:
		return "error"
	default:
		return "unknown"
	}
}

func (s Step) IsValid() bool {
	return s >= StepRegistrySetup && s <= StepError
}

// IsTerminal reports whether the wizard run ends at this step.
func (s Step) IsTerminal() bool {
	return s == StepSuccess || s == StepError
}

// State is the active wizard step. Only the Error state carries data: a
// human-readable failure message. States are comparable with ==, which
// compares the step and the message.
type State struct {
	step    Step
	message string
}

var (
	RegistrySetup   = State{step: StepRegistrySetup}
	Confirmation    = State{step: StepConfirmation}
	EnvSetup        = State{step: StepEnvSetup}
	ConfigSelection = State{step: StepConfigSelection}
	UpdateList      = State{step: StepUpdateList}
	UpdatePulling   = State{step: StepUpdatePulling}
	Installing      = State{step: StepInstalling}
	Success         = State{step: StepSuccess}
)

// Error returns the terminal failure state carrying message.
func Error(message string) State {
	return State{step: StepError, message: message}
}

func (s State) Step() Step { return s.step }

// Message returns the failure message. The bool is false for every state
// other than Error.
func (s State) Message() (string, bool) {
	if s.step != StepError {
		return "", false
	}
	return s.message, true
}

func (s State) IsValid() bool    { return s.step.IsValid() }
func (s State) IsTerminal() bool { return s.step.IsTerminal() }

func (s State) String() string {
	if s.step == StepError {
		return "error(" + strings.TrimSpace(s.message) + ")"
	}
	return s.step.String()
}
