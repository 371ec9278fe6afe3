package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalSelection means the current state does not offer the selection.
	ErrIllegalSelection = errors.New("illegal selection")
	// ErrTerminalStateInput means an event arrived after Success or Error.
	ErrTerminalStateInput = errors.New("input in terminal state")
	// ErrUnexpectedResult means a successful result arrived for an operation
	// the current state is not waiting on.
	ErrUnexpectedResult = errors.New("unexpected operation result")
	// ErrInvalidState means the state or event is the zero value or unknown.
	ErrInvalidState = errors.New("invalid state or event")
	// ErrQuit is returned when the user cancels from the confirmation
	// screen. There is no next state; the caller ends the run.
	ErrQuit = errors.New("wizard quit")
)

// TransitionError describes an event Next refused.
type TransitionError struct {
	State State
	Event Event
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s in state %s", e.Err, e.Event, e.State)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func reject(state State, ev Event, err error) (State, error) {
	return state, &TransitionError{State: state, Event: ev, Err: err}
}
