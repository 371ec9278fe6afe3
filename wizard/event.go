package wizard

import "fmt"

// Operation identifies the collaborator whose result an event reports.
type Operation uint8

const (
	OpAuth Operation = iota + 1
	OpEnvGen
	OpConfigGen
	OpListUpdates
	OpPull
	OpInstall
)

func (o Operation) String() string {
	switch o {
	case OpAuth:
		return "auth"
	case OpEnvGen:
		return "envgen"
	case OpConfigGen:
		return "configgen"
	case OpListUpdates:
		return "list"
	case OpPull:
		return "pull"
	case OpInstall:
		return "install"
	default:
		return "unknown"
	}
}

func (o Operation) IsValid() bool {
	return o >= OpAuth && o <= OpInstall
}

type eventKind uint8

const (
	eventInput eventKind = iota + 1
	eventResult
)

// Event is an input to Next: either a user selection or the outcome of a
// collaborator operation. A successful result carries no payload; the
// payload stays with the caller.
type Event struct {
	kind      eventKind
	selection Selection
	op        Operation
	failed    bool
	message   string
}

// UserInput reports a menu selection.
func UserInput(sel Selection) Event {
	return Event{kind: eventInput, selection: sel}
}

// Succeeded reports that op completed successfully.
func Succeeded(op Operation) Event {
	return Event{kind: eventResult, op: op}
}

// Failed reports that op failed with message.
func Failed(op Operation, message string) Event {
	return Event{kind: eventResult, op: op, failed: true, message: message}
}

func (e Event) String() string {
	switch e.kind {
	case eventInput:
		return "input(" + e.selection.String() + ")"
	case eventResult:
		if e.failed {
			return fmt.Sprintf("result(%s, failure(%q))", e.op, e.message)
		}
		return "result(" + e.op.String() + ", success)"
	default:
		return "invalid"
	}
}
