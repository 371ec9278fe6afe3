package wizard

// Next returns the state that follows current after ev.
//
// A failed operation result moves any non-terminal state to Error with the
// failure message unchanged. On error the returned state is current and the
// error is a *TransitionError wrapping one of the package sentinels.
func Next(current State, ev Event) (State, error) {
	if !current.IsValid() {
		return reject(current, ev, ErrInvalidState)
	}
	if current.IsTerminal() {
		return reject(current, ev, ErrTerminalStateInput)
	}

	switch ev.kind {
	case eventInput:
		return nextOnInput(current, ev)
	case eventResult:
		return nextOnResult(current, ev)
	default:
		return reject(current, ev, ErrInvalidState)
	}
}

func nextOnInput(current State, ev Event) (State, error) {
	sel := ev.selection
	if !offers(current, sel) {
		return reject(current, ev, ErrIllegalSelection)
	}

	switch current.step {
	case StepConfirmation:
		switch sel {
		case Proceed:
			return Installing, nil
		case GenerateEnv:
			return EnvSetup, nil
		case GenerateConfig:
			return ConfigSelection, nil
		case UpdateToken:
			return RegistrySetup, nil
		case CheckUpdates:
			return UpdateList, nil
		case Cancel:
			return reject(current, ev, ErrQuit)
		}
	case StepUpdateList:
		switch sel {
		case Proceed:
			return UpdatePulling, nil
		case Cancel:
			return Confirmation, nil
		}
	}

	// Every other non-terminal state offers only Cancel, which falls back
	// to the confirmation screen.
	if sel == Cancel {
		return Confirmation, nil
	}
	return reject(current, ev, ErrIllegalSelection)
}

func nextOnResult(current State, ev Event) (State, error) {
	if !ev.op.IsValid() {
		return reject(current, ev, ErrInvalidState)
	}
	if ev.failed {
		return Error(ev.message), nil
	}

	switch {
	case current.step == StepRegistrySetup && ev.op == OpAuth:
		return Confirmation, nil
	case current.step == StepEnvSetup && ev.op == OpEnvGen:
		return Confirmation, nil
	case current.step == StepConfigSelection && ev.op == OpConfigGen:
		return Confirmation, nil
	case current.step == StepUpdateList && ev.op == OpListUpdates:
		return UpdateList, nil
	case current.step == StepUpdatePulling && ev.op == OpPull:
		return Installing, nil
	case current.step == StepInstalling && ev.op == OpInstall:
		return Success, nil
	}
	return reject(current, ev, ErrUnexpectedResult)
}

// Awaits returns the operation whose result state is waiting for. The bool
// is false for states that wait on the user instead.
func Awaits(state State) (Operation, bool) {
	switch state.step {
	case StepRegistrySetup:
		return OpAuth, true
	case StepEnvSetup:
		return OpEnvGen, true
	case StepConfigSelection:
		return OpConfigGen, true
	case StepUpdateList:
		return OpListUpdates, true
	case StepUpdatePulling:
		return OpPull, true
	case StepInstalling:
		return OpInstall, true
	default:
		return 0, false
	}
}
