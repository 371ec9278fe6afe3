package wizard

import "strings"

// Selection is a menu choice made by the user.
type Selection uint8

const (
	Proceed Selection = iota + 1
	GenerateEnv
	GenerateConfig
	UpdateToken
	CheckUpdates
	Cancel
)

func (s Selection) String() string {
	switch s {
	case Proceed:
		return "proceed"
	case GenerateEnv:
		return "generate-env"
	case GenerateConfig:
		return "generate-config"
	case UpdateToken:
		return "update-token"
	case CheckUpdates:
		return "check-updates"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

func (s Selection) IsValid() bool {
	return s >= Proceed && s <= Cancel
}

// Label is the menu text for the selection.
func (s Selection) Label() string {
	switch s {
	case Proceed:
		return "Install"
	case GenerateEnv:
		return "Generate environment file"
	case GenerateConfig:
		return "Generate configuration"
	case UpdateToken:
		return "Update registry token"
	case CheckUpdates:
		return "Check for updates"
	case Cancel:
		return "Cancel"
	default:
		return "Unknown"
	}
}

// ParseSelection parses the String form of a selection. Underscores are
// accepted in place of dashes.
func ParseSelection(raw string) (Selection, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-") {
	case "proceed":
		return Proceed, true
	case "generate-env":
		return GenerateEnv, true
	case "generate-config":
		return GenerateConfig, true
	case "update-token":
		return UpdateToken, true
	case "check-updates":
		return CheckUpdates, true
	case "cancel":
		return Cancel, true
	default:
		return 0, false
	}
}

// Offered returns the selections state accepts, in menu order. Terminal and
// invalid states offer nothing.
func Offered(state State) []Selection {
	switch state.step {
	case StepConfirmation:
		return []Selection{Proceed, GenerateEnv, GenerateConfig, UpdateToken, CheckUpdates, Cancel}
	case StepUpdateList:
		return []Selection{Proceed, Cancel}
	case StepRegistrySetup, StepEnvSetup, StepConfigSelection, StepUpdatePulling, StepInstalling:
		return []Selection{Cancel}
	default:
		return nil
	}
}

func offers(state State, sel Selection) bool {
	for _, s := range Offered(state) {
		if s == sel {
			return true
		}
	}
	return false
}
