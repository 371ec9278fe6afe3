package ui

import (
	"context"
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestMenuModelNavigation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		keys      []tea.KeyMsg
		cursor    int
		chosen    bool
		cancelled bool
	}{
		{name: "enter picks first", keys: []tea.KeyMsg{{Type: tea.KeyEnter}}, cursor: 0, chosen: true},
		{name: "down then enter", keys: []tea.KeyMsg{{Type: tea.KeyDown}, {Type: tea.KeyDown}, {Type: tea.KeyEnter}}, cursor: 2, chosen: true},
		{name: "up wraps", keys: []tea.KeyMsg{{Type: tea.KeyUp}, {Type: tea.KeyEnter}}, cursor: 2, chosen: true},
		{name: "number shortcut", keys: []tea.KeyMsg{runeKey('2')}, cursor: 1, chosen: true},
		{name: "out of range number ignored", keys: []tea.KeyMsg{runeKey('9')}, cursor: 0},
		{name: "esc cancels", keys: []tea.KeyMsg{{Type: tea.KeyEsc}}, cancelled: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := press(&menuModel{title: "Next step", options: []string{"Install", "Generate environment file", "Quit"}}, tc.keys...).(*menuModel)
			if m.cursor != tc.cursor || m.chosen != tc.chosen || m.cancelled != tc.cancelled {
				t.Fatalf("menu = cursor %d chosen %v cancelled %v", m.cursor, m.chosen, m.cancelled)
			}
		})
	}
}

func TestPromptModelSubmitAndCancel(t *testing.T) {
	t.Parallel()

	m := press(&promptModel{label: "Registry", textInput: newTextInput("", "", false)},
		runeKey('r'), runeKey('e'), runeKey('g'), tea.KeyMsg{Type: tea.KeyEnter}).(*promptModel)
	if !m.submitted || m.textInput.Value() != "reg" {
		t.Fatalf("prompt = submitted %v value %q", m.submitted, m.textInput.Value())
	}
	if m.View() != "" {
		t.Fatal("submitted prompt should render nothing")
	}

	c := press(&promptModel{label: "Token", textInput: newTextInput("", "", true)}, tea.KeyMsg{Type: tea.KeyEsc}).(*promptModel)
	if !c.cancelled {
		t.Fatal("esc should cancel the prompt")
	}
}

// quitOnStart ends the program before any key arrives, as a SIGTERM does.
type quitOnStart struct{ *menuModel }

func (quitOnStart) Init() tea.Cmd { return tea.Quit }

func headless() []tea.ProgramOption {
	return []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(io.Discard)}
}

func TestMenuQuitWithoutKeyIsInterrupted(t *testing.T) {
	t.Parallel()

	m := &menuModel{title: "What next?", options: []string{"Install", "Cancel"}}
	if err := runModel(context.Background(), quitOnStart{m}, headless()...); err != nil {
		t.Fatalf("runModel() error = %v", err)
	}
	idx, err := m.result()
	if !errors.Is(err, ErrInterrupted) || idx != -1 {
		t.Fatalf("result() = %d, %v, want -1, ErrInterrupted", idx, err)
	}
}

func TestRunModelStopsOnContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runModel(ctx, &menuModel{title: "What next?", options: []string{"Install"}}, headless()...)
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("runModel() error = %v, want ErrInterrupted wrapping context.Canceled", err)
	}
}

func TestPromptResultRequiresSubmit(t *testing.T) {
	t.Parallel()

	m := press(&promptModel{label: "Registry", textInput: newTextInput("", "", false)}, runeKey('r'), runeKey('e')).(*promptModel)
	if _, err := m.result(); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("result() error = %v, want ErrInterrupted for unsubmitted text", err)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter}).(*promptModel)
	if got, err := m.result(); err != nil || got != "re" {
		t.Fatalf("result() = %q, %v", got, err)
	}
}
