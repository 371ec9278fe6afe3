package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Prompt asks for a line of text on stderr. value pre-fills the input.
// hint describes how to provide the value non-interactively (for example
// "use --registry <host>").
func Prompt(ctx context.Context, label, placeholder, value, hint string) (string, error) {
	return runTextPrompt(ctx, label, newTextInput(placeholder, value, false), hint)
}

// Secret asks for a line of text without echoing it.
func Secret(ctx context.Context, label, hint string) (string, error) {
	return runTextPrompt(ctx, label, newTextInput("", "", true), hint)
}

func newTextInput(placeholder, value string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.SetValue(value)
	ti.Focus()
	ti.Width = 50
	ti.PromptStyle = AccentStyle
	ti.TextStyle = lipgloss.NewStyle()
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

func runTextPrompt(ctx context.Context, label string, ti textinput.Model, hint string) (string, error) {
	if err := RequireInteraction(hint); err != nil {
		return "", fmt.Errorf("input required: %w", err)
	}

	m := &promptModel{label: label, textInput: ti}
	if err := runModel(ctx, m); err != nil {
		return "", fmt.Errorf("text prompt: %w", err)
	}
	return m.result()
}

// Choose shows a menu and returns the index of the chosen option.
func Choose(ctx context.Context, title string, options []string, hint string) (int, error) {
	if err := RequireInteraction(hint); err != nil {
		return -1, fmt.Errorf("selection required: %w", err)
	}
	if len(options) == 0 {
		return -1, fmt.Errorf("selection %q has no options", title)
	}

	m := &menuModel{title: title, options: options}
	if err := runModel(ctx, m); err != nil {
		return -1, fmt.Errorf("menu prompt: %w", err)
	}
	return m.result()
}

// runModel runs m on stderr until it quits or ctx is done. A program
// stopped by ctx reports ErrInterrupted wrapping the context error.
func runModel(ctx context.Context, m tea.Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithOutput(os.Stderr), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
	}
	if errors.Is(err, tea.ErrInterrupted) {
		return ErrInterrupted
	}
	return err
}

type promptModel struct {
	label     string
	textInput textinput.Model
	cancelled bool
	submitted bool
}

func (m *promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.submitted = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// result reports the answer. A prompt that quit without enter or esc, for
// example on SIGTERM, was interrupted and has no answer.
func (m *promptModel) result() (string, error) {
	switch {
	case m.cancelled:
		return "", ErrCancelled
	case m.submitted:
		return strings.TrimSpace(m.textInput.Value()), nil
	default:
		return "", ErrInterrupted
	}
}

func (m *promptModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return AccentStyle.Render("?") + " " + m.label + "\n" + m.textInput.View() + "\n"
}

// menuModel is a vertical list of options navigated with arrow keys, j/k or
// the option's number.
type menuModel struct {
	title     string
	options   []string
	cursor    int
	chosen    bool
	cancelled bool
}

func (m *menuModel) Init() tea.Cmd { return nil }

func (m *menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := key.String(); s {
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(m.options)) % len(m.options)
	case "down", "j", "tab":
		m.cursor = (m.cursor + 1) % len(m.options)
	case "enter":
		m.chosen = true
		return m, tea.Quit
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	default:
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if idx := int(s[0] - '1'); idx < len(m.options) {
				m.cursor = idx
				m.chosen = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *menuModel) result() (int, error) {
	switch {
	case m.cancelled:
		return -1, ErrCancelled
	case m.chosen:
		return m.cursor, nil
	default:
		return -1, ErrInterrupted
	}
}

func (m *menuModel) View() string {
	if m.chosen || m.cancelled {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(AccentStyle.Render("?") + " " + m.title + "\n")
	for i, option := range m.options {
		line := fmt.Sprintf("%d. %s", i+1, option)
		if i == m.cursor {
			sb.WriteString("  " + Accent("❯ "+line) + "\n")
			continue
		}
		sb.WriteString("    " + line + "\n")
	}
	sb.WriteString(Muted("↑/↓ navigate  enter select  esc back") + "\n")
	return sb.String()
}
