package prompt

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#A78BFA")
	mutedColor   = lipgloss.Color("#9CA3AF")

	messageStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	choiceStyle   = lipgloss.NewStyle()
	helpStyle     = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
)

// TUI renders prompts with bubbletea.
type TUI struct {
	in  io.Reader
	out io.Writer
}

// NewTUI creates a TUI bound to the process's terminal.
func NewTUI() *TUI {
	return &TUI{in: os.Stdin, out: os.Stdout}
}

// Confirm implements Adapter.
func (t *TUI) Confirm(ctx context.Context, message string, defaultValue bool) (bool, error) {
	def := "Yes"
	if !defaultValue {
		def = "No"
	}
	choice, err := t.Select(ctx, message, []string{"Yes", "No"}, def)
	if err != nil {
		return false, err
	}
	return choice == "Yes", nil
}

// Text implements Adapter.
func (t *TUI) Text(ctx context.Context, message string, defaultValue string) (string, error) {
	m, err := t.run(ctx, newTextModel(message, defaultValue))
	if err != nil {
		return "", err
	}
	tm := m.(textModel)
	if tm.cancelled {
		return "", ErrCancelled
	}
	return tm.input.Value(), nil
}

// Select implements Adapter.
func (t *TUI) Select(ctx context.Context, message string, choices []string, defaultValue string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("select %q: no choices", message)
	}
	m, err := t.run(ctx, newChoiceModel(message, choices, defaultValue))
	if err != nil {
		return "", err
	}
	cm := m.(choiceModel)
	if cm.cancelled {
		return "", ErrCancelled
	}
	return cm.choices[cm.cursor], nil
}

func (t *TUI) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("prompt failed: %w", err)
	}
	return final, nil
}

// choiceModel is a single-choice list.
type choiceModel struct {
	message   string
	choices   []string
	cursor    int
	done      bool
	cancelled bool
}

func newChoiceModel(message string, choices []string, defaultValue string) choiceModel {
	cursor := max(slices.Index(choices, defaultValue), 0)
	return choiceModel{message: message, choices: choices, cursor: cursor}
}

func (m choiceModel) Init() tea.Cmd { return nil }

func (m choiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k", "shift+tab":
		m.cursor--
		if m.cursor < 0 {
			m.cursor = len(m.choices) - 1
		}
	case "down", "j", "tab":
		m.cursor = (m.cursor + 1) % len(m.choices)
	case "enter", " ":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m choiceModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(messageStyle.Render(m.message))
	b.WriteString("\n")
	for i, c := range m.choices {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + c))
		} else {
			b.WriteString(choiceStyle.Render("  " + c))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc cancel"))
	b.WriteString("\n")
	return b.String()
}

// textModel is a single-line input.
type textModel struct {
	message   string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newTextModel(message, defaultValue string) textModel {
	ti := textinput.New()
	ti.SetValue(defaultValue)
	ti.CharLimit = 0
	ti.Width = 80
	ti.Focus()
	return textModel{message: message, input: ti}
}

func (m textModel) Init() tea.Cmd { return textinput.Blink }

func (m textModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m textModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return messageStyle.Render(m.message) + "\n" +
		m.input.View() + "\n" +
		helpStyle.Render("enter submit • esc cancel") + "\n"
}
