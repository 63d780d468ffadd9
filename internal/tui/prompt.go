// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/bookshelf/internal/errors"
	"github.com/lepinkainen/bookshelf/internal/isbn"
)

const promptWidth = 24

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// PromptAction represents how the user left the prompt.
type PromptAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone PromptAction = iota
	// ActionSubmitted indicates the user entered a valid ISBN.
	ActionSubmitted
	// ActionCancelled indicates the user cancelled the prompt.
	ActionCancelled
)

// PromptResult holds the outcome of the ISBN prompt.
type PromptResult struct {
	Action PromptAction
	ISBN   string
}

type model struct {
	input  textinput.Model
	err    string
	result PromptResult
}

func newModel() *model {
	ti := textinput.New()
	ti.Placeholder = "978-0-00-000000-0"
	ti.CharLimit = 32
	ti.Width = promptWidth
	ti.Prompt = "ISBN: "
	ti.Focus()

	return &model{input: ti, result: PromptResult{Action: ActionNone}}
}

func (m *model) Init() tea.Cmd { return textinput.Blink }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			clean, err := isbn.Sanitize(m.input.Value())
			if err != nil {
				m.err = "Not a valid ISBN-13, try again"
				return m, nil
			}
			m.result = PromptResult{Action: ActionSubmitted, ISBN: clean}
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.result = PromptResult{Action: ActionCancelled}
			return m, tea.Quit
		}
		m.err = ""
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	lines := []string{
		headerStyle.Render("Add a book to the input list"),
		m.input.View(),
	}

	status := digitsStyle.Render(fmt.Sprintf("%d/13 digits", len(isbn.Digits(m.input.Value()))))
	if m.err != "" {
		status = errorStyle.Render(m.err)
	}
	lines = append(lines, status, helpStyle.Render("Enter add | Esc cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	digitsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("161")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// PromptISBN asks for an ISBN until a valid one is entered. Cancelling the
// prompt returns a StopProcessingError.
func PromptISBN() (string, error) {
	finalModel, err := runProgram(newModel())
	if err != nil {
		return "", err
	}

	typed, ok := finalModel.(*model)
	if !ok {
		return "", fmt.Errorf("unexpected program result")
	}

	switch typed.result.Action {
	case ActionSubmitted:
		return strings.TrimSpace(typed.result.ISBN), nil
	default:
		return "", errors.NewStopProcessingError("ISBN prompt cancelled")
	}
}
