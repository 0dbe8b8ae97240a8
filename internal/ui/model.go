package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//nolint:gochecknoglobals
var (
	// titleStyle defines the style for the console's title bar.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	// borderStyle defines the style for the transcript panel's borders.
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	// statusStyle defines the style for the status line's text.
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1)

	// promptStyle defines the style for the rendered prompt.
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))
)

// transcriptMax bounds the number of transcript lines held in memory.
const transcriptMax = 2000

// ConsoleModel is the principal [tea.Model] for the command-line user
// interface: a transcript viewport above a command input line.
type ConsoleModel struct {
	width  int
	height int

	cancel context.CancelFunc

	uiHandler *Handler
	console   consoleProvider

	transcript viewport.Model
	input      textinput.Model
	lines      []string

	ready bool
}

// NewConsoleModel returns an initial new [ConsoleModel].
//
//nolint:mnd
func NewConsoleModel(uiHandler *Handler, console consoleProvider, cancel context.CancelFunc) ConsoleModel {
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "type a command, or help"
	input.CharLimit = 512
	input.Focus()

	transcript := viewport.New(80, 20)

	return ConsoleModel{
		uiHandler:  uiHandler,
		console:    console,
		cancel:     cancel,
		transcript: transcript,
		input:      input,
		lines:      make([]string, 0, 100),
	}
}

// Init initializes the model within a [tea.Program].
func (m ConsoleModel) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		textinput.Blink,
	)
}

// Update is the principal message handling method of the model. It sets the
// internal state of the model, for later rendering.
//
//nolint:ireturn
func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()

			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()

			if line == "" {
				return m, nil
			}

			m.appendLines(promptStyle.Render(m.console.Prompt()) + line)

			output, quit := m.console.Execute(line)
			if output != "" {
				m.appendLines(strings.Split(strings.TrimRight(output, "\n"), "\n")...)
			}
			m.refreshTranscript()

			if quit {
				m.cancel()

				return m, tea.Quit
			}

			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.transcript.Width = m.width - 2
		m.transcript.Height = max(m.height-5, 1)
		m.input.Width = m.width - 4
		m.refreshTranscript()

		if !m.ready {
			m.ready = true
			m.uiHandler.Ready.Store(true)
		}

	case logMsg:
		m.appendLines(strings.Split(strings.TrimRight(string(msg), "\n"), "\n")...)
		m.refreshTranscript()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the console: title bar, transcript panel, status line and
// the command input.
func (m ConsoleModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := titleStyle.Width(m.width).Render(" sectorfs console ")
	transcript := borderStyle.Render(m.transcript.View())
	status := statusStyle.Width(m.width).Render(m.console.StatusLine())
	input := promptStyle.Render(m.console.Prompt()) + m.input.View()

	return lipgloss.JoinVertical(lipgloss.Left, title, transcript, status, input)
}

// appendLines adds lines to the transcript, discarding its oldest lines
// once over capacity.
func (m *ConsoleModel) appendLines(lines ...string) {
	m.lines = append(m.lines, lines...)
	if len(m.lines) > transcriptMax {
		m.lines = m.lines[len(m.lines)-transcriptMax:]
	}
}

func (m *ConsoleModel) refreshTranscript() {
	m.transcript.SetContent(strings.Join(m.lines, "\n"))
	m.transcript.GotoBottom()
}
