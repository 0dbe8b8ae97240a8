// Package ui implements a command-line user interface using [tea].
package ui

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// consoleProvider executes console command lines against the filesystem and
// renders the surrounding prompt and status information.
type consoleProvider interface {
	Execute(line string) (output string, quit bool)
	Prompt() string
	StatusLine() string
}

// Handler is the principal implementation of a user interface [Handler].
type Handler struct {
	console consoleProvider
	program *tea.Program

	LogWriter *TeaLogWriter

	Ready  atomic.Bool
	Failed atomic.Bool
}

// NewHandler returns a pointer to a new user interface [Handler].
func NewHandler(ctx context.Context, cancel context.CancelFunc, console consoleProvider) *Handler {
	handler := &Handler{
		console: console,
	}

	model := NewConsoleModel(handler, console, cancel)
	handler.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	handler.LogWriter = NewTeaLogWriter(handler.program)

	return handler
}

// Launch starts the command-line user interface (the [tea.Program]).
func (uiHandler *Handler) Launch() error {
	defer uiHandler.LogWriter.Stop()

	if _, err := uiHandler.program.Run(); err != nil {
		uiHandler.Failed.Store(true)

		return fmt.Errorf("(ui) %w", err)
	}

	return nil
}
