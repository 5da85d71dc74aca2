package tui

import (
	"context"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/shell"
)

// Backend runs commands for the console. Local wraps an in-process session;
// Client talks to a running server.
type Backend interface {
	Dispatch(ctx context.Context, command string) (*shell.Response, error)
	Categories(ctx context.Context) ([]models.Category, error)
	ToggleCategory(ctx context.Context, cat models.Category) ([]models.Category, error)
	CustomCommands(ctx context.Context) ([]models.CustomCommand, error)
}

// Local adapts a session to Backend.
type Local struct {
	Session *shell.Session
}

func (l Local) Dispatch(ctx context.Context, command string) (*shell.Response, error) {
	return l.Session.Dispatch(ctx, command)
}

func (l Local) Categories(ctx context.Context) ([]models.Category, error) {
	return l.Session.Categories(), nil
}

func (l Local) ToggleCategory(ctx context.Context, cat models.Category) ([]models.Category, error) {
	return l.Session.ToggleCategory(cat)
}

func (l Local) CustomCommands(ctx context.Context) ([]models.CustomCommand, error) {
	return l.Session.CustomCommands(), nil
}
