package interp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/simshell/internal/commands"
	"github.com/fentz26/simshell/internal/models"
)

var (
	// ErrBuiltinCollision is returned when a custom command would shadow a built-in.
	ErrBuiltinCollision = errors.New("name is reserved by a built-in command")
	// ErrCustomCollision is returned when a short alias is taken by another custom command.
	ErrCustomCollision = errors.New("name is already used by another custom command")
)

// FindCustom looks a custom command up by name or short, case-insensitively.
func FindCustom(custom []models.CustomCommand, name string) (models.CustomCommand, bool) {
	for _, c := range custom {
		if strings.EqualFold(c.Name, name) || (c.Short != "" && strings.EqualFold(c.Short, name)) {
			return c, true
		}
	}
	return models.CustomCommand{}, false
}

// AddCustom returns a copy of custom with cmd added, replacing a command of
// the same name. custom itself is never modified.
func AddCustom(custom []models.CustomCommand, cmd models.CustomCommand) ([]models.CustomCommand, error) {
	for _, n := range []string{cmd.Name, cmd.Short} {
		if commands.IsReserved(n) {
			return nil, fmt.Errorf("%w: %q", ErrBuiltinCollision, n)
		}
	}

	out := make([]models.CustomCommand, 0, len(custom)+1)
	for _, c := range custom {
		if strings.EqualFold(c.Name, cmd.Name) {
			continue
		}
		for _, n := range []string{cmd.Name, cmd.Short} {
			if n == "" {
				continue
			}
			if strings.EqualFold(c.Name, n) || strings.EqualFold(c.Short, n) {
				return nil, fmt.Errorf("%w: %q", ErrCustomCollision, n)
			}
		}
		out = append(out, c)
	}
	return append(out, cmd), nil
}

// CustomNames returns every name and short of custom.
func CustomNames(custom []models.CustomCommand) []string {
	out := make([]string, 0, 2*len(custom))
	for _, c := range custom {
		out = append(out, c.Name)
		if c.Short != "" {
			out = append(out, c.Short)
		}
	}
	return out
}
