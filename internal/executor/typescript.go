package executor

import (
	"context"
	"regexp"
	"strings"

	"github.com/fentz26/simshell/internal/models"
)

var consoleRe = regexp.MustCompile("^console\\.(log|info|warn|error)\\s*\\(\\s*(?:\"([^\"]*)\"|'([^']*)'|`([^`]*)`)\\s*\\)\\s*;?$")

// TypeScript simulates console output.
type TypeScript struct {
	delay *Delayer
}

// NewTypeScript creates the typescript executor.
func NewTypeScript(d *Delayer) *TypeScript {
	return &TypeScript{delay: d}
}

// Category returns typescript.
func (t *TypeScript) Category() models.Category { return models.CategoryTypeScript }

// Execute handles console.log and its siblings with a single string literal.
func (t *TypeScript) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := t.delay.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := strings.TrimSpace(req.Command)
	cat := t.Category()
	m := consoleRe.FindStringSubmatch(cmd)
	if m == nil {
		return placeholder(cat, cmd), nil
	}

	text := m[2] + m[3] + m[4]
	switch m[1] {
	case "error":
		return &Result{
			Lines:   []Line{errorLine(text)},
			Entries: ok(cat, cmd).Entries,
		}, nil
	case "warn":
		return ok(cat, cmd, Line{Text: text, Type: models.OutputWarning}), nil
	}
	return ok(cat, cmd, output(text)), nil
}
