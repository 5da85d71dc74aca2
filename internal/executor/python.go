package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/vars"
)

var (
	printLiteralRe = regexp.MustCompile(`^print\s*\(\s*(?:"([^"]*)"|'([^']*)')\s*\)\s*;?$`)
	printNameRe    = regexp.MustCompile(`^print\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*;?$`)
	printCallRe    = regexp.MustCompile(`^print\s*\(`)
)

// Python simulates a python REPL: print calls and variable assignment.
type Python struct {
	delay *Delayer
	vars  *vars.Store
}

// NewPython creates the python executor. v backs assignment and name lookup.
func NewPython(d *Delayer, v *vars.Store) *Python {
	return &Python{delay: d, vars: v}
}

// Category returns python.
func (p *Python) Category() models.Category { return models.CategoryPython }

// Execute handles print(...) and name = literal.
func (p *Python) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := p.delay.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := strings.TrimSpace(req.Command)
	cat := p.Category()

	if m := printLiteralRe.FindStringSubmatch(cmd); m != nil {
		return ok(cat, cmd, output(m[1]+m[2])), nil
	}
	if m := printNameRe.FindStringSubmatch(cmd); m != nil {
		return p.printName(ctx, cmd, m[1]), nil
	}
	if printCallRe.MatchString(cmd) {
		return failed(cat, cmd, "SyntaxError: invalid syntax"), nil
	}

	if name, literal, isAssign := vars.ParseAssignment(cmd); isAssign {
		return p.assign(ctx, req, cmd, name, literal), nil
	}

	return placeholder(cat, cmd), nil
}

func (p *Python) printName(ctx context.Context, cmd, name string) *Result {
	cat := p.Category()
	if p.vars == nil {
		return failed(cat, cmd, fmt.Sprintf("NameError: name '%s' is not defined", name))
	}
	v, found, err := p.vars.Lookup(ctx, name)
	if err != nil || !found {
		return failed(cat, cmd, fmt.Sprintf("NameError: name '%s' is not defined", name))
	}
	return ok(cat, cmd, output(v.Value))
}

func (p *Python) assign(ctx context.Context, req Request, cmd, name, literal string) *Result {
	cat := p.Category()
	if !perm.Allowed(req.Permissions, perm.ManageVariables, req.OverrideAll) {
		return failed(cat, cmd, fmt.Sprintf("Permission denied: %s required", perm.ManageVariables))
	}
	if p.vars == nil {
		return failed(cat, cmd, "variable store unavailable")
	}
	v, err := p.vars.Assign(ctx, name, literal, vars.ModePython)
	if err != nil {
		return failed(cat, cmd, fmt.Sprintf("could not store %s: %v", name, err))
	}
	return ok(cat, cmd, Line{
		Text: fmt.Sprintf("%s = %s (%s)", v.Name, v.Value, v.Datatype),
		Type: models.OutputInfo,
	})
}
