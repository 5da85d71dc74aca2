// Package executor provides the simulated category executors.
package executor

import (
	"context"
	"fmt"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/sessionlog"
)

// Request is a non-internal command handed to an executor.
type Request struct {
	UserID      string
	Command     string
	Permissions perm.Set
	OverrideAll bool
}

// Line is one line of executor output.
type Line struct {
	Text string
	Type models.OutputType
}

// Result holds the output of one execution.
type Result struct {
	Lines   []Line
	Entries []sessionlog.Entry
}

// Executor simulates one category.
type Executor interface {
	// Category returns the category this executor serves.
	Category() models.Category

	// Execute runs the command and returns its output. Execution failures
	// are reported in the Result; an error means the context ended.
	Execute(ctx context.Context, req Request) (*Result, error)
}

func output(text string) Line   { return Line{Text: text, Type: models.OutputText} }
func errorLine(text string) Line { return Line{Text: text, Type: models.OutputError} }

// ok is a successful result with one Info entry.
func ok(cat models.Category, command string, lines ...Line) *Result {
	return &Result{
		Lines:   lines,
		Entries: []sessionlog.Entry{sessionlog.InfoEntry(fmt.Sprintf("Executed %s command: %s", cat, command))},
	}
}

// failed is an error result with one notable Error entry.
func failed(cat models.Category, command, msg string) *Result {
	return &Result{
		Lines:   []Line{errorLine(msg)},
		Entries: []sessionlog.Entry{sessionlog.ErrorEntry(fmt.Sprintf("%s command failed: %s: %s", cat, command, msg))},
	}
}

// Placeholder is the generic echo for unrecognized forms.
func Placeholder(cat models.Category, command string) string {
	return fmt.Sprintf("Simulating %s: %s (output placeholder)", cat, command)
}

func placeholder(cat models.Category, command string) *Result {
	return ok(cat, command, output(Placeholder(cat, command)))
}
