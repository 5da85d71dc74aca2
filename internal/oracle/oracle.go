// Package oracle provides the external judgement services used by the shell:
// a category oracle for classification and a text generator for the ai
// commands.
package oracle

import (
	"context"
	"errors"
)

// ErrNoBackend is returned by generators that have nothing to call.
var ErrNoBackend = errors.New("no generation backend configured")

// Verdict is the raw answer of a category oracle, before validation.
type Verdict struct {
	Category  string `json:"category"`
	Reasoning string `json:"reasoning,omitempty"`
}

// CategoryOracle judges which of the active categories a command belongs to.
// The answer must be one of active, "ambiguous" or "unknown"; callers still
// validate it.
type CategoryOracle interface {
	ClassifyCommand(ctx context.Context, command string, active []string) (*Verdict, error)
}

// TextGenerator produces free-form answers.
type TextGenerator interface {
	Generate(ctx context.Context, input string) (string, error)
}

// Offline is a TextGenerator for sessions without a generation backend.
type Offline struct{}

// Generate always fails with ErrNoBackend.
func (Offline) Generate(ctx context.Context, input string) (string, error) {
	return "", ErrNoBackend
}
