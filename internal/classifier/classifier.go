// Package classifier decides which active category a command belongs to.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/commands"
	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/oracle"
)

// ReasonFailed is the reasoning attached when the oracle call fails.
const ReasonFailed = "classification failed"

// Classifier combines the internal fast path with a category oracle.
type Classifier struct {
	oracle oracle.CategoryOracle
	logger *zap.Logger
	// customNames returns the session's custom command names and shorts.
	customNames func() []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCustomNames makes custom command names part of the internal fast path.
func WithCustomNames(fn func() []string) Option {
	return func(c *Classifier) { c.customNames = fn }
}

// WithLogger sets the operational logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New creates a classifier backed by o.
func New(o oracle.CategoryOracle, opts ...Option) *Classifier {
	c := &Classifier{oracle: o, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns exactly one active category, ambiguous or unknown.
// Built-in and custom internal commands never reach the oracle.
func (c *Classifier) Classify(ctx context.Context, command string, active []models.Category) models.Classification {
	if contains(active, models.CategoryInternal) && c.IsInternal(command) {
		return models.Classification{Category: models.CategoryInternal}
	}

	names := make([]string, len(active))
	for i, a := range active {
		names[i] = a.String()
	}

	if c.oracle == nil {
		return models.Classification{Category: models.CategoryUnknown, Reasoning: ReasonFailed}
	}
	v, err := c.oracle.ClassifyCommand(ctx, command, names)
	if err != nil || v == nil {
		c.logger.Warn("category oracle failed", zap.String("command", command), zap.Error(err))
		return models.Classification{Category: models.CategoryUnknown, Reasoning: ReasonFailed}
	}

	return validate(*v, active)
}

// IsInternal reports whether command matches a built-in phrase or a custom
// command name, exactly or followed by a space.
func (c *Classifier) IsInternal(command string) bool {
	normalized := commands.Normalize(command)
	if normalized == "" {
		return false
	}
	for _, p := range commands.Phrases() {
		if commands.MatchesPhrase(normalized, p) {
			return true
		}
	}
	if c.customNames != nil {
		for _, name := range c.customNames() {
			if commands.MatchesPhrase(normalized, strings.ToLower(name)) {
				return true
			}
		}
	}
	return false
}

// validate downgrades out-of-set answers and fills in missing reasoning.
func validate(v oracle.Verdict, active []models.Category) models.Classification {
	cat := models.Category(strings.ToLower(strings.TrimSpace(v.Category)))
	reasoning := strings.TrimSpace(v.Reasoning)

	if !cat.IsSentinel() && !contains(active, cat) {
		reasoning = fmt.Sprintf("oracle answered %q, which is not an active category", v.Category)
		cat = models.CategoryUnknown
	}

	if cat.IsSentinel() && reasoning == "" {
		reasoning = genericReason(cat, active)
	}
	return models.Classification{Category: cat, Reasoning: reasoning}
}

func genericReason(cat models.Category, active []models.Category) string {
	names := make([]string, len(active))
	for i, a := range active {
		names[i] = a.String()
	}
	list := strings.Join(names, ", ")
	if list == "" {
		list = "none"
	}
	if cat == models.CategoryAmbiguous {
		return fmt.Sprintf("command could belong to more than one active category (%s)", list)
	}
	return fmt.Sprintf("command does not match any active category (%s)", list)
}

func contains(set []models.Category, c models.Category) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}
