// Package vars implements the typed variable store and literal type inference.
package vars

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/store"
)

// Mode selects the literal dialect used for inference.
type Mode int

const (
	// ModeInternal is the internal command language.
	ModeInternal Mode = iota
	// ModePython additionally accepts the None literal.
	ModePython
)

// ErrInvalidName is returned for names that are not identifiers.
var ErrInvalidName = errors.New("invalid variable name")

var (
	integerRe     = regexp.MustCompile(`^\d+$`)
	realRe        = regexp.MustCompile(`^\d+\.\d+$`)
	identifierRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	assignmentRe  = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*?)\s*$`)
)

// Infer returns the datatype and stored value for a literal. The first
// matching rule wins: integer, real, boolean, quoted string, None (python
// only), then the unquoted text as a string.
func Infer(literal string, mode Mode) (models.Datatype, string) {
	lit := strings.TrimSpace(literal)

	switch {
	case integerRe.MatchString(lit):
		return models.DatatypeInteger, lit
	case realRe.MatchString(lit):
		return models.DatatypeReal, lit
	case lit == "True" || lit == "False":
		return models.DatatypeBoolean, lit
	case isQuoted(lit):
		return models.DatatypeString, lit[1 : len(lit)-1]
	case mode == ModePython && lit == "None":
		return models.DatatypeNone, lit
	}
	return models.DatatypeString, lit
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == last && (first == '"' || first == '\'')
}

// ValidName reports whether name can be used as a variable name.
func ValidName(name string) bool {
	return identifierRe.MatchString(name)
}

// ParseAssignment splits `name = literal`. ok is false when the text is not
// an assignment; `==` comparisons are not assignments.
func ParseAssignment(text string) (name, literal string, ok bool) {
	m := assignmentRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	if strings.HasPrefix(m[2], "=") {
		return "", "", false
	}
	return m[1], m[2], true
}

// Store is the variable store over the backing store.
type Store struct {
	store *store.Store
}

// NewStore creates a variable store.
func NewStore(s *store.Store) *Store {
	return &Store{store: s}
}

// Assign infers the literal's type and upserts the variable. All fields of an
// existing variable are overwritten.
func (s *Store) Assign(ctx context.Context, name, literal string, mode Mode) (models.Variable, error) {
	if !ValidName(name) {
		return models.Variable{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	datatype, value := Infer(literal, mode)
	v := models.Variable{Name: name, Datatype: datatype, Value: value}
	if err := s.store.UpsertVariable(ctx, v); err != nil {
		return models.Variable{}, err
	}
	return v, nil
}

// Put upserts a fully specified variable.
func (s *Store) Put(ctx context.Context, v models.Variable) error {
	if !ValidName(v.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, v.Name)
	}
	return s.store.UpsertVariable(ctx, v)
}

// Lookup returns the named variable. A missing variable is not an error.
func (s *Store) Lookup(ctx context.Context, name string) (*models.Variable, bool, error) {
	v, err := s.store.GetVariable(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

// List returns all variables ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Variable, error) {
	return s.store.ListVariables(ctx)
}

// Substitute replaces {name} placeholders with variable values. Unknown
// variables are replaced by a "not found" marker and reported in missing.
func (s *Store) Substitute(ctx context.Context, text string) (string, []string, error) {
	var missing []string
	var firstErr error

	out := placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok, err := s.Lookup(ctx, name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		if !ok {
			missing = append(missing, name)
			return NotFoundMarker(name)
		}
		return v.Value
	})
	if firstErr != nil {
		return text, nil, firstErr
	}
	return out, missing, nil
}

// NotFoundMarker is the text substituted for an unknown placeholder.
func NotFoundMarker(name string) string {
	return fmt.Sprintf("[variable %s not found]", name)
}
