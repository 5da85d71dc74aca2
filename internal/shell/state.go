package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/fentz26/simshell/internal/interp"
	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/sessionlog"
)

// UserID returns the session's user.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Categories returns the active categories in canonical order.
func (s *Session) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Category(nil), s.categories...)
}

// OverrideAll reports whether permission checks are bypassed.
func (s *Session) OverrideAll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override
}

// Log returns a copy of the session log.
func (s *Session) Log() sessionlog.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(sessionlog.Log(nil), s.log...)
}

// ExportCSV renders the session log as CSV.
func (s *Session) ExportCSV() (string, error) {
	return s.Log().ExportCSV()
}

// History returns the commands dispatched so far, oldest first.
func (s *Session) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.history...)
}

// Transcript returns the output lines since the last clear.
func (s *Session) Transcript() []models.OutputLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OutputLine(nil), s.transcript...)
}

// CustomCommands returns the session's custom commands.
func (s *Session) CustomCommands() []models.CustomCommand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CustomCommand(nil), s.custom...)
}

func (s *Session) customNames() []string {
	return interp.CustomNames(s.CustomCommands())
}

// Variables lists the variable store.
func (s *Session) Variables(ctx context.Context) ([]models.Variable, error) {
	return s.vars.List(ctx)
}

// Ping checks the backing store.
func (s *Session) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close releases the backing store.
func (s *Session) Close() error {
	return s.store.Close()
}

// SetCategories replaces the active categories. A change is logged as a
// Warning since it alters how commands are routed.
func (s *Session) SetCategories(cats []models.Category) error {
	for _, c := range cats {
		if !c.IsValid() {
			return fmt.Errorf("unknown category %q", c)
		}
	}
	next := normalizeCategories(cats)

	s.mu.Lock()
	defer s.mu.Unlock()
	if equalCategories(s.categories, next) {
		return nil
	}
	s.categories = next
	s.appendLog(sessionlog.WarnEntry("Active categories changed to: " + joinCategories(next)))
	return nil
}

// ToggleCategory flips one category on or off and returns the new set.
func (s *Session) ToggleCategory(cat models.Category) ([]models.Category, error) {
	cur := s.Categories()
	next := make([]models.Category, 0, len(cur)+1)
	found := false
	for _, c := range cur {
		if c == cat {
			found = true
			continue
		}
		next = append(next, c)
	}
	if !found {
		next = append(next, cat)
	}
	if err := s.SetCategories(next); err != nil {
		return nil, err
	}
	return s.Categories(), nil
}

// SetOverrideAll turns the permission bypass on or off. Every change is
// logged as a Warning.
func (s *Session) SetOverrideAll(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override == on {
		return
	}
	s.override = on
	state := "disabled"
	if on {
		state = "enabled"
	}
	s.appendLog(sessionlog.WarnEntry("Override all permissions " + state))
}

// normalizeCategories dedupes cats and orders them canonically.
func normalizeCategories(cats []models.Category) []models.Category {
	seen := make(map[models.Category]bool, len(cats))
	for _, c := range cats {
		seen[c] = true
	}
	out := make([]models.Category, 0, len(seen))
	for _, c := range models.AllCategories() {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func equalCategories(a, b []models.Category) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinCategories(cats []models.Category) string {
	if len(cats) == 0 {
		return "(none)"
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
