// Package perm resolves the permission set granted to a user.
package perm

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fentz26/simshell/internal/store"
)

// Permission names used by built-in commands and executors.
const (
	ManageVariables  = "manage_variables"
	ManageCommands   = "manage_commands"
	ManageAITools    = "manage_ai_tools"
	ManageRoles      = "manage_roles"
	ManageDatabase   = "manage_database"
	ExportData       = "export_data"
	UseAITools       = "use_ai_tools"
	ExecuteSQLModify = "execute_sql_modify"
)

// All returns every permission name known to the system.
func All() []string {
	return []string{
		ManageVariables,
		ManageCommands,
		ManageAITools,
		ManageRoles,
		ManageDatabase,
		ExportData,
		UseAITools,
		ExecuteSQLModify,
	}
}

// ErrNotInitialized indicates the role tables do not exist yet.
var ErrNotInitialized = errors.New("permission tables not initialized; run 'init db'")

// Set is a set of granted permission names.
type Set map[string]struct{}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is granted. An empty name is always granted.
func (s Set) Has(name string) bool {
	if name == "" {
		return true
	}
	_, ok := s[name]
	return ok
}

// Names returns the granted names in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Allowed reports whether required passes the gate given the override flag.
func Allowed(s Set, required string, overrideAll bool) bool {
	return overrideAll || s.Has(required)
}

// Resolver maps user identities to permission sets.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a resolver backed by the store's role tables.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the permissions granted to userID via its roles. Missing
// role tables yield ErrNotInitialized rather than a generic query error.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Set, error) {
	names, err := r.store.PermissionsForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			return Set{}, ErrNotInitialized
		}
		return Set{}, fmt.Errorf("resolve permissions: %w", err)
	}
	return NewSet(names...), nil
}
