package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/store"
	"github.com/fentz26/simshell/internal/vars"
)

// ErrNoExecutor is returned when a category has no enabled executor.
var ErrNoExecutor = errors.New("no executor for category")

type registration struct {
	exec    Executor
	enabled bool
}

// Info describes a registered executor.
type Info struct {
	Category models.Category `json:"category"`
	Enabled  bool            `json:"enabled"`
}

// Registry manages the executors by category.
type Registry struct {
	executors map[models.Category]*registration
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[models.Category]*registration),
	}
}

// Register adds or replaces the executor for its category, enabled.
func (r *Registry) Register(e Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cat := e.Category()
	if !cat.IsValid() || cat == models.CategoryInternal {
		return fmt.Errorf("cannot register executor for category %q", cat)
	}
	r.executors[cat] = &registration{exec: e, enabled: true}
	return nil
}

// Get retrieves the enabled executor for cat.
func (r *Registry) Get(cat models.Category) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.executors[cat]
	if !ok || !reg.enabled {
		return nil, false
	}
	return reg.exec, true
}

// Enable enables the executor for cat.
func (r *Registry) Enable(cat models.Category) error {
	return r.setEnabled(cat, true)
}

// Disable disables the executor for cat.
func (r *Registry) Disable(cat models.Category) error {
	return r.setEnabled(cat, false)
}

func (r *Registry) setEnabled(cat models.Category, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.executors[cat]
	if !ok {
		return fmt.Errorf("executor %q not found", cat)
	}
	reg.enabled = enabled
	return nil
}

// List returns all registered executors in category order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := make(map[models.Category]int)
	for i, c := range models.AllCategories() {
		order[c] = i
	}

	out := make([]Info, 0, len(r.executors))
	for cat, reg := range r.executors {
		out = append(out, Info{Category: cat, Enabled: reg.enabled})
	}
	sort.Slice(out, func(i, j int) bool {
		return order[out[i].Category] < order[out[j].Category]
	})
	return out
}

// Execute routes req to the executor for cat.
func (r *Registry) Execute(ctx context.Context, cat models.Category, req Request) (*Result, error) {
	e, ok := r.Get(cat)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoExecutor, cat)
	}
	return e.Execute(ctx, req)
}

// RegisterDefaults registers the simulated executor of every non-internal
// category. The sql executor runs against s; python assigns through v.
func (r *Registry) RegisterDefaults(s *store.Store, v *vars.Store, d *Delayer) {
	defaults := []Executor{
		NewPython(d, v),
		NewUnix(d),
		NewWindows(d),
		NewSQL(s),
		NewExcel(d),
		NewTypeScript(d),
	}
	for _, e := range defaults {
		_ = r.Register(e)
	}
}
