package executor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/fentz26/simshell/internal/vars"
)

// SimModeVar is the variable that switches simulated latency; "0" turns it off.
const SimModeVar = "sim_mode"

// Default latency bounds.
const (
	DefaultMinDelay = 100 * time.Millisecond
	DefaultMaxDelay = 1500 * time.Millisecond
)

// Delayer sleeps for a random duration in [Min, Max] to mimic real latency.
type Delayer struct {
	Min time.Duration
	Max time.Duration

	vars *vars.Store
	mu   sync.Mutex
	rnd  *rand.Rand
}

// NewDelayer creates a delayer. When v is non-nil, the sim_mode variable is
// consulted before every wait.
func NewDelayer(min, max time.Duration, v *vars.Store) *Delayer {
	if max < min {
		max = min
	}
	return &Delayer{
		Min:  min,
		Max:  max,
		vars: v,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enabled reports whether simulated latency is currently on.
func (d *Delayer) Enabled(ctx context.Context) bool {
	if d == nil || d.Max <= 0 {
		return false
	}
	if d.vars == nil {
		return true
	}
	v, found, err := d.vars.Lookup(ctx, SimModeVar)
	if err != nil || !found {
		return true
	}
	return v.Value != "0"
}

// Wait blocks for a random duration or until ctx is done.
func (d *Delayer) Wait(ctx context.Context) error {
	if !d.Enabled(ctx) {
		return ctx.Err()
	}

	wait := d.Min
	if span := d.Max - d.Min; span > 0 {
		d.mu.Lock()
		wait += time.Duration(d.rnd.Int63n(int64(span) + 1))
		d.mu.Unlock()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
