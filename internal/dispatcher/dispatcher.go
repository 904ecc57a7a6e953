// Package dispatcher implements the central push_event pipeline
// described in spec.md §4.3: internal-category bypass, router match,
// plugin fan-out, and action trigger. Grounded on internal/agent's
// central loop shape (a single entry point fanning out to subsystems
// in a fixed order) generalized from the AI-agent turn loop to
// spec.md's event pipeline.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/plugin"
	"github.com/nugget/eventd-go/internal/router"
)

// Fanout receives every event the dispatcher processes, ahead of
// action execution, per spec.md §4.3's ordering note: server fan-out,
// then relay fan-out, then other plugin dispatch hooks. Server and
// relay are modeled as ordinary Fanout implementations registered
// before any other plugin.Dispatcher, so the ordering falls out of
// registration order rather than a special case in Dispatcher.
type Fanout interface {
	Dispatch(ctx context.Context, ev *event.Event)
}

// Dispatcher wires together the router, the flag set, and the
// registered plugin fan-out hooks into the single push_event entry
// point every event source (server session, relay, internal
// subsystem) calls.
type Dispatcher struct {
	logger *slog.Logger

	Router   *router.Router
	Registry *action.Registry
	Flags    *flags.Set

	// mu serializes PushEvent calls, standing in for spec.md §5's
	// single-threaded cooperative event loop: session and relay
	// goroutines each call PushEvent concurrently, but the pipeline
	// itself runs one event at a time so router/flag-set/action state
	// is observed and mutated exactly as a single loop would.
	mu sync.Mutex

	fanouts []Fanout
}

// New creates a Dispatcher over the given router, action registry, and
// flag set. fanouts are invoked in the order given for every event,
// before action execution — callers should register server and relay
// fan-out first, then other plugin.Dispatcher adapters, per spec.md
// §4.3/§5's fan-out ordering.
func New(logger *slog.Logger, r *router.Router, reg *action.Registry, fs *flags.Set, fanouts ...Fanout) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if fs == nil {
		fs = flags.New()
	}
	return &Dispatcher{
		logger:   logger,
		Router:   r,
		Registry: reg,
		Flags:    fs,
		fanouts:  fanouts,
	}
}

// AddFanout appends f to the list of plugins notified of every event,
// after any fanouts already registered.
func (d *Dispatcher) AddFanout(f Fanout) {
	d.fanouts = append(d.fanouts, f)
}

// PushEvent implements spec.md §4.3's push_event(event) -> bool:
//
//  1. If ev is internal (category starts with "."), fan it out to every
//     registered Fanout and return true without consulting the router.
//  2. Otherwise, look up matching actions via the router; if none
//     match, return false without any fan-out or action execution.
//  3. Fan ev out to every registered Fanout.
//  4. Trigger the matched actions (and their sub-actions) against ev.
//  5. Return true.
func (d *Dispatcher) PushEvent(ctx context.Context, ev *event.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Internal() {
		d.dispatchAll(ctx, ev)
		return true
	}

	actions, ok := d.Router.Match(ev, d.Flags)
	if !ok {
		return false
	}

	d.dispatchAll(ctx, ev)
	action.Trigger(ctx, d.logger, d.Flags, actions, ev)
	return true
}

func (d *Dispatcher) dispatchAll(ctx context.Context, ev *event.Event) {
	for _, f := range d.fanouts {
		f.Dispatch(ctx, ev)
	}
}

// DispatchAllPlugins adapts a plugin.Registry's Dispatcher-capable
// plugins into Fanout values, preserving registration order, for
// callers assembling fanouts from a loaded plugin set rather than
// wiring server/relay by hand.
func DispatchAllPlugins(reg *plugin.Registry) []Fanout {
	ds := reg.Dispatchers()
	out := make([]Fanout, len(ds))
	for i, d := range ds {
		out[i] = d
	}
	return out
}
