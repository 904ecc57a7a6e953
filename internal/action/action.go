// Package action implements the Action registry and the trigger
// executor described in spec.md §3/§4.2: named bundles of plugin
// handles, flag mutations, and ordered sub-actions, executed as a unit
// when selected by the router.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/flags"
)

// PluginAction is one plugin's handle bound into an Action, per
// spec.md §3 ("ordered plugin_actions (opaque per-plugin handles with a
// bound plugin pointer)"). Invoke is called by trigger for each action
// in the configured order; it may suspend on I/O but must not block
// indefinitely (spec.md §5).
type PluginAction interface {
	// PluginID names the plugin that owns this handle, used in dump
	// output and diagnostics.
	PluginID() string
	// Invoke executes the plugin-specific side effect for ev. Errors
	// are logged by the caller and never fail the rest of the action
	// list (spec.md §7, "Plugin" error kind).
	Invoke(ctx context.Context, ev *event.Event) error
}

// Action is a named bundle of plugin actions, flag mutations, and
// ordered sub-action references.
type Action struct {
	ID string

	PluginActions []PluginAction

	// SubactionIDs holds the string references as parsed, before Link
	// resolves them. After Link, Subactions holds the resolved
	// pointers and SubactionIDs is left as originally parsed (for dump
	// output).
	SubactionIDs []string
	Subactions   []*Action

	FlagsAdd    []string
	FlagsRemove []string
}

// Registry holds the set of Actions parsed from configuration, keyed by
// ID. Registries are frozen at Link time: sub-action resolution happens
// once, against a stable snapshot, per spec.md §3's DAG-in-intent
// invariant.
type Registry struct {
	logger  *slog.Logger
	actions map[string]*Action
	order   []string
}

// NewRegistry creates an empty action registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		actions: make(map[string]*Action),
	}
}

// Add registers a into the registry. Add panics on an empty or
// duplicate ID: this is a programmer/config-author error caught at
// parse time, not a runtime data condition — the same distinction the
// teacher draws in internal/connwatch.Manager.Watch.
func (r *Registry) Add(a *Action) {
	if a.ID == "" {
		panic("action: Action.ID must not be empty")
	}
	if _, exists := r.actions[a.ID]; exists {
		panic(fmt.Sprintf("action: duplicate action id %q", a.ID))
	}
	r.actions[a.ID] = a
	r.order = append(r.order, a.ID)
}

// Get returns the action registered under id, if any.
func (r *Registry) Get(id string) (*Action, bool) {
	a, ok := r.actions[id]
	return a, ok
}

// IDs returns all registered action IDs in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Dump renders the named action's plugin-action names and sub-action
// IDs for the control channel's "dump action <id>" command (spec.md
// §4.8). Returns nil if id is not registered.
func (r *Registry) Dump(id string) []string {
	a, ok := r.actions[id]
	if !ok {
		return nil
	}

	plugins := make([]string, len(a.PluginActions))
	for i, pa := range a.PluginActions {
		plugins[i] = pa.PluginID()
	}

	return []string{
		fmt.Sprintf("action=%s plugin_actions=[%s] subactions=[%s] flags_add=[%s] flags_remove=[%s]",
			a.ID,
			strings.Join(plugins, ","),
			strings.Join(a.SubactionIDs, ","),
			strings.Join(a.FlagsAdd, ","),
			strings.Join(a.FlagsRemove, ",")),
	}
}

// Link resolves every Action's SubactionIDs into Subactions pointers.
// An ID that does not resolve against this registry is dropped with a
// warning log, per spec.md §3 ("unresolved references are silently
// dropped with a warning").
func (r *Registry) Link() {
	for _, id := range r.order {
		a := r.actions[id]
		a.Subactions = a.Subactions[:0]
		for _, subID := range a.SubactionIDs {
			sub, ok := r.actions[subID]
			if !ok {
				r.logger.Warn("dropping unresolved sub-action reference",
					"action", a.ID, "subaction", subID)
				continue
			}
			a.Subactions = append(a.Subactions, sub)
		}
	}
}

// Trigger executes actions in order against ev, per spec.md §4.2: for
// each action, apply FlagsAdd then FlagsRemove, invoke each
// PluginAction in order, then recurse into Subactions depth-first.
// Plugin invocation errors are logged and do not stop the rest of the
// action list or its sub-actions.
func Trigger(ctx context.Context, logger *slog.Logger, fs *flags.Set, actions []*Action, ev *event.Event) {
	for _, a := range actions {
		triggerOne(ctx, logger, fs, a, ev)
	}
}

func triggerOne(ctx context.Context, logger *slog.Logger, fs *flags.Set, a *Action, ev *event.Event) {
	for _, f := range a.FlagsAdd {
		fs.Add(f)
	}
	for _, f := range a.FlagsRemove {
		fs.Remove(f)
	}

	for _, pa := range a.PluginActions {
		if err := pa.Invoke(ctx, ev); err != nil {
			logger.Warn("plugin action failed",
				"action", a.ID, "plugin", pa.PluginID(), "error", err)
		}
	}

	Trigger(ctx, logger, fs, a.Subactions, ev)
}
