// Package plugin defines the capability-set interfaces that every
// eventd subsystem (server, relay, notification compositor, and any
// external collaborator such as sound/exec/webhook leaf actions)
// implements, per spec.md §9: "model each plugin as a value
// implementing a capability set; the core drives by interface, not by
// inheritance."
package plugin

import (
	"context"
	"fmt"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/event"
)

// Plugin is the minimal capability every plugin implements.
type Plugin interface {
	// ID names the plugin for whitelist/blacklist filtering, dump
	// output, and control-command routing.
	ID() string
}

// Lifecycle is implemented by plugins with explicit start/stop hooks,
// driven by the control channel's "reload"/"stop" commands (spec.md
// §4.8) and daemon bootstrap/shutdown.
type Lifecycle interface {
	Plugin
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Dispatcher is implemented by plugins that want to observe every
// event that passes the dispatcher, regardless of whether it was
// selected by the router (spec.md §4.3: plugin_dispatch_all runs
// before action execution, server/relay first).
type Dispatcher interface {
	Plugin
	Dispatch(ctx context.Context, ev *event.Event)
}

// ActionParser is implemented by plugins that contribute their own
// leaf action syntax to the configuration parser (e.g. a sound or exec
// plugin parsing its action-specific keys into a PluginAction handle).
type ActionParser interface {
	Plugin
	ParseAction(spec map[string]string) (action.PluginAction, error)
}

// ActionFreer is implemented by plugins needing to release resources
// held by a previously parsed PluginAction handle (spec.md §3 "action
// graph references"/§9 lifetime notes). Optional: a plugin without
// per-handle resources need not implement it.
type ActionFreer interface {
	Plugin
	FreeAction(pa action.PluginAction)
}

// GlobalParser is implemented by plugins that read their own top-level
// configuration group (e.g. a GlobalServer-style block) separately from
// the EventMatch/Action grammar the router/action packages own.
type GlobalParser interface {
	Plugin
	ParseGlobal(spec map[string]string) error
}

// ControlCommander is implemented by plugins that accept control-channel
// commands addressed to their plugin ID (spec.md §4.8: "<plugin-id>
// <args…> forwarded to the named plugin's control callback").
type ControlCommander interface {
	Plugin
	ControlCommand(ctx context.Context, args []string) (status int, message string)
}

// Validate enforces spec.md §9's bootstrap rule: "a plugin that
// supplies action_parse must also supply event_action [i.e. is itself
// the PluginAction factory]; the bootstrap validates this and refuses
// to load otherwise." Since ActionParser.ParseAction already returns
// the action.PluginAction directly in this Go shape, the invariant
// collapses to "ActionParser implementations are always valid action
// handlers" — Validate instead catches the cheaper mistake of a plugin
// claiming ActionFreer for a plugin that never parses actions, which
// would be dead code the bootstrap should reject as misconfigured.
func Validate(p Plugin) error {
	_, parses := p.(ActionParser)
	_, frees := p.(ActionFreer)
	if frees && !parses {
		return fmt.Errorf("plugin: %s implements ActionFreer without ActionParser", p.ID())
	}
	return nil
}

// Registry holds loaded plugins keyed by ID. Add does not apply any
// whitelist/blacklist filtering and nothing in this package reads the
// environment; Filter implements the list logic for a caller that has
// the whitelist and blacklist in hand.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Add validates and registers p. Returns an error if validation fails
// or the ID is already registered.
func (r *Registry) Add(p Plugin) error {
	if err := Validate(p); err != nil {
		return err
	}
	if _, exists := r.plugins[p.ID()]; exists {
		return fmt.Errorf("plugin: duplicate plugin id %q", p.ID())
	}
	r.plugins[p.ID()] = p
	r.order = append(r.order, p.ID())
	return nil
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, bool) {
	p, ok := r.plugins[id]
	return p, ok
}

// All returns every registered plugin in registration order.
func (r *Registry) All() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

// Dispatchers returns every registered plugin implementing Dispatcher,
// in registration order.
func (r *Registry) Dispatchers() []Dispatcher {
	var out []Dispatcher
	for _, id := range r.order {
		if d, ok := r.plugins[id].(Dispatcher); ok {
			out = append(out, d)
		}
	}
	return out
}

// Filter returns the subset of ids allowed by the given whitelist and
// blacklist (comma-separated plugin ID lists; empty means "no
// restriction"). Blacklist takes precedence over whitelist membership.
func Filter(ids []string, whitelist, blacklist []string) []string {
	allow := toSet(whitelist)
	deny := toSet(blacklist)

	var out []string
	for _, id := range ids {
		if len(deny) > 0 {
			if _, blocked := deny[id]; blocked {
				continue
			}
		}
		if len(allow) > 0 {
			if _, allowed := allow[id]; !allowed {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

func toSet(ss []string) map[string]struct{} {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}
