package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/backend"
	"github.com/nugget/eventd-go/internal/buildinfo"
	"github.com/nugget/eventd-go/internal/config"
	"github.com/nugget/eventd-go/internal/control"
	"github.com/nugget/eventd-go/internal/dispatcher"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/notify"
	"github.com/nugget/eventd-go/internal/plugin"
	"github.com/nugget/eventd-go/internal/relay"
	"github.com/nugget/eventd-go/internal/router"
	"github.com/nugget/eventd-go/internal/session"
	"github.com/nugget/eventd-go/internal/subscription"
	"github.com/nugget/eventd-go/internal/value"
)

// daemon bundles the wired-together runtime so control commands and
// the fsnotify reload watcher can drive start/stop without threading a
// dozen separate values through closures. Grounded on cmd/thane's
// runServe, which does the same wiring inline; here it is split into a
// struct because the control channel's Lifecycle interface needs a
// stable receiver to call back into.
type daemon struct {
	logger *slog.Logger
	cfg    *config.Config

	router   *router.Router
	actions  *action.Registry
	flags    *flags.Set
	dispatch *dispatcher.Dispatcher
	plugins  *plugin.Registry

	hub  *session.Hub
	comp *notify.Compositor

	relays  []*relay.Server
	control *control.Server

	listener      *listener
	controlSocket net.Listener

	quit chan struct{}
}

func newDaemon(logger *slog.Logger) *daemon {
	fs := flags.New()
	reg := action.NewRegistry(logger)
	r := router.New(logger)
	disp := dispatcher.New(logger, r, reg, fs)

	return &daemon{
		logger:   logger,
		router:   r,
		actions:  reg,
		flags:    fs,
		dispatch: disp,
		plugins:  plugin.NewRegistry(),
		quit:     make(chan struct{}),
	}
}

// RequestQuit implements control.Lifecycle: asks the main select loop
// in run to return.
func (d *daemon) RequestQuit() {
	select {
	case <-d.quit:
	default:
		close(d.quit)
	}
}

// StartAll implements control.Lifecycle: starts every loaded plugin that
// has lifecycle hooks, every configured relay, and the client-facing
// listeners. Called once at boot and again on "reload" after StopAll.
func (d *daemon) StartAll(ctx context.Context) error {
	for _, p := range d.plugins.All() {
		if lp, ok := p.(plugin.Lifecycle); ok {
			if err := lp.Start(ctx); err != nil {
				return err
			}
		}
	}
	for _, rs := range d.relays {
		if rs.HasAddress() {
			rs.Start(ctx, false)
		}
	}
	if d.controlSocket == nil {
		ln, err := d.startControlSocket(ctx)
		if err != nil {
			return err
		}
		d.controlSocket = ln
	}
	return d.listener.start(ctx)
}

// StopAll implements control.Lifecycle: stops every loaded plugin that
// has lifecycle hooks, stops every relay and closes every listener,
// without tearing down the router/dispatcher state.
func (d *daemon) StopAll(ctx context.Context) error {
	for _, p := range d.plugins.All() {
		if lp, ok := p.(plugin.Lifecycle); ok {
			if err := lp.Stop(ctx); err != nil {
				d.logger.Warn("plugin stop failed", "plugin", p.ID(), "error", err)
			}
		}
	}
	for _, rs := range d.relays {
		rs.Stop()
	}
	if d.controlSocket != nil {
		d.controlSocket.Close()
		d.controlSocket = nil
	}
	d.listener.stop()
	return nil
}

// wire builds the router/action registry from configuration, links
// them, and constructs the subscription hub, notification compositor,
// and relay peers. Grounded on the teacher's runServe: config fields
// feed directly into component constructors, in dependency order
// matching the dependency table in spec.md §2.
func (d *daemon) wire(cfg *config.Config) error {
	d.cfg = cfg

	for _, a := range cfg.Actions {
		d.actions.Add(&action.Action{
			ID:           a.ID,
			SubactionIDs: a.Subactions,
			FlagsAdd:     a.FlagsAdd,
			FlagsRemove:  a.FlagsRemove,
		})
	}
	d.actions.Link()

	for _, em := range cfg.EventMatches {
		if err := d.router.AddMatch(em.Pattern, buildEventMatch(em)); err != nil {
			d.logger.Warn("dropping malformed event match", "pattern", em.Pattern, "error", err)
		}
	}
	d.router.Link(d.actions)

	subs := subscription.New()
	d.hub = session.NewHub(subs, d.logger)
	d.dispatch.AddFanout(d.hub)

	display := notify.Display{Width: 1920, Height: 1080, Scale: 1}
	d.comp = notify.New(backend.Null{}, d.dispatch, display, d.logger)
	d.dispatch.AddFanout(fanoutFunc(d.comp.EventDispatch))

	for _, qc := range cfg.Queues {
		d.comp.Queue(qc.Name, qc.Limit, parseAnchor(qc.Anchor), qc.Reverse, qc.MoreIndicator)
	}

	var tlsCert *tls.Certificate
	if cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			d.logger.Warn("server TLS certificate unavailable", "error", err)
		} else {
			tlsCert = &cert
		}
	}

	for _, rc := range cfg.Relays {
		rs := relay.New(rc.Name, d.dispatch, d.logger)
		rs.SetAddress(rc.URI)
		rs.Identity = rc.Identity
		rs.AcceptUnknownCA = rc.AcceptUnknownCA
		rs.ForwardAll = rc.ForwardAll
		rs.ForwardCategories = toSet(rc.ForwardCategories)
		rs.Subscribe = rc.Subscribe
		rs.SubscribeCategories = rc.SubscribeCategories
		if tlsCert != nil {
			rs.SetCertificate(tlsCert)
		}
		d.dispatch.AddFanout(rs)
		d.relays = append(d.relays, rs)
	}

	for id, spec := range cfg.Plugins {
		p, ok := d.plugins.Get(id)
		if !ok {
			continue
		}
		if gp, ok := p.(plugin.GlobalParser); ok {
			if err := gp.ParseGlobal(spec); err != nil {
				d.logger.Warn("plugin global config rejected", "plugin", id, "error", err)
			}
		}
	}
	for _, d2 := range d.plugins.Dispatchers() {
		d.dispatch.AddFanout(pluginFanout{d2})
	}

	d.control = control.NewServer(d.logger)
	control.RegisterStandardCommands(d.control, d, d.router, d.actions, d.flags, d.plugins, buildinfo.String())

	d.listener = newListener(cfg, d, d.logger)
	return nil
}

// pluginFanout adapts a plugin.Dispatcher into dispatcher.Fanout.
type pluginFanout struct{ p plugin.Dispatcher }

func (f pluginFanout) Dispatch(ctx context.Context, ev *event.Event) { f.p.Dispatch(ctx, ev) }

// fanoutFunc adapts a plain function to dispatcher.Fanout, mirroring
// the adapter internal/notify's own tests use.
type fanoutFunc func(ctx context.Context, ev *event.Event)

func (f fanoutFunc) Dispatch(ctx context.Context, ev *event.Event) { f(ctx, ev) }

func buildEventMatch(em config.EventMatchConfig) *router.EventMatch {
	m := &router.EventMatch{
		Importance: em.Importance,
		ActionIDs:  em.ActionIDs,
		IfDataKeys: em.IfDataKeys,
	}
	for _, dm := range em.IfDataMatches {
		m.IfDataMatches = append(m.IfDataMatches, router.DataMatch{
			Name:    dm.Name,
			Key:     dm.Key,
			HasKey:  dm.Key != "",
			Op:      parseOp(dm.Op),
			Literal: parseLiteral(dm.Literal),
		})
	}
	for _, dr := range em.IfDataRegexes {
		re, err := regexp.Compile(dr.Regex)
		if err != nil {
			continue
		}
		m.IfDataRegexes = append(m.IfDataRegexes, router.DataRegex{Name: dr.Name, Regex: re})
	}
	m.FlagAllowList = em.FlagAllowList
	m.FlagDenyList = em.FlagDenyList
	return m
}

func parseOp(s string) router.Op {
	switch s {
	case "!=":
		return router.OpNE
	case "<":
		return router.OpLT
	case "<=":
		return router.OpLE
	case ">":
		return router.OpGT
	case ">=":
		return router.OpGE
	default:
		return router.OpEQ
	}
}

// parseLiteral decodes a config literal using the same type-tag
// grammar internal/protocol uses on the wire ("i:10", "b:true", ...),
// so a config author and a relay peer describe typed values the same
// way.
func parseLiteral(text string) value.Value {
	tag, rest, ok := strings.Cut(text, ":")
	if !ok {
		return value.String(text)
	}
	switch tag {
	case "b":
		return value.Bool(rest == "true")
	case "i":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return value.String(text)
		}
		return value.Int(n)
	case "u":
		n, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return value.String(text)
		}
		return value.Uint(n)
	case "d":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return value.String(text)
		}
		return value.Double(f)
	case "s":
		return value.String(rest)
	default:
		return value.String(text)
	}
}

func parseAnchor(s string) notify.Anchor {
	switch s {
	case "top-left":
		return notify.AnchorTopLeft
	case "bottom-left":
		return notify.AnchorBottomLeft
	case "bottom-right":
		return notify.AnchorBottomRight
	default:
		return notify.AnchorTopRight
	}
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

func (d *daemon) watchConfigReload(ctx context.Context, cfgPath string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Warn("config file watcher unavailable", "error", err)
		return
	}
	if err := w.Add(cfgPath); err != nil {
		d.logger.Warn("failed to watch config file", "path", cfgPath, "error", err)
		w.Close()
		return
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					d.logger.Info("config file changed; issue a control-channel reload to apply it", "path", ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.logger.Warn("config watcher error", "error", err)
			}
		}
	}()
}
