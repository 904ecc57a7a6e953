package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/plugin"
	"github.com/nugget/eventd-go/internal/router"
)

// Lifecycle is the subset of daemon bootstrap the control channel
// drives directly: stopping/starting every loaded plugin on "reload",
// and asking the main loop to quit on "stop".
type Lifecycle interface {
	StopAll(ctx context.Context) error
	StartAll(ctx context.Context) error
	RequestQuit()
}

// RegisterStandardCommands wires the start/stop/reload/version/dump/
// flags commands spec.md §4.8 names onto s.
func RegisterStandardCommands(s *Server, lc Lifecycle, r *router.Router, actions *action.Registry, fs *flags.Set, plugins *plugin.Registry, version string) {
	s.Register("start", HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		return CodeOK, ""
	}))

	s.Register("version", HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		return CodeOK, version
	}))

	s.Register("stop", HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		// spec.md §4.8: "stop defers its response until after all
		// plugins have been stopped and the main loop is asked to
		// quit" — here that ordering is sequential rather than
		// deferred-async since Serve already blocks the caller until
		// this handler returns.
		if err := lc.StopAll(ctx); err != nil {
			return CodeInvocationErr, err.Error()
		}
		lc.RequestQuit()
		return CodeOK, ""
	}))

	s.Register("reload", HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		if err := lc.StopAll(ctx); err != nil {
			return CodeInvocationErr, err.Error()
		}
		if err := lc.StartAll(ctx); err != nil {
			return CodeInvocationErr, err.Error()
		}
		return CodeOK, ""
	}))

	s.Register("dump", HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		return dumpCommand(args, r, actions)
	}))

	s.Register("flags", HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		return flagsCommand(args, fs)
	}))

	s.SetFallback(HandlerFunc(func(ctx context.Context, args []string) (uint64, string) {
		return pluginCommand(ctx, args, plugins)
	}))
}

func dumpCommand(args []string, r *router.Router, actions *action.Registry) (uint64, string) {
	if len(args) < 2 {
		return CodeInvocationErr, "usage: dump event|action <name>"
	}
	switch args[0] {
	case "event":
		lines := r.Dump(strings.Join(args[1:], " "))
		if lines == nil {
			return CodeInvocationErr, fmt.Sprintf("no event match for %q", strings.Join(args[1:], " "))
		}
		return CodeOK, strings.Join(lines, "\n")
	case "action":
		id := strings.Join(args[1:], " ")
		lines := actions.Dump(id)
		if lines == nil {
			return CodeInvocationErr, fmt.Sprintf("no action %q", id)
		}
		return CodeOK, strings.Join(lines, "\n")
	default:
		return CodeInvocationErr, fmt.Sprintf("unknown dump target %q", args[0])
	}
}

func flagsCommand(args []string, fs *flags.Set) (uint64, string) {
	if len(args) < 1 {
		return CodeInvocationErr, "usage: flags add|remove|test|reset|list <flag?>"
	}
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return CodeInvocationErr, "flags add requires a flag name"
		}
		fs.Add(args[1])
		return CodeOK, ""
	case "remove":
		if len(args) < 2 {
			return CodeInvocationErr, "flags remove requires a flag name"
		}
		fs.Remove(args[1])
		return CodeOK, ""
	case "test":
		if len(args) < 2 {
			return CodeInvocationErr, "flags test requires a flag name"
		}
		if fs.Test(args[1]) {
			return CodeOK, "active"
		}
		return CodeOK, "inactive"
	case "reset":
		fs.Reset()
		return CodeOK, ""
	case "list":
		return CodeOK, strings.Join(fs.List(), ",")
	default:
		return CodeInvocationErr, fmt.Sprintf("unknown flags subcommand %q", args[0])
	}
}

func pluginCommand(ctx context.Context, args []string, plugins *plugin.Registry) (uint64, string) {
	if len(args) < 1 {
		return CodeBadArgv, "empty command"
	}
	p, ok := plugins.Get(args[0])
	if !ok {
		return CodeUnknownPlugin, fmt.Sprintf("unknown plugin %q", args[0])
	}
	cc, ok := p.(plugin.ControlCommander)
	if !ok {
		return CodeUnknownCommand, fmt.Sprintf("plugin %q does not accept control commands", args[0])
	}
	status, msg := cc.ControlCommand(ctx, args[1:])
	return uint64(status), msg
}
