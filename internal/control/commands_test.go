package control

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/plugin"
	"github.com/nugget/eventd-go/internal/router"
)

type fakeLifecycle struct {
	stopped, started, quitRequested bool
	stopErr, startErr               error
}

func (f *fakeLifecycle) StopAll(ctx context.Context) error {
	f.stopped = true
	return f.stopErr
}

func (f *fakeLifecycle) StartAll(ctx context.Context) error {
	f.started = true
	return f.startErr
}

func (f *fakeLifecycle) RequestQuit() { f.quitRequested = true }

func newTestServer(t *testing.T) (*Server, *action.Registry, *fakeLifecycle) {
	t.Helper()
	actions := action.NewRegistry(nil)
	actions.Add(&action.Action{ID: "notify", FlagsAdd: []string{"busy"}, SubactionIDs: []string{"log"}})
	actions.Add(&action.Action{ID: "log"})
	actions.Link()

	lc := &fakeLifecycle{}
	s := NewServer(nil)
	RegisterStandardCommands(s, lc, router.New(nil), actions, flags.New(), plugin.NewRegistry(), "eventd-go test")
	return s, actions, lc
}

func serveAndDecode(t *testing.T, s *Server, args []string) (uint64, string) {
	t.Helper()
	var out bytes.Buffer
	if err := s.Serve(context.Background(), bytes.NewReader(encodeRequest(args)), &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	var code uint64
	binary.Read(bytes.NewReader(out.Bytes()[:8]), binary.LittleEndian, &code)
	return code, string(bytes.TrimRight(out.Bytes()[8:], "\x00"))
}

func TestDumpActionKnownID(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, msg := serveAndDecode(t, s, []string{"dump", "action", "notify"})
	if code != CodeOK {
		t.Fatalf("code = %d, want CodeOK; message = %q", code, msg)
	}
	if !strings.Contains(msg, "action=notify") || !strings.Contains(msg, "subactions=[log]") || !strings.Contains(msg, "flags_add=[busy]") {
		t.Errorf("dump action output = %q, want it to describe notify's plugin actions/subactions/flags", msg)
	}
}

func TestDumpActionUnknownID(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, _ := serveAndDecode(t, s, []string{"dump", "action", "bogus"})
	if code != CodeInvocationErr {
		t.Errorf("code = %d, want CodeInvocationErr", code)
	}
}

func TestDumpUnknownTarget(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, _ := serveAndDecode(t, s, []string{"dump", "bogus", "x"})
	if code != CodeInvocationErr {
		t.Errorf("code = %d, want CodeInvocationErr", code)
	}
}

func TestVersionCommand(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, msg := serveAndDecode(t, s, []string{"version"})
	if code != CodeOK || msg != "eventd-go test" {
		t.Errorf("version = (%d, %q), want (CodeOK, \"eventd-go test\")", code, msg)
	}
}

func TestStopCommandDrivesLifecycle(t *testing.T) {
	s, _, lc := newTestServer(t)

	code, _ := serveAndDecode(t, s, []string{"stop"})
	if code != CodeOK {
		t.Errorf("code = %d, want CodeOK", code)
	}
	if !lc.stopped || !lc.quitRequested {
		t.Errorf("stop command: stopped=%v quitRequested=%v, want both true", lc.stopped, lc.quitRequested)
	}
}

func TestReloadCommandStopsThenStarts(t *testing.T) {
	s, _, lc := newTestServer(t)

	code, _ := serveAndDecode(t, s, []string{"reload"})
	if code != CodeOK {
		t.Errorf("code = %d, want CodeOK", code)
	}
	if !lc.stopped || !lc.started {
		t.Errorf("reload command: stopped=%v started=%v, want both true", lc.stopped, lc.started)
	}
}
