// Package session implements the server/client connection state
// machine described in spec.md §4.5: accept, optional TLS, a
// read-frame/handle-frame loop, keepalive, and the echo guard that
// prevents a session from receiving back the event it just sent.
// Grounded on internal/homeassistant.WSClient's connection shape
// (mutex-guarded conn, dedicated read loop, logger field) turned
// inside out from an outbound client into an inbound per-connection
// session.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/eventd-go/internal/dispatcher"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/protocol"
	"github.com/nugget/eventd-go/internal/subscription"
)

// State is the session's position in spec.md §4.5's state machine.
type State int

const (
	StateAccepted State = iota
	StateAuthenticated
	StateDisconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseCode names the typed close reasons spec.md §4.4/§7 require the
// session to report.
type CloseCode int

const (
	CloseNormal CloseCode = iota
	CloseProtocolError
	CloseUnsupportedData
	CloseTLSFailure
	CloseAuthFailure
	CloseKeepaliveTimeout
)

// Session is one accepted connection.
type Session struct {
	ID uuid.UUID

	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer

	mu    sync.Mutex
	state State

	// currentEvent is the echo-guard slot (spec.md §4.5): set while an
	// event received on this session is being dispatched, so the
	// Hub's fan-out can skip delivering it back here.
	currentEvent *event.Event

	subs       *subscription.Registry
	dispatcher *dispatcher.Dispatcher

	pingInterval time.Duration
	hub          *Hub

	logger *slog.Logger
}

// New wraps an already-accepted (and, if required, already
// TLS-handshaken) connection as a session. Non-loopback connections
// without TLS must be rejected by the caller before calling New, per
// spec.md §4.5's "Non-loopback connection without TLS configured →
// CLOSED immediately."
func New(conn net.Conn, subs *subscription.Registry, disp *dispatcher.Dispatcher, hub *Hub, pingInterval time.Duration, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Session{
		ID:           id,
		conn:         conn,
		reader:       protocol.NewReader(conn),
		writer:       protocol.NewWriter(conn),
		state:        StateAccepted,
		subs:         subs,
		dispatcher:   disp,
		hub:          hub,
		pingInterval: pingInterval,
		logger:       logger.With("session", id),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run authenticates (a no-op unless TLS-layer auth already happened
// during accept) and drives the read-frame/handle-frame loop until the
// connection closes or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Register(s)
		defer s.hub.Unregister(s)
	}
	defer s.closeConn(CloseNormal)

	deadline := s.nextDeadline()
	pinged := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.pingInterval > 0 {
			if err := s.conn.SetReadDeadline(deadline); err != nil {
				return err
			}
		}

		frame, err := s.reader.ReadFrame()
		if err != nil {
			if isTimeout(err) {
				if !pinged {
					if werr := s.writer.WritePing(); werr != nil {
						s.closeConn(CloseNormal)
						return werr
					}
					pinged = true
					deadline = s.nextDeadline()
					continue
				}
				s.closeConn(CloseKeepaliveTimeout)
				return fmt.Errorf("session: keepalive timeout")
			}
			if err == io.EOF {
				return nil
			}
			s.logger.Warn("session read error", "error", err)
			s.closeConn(CloseNormal)
			return err
		}

		pinged = false
		deadline = s.nextDeadline()

		done, err := s.handleFrame(ctx, frame)
		if err != nil {
			s.closeConn(CloseProtocolError)
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *Session) nextDeadline() time.Time {
	if s.pingInterval <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.pingInterval)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// handleFrame processes one decoded frame, returning done=true when the
// session should close after this frame (BYE).
func (s *Session) handleFrame(ctx context.Context, f protocol.Frame) (done bool, err error) {
	switch f.Kind {
	case protocol.FrameBye:
		_ = s.writer.WriteBye()
		return true, nil

	case protocol.FramePing:
		return false, s.writer.WritePong()

	case protocol.FramePong:
		return false, nil

	case protocol.FrameSubscribe:
		if s.subs != nil {
			if len(f.Categories) == 0 {
				s.subs.SubscribeAll(s)
			} else {
				s.subs.Subscribe(s, f.Categories)
			}
		}
		return false, nil

	case protocol.FrameEvent:
		s.mu.Lock()
		s.currentEvent = f.Event
		s.mu.Unlock()

		if s.dispatcher != nil {
			s.dispatcher.PushEvent(ctx, f.Event)
		}

		s.mu.Lock()
		s.currentEvent = nil
		s.mu.Unlock()
		return false, nil

	default:
		return false, nil
	}
}

// CurrentEvent returns the event this session is currently dispatching,
// for the Hub's echo guard. Returns nil outside of dispatch.
func (s *Session) CurrentEvent() *event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentEvent
}

// SendEvent writes ev to the session as an EVENT frame, used by the
// Hub's fan-out to deliver subscribed events to this session.
func (s *Session) SendEvent(ev *event.Event) error {
	if err := s.writer.WriteEvent(ev); err != nil {
		s.closeConn(CloseNormal)
		return err
	}
	return nil
}

func (s *Session) closeConn(code CloseCode) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	if s.subs != nil {
		s.subs.Unsubscribe(s)
	}
	_ = s.conn.Close()
}
