// Package relay implements the RelayServer described in spec.md §4.6:
// one configured outbound peer with reconnect/backoff, a forward
// filter, and an echo guard mirroring the server session's. Grounded
// on internal/mqtt's publisher (reconnect-on-failure, reset-backoff-
// on-success) and the connection-manager contract autopaho.
// ConnectionManager models: "reconnect automatically, give the caller
// Send/IsConnected, let Stop cancel everything."
package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nugget/eventd-go/internal/dispatcher"
	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/protocol"
)

// AddressProvider resolves a configured discovery name into a
// connectable address, standing in for spec.md §4.6's "address...may
// be provided by discovery" without this package depending on any
// particular discovery transport (DNS-SD/SSDP are out of scope).
// Server stores a Provider but never calls it; the address it dials is
// the one last passed to SetAddress.
type AddressProvider interface {
	ResolveAddress(name string) (addr string, ok bool)
}

// Server is one outbound relay peer.
type Server struct {
	Name string

	// Identity is the expected TLS peer identity, if verification
	// beyond the system trust store is required.
	Identity         string
	AcceptUnknownCA  bool
	ForwardAll       bool
	ForwardCategories map[string]struct{}
	Subscribe        bool
	SubscribeCategories []string

	Provider AddressProvider

	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	address  string
	cert     *tls.Certificate
	conn     net.Conn
	writer   *protocol.Writer
	started  bool
	backoff  *Backoff
	cancel   context.CancelFunc

	// currentEvent is this relay's echo guard slot, mirroring
	// session.Session's (spec.md §4.6: "if event is the currently
	// received event from this same connection -> drop").
	currentEvent *event.Event
}

// New creates a Server that will push received events into disp.
func New(name string, disp *dispatcher.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Name:              name,
		ForwardCategories: make(map[string]struct{}),
		dispatcher:        disp,
		logger:            logger.With("relay", name),
		backoff:           NewBackoff(5*time.Second, 10*time.Second),
	}
}

// SetAddress sets the connectable endpoint to dial.
func (s *Server) SetAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = addr
}

// HasAddress reports whether an address has been configured or
// resolved.
func (s *Server) HasAddress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address != ""
}

// IsConnected reports whether the relay currently holds a live
// connection.
func (s *Server) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// SetCertificate installs the client certificate used for TLS dials.
func (s *Server) SetCertificate(cert *tls.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cert = cert
}

// Start begins the connect/reconnect loop. force resets the backoff
// before the first attempt (spec.md §4.6: "start(force=true) forces a
// reset of the backoff before attempting").
func (s *Server) Start(ctx context.Context, force bool) {
	s.mu.Lock()
	if s.started {
		if force {
			s.backoff.Reset()
		}
		s.mu.Unlock()
		return
	}
	s.started = true
	if force {
		s.backoff.Reset()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)
}

// Stop clears started and cancels any scheduled reconnect or active
// connection.
func (s *Server) Stop() {
	s.mu.Lock()
	s.started = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.writer = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Server) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		addr := s.address
		cert := s.cert
		s.mu.Unlock()

		if addr == "" {
			return
		}

		conn, err := s.dial(ctx, addr, cert)
		if err != nil {
			s.logger.Warn("relay connect failed", "address", addr, "error", err)
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.writer = protocol.NewWriter(conn)
		s.backoff.Reset()
		s.mu.Unlock()

		if s.Subscribe {
			_ = s.writer.WriteSubscribe(s.SubscribeCategories)
		}

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.writer = nil
		started := s.started
		s.mu.Unlock()

		if !started {
			return
		}
		if !s.sleepBackoff(ctx) {
			return
		}
	}
}

func (s *Server) sleepBackoff(ctx context.Context) bool {
	delay := s.backoff.Next()
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) dial(ctx context.Context, addr string, cert *tls.Certificate) (net.Conn, error) {
	dialer := &net.Dialer{}
	if cert == nil {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	cfg := &tls.Config{
		Certificates:       []tls.Certificate{*cert},
		InsecureSkipVerify: s.AcceptUnknownCA,
	}
	if s.Identity != "" {
		cfg.ServerName = s.Identity
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: cfg}
	return tlsDialer.DialContext(ctx, "tcp", addr)
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn) {
	reader := protocol.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := reader.ReadFrame()
		if err != nil {
			if err.Error() != "EOF" {
				s.logger.Warn("relay read error", "error", err)
			}
			return
		}
		if frame.Kind != protocol.FrameEvent {
			continue
		}

		s.mu.Lock()
		s.currentEvent = frame.Event
		s.mu.Unlock()

		if s.dispatcher != nil {
			s.dispatcher.PushEvent(ctx, frame.Event)
		}

		s.mu.Lock()
		s.currentEvent = nil
		s.mu.Unlock()
	}
}

// Send implements spec.md §4.6's forward filter and writes ev to the
// peer if the filter passes and a connection is live.
func (s *Server) Send(ev *event.Event) error {
	s.mu.Lock()
	isEcho := s.currentEvent == ev
	writer := s.writer
	s.mu.Unlock()

	if isEcho {
		return nil
	}
	if !s.shouldForward(ev) {
		return nil
	}
	if writer == nil {
		return nil
	}

	if err := writer.WriteEvent(ev); err != nil {
		s.logger.Warn("relay write failed, scheduling reconnect", "error", err)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
			s.conn = nil
			s.writer = nil
		}
		s.mu.Unlock()
		return fmt.Errorf("relay: write failed: %w", err)
	}
	return nil
}

func (s *Server) shouldForward(ev *event.Event) bool {
	if strings.HasPrefix(ev.Category, ".") {
		return true
	}
	if s.ForwardAll {
		return true
	}
	_, ok := s.ForwardCategories[ev.Category]
	return ok
}

// Dispatch implements dispatcher.Fanout: every event the dispatcher
// processes is offered to Send, which applies the forward filter.
func (s *Server) Dispatch(ctx context.Context, ev *event.Event) {
	_ = s.Send(ev)
}
