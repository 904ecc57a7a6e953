package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nugget/eventd-go/internal/config"
	"github.com/nugget/eventd-go/internal/session"
	"github.com/nugget/eventd-go/internal/wsadapter"
)


// listener owns every accepting socket eventd binds: raw line-protocol
// TCP/TLS listeners (spec.md §4.4/§4.5) and HTTP servers upgrading to
// the same protocol over WebSocket (spec.md §6). Grounded on
// cmd/thane's pattern of a single struct owning every started
// background service so StopAll has one place to tear them down.
type listener struct {
	cfg    *config.Config
	daemon *daemon
	logger *slog.Logger

	rawListeners []net.Listener
	httpServers  []*http.Server
}

func newListener(cfg *config.Config, d *daemon, logger *slog.Logger) *listener {
	return &listener{cfg: cfg, daemon: d, logger: logger}
}

func (l *listener) start(ctx context.Context) error {
	var tlsCfg *tls.Config
	if l.cfg.Server.TLSCertFile != "" && l.cfg.Server.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(l.cfg.Server.TLSCertFile, l.cfg.Server.TLSKeyFile)
		if err != nil {
			return err
		}
		tlsCfg = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	for _, addr := range l.cfg.Server.Listen {
		if err := l.startRaw(ctx, addr, tlsCfg); err != nil {
			return err
		}
	}

	for _, addr := range l.cfg.Server.WebSocketListen {
		if err := l.startWebSocket(ctx, addr, tlsCfg); err != nil {
			return err
		}
	}

	return nil
}

// startRaw binds one listener serving the raw line-protocol
// (internal/protocol). Non-loopback addresses require TLS to be
// configured (spec.md §4.5: "Non-loopback connection without TLS
// configured → CLOSED immediately"); rather than accept and
// immediately close each connection, we simply decline to open a
// plaintext listener on a non-loopback address at all.
func (l *listener) startRaw(ctx context.Context, addr string, tlsCfg *tls.Config) error {
	if tlsCfg == nil && !isLoopback(addr) {
		l.logger.Warn("refusing to open plaintext listener on non-loopback address", "addr", addr)
		return nil
	}

	var ln net.Listener
	var err error
	if tlsCfg != nil {
		ln, err = tls.Listen("tcp", addr, tlsCfg)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}
	l.rawListeners = append(l.rawListeners, ln)
	l.logger.Info("listening", "addr", addr, "tls", tlsCfg != nil)

	go l.acceptLoop(ctx, ln)
	return nil
}

func (l *listener) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !isClosed(err) {
				l.logger.Warn("accept failed", "error", err)
			}
			return
		}
		go l.acceptConn(ctx, conn)
	}
}

func (l *listener) acceptConn(ctx context.Context, conn net.Conn) {
	d := l.daemon
	pingInterval := time.Duration(l.cfg.Server.PingIntervalSec) * time.Second
	sess := session.New(conn, d.hub.Subscriptions(), d.dispatch, d.hub, pingInterval, l.logger)
	if err := sess.Run(ctx); err != nil {
		l.logger.Debug("session ended", "error", err)
	}
}

func (l *listener) startWebSocket(ctx context.Context, addr string, tlsCfg *tls.Config) error {
	var auth *wsadapter.BasicAuth
	if l.cfg.Server.WebSocketSecret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(l.cfg.Server.WebSocketSecret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := l.cfg.Server.WebSocketUser
		if user == "" {
			user = "evp"
		}
		auth = &wsadapter.BasicAuth{Username: user, PasswordHash: hash}
	}

	handler := &wsadapter.Handler{
		Auth: auth,
		Accept: func(conn net.Conn) {
			l.acceptConn(ctx, conn)
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)

	srv := &http.Server{Addr: addr, Handler: mux}
	if tlsCfg != nil {
		srv.TLSConfig = tlsCfg
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	l.httpServers = append(l.httpServers, srv)
	l.logger.Info("listening (websocket)", "addr", addr, "tls", tlsCfg != nil)

	go func() {
		var serveErr error
		if tlsCfg != nil {
			serveErr = srv.ServeTLS(ln, "", "")
		} else {
			serveErr = srv.Serve(ln)
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			l.logger.Warn("websocket server stopped", "addr", addr, "error", serveErr)
		}
	}()

	return nil
}

func (l *listener) stop() {
	for _, ln := range l.rawListeners {
		ln.Close()
	}
	l.rawListeners = nil

	for _, srv := range l.httpServers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(ctx)
		cancel()
	}
	l.httpServers = nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isClosed(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
