// Package wsadapter re-frames the line-based inter-daemon protocol
// (internal/protocol) over a WebSocket text channel, per spec.md §4.4/
// §6: path "/", subprotocol name "evp", one complete protocol frame
// per text message, binary messages close the connection with
// UNSUPPORTED_DATA. Grounded on
// internal/homeassistant/websocket.go's use of gorilla/websocket, here
// run server-side via an http.Handler instead of client-side.
package wsadapter

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

// errUnsupportedData is returned from Read when the peer sends a
// binary WebSocket message; the caller's read loop treats any non-EOF
// read error as a connection close, which is the desired effect here.
var errUnsupportedData = errors.New("wsadapter: binary frames unsupported")

// Subprotocol is the WebSocket subprotocol name the inter-daemon
// protocol advertises, matching the TCP service name "evp" (spec.md
// §6).
const Subprotocol = "evp"

// UnsupportedDataCloseCode is the WebSocket close status sent when a
// client sends a binary message; this mirrors protocol.ErrProtocol's
// session-level close behavior for the WebSocket transport
// specifically (spec.md §4.4).
const UnsupportedDataCloseCode = 1003

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	Subprotocols:    []string{Subprotocol},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BasicAuth holds the optional HTTP Basic Auth credential the adapter
// checks before upgrading, per spec.md §4.5's "Authentication failure
// (for WebSocket, failed HTTP Basic) → CLOSED with HTTP 401 before
// upgrade." The password is stored as a bcrypt hash; nil means no
// authentication is required.
type BasicAuth struct {
	Username     string
	PasswordHash []byte
}

// Check reports whether user/pass match the configured credential,
// using a constant-time username comparison and bcrypt for the
// password so the adapter never holds plaintext secrets in memory
// longer than the single comparison.
func (b *BasicAuth) Check(user, pass string) bool {
	if b == nil {
		return true
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(b.Username)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(b.PasswordHash, []byte(pass)) == nil
}

// Handler upgrades incoming requests at its registered path to a
// WebSocket connection framed as the inter-daemon protocol. Accept is
// called with the resulting net.Conn for each successful upgrade; the
// caller is expected to hand it to session.New the same way it would a
// raw TCP connection.
type Handler struct {
	Auth   *BasicAuth
	Accept func(conn net.Conn)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Auth != nil {
		user, pass, ok := r.BasicAuth()
		if !ok || !h.Auth.Check(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.Accept(newConn(wsConn))
}

// conn adapts a *websocket.Conn to net.Conn, buffering one complete
// protocol frame per WebSocket message in each direction.
type conn struct {
	ws       *websocket.Conn
	readBuf  []byte
	writeBuf []byte
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (c *conn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		if mt == websocket.BinaryMessage {
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(UnsupportedDataCloseCode, "binary frames unsupported"),
				time.Now().Add(time.Second))
			return 0, errUnsupportedData
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		c.readBuf = data
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// isFrameTerminator reports whether line closes out a complete protocol
// frame, mirroring the set protocol.Reader treats as terminal; once
// one is seen the accumulated write buffer is flushed as a single
// WebSocket text message, matching spec.md §4.4's "each text message
// carries exactly one complete frame."
func isFrameTerminator(line string) bool {
	switch line {
	case ".", "BYE", "PING", "PONG":
		return true
	}
	return len(line) >= len("SUBSCRIBE") && line[:len("SUBSCRIBE")] == "SUBSCRIBE"
}

func (c *conn) Write(p []byte) (int, error) {
	c.writeBuf = append(c.writeBuf, p...)

	line := p
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if !isFrameTerminator(string(line)) {
		return len(p), nil
	}

	err := c.ws.WriteMessage(websocket.TextMessage, c.writeBuf)
	c.writeBuf = nil
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *conn) Close() error                       { return c.ws.Close() }
func (c *conn) LocalAddr() net.Addr                 { return c.ws.LocalAddr() }
func (c *conn) RemoteAddr() net.Addr                { return c.ws.RemoteAddr() }
func (c *conn) SetReadDeadline(t time.Time) error   { return c.ws.SetReadDeadline(t) }
func (c *conn) SetWriteDeadline(t time.Time) error  { return c.ws.SetWriteDeadline(t) }

func (c *conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}
