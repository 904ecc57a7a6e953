package relay

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/nugget/eventd-go/internal/event"
	"github.com/nugget/eventd-go/internal/protocol"
)

func deadlineSoon() time.Time { return time.Now().Add(100 * time.Millisecond) }

func newTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	s := New("peer1", nil, nil)
	s.conn = server
	s.writer = protocol.NewWriter(server)
	return s, client
}

func TestSendAlwaysForwardsInternalCategory(t *testing.T) {
	s, client := newTestServer(t)
	ev := event.New(".notification", "create")

	errc := make(chan error, 1)
	go func() { errc <- s.Send(ev) }()

	br := bufio.NewReader(client)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if got := "EVENT " + ev.UUID.String() + " .notification create\n"; line != got {
		t.Errorf("wire line = %q, want %q", line, got)
	}
	if err := <-errc; err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestSendDropsNonForwardedCategory(t *testing.T) {
	s, client := newTestServer(t)
	ev := event.New("app", "ping")

	done := make(chan struct{})
	go func() {
		s.Send(ev)
		close(done)
	}()
	<-done

	client.SetReadDeadline(deadlineSoon())
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Error("expected no bytes written for a non-forwarded category, got data")
	}
}

func TestSendForwardsExplicitCategory(t *testing.T) {
	s, client := newTestServer(t)
	s.ForwardCategories["app"] = struct{}{}
	ev := event.New("app", "ping")

	go s.Send(ev)

	br := bufio.NewReader(client)
	if _, err := br.ReadString('\n'); err != nil {
		t.Fatalf("expected event to be forwarded, read error: %v", err)
	}
}

func TestSendSkipsEchoedEvent(t *testing.T) {
	s, client := newTestServer(t)
	ev := event.New(".notification", "create")
	s.currentEvent = ev

	done := make(chan struct{})
	go func() {
		s.Send(ev)
		close(done)
	}()
	<-done

	client.SetReadDeadline(deadlineSoon())
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Error("expected echoed event to be dropped, got data")
	}
}
