package session

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/nugget/eventd-go/internal/action"
	"github.com/nugget/eventd-go/internal/dispatcher"
	"github.com/nugget/eventd-go/internal/flags"
	"github.com/nugget/eventd-go/internal/router"
	"github.com/nugget/eventd-go/internal/subscription"
)

func newTestDispatcher() *dispatcher.Dispatcher {
	reg := action.NewRegistry(slog.Default())
	reg.Link()
	r := router.New(slog.Default())
	return dispatcher.New(slog.Default(), r, reg, flags.New())
}

func TestSessionByeClosesConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	subs := subscription.New()
	disp := newTestDispatcher()
	sess := New(server, subs, disp, nil, 0, slog.Default())

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	if _, err := client.Write([]byte("BYE\n")); err != nil {
		t.Fatal(err)
	}

	br := bufio.NewReader(client)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	if line != "BYE\n" {
		t.Errorf("reply = %q, want \"BYE\\n\"", line)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after BYE")
	}
}

func TestSessionSubscribeRegistersWithRegistry(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	subs := subscription.New()
	disp := newTestDispatcher()
	sess := New(server, subs, disp, nil, 0, slog.Default())

	go sess.Run(context.Background())

	if _, err := client.Write([]byte("SUBSCRIBE app\n")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	recipients := subs.Recipients("app")
	found := false
	for _, r := range recipients {
		if r == sess {
			found = true
		}
	}
	if !found {
		t.Error("session was not registered as a subscriber for category app")
	}

	client.Write([]byte("BYE\n"))
}
