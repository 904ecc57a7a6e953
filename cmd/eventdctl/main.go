// Command eventdctl is a thin client for the control channel described
// in spec.md §4.8/§6: it connects to the daemon's control socket,
// forwards argv as one request, prints any status message, and exits
// with the control-channel's own return code. Grounded on cmd/thane's
// subcommand-dispatch main, reshaped into argv-forwarding since the
// vocabulary itself belongs to the daemon, not this binary.
package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"

	"github.com/nugget/eventd-go/internal/control"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: eventdctl <command> [args...]")
		return control.CodeBadArgv
	}

	conn, err := net.Dial("unix", control.SocketPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventdctl: connect: %v\n", err)
		return control.CodeConnectFailure
	}
	defer conn.Close()

	if err := binary.Write(conn, binary.LittleEndian, uint64(len(args))); err != nil {
		fmt.Fprintf(os.Stderr, "eventdctl: %v\n", err)
		return control.CodeConnectFailure
	}
	for _, a := range args {
		if _, err := conn.Write(append([]byte(a), 0)); err != nil {
			fmt.Fprintf(os.Stderr, "eventdctl: %v\n", err)
			return control.CodeConnectFailure
		}
	}

	var code uint64
	if err := binary.Read(conn, binary.LittleEndian, &code); err != nil {
		fmt.Fprintf(os.Stderr, "eventdctl: reading response: %v\n", err)
		return control.CodeConnectFailure
	}

	message, err := readOptionalMessage(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eventdctl: reading response message: %v\n", err)
		return control.CodeConnectFailure
	}
	if message != "" {
		fmt.Println(message)
	}

	return int(code)
}

func readOptionalMessage(r net.Conn) (string, error) {
	var buf []byte
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n == 0 || err != nil {
			// Connection closed with no message, i.e. the response
			// carried only a return code (spec.md §4.8).
			return string(buf), nil
		}
		if one[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, one[0])
	}
}
