package main

import (
	"context"
	"net"
	"os"
	"path/filepath"

	"github.com/nugget/eventd-go/internal/control"
)

// startControlSocket binds the control-channel Unix domain socket and
// serves one control.Server.Serve call per accepted connection.
func (d *daemon) startControlSocket(ctx context.Context) (net.Listener, error) {
	path := control.SocketPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				if err := d.control.Serve(ctx, conn, conn); err != nil {
					d.logger.Debug("control request failed", "error", err)
				}
			}()
		}
	}()

	return ln, nil
}
