// conn_unix.go implements the control endpoint for Unix-like systems using
// a unix domain socket inside the daemon's data directory.

//go:build !windows

package control

import (
	"errors"
	"net"
	"os"
)

// ///////////////////////////////////////////////
// Endpoint
// ///////////////////////////////////////////////

// listen binds the control socket at path. A stale socket file left behind
// by a crashed daemon is removed first; the PID-file lock guarantees no
// live daemon owns it.
func listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", path)
}

// dial connects to the control socket at path.
func dial(path string) (net.Conn, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, ErrNotRunning
	}
	return conn, nil
}
