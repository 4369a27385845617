// conn_windows.go implements the control endpoint for Windows using a named
// pipe via the go-winio library. The pipe name is derived from the current
// user, so the path argument used on Unix is ignored.

//go:build windows

package control

import (
	"net"

	"github.com/Microsoft/go-winio"
	"tools.zach/dev/crashwatch/internal/paths"
)

// ///////////////////////////////////////////////
// Endpoint
// ///////////////////////////////////////////////

// listen binds the control named pipe.
func listen(_ string) (net.Listener, error) {
	return winio.ListenPipe(paths.PipeName(), nil)
}

// dial connects to the control named pipe.
func dial(_ string) (net.Conn, error) {
	conn, err := winio.DialPipe(paths.PipeName(), nil)
	if err != nil {
		return nil, ErrNotRunning
	}
	return conn, nil
}
