// Package control implements the daemon's local control channel.
//
// The daemon listens on a unix socket (named pipe on Windows) and answers
// framed JSON commands from short-lived CLI invocations on the same machine.
// Supported commands are "status" (daemon and index summary) and "tail-log"
// (last N log lines). Platform-specific endpoint setup lives in conn_unix.go
// and conn_windows.go.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

// ///////////////////////////////////////////////
// Protocol Types
// ///////////////////////////////////////////////

// Request is the JSON payload of an OpRequest frame.
type Request struct {
	Cmd string `json:"cmd"`

	// Lines is the number of log lines wanted by the tail-log command.
	Lines int `json:"lines,omitempty"`
}

// Status summarizes a running daemon for the status command.
type Status struct {
	PID             int      `json:"pid"`
	Version         string   `json:"version"`
	UptimeSeconds   int64    `json:"uptimeSeconds"`
	WatchDir        string   `json:"watchDir"`
	Polling         bool     `json:"polling"`
	HardenedSignals []string `json:"hardenedSignals"`
	AltStackReady   bool     `json:"altStackReady"`
	Artifacts       int      `json:"artifacts"`
	Reported        int      `json:"reported"`
}

// Response is the JSON payload of an OpResponse frame.
type Response struct {
	OK     bool     `json:"ok"`
	Error  string   `json:"error,omitempty"`
	Status *Status  `json:"status,omitempty"`
	Log    []string `json:"log,omitempty"`
}

// Handler answers control commands on behalf of the daemon.
type Handler interface {
	// Status returns the current daemon status.
	Status() Status
	// TailLog returns up to lines trailing log lines.
	TailLog(lines int) ([]string, error)
}

// ///////////////////////////////////////////////
// Server
// ///////////////////////////////////////////////

// Server accepts control connections and dispatches commands to a Handler.
type Server struct {
	listener  net.Listener
	handler   Handler
	closeOnce sync.Once
}

// NewServer opens the control endpoint at path and returns a server ready
// for Serve. On Windows the path is ignored in favor of the fixed pipe name.
func NewServer(path string, handler Handler) (*Server, error) {
	l, err := listen(path)
	if err != nil {
		return nil, fmt.Errorf("opening control endpoint: %w", err)
	}
	return &Server{listener: l, handler: handler}, nil
}

// Serve accepts connections until the server is closed. It returns nil on a
// clean shutdown. Each connection is handled on its own goroutine.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting control connection: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener. Safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.listener.Close()
	})
	return err
}

// handleConn serves frames on a single connection until the client sends
// OpClose or disconnects.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		opcode, payload, err := DecodeFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("control connection read failed", "error", err)
			}
			return
		}
		if opcode == OpClose {
			return
		}
		if opcode != OpRequest {
			slog.Debug("unexpected control opcode", "opcode", opcode)
			return
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(payload, &req); err != nil {
			resp = Response{Error: fmt.Sprintf("bad request: %v", err)}
		} else {
			resp = s.dispatch(req)
		}

		body, err := json.Marshal(resp)
		if err != nil {
			slog.Debug("marshalling control response failed", "error", err)
			return
		}
		frame, err := EncodeFrame(OpResponse, body)
		if err != nil {
			slog.Debug("encoding control response failed", "error", err)
			return
		}
		if _, err := conn.Write(frame); err != nil {
			slog.Debug("writing control response failed", "error", err)
			return
		}
	}
}

// dispatch routes a request to the handler.
func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "status":
		st := s.handler.Status()
		return Response{OK: true, Status: &st}
	case "tail-log":
		lines := req.Lines
		if lines <= 0 {
			lines = 20
		}
		log, err := s.handler.TailLog(lines)
		if err != nil {
			return Response{Error: fmt.Sprintf("tail-log: %v", err)}
		}
		return Response{OK: true, Log: log}
	default:
		return Response{Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}
