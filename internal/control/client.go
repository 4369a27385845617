package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client talks to a running daemon over the control endpoint.
type Client struct {
	// mu serializes round trips on the shared connection.
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the daemon's control endpoint at path. On Windows the
// path is ignored in favor of the fixed pipe name. Returns ErrNotRunning
// when nothing is listening.
func Dial(path string) (*Client, error) {
	conn, err := dial(path)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Status fetches the daemon status.
func (c *Client) Status() (Status, error) {
	resp, err := c.roundTrip(Request{Cmd: "status"})
	if err != nil {
		return Status{}, err
	}
	if resp.Status == nil {
		return Status{}, errors.New("daemon returned no status")
	}
	return *resp.Status, nil
}

// TailLog fetches up to lines trailing log lines from the daemon.
func (c *Client) TailLog(lines int) ([]string, error) {
	resp, err := c.roundTrip(Request{Cmd: "tail-log", Lines: lines})
	if err != nil {
		return nil, err
	}
	return resp.Log, nil
}

// Close sends a close frame and shuts the connection. Best effort on the
// close frame; the connection is torn down regardless.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	if frame, err := EncodeFrame(OpClose, nil); err == nil {
		_, _ = c.conn.Write(frame)
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends one request frame and reads the matching response.
func (c *Client) roundTrip(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return Response{}, ErrNotRunning
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshalling request: %w", err)
	}
	frame, err := EncodeFrame(OpRequest, payload)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return Response{}, fmt.Errorf("writing request: %w", err)
	}

	opcode, body, err := DecodeFrame(c.conn)
	if err != nil {
		return Response{}, fmt.Errorf("reading response: %w", err)
	}
	if opcode != OpResponse {
		return Response{}, fmt.Errorf("unexpected response opcode: %d", opcode)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}
	if !resp.OK {
		return Response{}, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}
