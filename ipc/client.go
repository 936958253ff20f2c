// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"net"
	"time"
)

// Client is a connection to a sandbox's IPC socket. It is used by the
// leash-ipc helper binary and by tests; sandboxed processes normally go
// through the helper rather than linking this package.
//
// A Client serializes calls: one request frame, then its response. It
// is not safe for concurrent use; open one client per goroutine.
type Client struct {
	conn net.Conn
}

// Dial connects to the IPC socket at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to IPC socket %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Call sends one framed request and reads the framed response.
func (c *Client) Call(name string, payload []byte) (Response, error) {
	if err := WriteRequest(c.conn, Request{Name: name, Payload: payload}); err != nil {
		return Response{}, fmt.Errorf("sending %s request: %w", name, err)
	}
	response, err := ReadResponse(c.conn)
	if err != nil {
		return Response{}, fmt.Errorf("reading %s response: %w", name, err)
	}
	return response, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call dials the socket, performs a single request, and closes the
// connection. Convenience for one-shot callers like the helper binary.
func Call(socketPath, name string, payload []byte) (Response, error) {
	client, err := Dial(socketPath)
	if err != nil {
		return Response{}, err
	}
	defer client.Close()
	return client.Call(name, payload)
}
